// Copyright 2018 Andrew Fort
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package rfc6242

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

var (
	// tokenEOM is the :base:1.0 end-of-message delimiter.
	tokenEOM = []byte("]]>]]>")
	// tokenEndOfChunks terminates a :base:1.1 chunked message.
	tokenEndOfChunks = []byte("\n##\n")

	// ErrBadChunk is reported when the input does not hold a valid chunk header.
	ErrBadChunk = errors.New("rfc6242: invalid chunk header")
)

// decoderEndOfMessage delivers message data up to the next "]]>]]>" delimiter.
func decoderEndOfMessage(d *Decoder, b []byte, atEOF bool) (advance int, token []byte, err error) {
	switch idx := bytes.Index(b, tokenEOM); {
	case idx == 0:
		d.endOfMessage()
		return len(tokenEOM), nil, nil
	case idx > 0:
		d.eofOK = false
		return idx, b[:idx], nil
	}

	if atEOF {
		if len(b) > 0 {
			d.eofOK = false
			return len(b), b, nil
		}
		return 0, nil, nil
	}

	// Hold back any suffix that could be the start of a delimiter split across reads.
	if safe := len(b) - partialSuffix(b, tokenEOM); safe > 0 {
		d.eofOK = false
		return safe, b[:safe], nil
	}
	return 0, nil, nil
}

// decoderChunked strips chunk headers ("\n#<size>\n") and end-of-chunks markers ("\n##\n").
func decoderChunked(d *Decoder, b []byte, atEOF bool) (advance int, token []byte, err error) {
	if d.chunkDataLeft > 0 {
		if len(b) == 0 {
			if atEOF {
				return 0, nil, io.ErrUnexpectedEOF
			}
			return 0, nil, nil
		}
		n := len(b)
		if uint64(n) > d.chunkDataLeft {
			n = int(d.chunkDataLeft)
		}
		d.chunkDataLeft -= uint64(n)
		return n, b[:n], nil
	}

	// The shortest header is "\n#1\n", the same length as "\n##\n".
	if len(b) < len(tokenEndOfChunks) {
		if atEOF && len(b) > 0 {
			return 0, nil, io.ErrUnexpectedEOF
		}
		return 0, nil, nil
	}
	if b[0] != '\n' || b[1] != '#' {
		return 0, nil, ErrBadChunk
	}
	if b[2] == '#' {
		if b[3] != '\n' {
			return 0, nil, ErrBadChunk
		}
		d.endOfMessage()
		return len(tokenEndOfChunks), nil, nil
	}

	end := bytes.IndexByte(b[2:], '\n')
	if end < 0 {
		if len(b)-2 > rfc6242maximumAllowedChunkSizeLength {
			return 0, nil, ErrBadChunk
		}
		if atEOF {
			return 0, nil, io.ErrUnexpectedEOF
		}
		return 0, nil, nil
	}

	size, err := parseChunkSize(b[2 : 2+end])
	if err != nil {
		return 0, nil, err
	}
	d.chunkDataLeft = size
	d.eofOK = false
	return 2 + end + 1, nil, nil
}

// parseChunkSize decodes the decimal chunk-size of a chunk header, 1..4294967295 without leading zeros.
func parseChunkSize(digits []byte) (uint64, error) {
	if len(digits) == 0 || len(digits) > rfc6242maximumAllowedChunkSizeLength || digits[0] == '0' {
		return 0, errors.Wrapf(ErrBadChunk, "chunk size %q", digits)
	}
	var size uint64
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, errors.Wrapf(ErrBadChunk, "chunk size %q", digits)
		}
		size = size*10 + uint64(c-'0')
	}
	if size > rfc6242maximumAllowedChunkSize {
		return 0, errors.Wrapf(ErrBadChunk, "chunk size %d exceeds maximum", size)
	}
	return size, nil
}

// partialSuffix returns the length of the longest suffix of b that is a proper prefix of delim.
func partialSuffix(b, delim []byte) int {
	limit := len(delim) - 1
	if limit > len(b) {
		limit = len(b)
	}
	for n := limit; n > 0; n-- {
		if bytes.Equal(b[len(b)-n:], delim[:n]) {
			return n
		}
	}
	return 0
}
