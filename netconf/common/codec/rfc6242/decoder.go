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
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// FramerFn is the input tokenization function used by a Decoder.
type FramerFn func(d *Decoder, data []byte, atEOF bool) (advance int, token []byte, err error)

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithScannerBufferSize sets the capacity of the buffer used to scan the input.
func WithScannerBufferSize(size int) DecoderOption {
	return func(d *Decoder) {
		if size > 0 {
			d.bufSize = size
		}
	}
}

// Decoder is an RFC6242 transport framing decoder filter.
//
// Decoder operates as an inline filter, taking a io.Reader as input
// and providing io.Reader as well as the low-overhead io.WriterTo.
//
// Decoder is not safe for concurrent use.
type Decoder struct {
	// Input is the input source for the Decoder. The input stream
	// must consist of RFC6242 encoded data according to the current
	// Framer.
	Input io.Reader

	framer FramerFn
	// Pending framer will take effect after end of message has been processed.
	pendingFramer FramerFn

	s *bufio.Scanner

	// Decoded bytes of the current token not yet delivered by Read.
	remainder []byte

	scanErr       error
	chunkDataLeft uint64 // state
	bufSize       int    // config
	anySeen       bool
	eofOK         bool
}

// NewDecoder creates a new RFC6242 transport framing decoder reading from
// input, configured with any options provided.
func NewDecoder(input io.Reader, options ...DecoderOption) *Decoder {
	d := &Decoder{
		Input:   input,
		framer:  decoderEndOfMessage,
		bufSize: defaultReaderBufferSize,
		// A stream closed before any data arrives reports io.EOF rather than io.ErrUnexpectedEOF.
		eofOK: true,
	}
	for _, option := range options {
		option(d)
	}
	d.s = bufio.NewScanner(input)
	d.s.Buffer(make([]byte, 0, d.bufSize), d.bufSize)
	d.s.Split(d.split)
	return d
}

// Read reads from the Decoder's input and copies the data into b,
// implementing io.Reader.
func (d *Decoder) Read(b []byte) (n int, err error) {
	if len(b) == 0 {
		return 0, nil
	}
	if len(d.remainder) == 0 {
		if err = d.next(); err != nil {
			return 0, err
		}
	}
	n = copy(b, d.remainder)
	d.remainder = d.remainder[n:]
	return n, nil
}

// WriteTo reads from the Decoder's input, strips the transport
// encoding and writes the decoded data to w, implementing
// io.WriterTo.
func (d *Decoder) WriteTo(w io.Writer) (n int64, err error) {
	if len(d.remainder) > 0 {
		c, werr := w.Write(d.remainder)
		n += int64(c)
		d.remainder = nil
		if werr != nil {
			return n, werr
		}
	}
	for err == nil && d.s.Scan() {
		b := d.s.Bytes()
		var c int
		c, err = w.Write(b)
		n += int64(c)
	}
	if err != nil {
		return
	}
	if err = d.s.Err(); err == nil && !d.eofOK {
		err = errors.WithStack(io.ErrUnexpectedEOF)
	}
	return
}

// next scans the input until a non-empty token is available.
func (d *Decoder) next() error {
	for d.s.Scan() {
		if token := d.s.Bytes(); len(token) > 0 {
			// The scanner reuses its buffer on the next call.
			d.remainder = append(d.remainder[:0], token...)
			return nil
		}
	}
	if err := d.s.Err(); err != nil {
		return err
	}
	if d.eofOK {
		return io.EOF
	}
	return io.ErrUnexpectedEOF
}

// split runs the framer until it delivers a token or needs more input. Delimiters and chunk headers
// are consumed without a token, and the scanner reads again before calling split on buffered data.
func (d *Decoder) split(b []byte, eof bool) (a int, t []byte, err error) {
	for {
		if eof && len(b[a:]) == 0 {
			return a, nil, d.scanErr
		}
		n, token, ferr := d.framer(d, b[a:], eof)
		a += n
		if ferr != nil || token != nil || n == 0 {
			return a, token, ferr
		}
	}
}

func (d *Decoder) setFramer(f FramerFn) {
	// If we have not yet seen an End of Message, set the new framer as pending, so that it only
	// takes effect after End of Message is detected.
	// This allows for the sequence:
	// - transport reader delivers complete hello message, i.e. <hello>....</hello>
	// - decoder delivers token (the hello message) to xml decoder
	// - xml decoder delivers decoded hello to application code
	// - application code inspects hello, enables chunked framing and calls the xml decoder
	// - transport reader delivers 'missing' end of message
	if !d.anySeen {
		d.pendingFramer = f
	} else {
		d.framer = f
	}
}

func (d *Decoder) endOfMessage() {
	d.anySeen = true
	d.eofOK = true
	if d.pendingFramer != nil {
		d.framer, d.pendingFramer = d.pendingFramer, nil
	}
}

const (
	// RFC6242 section 4.2 defines the "maximum allowed chunk-size".
	rfc6242maximumAllowedChunkSize = 4294967295
	// the length of `rfc6242maximumAllowedChunkSize` in bytes on the wire.
	rfc6242maximumAllowedChunkSizeLength = 10
	// defaultReaderBufferSize is the default read buffer capacity size.
	defaultReaderBufferSize = 65536
)
