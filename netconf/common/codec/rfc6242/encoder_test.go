package rfc6242

import (
	"bytes"
	"errors"
	"testing"

	assert "github.com/stretchr/testify/require"
)

var EOM = string(tokenEOM)

func TestEOMEncoding(t *testing.T) {

	tests := []struct {
		name   string
		inputs []string
		eom    bool
		expect string
	}{
		{"SimpleMessagePart", []string{"ABC"}, false, "ABC"},
		{"MultiPartMessage", []string{"ABC", "XYZ"}, false, "ABCXYZ"},
		{"TerminatedMessage", []string{"ABC", "XYZ"}, true, "ABCXYZ" + EOM},
		{"EmptyMessage", []string{""}, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			e := NewEncoder(buf)

			for _, i := range tt.inputs {
				_, err := e.Write([]byte(i))
				assert.NoError(t, err)
			}
			if tt.eom {
				assert.NoError(t, e.EndOfMessage())
			}

			assert.Equal(t, tt.expect, buf.String())
			assert.NoError(t, e.Close())
		})
	}
}

func TestChunkedEncoding(t *testing.T) {
	tests := []struct {
		name    string
		chunksz uint32
		inputs  []string
		eom     bool
		expect  string
	}{
		{"SimpleMessagePart", 0, []string{"ABC"}, false, "\n#3\nABC"},
		{"SimpleTerminatedMessage", 0, []string{"ABC"}, true, "\n#3\n" + "ABC" + "\n##\n"},
		{"ChunkedMessage", 5, []string{"ABCDEFGH"}, true, "\n#5\n" + "ABCDE" + "\n#3\n" + "FGH" + "\n##\n"},
		{"MultipleWrites", 0, []string{"AB", "C"}, true, "\n#2\nAB\n#1\nC\n##\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			e := NewEncoder(buf, WithMaximumChunkSize(tt.chunksz))
			SetChunkedFraming(e)

			for _, i := range tt.inputs {
				_, err := e.Write([]byte(i))
				assert.NoError(t, err)
			}
			if tt.eom {
				assert.NoError(t, e.EndOfMessage())
			}

			assert.Equal(t, tt.expect, buf.String())
		})
	}
}

func TestClearChunkedFraming(t *testing.T) {
	buf := &bytes.Buffer{}
	e := NewEncoder(buf)
	SetChunkedFraming(e)
	ClearChunkedFraming(e)

	_, _ = e.Write([]byte("ABC"))
	_ = e.EndOfMessage()
	assert.Equal(t, "ABC"+EOM, buf.String())
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("write failed")
}

func TestChunkedEncodingWriteFailure(t *testing.T) {
	e := NewEncoder(failingWriter{})
	SetChunkedFraming(e)

	n, err := e.Write([]byte("ABC"))
	assert.Error(t, err)
	assert.Equal(t, 0, n)
	assert.Error(t, e.EndOfMessage())
}
