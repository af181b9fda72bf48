package rfc6242

import (
	"bytes"
	"io"
	"net"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	assert "github.com/stretchr/testify/require"
)

func TestEOMDecoding(t *testing.T) {

	tests := []struct {
		name   string
		input  string
		expect string
		err    error
	}{
		{"SingleMessage", "123456_abcde" + EOM, "123456_abcde", nil},
		{"TwoMessages", "123456_abcde" + EOM + "XYZ1" + EOM, "123456_abcdeXYZ1", nil},
		{"PartialEOM", "1234]]>]]XYZ" + EOM, "1234]]>]]XYZ", nil},
		{"EmptyStream", "", "", nil},
		{"MissingEOM", "ABCDEF", "ABCDEF", io.ErrUnexpectedEOF},
		{"TrailingPartialEOM", "ABC" + EOM + "DEF]]>", "ABCDEF]]>", io.ErrUnexpectedEOF},
	}

	for _, tt := range tests {
		for _, oneByte := range []bool{false, true} {
			name := tt.name
			if oneByte {
				name += "/OneByteReads"
			}
			t.Run(name, func(t *testing.T) {
				var r io.Reader = strings.NewReader(tt.input)
				if oneByte {
					r = iotest.OneByteReader(r)
				}

				out, err := io.ReadAll(NewDecoder(r))
				assert.Equal(t, tt.expect, string(out))
				if tt.err == nil {
					assert.NoError(t, err)
				} else {
					assert.ErrorIs(t, err, tt.err)
				}
			})
		}
	}
}

func TestSmallReadBuffer(t *testing.T) {
	d := NewDecoder(strings.NewReader("1234567890" + EOM))

	buffer := make([]byte, 4)
	var got []string
	for {
		n, err := d.Read(buffer)
		if err != nil {
			assert.Equal(t, io.EOF, err)
			break
		}
		got = append(got, string(buffer[:n]))
	}
	assert.Equal(t, []string{"1234", "5678", "90"}, got)
}

func TestFramerTransition(t *testing.T) {

	tests := []struct {
		name  string
		input string
	}{
		{"SeparateMessages", "<hello/>" + EOM + "\n#6\n<rpc/>\n##\n"},
		{"MultipleChunks", "<hello/>" + EOM + "\n#3\n<rp\n#3\nc/>\n##\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(iotest.OneByteReader(strings.NewReader(tt.input)))

			var hello []byte
			buffer := make([]byte, 100)
			for len(hello) < len("<hello/>") {
				n, err := d.Read(buffer)
				assert.NoError(t, err)
				hello = append(hello, buffer[:n]...)
			}
			assert.Equal(t, "<hello/>", string(hello))

			// Takes effect once the hello end of message has been consumed.
			SetChunkedFraming(d)

			rest, err := io.ReadAll(d)
			assert.NoError(t, err)
			assert.Equal(t, "<rpc/>", string(rest))
		})
	}
}

func TestChunkedFramer(t *testing.T) {

	tests := []struct {
		name   string
		input  string
		expect string
		err    error
	}{
		{"SingleChunk", "\n#6\n<rpc/>\n##\n", "<rpc/>", nil},
		{"SeveralChunks", "\n#2\n<r\n#4\npc/>\n##\n", "<rpc/>", nil},
		{"SeveralMessages", "\n#2\nab\n##\n\n#2\ncd\n##\n", "abcd", nil},
		{"EndOfChunksWithoutChunks", "\n##\n", "", nil},
		{"InvalidChunkHeader", "\n#A\n", "", ErrBadChunk},
		{"NotStartingWithNewline", "12345678", "", ErrBadChunk},
		{"NotStartingWithNewlineHash", "\nX123", "", ErrBadChunk},
		{"LeadingZero", "\n#06\n<rpc/>\n##\n", "", ErrBadChunk},
		{"ChunkSizeTooLarge", "\n#4294967296\n<rpc/>\n##\n", "", ErrBadChunk},
		{"ChunkSizeTooLong", "\n#42949672960000", "", ErrBadChunk},
		{"TruncatedChunk", "\n#6\n<rp", "<rp", io.ErrUnexpectedEOF},
		{"TruncatedHeader", "\n#6", "", io.ErrUnexpectedEOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(iotest.OneByteReader(strings.NewReader(tt.input)))
			d.framer = decoderChunked

			out, err := io.ReadAll(d)
			assert.Equal(t, tt.expect, string(out))
			if tt.err == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestWriteTo(t *testing.T) {
	d := NewDecoder(strings.NewReader("ABC" + EOM + "DEF" + EOM))

	buf := &bytes.Buffer{}
	n, err := io.Copy(buf, d)
	assert.NoError(t, err)
	assert.Equal(t, int64(6), n)
	assert.Equal(t, "ABCDEF", buf.String())
}

func TestWriteToMissingEOM(t *testing.T) {
	d := NewDecoder(strings.NewReader("ABC"))

	_, err := io.Copy(io.Discard, d)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

// readWithin reads n bytes from r, failing the test if they do not arrive within the timeout.
func readWithin(t *testing.T, r io.Reader, n int, timeout time.Duration) string {
	got := make(chan string, 1)
	go func() {
		var out []byte
		buf := make([]byte, 64)
		for len(out) < n {
			c, err := r.Read(buf)
			out = append(out, buf[:c]...)
			if err != nil {
				break
			}
		}
		got <- string(out)
	}()
	select {
	case s := <-got:
		return s
	case <-time.After(timeout):
		t.Fatalf("Read blocked for %s with a complete message buffered", timeout)
		return ""
	}
}

func TestChunkedFramingOnOpenConnection(t *testing.T) {

	tests := []struct {
		name  string
		input string
	}{
		{"HeaderAndPayloadInOneWrite", "\n#6\n<get/>\n##\n"},
		{"TwoChunksInOneWrite", "\n#3\n<ge\n#3\nt/>\n##\n"},
		{"HeaderWithoutEndOfChunks", "\n#6\n<get/>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := net.Pipe()
			defer client.Close()
			defer server.Close()

			d := NewDecoder(client)
			d.framer = decoderChunked

			go func() { _, _ = server.Write([]byte(tt.input)) }()
			assert.Equal(t, "<get/>", readWithin(t, d, len("<get/>"), 2*time.Second))
		})
	}
}

func TestSwitchToChunkedAfterHelloOnOpenConnection(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	d := NewDecoder(client)
	go func() { _, _ = server.Write([]byte("<hello/>" + EOM + "\n#6\n<get/>\n##\n")) }()

	assert.Equal(t, "<hello/>", readWithin(t, d, len("<hello/>"), 2*time.Second))

	SetChunkedFraming(d)
	assert.Equal(t, "<get/>", readWithin(t, d, len("<get/>"), 2*time.Second))
}

func TestEOMMessagesInOneWriteOnOpenConnection(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	d := NewDecoder(client)
	go func() { _, _ = server.Write([]byte("<a/>" + EOM + "<b/>" + EOM)) }()

	assert.Equal(t, "<a/><b/>", readWithin(t, d, len("<a/><b/>"), 2*time.Second))
}
