package codec

import (
	"bytes"
	"encoding/xml"
	"errors"
	"testing"

	"github.com/damianoneill/ncdispatch/netconf/mocks"
	"github.com/stretchr/testify/mock"
	assert "github.com/stretchr/testify/require"
)

type testStr struct {
	XMLName xml.Name `xml:"test"`
	Field   string   `xml:"field"`
}

func TestEncoderFailures(t *testing.T) {

	// Failure on write of xml header
	mockt := &mocks.Transport{}
	mockt.On("Write", mock.Anything).Return(0, errors.New("Failed"))
	enc := NewEncoder(mockt)
	err := enc.Encode(&testStr{})
	assert.Error(t, err, "Expect failure")

	// Failure on write of message body
	mockt = &mocks.Transport{}
	mockt.On("Write", mock.Anything).Return(func(buf []byte) int {
		return len(buf)
	}, nil).Once()
	mockt.On("Write", mock.Anything).Return(0, errors.New("Failed"))
	enc = NewEncoder(mockt)
	err = enc.Encode(&testStr{})
	assert.Error(t, err, "Expect failure")
}

func TestEncodeEndOfMessage(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	assert.NoError(t, enc.Encode(&testStr{Field: "abc"}))
	assert.Equal(t, xml.Header+`<test><field>abc</field></test>]]>]]>`, buf.String())
}

func TestEncodeChunked(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	EnableChunkedFraming(NewDecoder(nil), enc)

	assert.NoError(t, enc.Encode(&testStr{Field: "abc"}))
	assert.Contains(t, buf.String(), "\n#31\n<test><field>abc</field></test>")
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\n##\n")))
}

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	assert.NoError(t, enc.Encode(&testStr{Field: "one"}))
	assert.NoError(t, enc.Encode(&testStr{Field: "two"}))

	dec := NewDecoder(&buf)
	var first, second testStr
	assert.NoError(t, dec.Decode(&first))
	assert.NoError(t, dec.Decode(&second))
	assert.Equal(t, "one", first.Field)
	assert.Equal(t, "two", second.Field)
}

func TestEnableChunkedFraming(t *testing.T) {

	enc := NewEncoder(nil)
	dec := NewDecoder(nil)

	assert.False(t, enc.ncEncoder.ChunkedFraming)

	EnableChunkedFraming(dec, enc)

	assert.True(t, enc.ncEncoder.ChunkedFraming)
}
