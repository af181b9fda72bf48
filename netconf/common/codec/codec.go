package codec

import (
	"encoding/xml"
	"io"

	"github.com/damianoneill/ncdispatch/netconf/common/codec/rfc6242"
)

// Decoder wraps the standard xml Codec (for XML decoding)
// and RFC6242-compliant Codec (for netconf message framing)
type Decoder struct {
	*xml.Decoder
	ncDecoder *rfc6242.Decoder
}

// Encoder wraps the standard xml Codec (for XML encoding)
// and RFC6242-compliant Codec (for netconf message framing)
type Encoder struct {
	xmlEncoder *xml.Encoder
	ncEncoder  *rfc6242.Encoder
}

// Encode encodes a netconf message, preceded by the xml declaration and followed by the
// end-of-message marker for the current framing.
func (e *Encoder) Encode(msg interface{}) error {
	if _, err := e.ncEncoder.Write([]byte(xml.Header)); err != nil {
		return err
	}

	if err := e.xmlEncoder.Encode(msg); err != nil {
		return err
	}
	return e.ncEncoder.EndOfMessage()
}

// NewDecoder delivers a new decoder reading framed messages from t.
func NewDecoder(t io.Reader, opts ...rfc6242.DecoderOption) *Decoder {
	ncDecoder := rfc6242.NewDecoder(t, opts...)
	return &Decoder{Decoder: xml.NewDecoder(ncDecoder), ncDecoder: ncDecoder}
}

// NewEncoder delivers a new encoder writing framed messages to t.
func NewEncoder(t io.Writer, opts ...rfc6242.EncoderOption) *Encoder {
	ncEncoder := rfc6242.NewEncoder(t, opts...)
	return &Encoder{xmlEncoder: xml.NewEncoder(ncEncoder), ncEncoder: ncEncoder}
}

// EnableChunkedFraming enables chunked framing on the specified decoder and encoder.
// The decoder switches after the current end-of-message marker has been consumed.
func EnableChunkedFraming(d *Decoder, e *Encoder) {
	rfc6242.SetChunkedFraming(d.ncDecoder, e.ncEncoder)
}
