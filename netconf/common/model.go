package common

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Defines structs representing netconf messages.

// Request represents the body of a Netconf RPC request.
// A string is sent verbatim as the content of the <rpc> element, anything else is marshalled.
type Request interface{}

// HelloMessage defines the message sent/received during session negotiation.
type HelloMessage struct {
	XMLName      xml.Name `xml:"urn:ietf:params:xml:ns:netconf:base:1.0 hello"`
	Capabilities []string `xml:"capabilities>capability"`
	SessionID    uint64   `xml:"session-id,omitempty"`
}

// RPCMessage defines an rpc request message
type RPCMessage struct {
	XMLName   xml.Name `xml:"urn:ietf:params:xml:ns:netconf:base:1.0 rpc"`
	MessageID string   `xml:"message-id,attr"`
	*Union
}

// RPCReply defines an rpc reply message.
type RPCReply struct {
	XMLName   xml.Name   `xml:"rpc-reply"`
	Errors    []RPCError `xml:"rpc-error,omitempty"`
	Data      string     `xml:",innerxml"`
	Ok        *struct{}  `xml:"ok"`
	RawReply  string     `xml:"-"`
	MessageID string     `xml:"message-id,attr"`
}

// IsOk reports whether the reply carried an <ok/> element.
func (r *RPCReply) IsOk() bool {
	return r.Ok != nil
}

// RPCError defines an error reply to a RPC request
type RPCError struct {
	Type     string `xml:"error-type"`
	Tag      string `xml:"error-tag"`
	Severity string `xml:"error-severity"`
	Path     string `xml:"error-path"`
	Message  string `xml:"error-message"`
	Info     string `xml:",innerxml"`
}

// Error generates a string representation of the RPC error
func (re *RPCError) Error() string {
	return fmt.Sprintf("netconf rpc [%s] '%s'", re.Severity, strings.TrimSpace(re.Message))
}

// Union holds a request body that is either raw xml or a value to be marshalled.
type Union struct {
	ValueStr interface{}
	ValueXML string `xml:",innerxml"`
}

// GetUnion wraps a request body for marshalling inside an <rpc> element.
func GetUnion(s interface{}) *Union {
	switch request := s.(type) {
	case string:
		return &Union{ValueXML: request}
	default:
		return &Union{ValueStr: request}
	}
}

// DefaultCapabilities sets the default capabilities of the client library
var DefaultCapabilities = []string{
	CapBase10,
	CapBase11,
}

// NoChunkedCodecCapabilities omits the chunked codec capability.
var NoChunkedCodecCapabilities = []string{
	CapBase10,
}

// Define xml names for different netconf messages.
var (
	NameHello    = xml.Name{Space: NetconfNS, Local: "hello"}
	NameRPC      = xml.Name{Space: NetconfNS, Local: "rpc"}
	NameRPCReply = xml.Name{Space: NetconfNS, Local: "rpc-reply"}
)

// Configuration datastores.
const (
	DatastoreRunning   = "running"
	DatastoreCandidate = "candidate"
)

// Define netconf URNs.
const (
	NetconfNS     = "urn:ietf:params:xml:ns:netconf:base:1.0"
	CapBase10     = "urn:ietf:params:netconf:base:1.0"
	CapBase11     = "urn:ietf:params:netconf:base:1.1"
	CapCandidate  = "urn:ietf:params:netconf:capability:candidate:1.0"
	CapWritable   = "urn:ietf:params:netconf:capability:writable-running:1.0"
	capShortForm  = "urn:ietf:params:netconf:"
	capParamsSep  = "?"
	capShortDelim = ":"
)

// PeerSupportsChunkedFraming returns true if capability list indicates support for chunked framing.
func PeerSupportsChunkedFraming(caps []string) bool {
	return HasCapability(caps, CapBase11)
}

// HasCapability reports whether caps advertises capability.
// Query parameters (e.g. "?module=...") are ignored on both sides, and either side may use the
// abbreviated ":name" form of RFC 6241 (":candidate", ":base:1.1").
func HasCapability(caps []string, capability string) bool {
	want := stripParams(strings.TrimSpace(capability))
	wantShort := abbreviate(want)
	for _, c := range caps {
		have := stripParams(strings.TrimSpace(c))
		if have == want {
			return true
		}
		if wantShort != "" && abbreviate(have) == wantShort {
			return true
		}
	}
	return false
}

// abbreviate delivers the ":name" form of a netconf capability, or "" for any other uri.
func abbreviate(c string) string {
	if strings.HasPrefix(c, capShortDelim) {
		return c
	}
	return shortName(c)
}

func stripParams(c string) string {
	if i := strings.Index(c, capParamsSep); i >= 0 {
		return c[:i]
	}
	return c
}

// shortName maps "urn:ietf:params:netconf:capability:candidate:1.0" to ":candidate" and
// "urn:ietf:params:netconf:base:1.1" to ":base:1.1".
func shortName(c string) string {
	if !strings.HasPrefix(c, capShortForm) {
		return ""
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(c, capShortForm), "capability:")
	if strings.HasPrefix(rest, "base:") {
		return capShortDelim + rest
	}
	if i := strings.LastIndex(rest, capShortDelim); i > 0 {
		rest = rest[:i]
	}
	return capShortDelim + rest
}

// BuildRawReply reconstructs the textual form of an rpc-reply from its start element and inner xml.
func BuildRawReply(start xml.StartElement, inner string) string {
	var sb strings.Builder
	name := start.Name.Local
	if prefix := prefixFor(start); prefix != "" {
		name = prefix + ":" + name
	}
	sb.WriteString("<" + name)
	for _, attr := range start.Attr {
		sb.WriteString(" " + attrName(attr) + `="`)
		_ = xml.EscapeText(&sb, []byte(attr.Value))
		sb.WriteString(`"`)
	}
	sb.WriteString(">")
	sb.WriteString(inner)
	sb.WriteString("</" + name + ">")
	return sb.String()
}

// prefixFor finds the prefix bound to the element namespace when it is not the default namespace.
func prefixFor(start xml.StartElement) string {
	if start.Name.Space == "" {
		return ""
	}
	prefix := ""
	for _, attr := range start.Attr {
		switch {
		case attr.Name.Space == "" && attr.Name.Local == "xmlns" && attr.Value == start.Name.Space:
			return ""
		case attr.Name.Space == "xmlns" && attr.Value == start.Name.Space:
			prefix = attr.Name.Local
		}
	}
	return prefix
}

func attrName(attr xml.Attr) string {
	if attr.Name.Space == "xmlns" {
		return "xmlns:" + attr.Name.Local
	}
	return attr.Name.Local
}
