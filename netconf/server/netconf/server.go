package netconf

import (
	"context"
	"crypto/tls"
	"encoding/xml"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/damianoneill/ncdispatch/netconf/common"
	"github.com/damianoneill/ncdispatch/netconf/common/codec"
	"github.com/damianoneill/ncdispatch/netconf/server/ssh"
	tlssvr "github.com/damianoneill/ncdispatch/netconf/server/tls"

	xssh "golang.org/x/crypto/ssh"
)

// Server represents a Netconf Server.
// It encapsulates a transport listener (SSH or TLS), and session handlers that will
// be invoked to handle netconf messages.
type Server struct {
	listener        listener
	sf              SessionFactory
	sessionHandlers map[uint64]*SessionHandler
	shLock          sync.Mutex
	nextSid         uint64
	trace           *Trace
}

type listener interface {
	Port() int
	Close()
}

// SessionCallback defines the caller supplied callback functions.
type SessionCallback interface {
	// Capabilities is called to retrieve the capabilities that should be advertised to the client.
	// If the callback returns nil, the default set of capabilities is used.
	Capabilities() []string
	// HandleRequest is called to handle an RPC request. A nil reply sends nothing.
	HandleRequest(req *RPCRequestMessage) *RPCReplyMessage
}

// SessionEndCallback may be implemented by a SessionCallback that needs to know when its session has ended.
type SessionEndCallback interface {
	SessionEnded()
}

// SessionFactory delivers the callback for a new session.
type SessionFactory func(*SessionHandler) SessionCallback

// SessionHandler represents the server side of an active netconf session.
type SessionHandler struct {

	// server references the Netconf server that launched the session.
	server *Server

	// remote is the address of the connected client.
	remote net.Addr

	// ch is the underlying transport channel.
	ch io.ReadWriteCloser

	// The codecs used to handle client i/o
	enc *codec.Encoder
	dec *codec.Decoder

	// Serialises access to encoder.
	encLock sync.Mutex

	// The capabilities advertised to the client.
	capabilities []string
	// The session id to be reported to the client.
	sid uint64

	// Channel used to signal successful receipt of client capabilities.
	hellochan chan bool

	// The HelloMessage sent by the connecting client.
	ClientHello *common.HelloMessage

	// Caller supplied callbacks
	cb SessionCallback
}

// RPCRequestMessage and RPCRequest represent an RPC request from a client, where the element type of the
// request body is unknown.
type RPCRequestMessage struct {
	XMLName   xml.Name
	MessageID string     `xml:"message-id,attr"`
	Request   RPCRequest `xml:",any"`
	Body      string     `xml:",innerxml"`
}

// RPCRequest describes an RPC request.
type RPCRequest struct {
	XMLName xml.Name
	Body    string `xml:",innerxml"`
}

// RPCReplyMessage and ReplyData represent an rpc-reply message that will be sent to a client session, where the
// element type of the reply body (i.e. the content of the data element) is unknown.
type RPCReplyMessage struct {
	XMLName   xml.Name          `xml:"urn:ietf:params:xml:ns:netconf:base:1.0 rpc-reply"`
	MessageID string            `xml:"message-id,attr"`
	Errors    []common.RPCError `xml:"rpc-error,omitempty"`
	Data      *ReplyData        `xml:"data"`
	Ok        *struct{}         `xml:"ok"`
}

// ReplyData holds the raw content of a reply data element.
type ReplyData struct {
	XMLName xml.Name `xml:"data"`
	Data    string   `xml:",innerxml"`
}

// DataReply delivers a reply to req carrying data.
func DataReply(req *RPCRequestMessage, data string) *RPCReplyMessage {
	return &RPCReplyMessage{MessageID: req.MessageID, Data: &ReplyData{Data: data}}
}

// OkReply delivers an <ok/> reply to req.
func OkReply(req *RPCRequestMessage) *RPCReplyMessage {
	return &RPCReplyMessage{MessageID: req.MessageID, Ok: &struct{}{}}
}

// ErrorReply delivers a reply to req carrying the rpc errors.
func ErrorReply(req *RPCRequestMessage, errs ...common.RPCError) *RPCReplyMessage {
	return &RPCReplyMessage{MessageID: req.MessageID, Errors: errs}
}

// NewServer creates a new Server that will accept Netconf SSH connections on address:port (port 0 selects an
// ephemeral port, available via Port()), with credentials defined by the sshcfg configuration.
func NewServer(ctx context.Context, address string, port int, sshcfg *xssh.ServerConfig, sf SessionFactory) (ncs *Server, err error) {

	trace := ContextNetconfTrace(ctx)
	if trace.Trace != nil {
		ctx = ssh.WithSSHTrace(ctx, trace.Trace)
	}

	ncs = newServer(sf, trace)
	ncs.listener, err = ssh.NewServer(ctx, address, port, sshcfg, func(svrconn *xssh.ServerConn) ssh.Handler {
		return ncs.newSessionHandler(svrconn.RemoteAddr())
	})
	if err != nil {
		return nil, err
	}
	return
}

// NewTLSServer creates a new Server that will accept Netconf over TLS connections on address:port.
func NewTLSServer(ctx context.Context, address string, port int, tlscfg *tls.Config, sf SessionFactory) (ncs *Server, err error) {

	trace := ContextNetconfTrace(ctx)
	if trace.TLS != nil {
		ctx = tlssvr.WithTLSTrace(ctx, trace.TLS)
	}

	ncs = newServer(sf, trace)
	ncs.listener, err = tlssvr.NewServer(ctx, address, port, tlscfg, func(conn *tls.Conn) tlssvr.Handler {
		return ncs.newSessionHandler(conn.RemoteAddr())
	})
	if err != nil {
		return nil, err
	}
	return
}

func newServer(sf SessionFactory, trace *Trace) *Server {
	return &Server{sessionHandlers: make(map[uint64]*SessionHandler), sf: sf, trace: trace}
}

// Port delivers the tcp port number on which the server is listening.
func (ncs *Server) Port() int {
	return ncs.listener.Port()
}

// Close closes any active sessions and prevents subsequent connections.
func (ncs *Server) Close() {
	ncs.shLock.Lock()
	handlers := ncs.sessionHandlers
	ncs.sessionHandlers = make(map[uint64]*SessionHandler)
	ncs.shLock.Unlock()

	for _, v := range handlers {
		v.Close()
	}
	ncs.listener.Close()
}

func (ncs *Server) newSessionHandler(remote net.Addr) *SessionHandler {
	sh := &SessionHandler{
		server:       ncs,
		remote:       remote,
		sid:          atomic.AddUint64(&ncs.nextSid, 1),
		hellochan:    make(chan bool, 1),
		capabilities: common.DefaultCapabilities,
	}

	ncs.trace.StartSession(sh)

	sh.cb = ncs.sf(sh)
	if caps := sh.cb.Capabilities(); caps != nil {
		sh.capabilities = caps
	}
	return sh
}

func (ncs *Server) register(sh *SessionHandler) {
	ncs.shLock.Lock()
	defer ncs.shLock.Unlock()
	ncs.sessionHandlers[sh.sid] = sh
}

func (ncs *Server) unregister(sh *SessionHandler) {
	ncs.shLock.Lock()
	defer ncs.shLock.Unlock()
	delete(ncs.sessionHandlers, sh.sid)
}

// ID delivers the session id allocated to the session.
func (h *SessionHandler) ID() uint64 {
	return h.sid
}

// RemoteAddr delivers the address of the connected client.
func (h *SessionHandler) RemoteAddr() net.Addr {
	return h.remote
}

// Handle establishes a Netconf server session on a newly-connected channel, returning when the session ends.
func (h *SessionHandler) Handle(ch io.ReadWriteCloser) {
	h.ch = ch
	h.dec = codec.NewDecoder(ch)
	h.enc = codec.NewEncoder(ch)
	h.server.register(h)
	defer h.server.unregister(h)

	wg := &sync.WaitGroup{}
	wg.Add(1)

	// Send server hello to client.
	err := h.encode(&common.HelloMessage{Capabilities: h.capabilities, SessionID: h.sid})
	if err == nil {
		go h.handleIncomingMessages(wg)
		if h.waitForClientHello() {
			// Wait for message handling routine to finish.
			wg.Wait()
		} else {
			h.Close()
		}
	}

	if cb, ok := h.cb.(SessionEndCallback); ok {
		cb.SessionEnded()
	}
	h.server.trace.EndSession(h, err)
}

// Close initiates session tear-down by closing the underlying transport channel.
func (h *SessionHandler) Close() {
	if h.ch != nil {
		_ = h.ch.Close()
	}
}

func (h *SessionHandler) waitForClientHello() bool {

	// Wait for the input handler to send the client hello.
	select {
	case <-h.hellochan:
	case <-time.After(time.Duration(5) * time.Second):
	}

	h.server.trace.ClientHello(h)
	return h.ClientHello != nil
}

func (h *SessionHandler) handleIncomingMessages(wg *sync.WaitGroup) {

	defer wg.Done()

	// Loop, looking for a start element type of hello, rpc.
	for {
		token, err := h.dec.Token()
		if err != nil {
			break
		}
		if !h.handleToken(token) {
			h.Close()
			return
		}
	}
}

// handleToken processes a token, returning false when the session should end.
func (h *SessionHandler) handleToken(token xml.Token) bool {
	if token, ok := token.(xml.StartElement); ok {
		switch token.Name.Local {
		case common.NameHello.Local: // <hello>
			h.handleHello(token)

		case common.NameRPC.Local: // <rpc>
			return h.handleRPC(token)
		}
	}
	return true
}

func (h *SessionHandler) handleHello(token xml.StartElement) {
	// Decode the hello element and send it down the channel to trigger the rest of the session setup.

	hello := &common.HelloMessage{}
	if err := h.decodeElement(hello, &token); err == nil {
		h.ClientHello = hello
		if common.PeerSupportsChunkedFraming(hello.Capabilities) && common.PeerSupportsChunkedFraming(h.capabilities) {

			// Update the codec to use chunked framing from now.
			codec.EnableChunkedFraming(h.dec, h.enc)
		}
	}

	select {
	case h.hellochan <- true:
	default:
	}
}

func (h *SessionHandler) handleRPC(token xml.StartElement) bool {
	request := &RPCRequestMessage{}
	if err := h.decodeElement(request, &token); err != nil {
		return false
	}

	reply := h.cb.HandleRequest(request)
	if reply == nil {
		return true
	}
	if err := h.encode(reply); err != nil {
		return false
	}

	// A successful close-session ends the session once the reply has been sent.
	return request.Request.XMLName.Local != "close-session" || len(reply.Errors) > 0
}

func (h *SessionHandler) decodeElement(v interface{}, start *xml.StartElement) error {
	err := h.dec.DecodeElement(v, start)
	h.server.trace.Decoded(h, err)
	return err
}

func (h *SessionHandler) encode(m interface{}) error {
	h.encLock.Lock()
	defer h.encLock.Unlock()
	err := h.enc.Encode(m)
	h.server.trace.Encoded(h, err)
	return err
}
