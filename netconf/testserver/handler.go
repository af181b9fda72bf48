package testserver

import (
	"sync"
	"time"

	"github.com/damianoneill/ncdispatch/netconf/common"
	"github.com/damianoneill/ncdispatch/netconf/server/netconf"
)

// RequestHandler is a function type that will be invoked by the session handler to handle an RPC
// request. A nil reply sends nothing to the client.
type RequestHandler func(h *SessionHandler, req *netconf.RPCRequestMessage) *netconf.RPCReplyMessage

// SessionHandler represents the test server side of an active netconf session.
type SessionHandler struct {
	ns     *netconf.SessionHandler
	server *TestNCServer
	caps   []string

	mu          sync.Mutex
	reqHandlers []RequestHandler
	reqs        []*netconf.RPCRequest
	ended       bool
}

// DeviceRequestHandler applies datastore operations (lock, unlock, edit-config, commit, discard-changes,
// get-config, close-session) to the server's Device, and echoes anything else.
var DeviceRequestHandler = func(h *SessionHandler, req *netconf.RPCRequestMessage) *netconf.RPCReplyMessage {
	if reply := h.server.device.handle(h.ns.ID(), req); reply != nil {
		return reply
	}
	return EchoRequestHandler(h, req)
}

// EchoRequestHandler responds to a request with a reply containing a data element holding
// the body of the request.
var EchoRequestHandler = func(h *SessionHandler, req *netconf.RPCRequestMessage) *netconf.RPCReplyMessage {
	return netconf.DataReply(req, req.Request.Body)
}

// FailingRequestHandler replies to a request with an error.
var FailingRequestHandler = func(h *SessionHandler, req *netconf.RPCRequestMessage) *netconf.RPCReplyMessage {
	return netconf.ErrorReply(req, common.RPCError{Type: "application", Tag: "operation-failed", Severity: "error", Message: "oops"})
}

// WarningRequestHandler replies to a request with a warning, which is not treated as a failure.
var WarningRequestHandler = func(h *SessionHandler, req *netconf.RPCRequestMessage) *netconf.RPCReplyMessage {
	return netconf.ErrorReply(req, common.RPCError{Type: "application", Tag: "operation-failed", Severity: "warning", Message: "careful"})
}

// CloseRequestHandler closes the transport channel on request receipt.
var CloseRequestHandler = func(h *SessionHandler, req *netconf.RPCRequestMessage) *netconf.RPCReplyMessage {
	h.ns.Close()
	return nil
}

// IgnoreRequestHandler does nothing on receipt of a request.
var IgnoreRequestHandler = func(h *SessionHandler, req *netconf.RPCRequestMessage) *netconf.RPCReplyMessage {
	return nil
}

// DelayRequestHandler delivers a handler that waits for d before handling the request with next.
func DelayRequestHandler(d time.Duration, next RequestHandler) RequestHandler {
	return func(h *SessionHandler, req *netconf.RPCRequestMessage) *netconf.RPCReplyMessage {
		time.Sleep(d)
		return next(h, req)
	}
}

// Capabilities delivers the capabilities advertised to the client.
func (h *SessionHandler) Capabilities() []string {
	return h.caps
}

// HandleRequest records the request and passes it to the next queued request handler, or
// DeviceRequestHandler when the queue is empty.
func (h *SessionHandler) HandleRequest(req *netconf.RPCRequestMessage) *netconf.RPCReplyMessage {
	request := req.Request
	h.mu.Lock()
	h.reqs = append(h.reqs, &request)
	reqh := h.nextReqHandler()
	h.mu.Unlock()

	return reqh(h, req)
}

// SessionEnded releases any locks held by the session.
func (h *SessionHandler) SessionEnded() {
	h.server.device.release(h.ns.ID())
	h.mu.Lock()
	h.ended = true
	h.mu.Unlock()
}

// ID delivers the session id.
func (h *SessionHandler) ID() uint64 {
	return h.ns.ID()
}

// ClientHello delivers the hello sent by the client, once the session has processed it.
func (h *SessionHandler) ClientHello() *common.HelloMessage {
	return h.ns.ClientHello
}

// Ended reports whether the session has finished.
func (h *SessionHandler) Ended() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ended
}

// ReqCount delivers the number of requests received by the session.
func (h *SessionHandler) ReqCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.reqs)
}

// LastReq delivers the most recent request received by the session, or nil.
func (h *SessionHandler) LastReq() *netconf.RPCRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.reqs) == 0 {
		return nil
	}
	return h.reqs[len(h.reqs)-1]
}

// Operations delivers the element names of the requests received by the session, in order.
func (h *SessionHandler) Operations() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ops := make([]string, 0, len(h.reqs))
	for _, r := range h.reqs {
		ops = append(ops, r.XMLName.Local)
	}
	return ops
}

// Close initiates session tear-down by closing the underlying transport channel.
func (h *SessionHandler) Close() {
	h.ns.Close()
}

func (h *SessionHandler) nextReqHandler() (reqh RequestHandler) {
	if len(h.reqHandlers) == 0 {
		return DeviceRequestHandler
	}
	h.reqHandlers, reqh = h.reqHandlers[1:], h.reqHandlers[0]
	return
}
