package client

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/damianoneill/ncdispatch/netconf/common"
	"github.com/damianoneill/ncdispatch/netconf/common/codec"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// The Message layer defines a set of base protocol operations
// invoked as RPC methods with XML-encoded parameters.

// ErrRequestTimeout is returned by Execute when no reply arrives within the configured request timeout.
var ErrRequestTimeout = errors.New("netconf request timed out")

// Session represents a Netconf Session
type Session interface {
	// Execute executes an RPC request on the server and returns the reply.
	// If no reply is received within Config.RequestTimeoutSecs, the returned error wraps ErrRequestTimeout.
	Execute(req common.Request) (*common.RPCReply, error)

	// Close closes the session and releases any associated resources.
	// The session will be automatically closed if the underlying network connection is closed, for
	// example if the remote server disconnects.
	// When the session is closed, any outstanding execute requests will return an error.
	Close()

	// ID delivers the server-allocated id of the session.
	ID() uint64

	// ServerCapabilities delivers the server-supplied capabilities.
	ServerCapabilities() []string
}

type sesImpl struct {
	cfg   *Config
	t     Transport
	dec   *codec.Decoder
	enc   *codec.Encoder
	trace *ClientTrace

	pool []chan *common.RPCReply

	hellochan chan bool
	done      chan struct{}
	responseq []chan *common.RPCReply

	hello   *common.HelloMessage
	reqLock sync.Mutex
	pchLock sync.Mutex
	rchLock sync.Mutex

	target string
}

// NewSession creates a new Netconf session, using the supplied Transport.
func NewSession(ctx context.Context, t Transport, cfg *Config) (Session, error) {

	si := &sesImpl{
		cfg:    cfg,
		t:      t,
		target: transportTarget(t),
		dec:    codec.NewDecoder(t),
		enc:    codec.NewEncoder(t),
		trace:  ContextClientTrace(ctx),

		hellochan: make(chan bool, 1),
		done:      make(chan struct{}),
	}

	caps := common.DefaultCapabilities
	if cfg.DisableChunkedCodec {
		caps = common.NoChunkedCodecCapabilities
	}

	// Send hello
	err := si.enc.Encode(&common.HelloMessage{Capabilities: caps})
	if err != nil {
		si.trace.Error("Failed to encode hello", si.target, err)
		si.Close()
		return nil, errors.Wrap(err, "send hello")
	}

	// Launch goroutine to handle incoming messages from the server.
	go si.handleIncomingMessages()

	err = si.waitForServerHello()
	if err != nil {
		si.trace.Error("Failed to receive hello", si.target, err)
		si.Close()
		return nil, err
	}
	return si, nil
}

func transportTarget(t Transport) string {
	if impl, ok := t.(*tImpl); ok {
		return impl.target
	}
	return ""
}

func (si *sesImpl) Execute(req common.Request) (reply *common.RPCReply, err error) {

	si.trace.ExecuteStart(req)

	defer func(begin time.Time) {
		si.trace.ExecuteDone(req, reply, err, time.Since(begin))
	}(time.Now())

	// Allocate a response channel
	rchan := si.allocChan()

	// Submit the request
	if err = si.execute(req, rchan); err != nil {
		si.relChan(rchan)
		return nil, err
	}

	timeout := si.requestTimeout()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	// Wait for the response.
	select {
	case reply = <-rchan:
	case <-si.done:
		// The reader has gone; pick up a reply that was delivered just before it stopped.
		select {
		case reply = <-rchan:
		default:
		}
	case <-timer.C:
		// rchan stays on the response queue, so a late reply is routed to it and not to a later request.
		return nil, errors.Wrapf(ErrRequestTimeout, "no reply within %s", timeout)
	}

	if reply != nil {
		si.relChan(rchan)
	}
	err = mapError(reply)
	return reply, err
}

func (si *sesImpl) requestTimeout() time.Duration {
	secs := si.cfg.RequestTimeoutSecs
	if secs <= 0 {
		secs = DefaultConfig.RequestTimeoutSecs
	}
	return time.Duration(secs) * time.Second
}

func (si *sesImpl) execute(req common.Request, rchan chan *common.RPCReply) (err error) {

	// Build the request to be submitted.
	msg := &common.RPCMessage{MessageID: uuid.New().String(), Union: common.GetUnion(req)}

	// Lock the request channel, so the request and response channel set up is atomic.
	si.reqLock.Lock()
	defer si.reqLock.Unlock()

	// Add the response channel to the response queue, but take it off if the request was not
	// submitted successfully.
	si.pushRespChan(rchan)
	if err = si.enc.Encode(msg); err != nil {
		si.popLastRespChan()
	}
	return
}

func (si *sesImpl) Close() {
	err := si.t.Close()
	if err != nil {
		si.trace.Error("Session close failed", si.target, err)
	}
}

func (si *sesImpl) ID() uint64 {
	return si.hello.SessionID
}

func (si *sesImpl) ServerCapabilities() []string {
	return si.hello.Capabilities
}

func (si *sesImpl) waitForServerHello() (err error) {

	select {
	case ok := <-si.hellochan:
		if !ok {
			err = errors.New("session closed before server hello was received")
		}
	case <-time.After(time.Duration(si.cfg.SetupTimeoutSecs) * time.Second):
		err = errors.New("failed to get hello from server")
	}
	return
}

func (si *sesImpl) handleIncomingMessages() {

	// When this goroutine finishes, make sure anybody waiting for a response gets informed.
	defer si.closeChannels()

	// Loop, looking for a start element type of hello or rpc-reply.
	for {
		token, err := si.dec.Token()
		if err != nil {
			if err != io.EOF {
				si.trace.Error("Token", si.target, err)
			}
			break
		}

		if err = si.handleToken(token); err != nil {
			return
		}
	}
}

func (si *sesImpl) handleToken(token xml.Token) (err error) {
	if token, ok := token.(xml.StartElement); ok {
		switch token.Name.Local {
		case common.NameHello.Local: // <hello>
			err = si.handleHello(token)

		case common.NameRPCReply.Local: // <rpc-reply>
			err = si.handleRPCReply(token)
		}
	}
	return
}

func (si *sesImpl) handleHello(token xml.StartElement) (err error) {
	// Decode the hello element and send it down the channel to trigger the rest of the session setup.

	hello := &common.HelloMessage{}
	if err = si.decodeElement(hello, &token); err != nil {
		return
	}
	si.hello = hello

	if !si.cfg.DisableChunkedCodec && common.PeerSupportsChunkedFraming(hello.Capabilities) {
		// Update the codec to use chunked framing from now.
		codec.EnableChunkedFraming(si.dec, si.enc)
	}

	si.trace.HelloDone(hello)
	select {
	case si.hellochan <- true:
	default:
	}
	return
}

func (si *sesImpl) handleRPCReply(token xml.StartElement) (err error) {
	reply := &common.RPCReply{}
	if err = si.decodeElement(reply, &token); err != nil {
		return
	}
	reply.RawReply = common.BuildRawReply(token, reply.Data)

	// Pop the channel off the head of the queue and send the reply to it.
	// Response channels are buffered, so this never blocks, even for an abandoned request.
	respch := si.popRespChan()
	if respch == nil {
		si.trace.ReplyDropped(reply)
		return
	}
	respch <- reply
	return
}

func (si *sesImpl) decodeElement(v interface{}, start *xml.StartElement) (err error) {
	if err = si.dec.DecodeElement(v, start); err != nil {
		si.trace.Error(fmt.Sprintf("DecodeElement token:%s", start.Name.Local), si.target, err)
	}
	return
}

func (si *sesImpl) closeChannels() {
	close(si.hellochan)
	close(si.done)
	si.closeAllResponseChannels()
}

func (si *sesImpl) closeAllResponseChannels() {
	for {
		if ch := si.popRespChan(); ch != nil {
			close(ch)
		} else {
			return
		}
	}
}

func (si *sesImpl) allocChan() (ch chan *common.RPCReply) {
	si.pchLock.Lock()
	defer si.pchLock.Unlock()

	l := len(si.pool)
	if l == 0 {
		return make(chan *common.RPCReply, 1)
	}

	si.pool, ch = si.pool[:l-1], si.pool[l-1]
	return
}

func (si *sesImpl) relChan(ch chan *common.RPCReply) {
	si.pchLock.Lock()
	defer si.pchLock.Unlock()
	si.pool = append(si.pool, ch)
}

func (si *sesImpl) pushRespChan(ch chan *common.RPCReply) {
	si.rchLock.Lock()
	defer si.rchLock.Unlock()
	si.responseq = append(si.responseq, ch)
}

func (si *sesImpl) popRespChan() (ch chan *common.RPCReply) {
	si.rchLock.Lock()
	defer si.rchLock.Unlock()
	if len(si.responseq) > 0 {
		si.responseq, ch = si.responseq[1:], si.responseq[0]
	}
	return
}

func (si *sesImpl) popLastRespChan() {
	si.rchLock.Lock()
	defer si.rchLock.Unlock()
	if l := len(si.responseq); l > 0 {
		si.responseq = si.responseq[:l-1]
	}
}

// Map an RPC reply to an error, if the reply is either null or contains any RPC error.
func mapError(r *common.RPCReply) (err error) {
	if r == nil {
		err = io.ErrUnexpectedEOF
	} else if r.Errors != nil {
		for i := 0; i < len(r.Errors); i++ {
			rpcErr := r.Errors[i]
			if rpcErr.Severity == "error" {
				err = &rpcErr
				break
			}
		}
	}
	return
}
