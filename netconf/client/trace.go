package client

import (
	"context"
	"time"

	"github.com/damianoneill/ncdispatch/netconf/common"

	"github.com/imdario/mergo"
	log "github.com/sirupsen/logrus"
)

// unique type to prevent assignment.
type clientEventContextKey struct{}

// ContextClientTrace returns the Trace associated with the
// provided context. If none, it returns NoOpLoggingHooks.
func ContextClientTrace(ctx context.Context) *ClientTrace {
	trace, _ := ctx.Value(clientEventContextKey{}).(*ClientTrace)
	if trace == nil {
		trace = NoOpLoggingHooks
	} else {
		_ = mergo.Merge(trace, NoOpLoggingHooks)
	}
	return trace
}

// WithClientTrace returns a new context based on the provided parent
// ctx. Netconf client requests made with the returned context will use
// the provided trace hooks
func WithClientTrace(ctx context.Context, trace *ClientTrace) context.Context {
	ctx = context.WithValue(ctx, clientEventContextKey{}, trace)
	return ctx
}

// ClientTrace defines a structure for handling trace events
//
//nolint:golint
type ClientTrace struct {
	// ConnectStart is called when starting to create a netconf connection to a remote server.
	ConnectStart func(target string)

	// ConnectDone is called when the transport connection attempt completes, with err indicating
	// whether it was successful.
	ConnectDone func(target string, err error, d time.Duration)

	// DialStart is called when starting to dial a remote server.
	DialStart func(transport, target string)

	// DialDone is called when dial completes.
	DialDone func(transport, target string, err error, d time.Duration)

	// HelloDone is called when the hello message has been received from the server.
	HelloDone func(msg *common.HelloMessage)

	// ConnectionClosed is called after a transport connection has been closed, with
	// err indicating any error condition.
	ConnectionClosed func(target string, err error)

	// ReadStart is called before a read from the underlying transport.
	ReadStart func(buf []byte)

	// ReadDone is called after a read from the underlying transport.
	ReadDone func(buf []byte, c int, err error, d time.Duration)

	// WriteStart is called before a write to the underlying transport.
	WriteStart func(buf []byte)

	// WriteDone is called after a write to the underlying transport.
	WriteDone func(buf []byte, c int, err error, d time.Duration)

	// Error is called after an error condition has been detected.
	Error func(context, target string, err error)

	// ExecuteStart is called before the execution of an rpc request.
	ExecuteStart func(req common.Request)

	// ExecuteDone is called after the execution of an rpc request.
	ExecuteDone func(req common.Request, res *common.RPCReply, err error, d time.Duration)

	// ReplyDropped is called when a reply arrives for a request that is no longer waiting for it.
	ReplyDropped func(res *common.RPCReply)
}

// DefaultLoggingHooks provides a default logging hook to report errors.
var DefaultLoggingHooks = &ClientTrace{
	Error: func(context, target string, err error) {
		log.Errorf("NETCONF-Error context:%s target:%s err:%v", context, target, err)
	},
	ConnectDone: func(target string, err error, d time.Duration) {
		if err == nil {
			log.Infof("NETCONF-Connected target:%s took:%dms", target, d.Milliseconds())
		}
	},
	HelloDone: func(msg *common.HelloMessage) {
		log.Infof("NETCONF-HelloDone session-id:%d capabilities:%d", msg.SessionID, len(msg.Capabilities))
	},
}

// MetricLoggingHooks provides a set of hooks that will log network metrics.
var MetricLoggingHooks = &ClientTrace{
	ConnectDone: func(target string, err error, d time.Duration) {
		log.Infof("NETCONF-ConnectDone target:%s err:%v took:%dms", target, err, d.Milliseconds())
	},
	DialDone: func(transport, target string, err error, d time.Duration) {
		log.Infof("NETCONF-DialDone transport:%s target:%s err:%v took:%dms", transport, target, err, d.Milliseconds())
	},
	ReadDone: func(p []byte, c int, err error, d time.Duration) {
		log.Infof("NETCONF-ReadDone len:%d err:%v took:%dms", c, err, d.Milliseconds())
	},
	WriteDone: func(p []byte, c int, err error, d time.Duration) {
		log.Infof("NETCONF-WriteDone len:%d err:%v took:%dms", c, err, d.Milliseconds())
	},

	Error: DefaultLoggingHooks.Error,

	ExecuteDone: func(req common.Request, res *common.RPCReply, err error, d time.Duration) {
		log.Infof("NETCONF-ExecuteDone err:%v took:%dms", err, d.Milliseconds())
	},
}

// DiagnosticLoggingHooks provides a set of default diagnostic hooks
var DiagnosticLoggingHooks = &ClientTrace{
	ConnectStart: func(target string) {
		log.Debugf("NETCONF-ConnectStart target:%s", target)
	},
	ConnectDone: func(target string, err error, d time.Duration) {
		log.Debugf("NETCONF-ConnectDone target:%s err:%v took:%dms", target, err, d.Milliseconds())
	},
	DialStart: func(transport, target string) {
		log.Debugf("NETCONF-DialStart transport:%s target:%s", transport, target)
	},
	DialDone: func(transport, target string, err error, d time.Duration) {
		log.Debugf("NETCONF-DialDone transport:%s target:%s err:%v took:%dms", transport, target, err, d.Milliseconds())
	},
	HelloDone: func(msg *common.HelloMessage) {
		log.Debugf("NETCONF-HelloDone session-id:%d capabilities:%v", msg.SessionID, msg.Capabilities)
	},
	ConnectionClosed: func(target string, err error) {
		log.Debugf("NETCONF-ConnectionClosed target:%s err:%v", target, err)
	},
	ReadStart: func(p []byte) {
		log.Tracef("NETCONF-ReadStart capacity:%d", len(p))
	},
	ReadDone: func(p []byte, c int, err error, d time.Duration) {
		log.Debugf("NETCONF-ReadDone len:%d err:%v took:%dms data:%s", c, err, d.Milliseconds(), p[:c])
	},
	WriteStart: func(p []byte) {
		log.Tracef("NETCONF-WriteStart len:%d", len(p))
	},
	WriteDone: func(p []byte, c int, err error, d time.Duration) {
		log.Debugf("NETCONF-WriteDone len:%d err:%v took:%dms data:%s", c, err, d.Milliseconds(), p[:c])
	},

	Error: DefaultLoggingHooks.Error,

	ExecuteStart: func(req common.Request) {
		log.Debugf("NETCONF-ExecuteStart req:%v", req)
	},
	ExecuteDone: func(req common.Request, res *common.RPCReply, err error, d time.Duration) {
		log.Debugf("NETCONF-ExecuteDone req:%v err:%v took:%dms", req, err, d.Milliseconds())
	},
	ReplyDropped: func(res *common.RPCReply) {
		log.Debugf("NETCONF-ReplyDropped message-id:%s", res.MessageID)
	},
}

// NoOpLoggingHooks provides set of hooks that do nothing.
var NoOpLoggingHooks = &ClientTrace{
	ConnectStart:     func(target string) {},
	ConnectDone:      func(target string, err error, d time.Duration) {},
	DialStart:        func(transport, target string) {},
	DialDone:         func(transport, target string, err error, d time.Duration) {},
	ConnectionClosed: func(target string, err error) {},
	HelloDone:        func(msg *common.HelloMessage) {},
	ReadStart:        func(p []byte) {},
	ReadDone:         func(p []byte, c int, err error, d time.Duration) {},

	WriteStart: func(p []byte) {},
	WriteDone:  func(p []byte, c int, err error, d time.Duration) {},

	Error:        func(context, target string, err error) {},
	ExecuteStart: func(req common.Request) {},
	ExecuteDone:  func(req common.Request, res *common.RPCReply, err error, d time.Duration) {},
	ReplyDropped: func(res *common.RPCReply) {},
}
