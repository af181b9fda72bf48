package netconf

import (
	"context"

	"github.com/damianoneill/ncdispatch/netconf/server/ssh"
	tlssvr "github.com/damianoneill/ncdispatch/netconf/server/tls"

	"github.com/imdario/mergo"
	log "github.com/sirupsen/logrus"
)

// unique type to prevent assignment.
type netconfEventContextKey struct{}

// ContextNetconfTrace returns the Trace associated with the
// provided context. If none, it returns NoOpLoggingHooks.
func ContextNetconfTrace(ctx context.Context) *Trace {
	trace, _ := ctx.Value(netconfEventContextKey{}).(*Trace)
	if trace == nil {
		trace = NoOpLoggingHooks
	} else {
		_ = mergo.Merge(trace, NoOpLoggingHooks)
	}
	return trace
}

// WithTrace returns a new context based on the provided parent
// ctx. Requests made with the returned context will use
// the provided trace hooks
func WithTrace(ctx context.Context, trace *Trace) context.Context {
	ctx = context.WithValue(ctx, netconfEventContextKey{}, trace)
	return ctx
}

// Trace defines a structure for handling trace events.
// The embedded ssh trace (or TLS trace) is passed on to the transport listener.
type Trace struct {
	*ssh.Trace
	TLS          *tlssvr.Trace
	StartSession func(s *SessionHandler)
	EndSession   func(s *SessionHandler, e error)
	ClientHello  func(s *SessionHandler)
	Encoded      func(s *SessionHandler, e error)
	Decoded      func(s *SessionHandler, e error)
}

// DefaultLoggingHooks provides a default logging hook to report errors.
var DefaultLoggingHooks = &Trace{
	ClientHello: func(s *SessionHandler) {
		if s.ClientHello == nil {
			log.Warnf("ClientHello id:%d no hello received", s.sid)
		}
	},
	EndSession: func(s *SessionHandler, e error) {
		if e != nil {
			log.Warnf("EndSession id:%d error:%v", s.sid, e)
		}
	},
	Encoded: func(s *SessionHandler, e error) {
		if e != nil {
			log.Warnf("Encoded id:%d error:%v", s.sid, e)
		}
	},
	Decoded: func(s *SessionHandler, e error) {
		if e != nil {
			log.Warnf("Decoded id:%d error:%v", s.sid, e)
		}
	},
}

// DiagnosticLoggingHooks provides a set of default diagnostic hooks
var DiagnosticLoggingHooks = &Trace{
	ClientHello: func(s *SessionHandler) {
		log.Debugf("ClientHello id:%d message:%v", s.sid, s.ClientHello)
	},
	StartSession: func(s *SessionHandler) {
		log.Debugf("StartSession id:%d remote:%s", s.sid, s.remote)
	},
	EndSession: func(s *SessionHandler, e error) {
		log.Debugf("EndSession id:%d error:%v", s.sid, e)
	},
	Encoded: DefaultLoggingHooks.Encoded,
	Decoded: DefaultLoggingHooks.Decoded,
}

// NoOpLoggingHooks provides set of hooks that do nothing.
var NoOpLoggingHooks = &Trace{
	StartSession: func(s *SessionHandler) {},
	ClientHello:  func(s *SessionHandler) {},
	EndSession:   func(s *SessionHandler, e error) {},
	Encoded:      func(s *SessionHandler, e error) {},
	Decoded:      func(s *SessionHandler, e error) {},
}
