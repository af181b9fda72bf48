package tls

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/imdario/mergo"
	log "github.com/sirupsen/logrus"
)

type tlsEventContextKey struct{}

// ContextTLSTrace returns the Trace associated with the
// provided context. If none, it returns NoOpLoggingHooks.
func ContextTLSTrace(ctx context.Context) *Trace {
	trace, _ := ctx.Value(tlsEventContextKey{}).(*Trace)
	if trace == nil {
		trace = NoOpLoggingHooks
	} else {
		_ = mergo.Merge(trace, NoOpLoggingHooks)
	}
	return trace
}

// WithTLSTrace returns a new context based on the provided parent ctx, carrying the trace hooks.
func WithTLSTrace(ctx context.Context, trace *Trace) context.Context {
	return context.WithValue(ctx, tlsEventContextKey{}, trace)
}

// Trace defines a structure for handling trace events
type Trace struct {
	// Listened is called when a Listen() call completes.
	Listened func(address string, err error)

	// Accepted is called when an Accept() call completes.
	Accepted func(conn net.Conn, err error)

	// Handshake is called when the tls handshake with a client completes.
	Handshake func(conn *tls.Conn, err error)
}

// DefaultLoggingHooks provides a default logging hook to report errors.
var DefaultLoggingHooks = &Trace{
	Listened: func(address string, e error) {
		if e != nil {
			log.Errorf("Listen address:%s status:%v", address, e)
		}
	},
	Handshake: func(conn *tls.Conn, e error) {
		if e != nil {
			log.Warnf("Handshake remote:%v status:%v", conn.RemoteAddr(), e)
		}
	},
}

// DiagnosticLoggingHooks provides a set of default diagnostic hooks
var DiagnosticLoggingHooks = &Trace{
	Listened: func(address string, e error) {
		log.Debugf("Listen address:%s status:%v", address, e)
	},
	Accepted: func(conn net.Conn, e error) {
		if conn != nil {
			log.Debugf("Accept conn:%v status:%v", conn.RemoteAddr(), e)
		}
	},
	Handshake: func(conn *tls.Conn, e error) {
		state := conn.ConnectionState()
		log.Debugf("Handshake remote:%v version:%x peer-certs:%d status:%v", conn.RemoteAddr(), state.Version, len(state.PeerCertificates), e)
	},
}

// NoOpLoggingHooks provides set of hooks that do nothing.
var NoOpLoggingHooks = &Trace{
	Listened:  func(address string, e error) {},
	Accepted:  func(conn net.Conn, e error) {},
	Handshake: func(conn *tls.Conn, e error) {},
}
