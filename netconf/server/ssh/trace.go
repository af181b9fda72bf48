package ssh

import (
	"context"
	"net"

	"github.com/imdario/mergo"
	log "github.com/sirupsen/logrus"
)

// unique type to prevent assignment.
type sshEventContextKey struct{}

// ContextSSHTrace returns the Trace associated with the
// provided context. If none, it returns NoOpLoggingHooks.
func ContextSSHTrace(ctx context.Context) *Trace {
	trace, _ := ctx.Value(sshEventContextKey{}).(*Trace)
	if trace == nil {
		trace = NoOpLoggingHooks
	} else {
		_ = mergo.Merge(trace, NoOpLoggingHooks)
	}
	return trace
}

// WithSSHTrace returns a new context based on the provided parent
// ctx. Requests made with the returned context will use
// the provided trace hooks
func WithSSHTrace(ctx context.Context, trace *Trace) context.Context {
	ctx = context.WithValue(ctx, sshEventContextKey{}, trace)
	return ctx
}

// Trace defines a structure for handling trace events
type Trace struct {

	// Listened is called when when an Listen() call completes, with err indicating
	// whether it was successful.
	Listened func(address string, err error)

	// StartAccepting is called when starting to accept connections.
	StartAccepting func()

	// Accepted is called when an Accept() call completes, with err indicating
	// whether it was successful.
	Accepted func(conn net.Conn, err error)

	// NewServerConn is called when a NewServerConn() call completes, with err indicating
	// whether it was successful.
	NewServerConn func(conn net.Conn, err error)

	// SSHChannelAccept is called when a ssh channel Accept() call completes, with err indicating
	// whether it was successful.
	SSHChannelAccept func(conn net.Conn, err error)

	// SubsystemRequestReply is called when a subsystem request Reply call completes, with err indicating
	// whether it was successful.
	SubsystemRequestReply func(err error)
}

// DefaultLoggingHooks provides a default logging hook to report errors.
var DefaultLoggingHooks = &Trace{
	Listened: func(address string, e error) {
		if e != nil {
			log.Errorf("Listen address:%s status:%v", address, e)
		}
	},
	NewServerConn: func(conn net.Conn, e error) {
		if e != nil {
			log.Warnf("NewServerConn status:%v", e)
		}
	},
	SSHChannelAccept: func(conn net.Conn, e error) {
		if e != nil {
			log.Warnf("SSHChannelAccept status:%v", e)
		}
	},
	SubsystemRequestReply: func(e error) {
		if e != nil {
			log.Warnf("SubsystemRequestReply status:%v", e)
		}
	},
}

// DiagnosticLoggingHooks provides a set of default diagnostic hooks
var DiagnosticLoggingHooks = &Trace{
	Listened: func(address string, e error) {
		log.Debugf("Listen address:%s status:%v", address, e)
	},
	StartAccepting: func() {
		log.Debug("Start Accepting")
	},
	Accepted: func(conn net.Conn, e error) {
		log.Debugf("Accept conn:%v status:%v", remoteAddr(conn), e)
	},
	NewServerConn: func(conn net.Conn, e error) {
		log.Debugf("NewServerConn conn:%v status:%v", remoteAddr(conn), e)
	},
	SSHChannelAccept: func(conn net.Conn, e error) {
		log.Debugf("SSHChannelAccept conn:%v status:%v", remoteAddr(conn), e)
	},
	SubsystemRequestReply: func(e error) {
		log.Debugf("SubsystemRequestReply status:%v", e)
	},
}

// NoOpLoggingHooks provides set of hooks that do nothing.
var NoOpLoggingHooks = &Trace{
	Listened:              func(address string, e error) {},
	StartAccepting:        func() {},
	Accepted:              func(conn net.Conn, e error) {},
	NewServerConn:         func(conn net.Conn, e error) {},
	SSHChannelAccept:      func(conn net.Conn, e error) {},
	SubsystemRequestReply: func(e error) {},
}

func remoteAddr(conn net.Conn) net.Addr {
	if conn == nil {
		return nil
	}
	return conn.RemoteAddr()
}
