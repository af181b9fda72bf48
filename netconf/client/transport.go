package client

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

// The Secure Transport layer provides a communication path between
// the client and server.  NETCONF can be layered over any
// transport protocol that provides a set of basic requirements.

// Transport interface defines what characteristics make up a NETCONF transport
// layer object.
type Transport interface {
	io.ReadWriteCloser
}

// Transport kinds.
const (
	TransportSSH = "ssh"
	TransportTLS = "tls"
)

type tImpl struct {
	reader      io.Reader
	writeCloser io.WriteCloser
	sshSession  *ssh.Session
	sshClient   *ssh.Client
	trace       *ClientTrace
	target      string

	closeOnce sync.Once
	closeErr  error
}

// NewSSHTransport creates a new SSH transport, connecting to the target with the supplied client configuration
// and requesting the specified subsystem.
func NewSSHTransport(ctx context.Context, clientConfig *ssh.ClientConfig, target, subsystem string) (rt Transport, err error) {

	impl := &tImpl{target: target, trace: ContextClientTrace(ctx)}
	impl.trace.ConnectStart(target)

	defer func(begin time.Time) {
		impl.trace.ConnectDone(target, err, time.Since(begin))
	}(time.Now())

	defer func() {
		if err != nil {
			if impl.sshSession != nil {
				_ = impl.sshSession.Close()
			}
			if impl.sshClient != nil {
				_ = impl.sshClient.Close()
			}
		}
	}()

	if impl.sshClient, err = dialSSH(ctx, impl.trace, clientConfig, target); err != nil {
		return
	}

	if impl.sshSession, err = impl.sshClient.NewSession(); err != nil {
		err = errors.Wrap(err, "ssh session")
		return
	}

	if err = impl.sshSession.RequestSubsystem(subsystem); err != nil {
		err = errors.Wrapf(err, "request subsystem %s", subsystem)
		return
	}

	if impl.reader, err = impl.sshSession.StdoutPipe(); err != nil {
		return
	}

	if impl.writeCloser, err = impl.sshSession.StdinPipe(); err != nil {
		return
	}

	impl.injectTrace()
	rt = impl
	return
}

func dialSSH(ctx context.Context, trace *ClientTrace, clientConfig *ssh.ClientConfig, target string) (client *ssh.Client, err error) {
	trace.DialStart(TransportSSH, target)
	defer func(begin time.Time) {
		trace.DialDone(TransportSSH, target, err, time.Since(begin))
	}(time.Now())

	dialer := &net.Dialer{Timeout: clientConfig.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", target)
	}

	// Bound the ssh handshake by the same timeout as the dial.
	if clientConfig.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(clientConfig.Timeout))
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, target, clientConfig)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(err, "ssh handshake with %s", target)
	}
	_ = conn.SetDeadline(time.Time{})

	return ssh.NewClient(c, chans, reqs), nil
}

// NewTLSTransport creates a new transport running NETCONF over TLS (RFC 7589), connecting to the target
// with the supplied tls configuration.
func NewTLSTransport(ctx context.Context, tlsConfig *tls.Config, target string) (rt Transport, err error) {

	impl := &tImpl{target: target, trace: ContextClientTrace(ctx)}
	impl.trace.ConnectStart(target)

	defer func(begin time.Time) {
		impl.trace.ConnectDone(target, err, time.Since(begin))
	}(time.Now())

	impl.trace.DialStart(TransportTLS, target)
	begin := time.Now()
	dialer := &tls.Dialer{Config: tlsConfig}
	conn, err := dialer.DialContext(ctx, "tcp", target)
	impl.trace.DialDone(TransportTLS, target, err, time.Since(begin))
	if err != nil {
		err = errors.Wrapf(err, "tls dial %s", target)
		return
	}

	impl.reader = conn
	impl.writeCloser = conn
	impl.injectTrace()
	rt = impl
	return
}

func (t *tImpl) Read(p []byte) (n int, err error) {
	return t.reader.Read(p)
}

func (t *tImpl) Write(p []byte) (n int, err error) {
	return t.writeCloser.Write(p)
}

// Close closes all session resources in the following order:
//
//  1. stdin pipe (or the tls connection)
//  2. SSH session
//  3. SSH client
//
// All failures are reported, except io.EOF from a peer that has already gone away.
// Subsequent calls return the result of the first.
func (t *tImpl) Close() error {
	t.closeOnce.Do(func() {
		var result *multierror.Error
		if t.writeCloser != nil {
			result = multierror.Append(result, ignoreEOF(t.writeCloser.Close()))
		}
		if t.sshSession != nil {
			result = multierror.Append(result, ignoreEOF(t.sshSession.Close()))
		}
		if t.sshClient != nil {
			result = multierror.Append(result, ignoreEOF(t.sshClient.Close()))
		}
		t.closeErr = result.ErrorOrNil()
		t.trace.ConnectionClosed(t.target, t.closeErr)
	})
	return t.closeErr
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

type traceReader struct {
	r     io.Reader
	trace *ClientTrace
}

type traceWriter struct {
	w     io.WriteCloser
	trace *ClientTrace
}

func (t *tImpl) injectTrace() {
	t.reader = &traceReader{r: t.reader, trace: t.trace}
	t.writeCloser = &traceWriter{w: t.writeCloser, trace: t.trace}
}

func (tr *traceReader) Read(p []byte) (c int, err error) {
	tr.trace.ReadStart(p)
	defer func(begin time.Time) {
		tr.trace.ReadDone(p, c, err, time.Since(begin))
	}(time.Now())

	return tr.r.Read(p)
}

func (tw *traceWriter) Write(p []byte) (c int, err error) {
	tw.trace.WriteStart(p)
	defer func(begin time.Time) {
		tw.trace.WriteDone(p, c, err, time.Since(begin))
	}(time.Now())

	return tw.w.Write(p)
}

func (tw *traceWriter) Close() error {
	return tw.w.Close()
}
