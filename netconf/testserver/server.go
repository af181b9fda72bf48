package testserver

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/damianoneill/ncdispatch/netconf/common"
	"github.com/damianoneill/ncdispatch/netconf/server/netconf"
	"github.com/damianoneill/ncdispatch/netconf/server/ssh"
	tlssvr "github.com/damianoneill/ncdispatch/netconf/server/tls"

	assert "github.com/stretchr/testify/require"
	xssh "golang.org/x/crypto/ssh"
)

// Defines credentials used for test sessions.
const (
	TestUserName = "testUser"
	TestPassword = "testPassword"
)

// DefaultCapabilities are advertised by a test server unless overridden with WithCapabilities.
var DefaultCapabilities = []string{
	common.CapBase10,
	common.CapBase11,
	common.CapCandidate,
}

// TestNCServer represents a Netconf Server that can be used for 'on-board' testing.
// It listens on an ephemeral localhost port (available via Port()), and serves sessions against a
// shared Device.
type TestNCServer struct {
	*netconf.Server
	device *Device

	mu              sync.Mutex
	sessionHandlers map[uint64]*SessionHandler
	lastSid         uint64
	reqHandlers     []RequestHandler
	caps            []string

	hostKey xssh.Signer
	certs   *tlssvr.Certificates

	tctx assert.TestingT
}

// NewTestNetconfServer creates a new TestNCServer that will accept Netconf SSH connections with credentials
// defined by TestUserName and TestPassword.
// tctx will be used for handling failures; if the supplied value is nil, a default test context will be used.
// The behaviour of the Netconf session handler can be configured using the WithCapabilities and
// WithRequestHandler methods.
func NewTestNetconfServer(tctx assert.TestingT) *TestNCServer {
	ncs := newTestServer(tctx)

	var err error
	ncs.hostKey, err = ssh.GenerateHostKey()
	assert.NoError(ncs.tctx, err, "Failed to generate host key")

	sshcfg := ssh.PasswordConfigWithHostKey(TestUserName, TestPassword, ncs.hostKey)
	ncs.Server, err = netconf.NewServer(context.Background(), "localhost", 0, sshcfg, ncs.factory)
	assert.NoError(ncs.tctx, err, "Failed to create netconf server")
	return ncs
}

// NewTLSTestNetconfServer creates a new TestNCServer that will accept Netconf over TLS connections from clients
// presenting the client certificate available via Certificates().
func NewTLSTestNetconfServer(tctx assert.TestingT) *TestNCServer {
	ncs := newTestServer(tctx)

	var err error
	ncs.certs, err = tlssvr.GenerateCertificates(TestUserName, "localhost", "127.0.0.1")
	assert.NoError(ncs.tctx, err, "Failed to generate certificates")

	tlscfg, err := ncs.certs.ServerConfig(true)
	assert.NoError(ncs.tctx, err, "Failed to create tls config")

	ncs.Server, err = netconf.NewTLSServer(context.Background(), "localhost", 0, tlscfg, ncs.factory)
	assert.NoError(ncs.tctx, err, "Failed to create netconf server")
	return ncs
}

func newTestServer(tctx assert.TestingT) *TestNCServer {
	ncs := &TestNCServer{
		device:          NewDevice(),
		sessionHandlers: make(map[uint64]*SessionHandler),
		caps:            DefaultCapabilities,
	}
	if tctx == nil {
		// Default test context to built-in implementation.
		tctx = ncs
	}
	ncs.tctx = tctx
	return ncs
}

func (ncs *TestNCServer) factory(nsh *netconf.SessionHandler) netconf.SessionCallback {
	ncs.mu.Lock()
	defer ncs.mu.Unlock()

	sh := &SessionHandler{
		ns:          nsh,
		server:      ncs,
		caps:        ncs.caps,
		reqHandlers: append([]RequestHandler(nil), ncs.reqHandlers...),
	}
	ncs.sessionHandlers[nsh.ID()] = sh
	ncs.lastSid = nsh.ID()
	return sh
}

// WithRequestHandler queues a request handler for the sessions created after the call.
// Queued handlers are used once each, in order; later requests are handled by DeviceRequestHandler.
func (ncs *TestNCServer) WithRequestHandler(rh RequestHandler) *TestNCServer {
	ncs.mu.Lock()
	defer ncs.mu.Unlock()
	ncs.reqHandlers = append(ncs.reqHandlers, rh)
	return ncs
}

// WithCapabilities define the capabilities that the server will advertise when a netconf client connects.
func (ncs *TestNCServer) WithCapabilities(caps []string) *TestNCServer {
	ncs.mu.Lock()
	defer ncs.mu.Unlock()
	ncs.caps = caps
	return ncs
}

// Device delivers the device shared by all sessions.
func (ncs *TestNCServer) Device() *Device {
	return ncs.device
}

// Address delivers the host:port address of the server.
func (ncs *TestNCServer) Address() string {
	return fmt.Sprintf("localhost:%d", ncs.Port())
}

// HostKey delivers the public host key of an SSH test server.
func (ncs *TestNCServer) HostKey() xssh.PublicKey {
	return ncs.hostKey.PublicKey()
}

// Certificates delivers the PEM encoded certificates of a TLS test server.
func (ncs *TestNCServer) Certificates() *tlssvr.Certificates {
	return ncs.certs
}

// ClientSSHConfig delivers an ssh client configuration with the test credentials.
func (ncs *TestNCServer) ClientSSHConfig() *xssh.ClientConfig {
	return &xssh.ClientConfig{
		User:            TestUserName,
		Auth:            []xssh.AuthMethod{xssh.Password(TestPassword)},
		HostKeyCallback: xssh.FixedHostKey(ncs.HostKey()),
	}
}

// ClientTLSConfig delivers a tls client configuration trusting the server and presenting the client certificate.
func (ncs *TestNCServer) ClientTLSConfig() *tls.Config {
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(ncs.certs.CA)
	cert, err := tls.X509KeyPair(ncs.certs.ClientCert, ncs.certs.ClientKey)
	assert.NoError(ncs.tctx, err, "Failed to load client certificate")
	return &tls.Config{RootCAs: pool, Certificates: []tls.Certificate{cert}, ServerName: "localhost", MinVersion: tls.VersionTLS12}
}

// SessionHandler delivers the netconf session handler associated with the specified session id.
func (ncs *TestNCServer) SessionHandler(id uint64) *SessionHandler {
	ncs.mu.Lock()
	defer ncs.mu.Unlock()
	sh, ok := ncs.sessionHandlers[id]
	if !ok {
		ncs.tctx.Errorf("Failed to get handler for session %d", id)
		ncs.tctx.FailNow()
	}
	return sh
}

// LastHandler delivers the handler of the most recently created session.
func (ncs *TestNCServer) LastHandler() *SessionHandler {
	return ncs.SessionHandler(ncs.lastSessionID())
}

func (ncs *TestNCServer) lastSessionID() uint64 {
	ncs.mu.Lock()
	defer ncs.mu.Unlock()
	return ncs.lastSid
}

// WaitSessionEnd waits up to timeout for the most recent session to finish, reporting whether it did.
func (ncs *TestNCServer) WaitSessionEnd(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ncs.lastSessionID() != 0 && ncs.LastHandler().Ended() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// Errorf provides testing.T compatibility if a test context is not provided when the test server is
// created.
func (ncs *TestNCServer) Errorf(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// FailNow provides testing.T compatibility if a test context is not provided when the test server is
// created.
func (ncs *TestNCServer) FailNow() {
	runtime.Goexit()
}
