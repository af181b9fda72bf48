package ops

import (
	"context"
	"crypto/tls"

	"github.com/damianoneill/ncdispatch/netconf/client"

	"golang.org/x/crypto/ssh"
)

// Defines factory methods for instantiating netconf sessions.

// NewSessionWithConfig connects to the  target using the ssh configuration, and establishes
// a netconf session with the client configuration.
func NewSessionWithConfig(ctx context.Context, sshcfg *ssh.ClientConfig, target string, cfg *client.Config) (s OpSession, err error) {
	var cs client.Session
	if cs, err = client.NewRPCSessionWithConfig(ctx, sshcfg, target, cfg); err != nil {
		return
	}
	return &sImpl{Session: cs}, nil
}

// NewTLSSessionWithConfig connects to the target over TLS, and establishes
// a netconf session with the client configuration.
func NewTLSSessionWithConfig(ctx context.Context, tlscfg *tls.Config, target string, cfg *client.Config) (s OpSession, err error) {
	var cs client.Session
	if cs, err = client.NewTLSRPCSessionWithConfig(ctx, tlscfg, target, cfg); err != nil {
		return
	}
	return &sImpl{Session: cs}, nil
}
