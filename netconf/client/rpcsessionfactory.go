package client

import (
	"context"
	"crypto/tls"

	"github.com/imdario/mergo"
	"golang.org/x/crypto/ssh"
)

// Defines factory methods for instantiating netconf rpc sessions.

// NewRPCSession connects to the  target using the ssh configuration, and establishes
// a netconf session with default configuration.
func NewRPCSession(ctx context.Context, sshcfg *ssh.ClientConfig, target string) (s Session, err error) {
	return NewRPCSessionWithConfig(ctx, sshcfg, target, DefaultConfig)
}

// NewRPCSessionWithConfig connects to the  target using the ssh configuration, and establishes
// a netconf session with the client configuration.
func NewRPCSessionWithConfig(ctx context.Context, sshcfg *ssh.ClientConfig, target string, cfg *Config) (s Session, err error) {
	var t Transport
	if t, err = NewSSHTransport(ctx, sshcfg, target, "netconf"); err != nil {
		return
	}
	return newSessionOnTransport(ctx, t, cfg)
}

// NewTLSRPCSessionWithConfig connects to the target over TLS, and establishes
// a netconf session with the client configuration.
func NewTLSRPCSessionWithConfig(ctx context.Context, tlscfg *tls.Config, target string, cfg *Config) (s Session, err error) {
	var t Transport
	if t, err = NewTLSTransport(ctx, tlscfg, target); err != nil {
		return
	}
	return newSessionOnTransport(ctx, t, cfg)
}

func newSessionOnTransport(ctx context.Context, t Transport, cfg *Config) (s Session, err error) {
	// Use supplied config, but apply any defaults to unspecified values.
	resolvedConfig := *cfg
	_ = mergo.Merge(&resolvedConfig, DefaultConfig)

	if s, err = NewSession(ctx, t, &resolvedConfig); err != nil {
		_ = t.Close()
	}
	return
}
