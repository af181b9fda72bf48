package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/damianoneill/ncdispatch/netconf/client"
	"github.com/damianoneill/ncdispatch/netconf/ops"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// connect opens a netconf session to the configured target.
func connect(ctx context.Context, opts *Options) (ops.OpSession, error) {
	target := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))

	if opts.Transport == client.TransportTLS {
		tlscfg, err := tlsConfig(opts)
		if err != nil {
			return nil, err
		}
		return ops.NewTLSSessionWithConfig(ctx, tlscfg, target, opts.clientConfig())
	}

	sshcfg, err := sshConfig(opts)
	if err != nil {
		return nil, err
	}
	return ops.NewSessionWithConfig(ctx, sshcfg, target, opts.clientConfig())
}

func sshConfig(opts *Options) (*ssh.ClientConfig, error) {
	hostKeyCallback, err := hostKeyCallback(opts)
	if err != nil {
		return nil, err
	}

	var auth []ssh.AuthMethod
	if m := agentAuth(); m != nil {
		auth = append(auth, m)
	}
	m, err := keyAuth(opts)
	if err != nil {
		return nil, err
	}
	if m != nil {
		auth = append(auth, m)
	}
	auth = append(auth, ssh.Password(opts.Password), ssh.KeyboardInteractive(answerWith(opts.Password)))

	return &ssh.ClientConfig{
		User:            opts.Username,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         time.Duration(opts.SetupTimeout) * time.Second,
	}, nil
}

func hostKeyCallback(opts *Options) (ssh.HostKeyCallback, error) {
	if opts.InsecureSkipHostKeyCheck {
		log.Warn("Server host key will not be verified")
		return ssh.InsecureIgnoreHostKey(), nil //nolint: gosec
	}
	path, err := expandHome(opts.KnownHosts)
	if err != nil {
		return nil, err
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load known hosts (use --insecure-skip-host-key-check to accept any host key)")
	}
	return cb, nil
}

// agentAuth delivers the keys held by the ssh agent, if one is running.
func agentAuth() ssh.AuthMethod {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		log.Debugf("Failed to reach ssh agent at %s: %v", sock, err)
		return nil
	}
	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers)
}

// keyAuth delivers the private key authentication. The default key is skipped when it does not exist.
func keyAuth(opts *Options) (ssh.AuthMethod, error) {
	path, err := expandHome(opts.SSHKey)
	if err != nil {
		return nil, err
	}
	pem, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !opts.explicit["ssh-key"] {
			log.Debugf("No ssh key at %s", path)
			return nil, nil
		}
		return nil, errors.Wrap(err, "read ssh key")
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return nil, errors.Wrapf(err, "parse ssh key %s", path)
	}
	return ssh.PublicKeys(signer), nil
}

// answerWith answers every keyboard-interactive question with the password.
func answerWith(password string) ssh.KeyboardInteractiveChallenge {
	return func(user, instruction string, questions []string, echos []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range answers {
			answers[i] = password
		}
		return answers, nil
	}
}

func tlsConfig(opts *Options) (*tls.Config, error) {
	cfg := &tls.Config{ServerName: opts.Host, MinVersion: tls.VersionTLS12}

	if opts.CACerts != "" {
		pem, err := os.ReadFile(opts.CACerts)
		if err != nil {
			return nil, errors.Wrap(err, "read ca certificates")
		}
		cfg.RootCAs = x509.NewCertPool()
		if !cfg.RootCAs.AppendCertsFromPEM(pem) {
			return nil, errors.Errorf("no certificates found in %s", opts.CACerts)
		}
	}

	if opts.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "load client certificate")
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}
