package testserver

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/damianoneill/ncdispatch/netconf/server/ssh"

	assert "github.com/stretchr/testify/require"
	xssh "golang.org/x/crypto/ssh"
)

// SSHServer represents a plain SSH server that does not speak netconf: each line written to it is
// answered with "GOT:" followed by the line.
type SSHServer struct {
	*ssh.Server
}

// NewSSHServer delivers a new line echoing SSH Server, using password authentication with the given credentials.
func NewSSHServer(t assert.TestingT, uname, password string) *SSHServer {
	sshcfg, err := ssh.PasswordConfig(uname, password)
	assert.NoError(t, err, "Failed to create ssh config")

	server, err := ssh.NewServer(context.Background(), "localhost", 0, sshcfg, func(conn *xssh.ServerConn) ssh.Handler {
		return lineEchoHandler{}
	})
	assert.NoError(t, err, "Failed to create ssh server")
	return &SSHServer{Server: server}
}

// Address delivers the host:port address of the server.
func (s *SSHServer) Address() string {
	return fmt.Sprintf("localhost:%d", s.Port())
}

type lineEchoHandler struct{}

func (lineEchoHandler) Handle(ch io.ReadWriteCloser) {
	chReader := bufio.NewReader(ch)
	for {
		input, err := chReader.ReadString('\n')
		if err != nil {
			return
		}
		if _, err = io.WriteString(ch, "GOT:"+input); err != nil {
			return
		}
	}
}
