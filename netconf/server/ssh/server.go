package ssh

import (
	"context"
	"fmt"
	"io"
	"net"

	"golang.org/x/crypto/ssh"
)

// Server represents an SSH server that hands each accepted subsystem channel to a Handler.
type Server struct {
	listener net.Listener
	trace    *Trace
}

// Handler is the interface that is implemented to handle an SSH channel.
type Handler interface {
	// Handle handles i/o to/from an SSH channel. The channel is closed when Handle returns.
	Handle(ch io.ReadWriteCloser)
}

// HandlerFactory is a function that will deliver an Handler.
type HandlerFactory func(conn *ssh.ServerConn) Handler

// NewServer delivers a new SSH Server, listening on address:port (port 0 selects an ephemeral port),
// with a custom channel handler.
func NewServer(ctx context.Context, address string, port int, cfg *ssh.ServerConfig, factory HandlerFactory) (server *Server, err error) {
	server = &Server{trace: ContextSSHTrace(ctx)}

	listenAddress := fmt.Sprintf("%s:%d", address, port)
	server.listener, err = net.Listen("tcp", listenAddress)
	server.trace.Listened(listenAddress, err)
	if err != nil {
		return nil, err
	}

	go server.acceptConnections(cfg, factory)

	return server, nil
}

// Port delivers the tcp port number on which the server is listening.
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Close stops the server accepting new connections.
func (s *Server) Close() {
	_ = s.listener.Close()
}

func (s *Server) acceptConnections(config *ssh.ServerConfig, factory HandlerFactory) {
	s.trace.StartAccepting()
	for {
		nConn, err := s.listener.Accept()
		s.trace.Accepted(nConn, err)
		if err != nil {
			return
		}

		go s.serveConnection(nConn, config, factory)
	}
}

func (s *Server) serveConnection(nConn net.Conn, config *ssh.ServerConfig, factory HandlerFactory) {
	svrconn, chch, reqch, err := ssh.NewServerConn(nConn, config)
	s.trace.NewServerConn(nConn, err)
	if err != nil {
		_ = nConn.Close()
		return
	}

	go ssh.DiscardRequests(reqch)

	// Service the incoming Channel channel.
	for newChannel := range chch {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		dataChan, requests, err := newChannel.Accept()
		s.trace.SSHChannelAccept(nConn, err)
		if err != nil {
			continue
		}

		// Handle the "subsystem" request.
		go func(in <-chan *ssh.Request) {
			for req := range in {
				err := req.Reply(req.Type == "subsystem", nil)
				s.trace.SubsystemRequestReply(err)
			}
		}(requests)

		go func() {
			defer dataChan.Close()
			factory(svrconn).Handle(dataChan)
		}()
	}
}
