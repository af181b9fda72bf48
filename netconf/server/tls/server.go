package tls

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
)

// Server represents a TLS server that hands each accepted connection to a Handler (RFC 7589).
type Server struct {
	listener net.Listener
	trace    *Trace
}

// Handler is the interface that is implemented to handle a TLS connection.
type Handler interface {
	// Handle handles i/o to/from the connection. The connection is closed when Handle returns.
	Handle(ch io.ReadWriteCloser)
}

// HandlerFactory is a function that will deliver an Handler for a connection that completed its handshake.
type HandlerFactory func(conn *tls.Conn) Handler

// NewServer delivers a new TLS Server, listening on address:port (port 0 selects an ephemeral port).
func NewServer(ctx context.Context, address string, port int, cfg *tls.Config, factory HandlerFactory) (server *Server, err error) {
	server = &Server{trace: ContextTLSTrace(ctx)}

	listenAddress := fmt.Sprintf("%s:%d", address, port)
	server.listener, err = tls.Listen("tcp", listenAddress, cfg)
	server.trace.Listened(listenAddress, err)
	if err != nil {
		return nil, err
	}

	go server.acceptConnections(factory)

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

func (s *Server) acceptConnections(factory HandlerFactory) {
	for {
		nConn, err := s.listener.Accept()
		s.trace.Accepted(nConn, err)
		if err != nil {
			return
		}

		go func(conn *tls.Conn) {
			defer conn.Close()
			err := conn.Handshake()
			s.trace.Handshake(conn, err)
			if err != nil {
				return
			}
			factory(conn).Handle(conn)
		}(nConn.(*tls.Conn))
	}
}
