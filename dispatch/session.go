package dispatch

import (
	"github.com/damianoneill/ncdispatch/netconf/client"
	"github.com/damianoneill/ncdispatch/netconf/common"

	"github.com/pkg/errors"
)

//go:generate mockgen -destination=mocks/mock_session.go -package=mocks github.com/damianoneill/ncdispatch/dispatch Session

// Session is the view of a NETCONF session used by the engine; ops.OpSession satisfies it.
type Session interface {
	// ServerCapabilities delivers the capabilities advertised in the server hello.
	ServerCapabilities() []string

	Lock(target string) error
	Unlock(target string) error
	Commit() error
	Discard() error

	// Execute sends req as the body of an rpc and waits for the reply.
	Execute(req common.Request) (*common.RPCReply, error)

	// CloseSession asks the server to end the session.
	CloseSession() error

	// Close releases the transport.
	Close()
}

// CapabilityMissingError reports an operation that needs a capability the server did not advertise.
type CapabilityMissingError struct {
	Operation  string
	Capability string
}

func (e *CapabilityMissingError) Error() string {
	return "<" + e.Operation + "> requires capability " + e.Capability + ", which the server did not advertise"
}

// IsTimeout reports whether err was caused by a request that received no reply in time.
func IsTimeout(err error) bool {
	return errors.Is(err, client.ErrRequestTimeout)
}

// IsProtocolError reports whether err carries an rpc-error returned by the server.
func IsProtocolError(err error) bool {
	var rpcErr *common.RPCError
	return errors.As(err, &rpcErr)
}
