package ops

import (
	"github.com/damianoneill/ncdispatch/netconf/client"
	"github.com/damianoneill/ncdispatch/netconf/common"
)

// OpSession extends a netconf client session with the datastore operations needed to apply a
// configuration change to the candidate datastore.
type OpSession interface {
	client.Session

	// Lock locks the target datastore for the lifetime of the session.
	Lock(target string) error

	// Unlock releases a lock held on the target datastore.
	Unlock(target string) error

	// Commit makes the candidate configuration the running configuration.
	Commit() error

	// Discard reverts the candidate configuration to the running configuration.
	Discard() error

	// CloseSession asks the server to end the session gracefully.
	CloseSession() error
}

type sImpl struct {
	client.Session
}

func (s *sImpl) Lock(target string) error {
	return s.execute(&lockReq{Target: datastore(target)})
}

func (s *sImpl) Unlock(target string) error {
	return s.execute(&unlockReq{Target: datastore(target)})
}

func (s *sImpl) Commit() error {
	return s.execute(&commitReq{})
}

func (s *sImpl) Discard() error {
	return s.execute(&discardReq{})
}

func (s *sImpl) CloseSession() error {
	return s.execute(&closeSessionReq{})
}

func (s *sImpl) execute(req common.Request) error {
	_, err := s.Execute(req)
	return err
}
