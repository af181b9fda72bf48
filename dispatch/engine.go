package dispatch

import (
	"github.com/damianoneill/ncdispatch/netconf/common"
	"github.com/damianoneill/ncdispatch/rpcsource"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Engine dispatches requests, one at a time, on a single session.
type Engine struct {
	session Session

	// AutoWrapDisabled sends edit-config as a single rpc, without lock, commit and unlock.
	AutoWrapDisabled bool
}

// NewEngine delivers an engine dispatching on s.
func NewEngine(s Session, autoWrapDisabled bool) *Engine {
	return &Engine{session: s, AutoWrapDisabled: autoWrapDisabled}
}

// Dispatch sends req and delivers the reply. A reply carrying an rpc-error is returned together with
// the error.
func (e *Engine) Dispatch(req *rpcsource.Request) (*common.RPCReply, error) {
	op := req.Operation.Local
	outcome := Classify(op, e.AutoWrapDisabled)
	log.Debugf("Dispatching <%s> from %s as %s", op, req.Source, outcome)

	switch outcome {
	case LockedCommitSequence:
		log.Infof("Executing '<%s>' NETCONF operation", op)
		return e.lockedCommit(req)
	case DirectOperation:
		log.Infof("Executing '<%s>' NETCONF operation", op)
	default:
		log.Infof("Executing '<%s>' RPC", op)
	}
	return e.execute(req)
}

func (e *Engine) execute(req *rpcsource.Request) (*common.RPCReply, error) {
	reply, err := e.session.Execute(common.Request(req.OperationXML))
	if err != nil {
		return reply, errors.Wrapf(err, "<%s>", req.Operation.Local)
	}
	return reply, nil
}

// lockedCommit applies an edit-config to the candidate datastore under lock, and commits it.
func (e *Engine) lockedCommit(req *rpcsource.Request) (*common.RPCReply, error) {
	if !common.HasCapability(e.session.ServerCapabilities(), common.CapCandidate) {
		return nil, &CapabilityMissingError{Operation: req.Operation.Local, Capability: common.CapCandidate}
	}

	if err := e.session.Lock(common.DatastoreCandidate); err != nil {
		return nil, errors.Wrap(err, "lock candidate")
	}

	reply, err := e.execute(req)
	if err != nil {
		return reply, e.release(err)
	}

	if err = e.session.Commit(); err != nil {
		return reply, e.release(errors.Wrap(err, "commit"))
	}

	if err = e.session.Unlock(common.DatastoreCandidate); err != nil {
		return reply, errors.Wrap(err, "unlock candidate")
	}
	return reply, nil
}

// release discards the candidate changes and unlocks the candidate datastore after the sequence failed
// with cause, which is returned. Nothing is sent after a timeout; the lock goes with the session.
func (e *Engine) release(cause error) error {
	if IsTimeout(cause) {
		return cause
	}

	var result *multierror.Error
	if err := e.session.Discard(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "discard-changes"))
	}
	if err := e.session.Unlock(common.DatastoreCandidate); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "unlock candidate"))
	}
	if err := result.ErrorOrNil(); err != nil {
		log.Warnf("Failed to release candidate after %v: %v", cause, err)
	}
	return cause
}
