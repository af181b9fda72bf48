package testserver

import (
	"encoding/xml"
	"fmt"
	"sync"

	"github.com/damianoneill/ncdispatch/netconf/common"
	"github.com/damianoneill/ncdispatch/netconf/server/netconf"
)

// Datastore names understood by the Device.
const (
	Running   = "running"
	Candidate = "candidate"
)

// Device holds the configuration datastores and locks shared by all sessions of a test server.
type Device struct {
	mu        sync.Mutex
	stores    map[string]string
	locks     map[string]uint64
	commits   int
	discarded int
}

// NewDevice delivers a device with empty running and candidate datastores.
func NewDevice() *Device {
	return &Device{
		stores: map[string]string{Running: "", Candidate: ""},
		locks:  make(map[string]uint64),
	}
}

// Config delivers the content of the named datastore.
func (d *Device) Config(store string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stores[store]
}

// SetConfig replaces the content of the named datastore.
func (d *Device) SetConfig(store, cfg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stores[store] = cfg
}

// LockOwner delivers the id of the session holding the lock on the datastore, or 0.
func (d *Device) LockOwner(store string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.locks[store]
}

// Commits delivers the number of successful commits.
func (d *Device) Commits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commits
}

// Discards delivers the number of times candidate changes were discarded.
func (d *Device) Discards() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.discarded
}

type datastoreRef struct {
	Store struct {
		XMLName xml.Name
	} `xml:",any"`
}

type datastoreReq struct {
	Target datastoreRef `xml:"target"`
	Source datastoreRef `xml:"source"`
	Config struct {
		Content string `xml:",innerxml"`
	} `xml:"config"`
}

// handle applies a datastore operation on behalf of session sid. It delivers nil for operations the
// device does not model.
func (d *Device) handle(sid uint64, req *netconf.RPCRequestMessage) *netconf.RPCReplyMessage {
	op := req.Request.XMLName.Local
	switch op {
	case "get-config", "edit-config", "lock", "unlock", "commit", "discard-changes", "close-session":
	default:
		return nil
	}

	params := &datastoreReq{}
	if err := xml.Unmarshal([]byte("<params>"+req.Request.Body+"</params>"), params); err != nil {
		return netconf.ErrorReply(req, rpcError("malformed-message", err.Error()))
	}
	target := params.Target.Store.XMLName.Local
	source := params.Source.Store.XMLName.Local

	d.mu.Lock()
	defer d.mu.Unlock()

	switch op {
	case "get-config":
		content, ok := d.stores[source]
		if !ok {
			return netconf.ErrorReply(req, rpcError("invalid-value", "unknown source "+source))
		}
		return netconf.DataReply(req, content)

	case "edit-config":
		if _, ok := d.stores[target]; !ok {
			return netconf.ErrorReply(req, rpcError("invalid-value", "unknown target "+target))
		}
		if reply := d.checkLock(req, sid, target); reply != nil {
			return reply
		}
		d.stores[target] = params.Config.Content

	case "lock":
		if owner := d.locks[target]; owner != 0 {
			e := rpcError("lock-denied", "lock is already held")
			e.Info = fmt.Sprintf("<error-info><session-id>%d</session-id></error-info>", owner)
			return netconf.ErrorReply(req, e)
		}
		d.locks[target] = sid

	case "unlock":
		if d.locks[target] != sid {
			return netconf.ErrorReply(req, rpcError("operation-failed", "lock is not held by this session"))
		}
		delete(d.locks, target)

	case "commit":
		if reply := d.checkLock(req, sid, Running); reply != nil {
			return reply
		}
		d.stores[Running] = d.stores[Candidate]
		d.commits++

	case "discard-changes":
		if reply := d.checkLock(req, sid, Candidate); reply != nil {
			return reply
		}
		d.discard()

	case "close-session":
		d.releaseLocked(sid)
	}
	return netconf.OkReply(req)
}

func (d *Device) checkLock(req *netconf.RPCRequestMessage, sid uint64, store string) *netconf.RPCReplyMessage {
	if owner := d.locks[store]; owner != 0 && owner != sid {
		return netconf.ErrorReply(req, rpcError("in-use", store+" is locked by another session"))
	}
	return nil
}

// release frees the locks held by session sid. Uncommitted candidate changes of a session that held the
// candidate lock are discarded.
func (d *Device) release(sid uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.releaseLocked(sid)
}

func (d *Device) releaseLocked(sid uint64) {
	for store, owner := range d.locks {
		if owner != sid {
			continue
		}
		delete(d.locks, store)
		if store == Candidate {
			d.discard()
		}
	}
}

func (d *Device) discard() {
	d.stores[Candidate] = d.stores[Running]
	d.discarded++
}

func rpcError(tag, message string) common.RPCError {
	return common.RPCError{Type: "protocol", Tag: tag, Severity: "error", Message: message}
}
