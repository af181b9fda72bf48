package ops

import (
	"encoding/xml"

	"github.com/damianoneill/ncdispatch/netconf/common"
)

// Configuration datastores.
const (
	RunningCfg   = common.DatastoreRunning
	CandidateCfg = common.DatastoreCandidate
)

// datastoreRef is the source or target of an operation. Devices expect the self-closing form
// <candidate/>, which the xml marshaller does not produce for an empty element.
type datastoreRef struct {
	Name string `xml:",innerxml"`
}

func datastore(name string) *datastoreRef {
	return &datastoreRef{Name: "<" + name + "/>"}
}

type lockReq struct {
	XMLName xml.Name      `xml:"lock"`
	Target  *datastoreRef `xml:"target"`
}

type unlockReq struct {
	XMLName xml.Name      `xml:"unlock"`
	Target  *datastoreRef `xml:"target"`
}

type commitReq struct {
	XMLName xml.Name `xml:"commit"`
}

type discardReq struct {
	XMLName xml.Name `xml:"discard-changes"`
}

type closeSessionReq struct {
	XMLName xml.Name `xml:"close-session"`
}
