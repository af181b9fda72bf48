package dispatch

// Outcome classifies how a request is dispatched.
type Outcome int

const (
	// LockedCommitSequence wraps an edit-config in lock, commit and unlock of the candidate datastore.
	LockedCommitSequence Outcome = iota
	// DirectOperation sends a NETCONF base operation as a single rpc.
	DirectOperation
	// GenericPassthrough sends any other operation as a single rpc.
	GenericPassthrough
)

func (o Outcome) String() string {
	switch o {
	case LockedCommitSequence:
		return "locked-commit-sequence"
	case DirectOperation:
		return "direct-operation"
	case GenericPassthrough:
		return "generic-passthrough"
	}
	return "unknown"
}

const editConfig = "edit-config"

// knownOperations are the base operations (RFC 6241 section 7, RFC 6022 get-schema) sent as-is.
var knownOperations = map[string]bool{
	editConfig:      true,
	"get":           true,
	"get-config":    true,
	"get-schema":    true,
	"copy-config":   true,
	"delete-config": true,
	"lock":          true,
	"unlock":        true,
	"close-session": true,
	"kill-session":  true,
}

// Classify decides the outcome for an operation, by local element name.
func Classify(operation string, autoWrapDisabled bool) Outcome {
	switch {
	case operation == editConfig && !autoWrapDisabled:
		return LockedCommitSequence
	case knownOperations[operation]:
		return DirectOperation
	default:
		return GenericPassthrough
	}
}
