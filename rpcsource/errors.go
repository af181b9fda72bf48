package rpcsource

import "fmt"

// MalformedXMLError reports an RPC source that is not a single well-formed XML element.
type MalformedXMLError struct {
	Source string
	Err    error
}

func (e *MalformedXMLError) Error() string {
	return fmt.Sprintf("malformed rpc xml from %s: %v", e.Source, e.Err)
}

func (e *MalformedXMLError) Unwrap() error {
	return e.Err
}
