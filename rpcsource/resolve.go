package rpcsource

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Resolve builds a request from token. A token naming an existing regular file is resolved using the
// file's content; any other token is parsed as XML text.
func Resolve(token string) (*Request, error) {
	if fi, err := os.Stat(token); err == nil && fi.Mode().IsRegular() {
		data, err := os.ReadFile(token)
		if err != nil {
			return nil, errors.Wrapf(err, "read rpc file %s", token)
		}
		log.Debugf("Read rpc from file %s", token)
		return parse(token, data)
	}
	return parse(SourceLiteral, []byte(token))
}

// ResolveAll resolves each token in order. With no tokens, a single request is read from stdin, which
// is otherwise never consulted.
func ResolveAll(tokens []string, stdin io.Reader) ([]*Request, error) {
	if len(tokens) == 0 {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, errors.Wrap(err, "read rpc from stdin")
		}
		req, err := parse(SourceStdin, []byte(strings.TrimSpace(string(data))))
		if err != nil {
			return nil, err
		}
		return []*Request{req}, nil
	}

	reqs := make([]*Request, 0, len(tokens))
	for _, token := range tokens {
		req, err := Resolve(token)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}
