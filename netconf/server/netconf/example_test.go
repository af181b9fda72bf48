//nolint: goconst,gosec
package netconf

import (
	"context"
	"fmt"

	"github.com/damianoneill/ncdispatch/netconf/client"
	"github.com/damianoneill/ncdispatch/netconf/common"
	"github.com/damianoneill/ncdispatch/netconf/ops"
	"github.com/damianoneill/ncdispatch/netconf/server/ssh"
	xssh "golang.org/x/crypto/ssh"
)

type exampleServer struct{}

func (es *exampleServer) Capabilities() []string {
	return common.DefaultCapabilities
}

func (es *exampleServer) HandleRequest(req *RPCRequestMessage) *RPCReplyMessage {
	switch req.Request.XMLName.Local {
	case "get":
		return DataReply(req, `<top><sub attr="avalue"><child1>cvalue</child1></sub></top>`)
	case "get-config":
		return ErrorReply(req, common.RPCError{Severity: "error", Message: "oops"})
	}
	return nil
}

func ExampleNewServer() {
	sshcfg, _ := ssh.PasswordConfig("UserA", "PassA")
	server, _ := NewServer(context.Background(), "localhost", 0, sshcfg,
		func(sh *SessionHandler) SessionCallback {
			return &exampleServer{}
		})
	defer server.Close()

	sshConfig := &xssh.ClientConfig{
		User:            "UserA",
		Auth:            []xssh.AuthMethod{xssh.Password("PassA")},
		HostKeyCallback: xssh.InsecureIgnoreHostKey(),
	}

	ncs, _ := ops.NewSessionWithConfig(context.Background(), sshConfig, fmt.Sprintf("%s:%d", "localhost", server.Port()), client.DefaultConfig)
	defer ncs.Close()

	reply, _ := ncs.Execute(common.Request(`<get/>`))
	fmt.Println("Get:", reply.Data)

	_, err := ncs.Execute(common.Request(`<get-config><source><candidate/></source></get-config>`))
	fmt.Println("Get-Config:", err)

	// Output: Get: <data><top><sub attr="avalue"><child1>cvalue</child1></sub></top></data>
	// Get-Config: netconf rpc [error] 'oops'
}
