package testserver

import (
	"bufio"
	"crypto/tls"
	"encoding/xml"
	"io"
	"testing"
	"time"

	"github.com/damianoneill/ncdispatch/netconf/common"
	"github.com/damianoneill/ncdispatch/netconf/common/codec"

	assert "github.com/stretchr/testify/require"
	xssh "golang.org/x/crypto/ssh"
)

// rawSession drives a netconf session with the codec directly, so the server can be tested without the client package.
type rawSession struct {
	t     *testing.T
	ch    io.ReadWriteCloser
	enc   *codec.Encoder
	dec   *codec.Decoder
	hello *common.HelloMessage
	seq   int
}

func dialRaw(t *testing.T, ts *TestNCServer) *rawSession {
	client, err := xssh.Dial("tcp", ts.Address(), ts.ClientSSHConfig())
	assert.NoError(t, err)
	sess, err := client.NewSession()
	assert.NoError(t, err)
	assert.NoError(t, sess.RequestSubsystem("netconf"))
	in, err := sess.StdinPipe()
	assert.NoError(t, err)
	out, err := sess.StdoutPipe()
	assert.NoError(t, err)

	rs := &rawSession{t: t, ch: struct {
		io.Reader
		io.WriteCloser
	}{out, in}, enc: codec.NewEncoder(in), dec: codec.NewDecoder(out)}

	rs.hello = &common.HelloMessage{}
	assert.NoError(t, rs.dec.Decode(rs.hello))
	assert.NoError(t, rs.enc.Encode(&common.HelloMessage{Capabilities: []string{common.CapBase10}}))
	return rs
}

type reply struct {
	XMLName   xml.Name
	MessageID string            `xml:"message-id,attr"`
	Errors    []common.RPCError `xml:"rpc-error"`
	Ok        *struct{}         `xml:"ok"`
	Data      struct {
		Content string `xml:",innerxml"`
	} `xml:"data"`
}

func (rs *rawSession) call(body string) *reply {
	rs.seq++
	msg := &common.RPCMessage{MessageID: string(rune('0' + rs.seq)), Union: common.GetUnion(body)}
	assert.NoError(rs.t, rs.enc.Encode(msg))
	r := &reply{}
	assert.NoError(rs.t, rs.dec.Decode(r))
	assert.Equal(rs.t, msg.MessageID, r.MessageID)
	return r
}

func TestHelloCapabilities(t *testing.T) {
	ts := NewTestNetconfServer(t)
	defer ts.Close()

	rs := dialRaw(t, ts)
	defer rs.ch.Close()

	assert.Equal(t, DefaultCapabilities, rs.hello.Capabilities)
	assert.Equal(t, uint64(1), rs.hello.SessionID)

	r := rs.call("<get><top/></get>")
	assert.Equal(t, "<top/>", r.Data.Content)
	assert.Equal(t, []string{"get"}, ts.LastHandler().Operations())
	assert.NotNil(t, ts.LastHandler().ClientHello())
}

func TestCandidateCommitSequence(t *testing.T) {
	ts := NewTestNetconfServer(t)
	defer ts.Close()

	rs := dialRaw(t, ts)
	defer rs.ch.Close()

	assert.NotNil(t, rs.call("<lock><target><candidate/></target></lock>").Ok)
	assert.Equal(t, uint64(1), ts.Device().LockOwner(Candidate))

	assert.NotNil(t, rs.call("<edit-config><target><candidate/></target><config><system><hostname>r1</hostname></system></config></edit-config>").Ok)
	assert.Equal(t, "<system><hostname>r1</hostname></system>", ts.Device().Config(Candidate))
	assert.Equal(t, "", ts.Device().Config(Running))

	assert.NotNil(t, rs.call("<commit/>").Ok)
	assert.Equal(t, "<system><hostname>r1</hostname></system>", ts.Device().Config(Running))
	assert.Equal(t, 1, ts.Device().Commits())

	assert.NotNil(t, rs.call("<unlock><target><candidate/></target></unlock>").Ok)
	assert.Equal(t, uint64(0), ts.Device().LockOwner(Candidate))

	r := rs.call("<get-config><source><running/></source></get-config>")
	assert.Equal(t, "<system><hostname>r1</hostname></system>", r.Data.Content)
}

func TestLockDenied(t *testing.T) {
	ts := NewTestNetconfServer(t)
	defer ts.Close()

	first := dialRaw(t, ts)
	defer first.ch.Close()
	second := dialRaw(t, ts)
	defer second.ch.Close()

	assert.NotNil(t, first.call("<lock><target><candidate/></target></lock>").Ok)

	r := second.call("<lock><target><candidate/></target></lock>")
	assert.Len(t, r.Errors, 1)
	assert.Equal(t, "lock-denied", r.Errors[0].Tag)
	assert.Contains(t, r.Errors[0].Info, "<session-id>1</session-id>")

	r = second.call("<edit-config><target><candidate/></target><config><x/></config></edit-config>")
	assert.Equal(t, "in-use", r.Errors[0].Tag)

	r = second.call("<unlock><target><candidate/></target></unlock>")
	assert.Equal(t, "operation-failed", r.Errors[0].Tag)
}

func TestLockReleasedWhenSessionEnds(t *testing.T) {
	ts := NewTestNetconfServer(t)
	defer ts.Close()
	ts.Device().SetConfig(Running, "<a/>")
	ts.Device().SetConfig(Candidate, "<a/>")

	rs := dialRaw(t, ts)
	assert.NotNil(t, rs.call("<lock><target><candidate/></target></lock>").Ok)
	assert.NotNil(t, rs.call("<edit-config><target><candidate/></target><config><b/></config></edit-config>").Ok)
	assert.NoError(t, rs.ch.Close())

	assert.True(t, ts.WaitSessionEnd(5*time.Second), "Session should end")
	assert.Equal(t, uint64(0), ts.Device().LockOwner(Candidate))
	assert.Equal(t, "<a/>", ts.Device().Config(Candidate), "Uncommitted changes should be discarded")
}

func TestCloseSessionEndsSession(t *testing.T) {
	ts := NewTestNetconfServer(t)
	defer ts.Close()

	rs := dialRaw(t, ts)
	defer rs.ch.Close()

	assert.NotNil(t, rs.call("<close-session/>").Ok)
	assert.True(t, ts.WaitSessionEnd(5*time.Second), "Session should end")
}

func TestQueuedRequestHandlers(t *testing.T) {
	ts := NewTestNetconfServer(t).WithRequestHandler(FailingRequestHandler).WithRequestHandler(WarningRequestHandler)
	defer ts.Close()

	rs := dialRaw(t, ts)
	defer rs.ch.Close()

	assert.Equal(t, "error", rs.call("<get/>").Errors[0].Severity)
	assert.Equal(t, "warning", rs.call("<get/>").Errors[0].Severity)
	assert.Empty(t, rs.call("<get/>").Errors)
	assert.Equal(t, 3, ts.LastHandler().ReqCount())
}

func TestTLSServer(t *testing.T) {
	ts := NewTLSTestNetconfServer(t)
	defer ts.Close()

	conn, err := tls.Dial("tcp", ts.Address(), ts.ClientTLSConfig())
	assert.NoError(t, err)
	defer conn.Close()

	dec := codec.NewDecoder(conn)
	hello := &common.HelloMessage{}
	assert.NoError(t, dec.Decode(hello))
	assert.Contains(t, hello.Capabilities, common.CapCandidate)
}

func TestSSHServerEchoesLines(t *testing.T) {
	ts := NewSSHServer(t, TestUserName, TestPassword)
	defer ts.Close()

	client, err := xssh.Dial("tcp", ts.Address(), &xssh.ClientConfig{
		User:            TestUserName,
		Auth:            []xssh.AuthMethod{xssh.Password(TestPassword)},
		HostKeyCallback: xssh.InsecureIgnoreHostKey(), //nolint: gosec
	})
	assert.NoError(t, err)
	defer client.Close()

	sess, err := client.NewSession()
	assert.NoError(t, err)
	assert.NoError(t, sess.RequestSubsystem("netconf"))
	in, _ := sess.StdinPipe()
	out, _ := sess.StdoutPipe()

	_, err = in.Write([]byte("Message\n"))
	assert.NoError(t, err)
	line, err := bufio.NewReader(out).ReadString('\n')
	assert.NoError(t, err)
	assert.Equal(t, "GOT:Message\n", line)
}
