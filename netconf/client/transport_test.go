package client

import (
	"bufio"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/damianoneill/ncdispatch/netconf/testserver"

	assert "github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

var dftContext = context.Background()

func TestSuccessfulConnection(t *testing.T) {
	ts := testserver.NewSSHServer(t, "testUser", "testPassword")
	defer ts.Close()

	tr, err := NewSSHTransport(dftContext, passwordConfig("testPassword"), ts.Address(), "netconf")
	assert.NoError(t, err, "Not expecting new transport to fail")
	defer tr.Close()
}

func TestFailingConnection(t *testing.T) {
	ts := testserver.NewSSHServer(t, "testUser", "testPassword")
	defer ts.Close()

	tr, err := NewSSHTransport(dftContext, passwordConfig("wrongPassword"), ts.Address(), "netconf")
	assert.Error(t, err, "Not expecting new transport to succeed")
	assert.Contains(t, err.Error(), "ssh handshake")
	assert.Nil(t, tr, "Transport should not be defined")
}

func TestUnreachableTarget(t *testing.T) {
	tr, err := NewSSHTransport(dftContext, passwordConfig("testPassword"), "localhost:0", "netconf")
	assert.Error(t, err, "Not expecting new transport to succeed")
	assert.Contains(t, err.Error(), "dial localhost:0")
	assert.Nil(t, tr, "Transport should not be defined")
}

func TestWriteRead(t *testing.T) {
	ts := testserver.NewSSHServer(t, "testUser", "testPassword")
	defer ts.Close()

	tr, err := NewSSHTransport(dftContext, passwordConfig("testPassword"), ts.Address(), "netconf")
	assert.NoError(t, err, "Not expecting new transport to fail")
	defer tr.Close()

	rdr := bufio.NewReader(tr)
	_, _ = tr.Write([]byte("Message\n"))
	response, _ := rdr.ReadString('\n')
	assert.Equal(t, "GOT:Message\n", response, "Failed to get expected response")
}

func TestCloseIsIdempotent(t *testing.T) {
	ts := testserver.NewSSHServer(t, "testUser", "testPassword")
	defer ts.Close()

	closed := 0
	ctx := WithClientTrace(dftContext, &ClientTrace{
		ConnectionClosed: func(target string, err error) { closed++ },
	})
	tr, err := NewSSHTransport(ctx, passwordConfig("testPassword"), ts.Address(), "netconf")
	assert.NoError(t, err)

	assert.NoError(t, tr.Close())
	assert.NoError(t, tr.Close())
	assert.Equal(t, 1, closed, "Connection closed should only be reported once")
}

func TestTrace(t *testing.T) {
	ts := testserver.NewSSHServer(t, "testUser", "testPassword")
	defer ts.Close()

	var traces []string
	trace := &ClientTrace{
		ConnectStart: func(target string) {
			traces = append(traces, fmt.Sprintf("ConnectStart %s", target))
		},
		ConnectDone: func(target string, err error, d time.Duration) {
			traces = append(traces, fmt.Sprintf("ConnectDone %s error:%v", target, err))
			assert.True(t, d > 0, "Duration should be defined")
		},
		DialStart: func(transport, target string) {
			traces = append(traces, fmt.Sprintf("DialStart %s %s", transport, target))
		},
		DialDone: func(transport, target string, err error, d time.Duration) {
			traces = append(traces, fmt.Sprintf("DialDone %s %s error:%v", transport, target, err))
			assert.True(t, d > 0, "Duration should be defined")
		},
		ConnectionClosed: func(target string, err error) {
			traces = append(traces, fmt.Sprintf("ConnectionClosed target:%s error:%v", target, err))
		},
		ReadStart: func(p []byte) {
			traces = append(traces, "ReadStart called")
		},
		ReadDone: func(p []byte, c int, err error, d time.Duration) {
			traces = append(traces, fmt.Sprintf("ReadDone %s %d %v", string(p[:c]), c, err))
			assert.True(t, d > 0, "Duration should be defined")
		},
		WriteStart: func(p []byte) {
			traces = append(traces, fmt.Sprintf("WriteStart %s", p))
		},
		WriteDone: func(p []byte, c int, err error, d time.Duration) {
			traces = append(traces, fmt.Sprintf("WriteDone %s %d %v", string(p[:c]), c, err))
			assert.True(t, d > 0, "Duration should be defined")
		},
	}

	ctx := WithClientTrace(context.Background(), trace)
	tr, err := NewSSHTransport(ctx, passwordConfig("testPassword"), ts.Address(), "netconf")
	assert.NoError(t, err)

	_, _ = tr.Write([]byte("Message\n"))
	_, _ = bufio.NewReader(tr).ReadString('\n')

	tr.Close()

	target := ts.Address()
	assert.Equal(t, "ConnectStart "+target, traces[0])
	assert.Equal(t, "DialStart ssh "+target, traces[1])
	assert.Equal(t, "DialDone ssh "+target+" error:<nil>", traces[2])
	assert.Equal(t, "ConnectDone "+target+" error:<nil>", traces[3])
	assert.Equal(t, "WriteStart Message\n", traces[4])
	assert.Equal(t, "WriteDone Message\n 8 <nil>", traces[5])
	assert.Equal(t, "ReadStart called", traces[6])
	assert.Equal(t, "ReadDone GOT:Message\n 12 <nil>", traces[7])
	assert.Contains(t, traces[8], "ConnectionClosed target:localhost:")
}

func TestTLSTransport(t *testing.T) {
	ts := testserver.NewTLSTestNetconfServer(t)
	defer ts.Close()

	var dialed string
	ctx := WithClientTrace(dftContext, &ClientTrace{
		DialStart: func(transport, target string) { dialed = transport },
	})
	tr, err := NewTLSTransport(ctx, ts.ClientTLSConfig(), ts.Address())
	assert.NoError(t, err, "Not expecting new transport to fail")
	assert.Equal(t, TransportTLS, dialed)
	assert.NoError(t, tr.Close())
}

func TestTLSTransportFailure(t *testing.T) {
	ts := testserver.NewTLSTestNetconfServer(t)
	defer ts.Close()

	tr, err := NewTLSTransport(dftContext, ts.ClientTLSConfig(), "localhost:0")
	assert.Error(t, err, "Not expecting new transport to succeed")
	assert.Contains(t, err.Error(), "tls dial")
	assert.Nil(t, tr)
}

func passwordConfig(password string) *ssh.ClientConfig {
	return &ssh.ClientConfig{
		User:            "testUser",
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint: gosec
		Timeout:         5 * time.Second,
	}
}
