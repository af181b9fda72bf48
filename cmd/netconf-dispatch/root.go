package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/damianoneill/ncdispatch/dispatch"
	"github.com/damianoneill/ncdispatch/netconf/client"
	"github.com/damianoneill/ncdispatch/netconf/common"
	"github.com/damianoneill/ncdispatch/netconf/ops"
	"github.com/damianoneill/ncdispatch/render"
	"github.com/damianoneill/ncdispatch/rpcsource"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newRootCommand() *cobra.Command {
	opts := &Options{}
	cmd := &cobra.Command{
		Use:   "netconf-dispatch",
		Short: "Send NETCONF RPCs to a device and print the replies",
		Long: `Send NETCONF RPCs to a device and print the replies.

Each --rpc names a file holding the RPC XML, or is the XML itself. The document may be
the operation element or an <rpc> envelope around it. Without --rpc a single RPC is read
from stdin. An edit-config is locked, applied to the candidate datastore and committed
unless --disable-auto-lock-commit-unlock is given.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.resolve(cmd.Flags()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return err
			}
			restore, err := setupLogging(opts, cmd.ErrOrStderr())
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return err
			}
			defer restore()

			if err = run(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				log.Errorf("netconf-dispatch failed: %v", err)
			}
			return err
		},
	}
	opts.bindFlags(cmd.Flags())
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	})
	return cmd
}

// run dispatches the requests in order on one session, writing each reply to stdout. The first
// failure ends the run.
func run(ctx context.Context, opts *Options, stdin io.Reader, stdout io.Writer) error {
	log.Info("Starting netconf-dispatch")

	if len(opts.RPCs) == 0 && isTerminal(stdin) {
		fmt.Fprintln(os.Stderr, "Reading RPC from stdin, use Ctrl-D to signal EOF")
	}
	reqs, err := rpcsource.ResolveAll(opts.RPCs, stdin)
	if err != nil {
		return err
	}

	log.Infof("Connecting to NETCONF server %s:%d over %s", opts.Host, opts.Port, opts.Transport)
	s, err := connect(client.WithClientTrace(ctx, clientTrace(opts)), opts)
	if err != nil {
		return err
	}
	defer s.Close()

	engine := dispatch.NewEngine(s, opts.DisableAutoLockCommitUnlock)
	renderer := &render.Renderer{Pretty: opts.Pretty}
	for _, req := range reqs {
		reply, err := engine.Dispatch(req)
		if err != nil {
			logFailure(req, reply, err)
			// The session is still usable after an rpc-error; after a timeout a reply may still be pending.
			if dispatch.IsProtocolError(err) {
				closeSession(s)
			}
			return err
		}
		if err = renderer.Render(stdout, reply); err != nil {
			return err
		}
	}

	closeSession(s)
	log.Infof("netconf-dispatch completed, %d RPCs executed", len(reqs))
	return nil
}

func closeSession(s ops.OpSession) {
	if err := s.CloseSession(); err != nil {
		log.Warnf("Failed to close NETCONF session: %v", err)
	}
}

func logFailure(req *rpcsource.Request, reply *common.RPCReply, err error) {
	switch {
	case dispatch.IsTimeout(err):
		log.Errorf("Timed out waiting for the reply to <%s> from %s", req.Operation.Local, req.Source)
	case dispatch.IsProtocolError(err) && reply != nil:
		log.Errorf("Server returned rpc-error for <%s> from %s: %s", req.Operation.Local, req.Source, reply.RawReply)
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
