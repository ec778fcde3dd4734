// Package cli implements the aasindex command line: the serve command that
// runs the index service and client commands that talk to a running
// instance over gRPC.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	gs "github.com/dmitrijs2005/aasindex/internal/server/grpc"
)

type clientOptions struct {
	addr    string
	timeout time.Duration
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &clientOptions{}

	root := &cobra.Command{
		Use:           "aasindex",
		Short:         "Index of Asset Administration Shell documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.addr, "addr", "localhost:50051", "address of a running aasindex server")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "timeout of client calls")

	root.AddCommand(
		newServeCmd(),
		newVersionCmd(),
		newEndpointsCmd(opts),
		newDocumentsCmd(opts),
		newDocumentCmd(opts),
		newScanCmd(opts),
		newResetCmd(opts),
		newWatchCmd(opts),
	)
	return root
}

// withClient dials the server and runs fn under the call timeout.
func (o *clientOptions) withClient(cmd *cobra.Command, fn func(ctx context.Context, c *gs.Client) error) error {
	c, conn, err := gs.Dial(o.addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", o.addr, err)
	}
	defer conn.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	return fn(ctx, c)
}
