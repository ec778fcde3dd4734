package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	gs "github.com/dmitrijs2005/aasindex/internal/server/grpc"
)

func newScanCmd(opts *clientOptions) *cobra.Command {
	var async bool
	cmd := &cobra.Command{
		Use:   "scan ENDPOINT",
		Short: "Scan an endpoint now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(cmd, func(ctx context.Context, c *gs.Client) error {
				if async {
					if err := c.StartScan(ctx, args[0]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "scan of %s started\n", args[0])
					return nil
				}
				stats, err := c.ScanEndpoint(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %d, removed %d, updated %d, unchanged %d, failed %d\n",
					stats.Added, stats.Removed, stats.Updated, stats.Unchanged, stats.Failed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&async, "async", false, "start the scan and return; manual endpoints only")
	return cmd
}

func newResetCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the index and rescan the seed endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(cmd, func(ctx context.Context, c *gs.Client) error {
				if err := c.Reset(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "index reset")
				return nil
			})
		},
	}
}

func newWatchCmd(opts *clientOptions) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print change notifications as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// a stream has no call timeout
			o := *opts
			o.timeout = 0
			return o.withClient(cmd, func(ctx context.Context, c *gs.Client) error {
				w, err := c.Watch(ctx)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				for seen := 0; count <= 0 || seen < count; seen++ {
					n, err := w.Recv()
					if errors.Is(err, io.EOF) || ctx.Err() != nil {
						return nil
					}
					if err != nil {
						return err
					}
					if err := enc.Encode(n); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "exit after this many notifications")
	return cmd
}
