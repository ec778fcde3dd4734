package cli

import (
	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/aasindex/internal/config"
	"github.com/dmitrijs2005/aasindex/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the index service",
		Args:  cobra.NoArgs,
	}
	flags := config.BindFlags(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := flags.Load()
		if err != nil {
			return err
		}
		app, err := server.NewApp(cmd.Context(), cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		return app.Run(cmd.Context())
	}
	return cmd
}
