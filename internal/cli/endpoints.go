package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/aasindex/internal/models"
	gs "github.com/dmitrijs2005/aasindex/internal/server/grpc"
	"github.com/dmitrijs2005/aasindex/internal/timex"
)

func newEndpointsCmd(opts *clientOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "endpoints",
		Aliases: []string{"ep"},
		Short:   "Manage endpoints",
	}
	cmd.AddCommand(
		newEndpointsListCmd(opts),
		newEndpointsShowCmd(opts),
		newEndpointsPutCmd(opts, false),
		newEndpointsPutCmd(opts, true),
		newEndpointsRemoveCmd(opts),
	)
	return cmd
}

func newEndpointsListCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(cmd, func(ctx context.Context, c *gs.Client) error {
				endpoints, err := c.Endpoints(ctx)
				if err != nil {
					return err
				}
				rows := make([]string, 0, len(endpoints))
				for _, e := range endpoints {
					rows = append(rows, fmt.Sprintf("%s\t%s\t%s\t%s", e.Name, e.Type, scheduleString(e), e.URL))
				}
				return table(cmd.OutOrStdout(), "NAME\tTYPE\tSCHEDULE\tURL", rows)
			})
		},
	}
}

func scheduleString(e *models.Endpoint) string {
	s := string(e.ScheduleType())
	if iv := e.Schedule.Interval(); iv > 0 {
		s += " " + iv.String()
	}
	return s
}

func newEndpointsShowCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Print one endpoint as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(cmd, func(ctx context.Context, c *gs.Client) error {
				e, err := c.Endpoint(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), e)
			})
		},
	}
}

// newEndpointsPutCmd builds "add" or, with update set, "update".
func newEndpointsPutCmd(opts *clientOptions, update bool) *cobra.Command {
	var (
		e        models.Endpoint
		schedule string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Register an endpoint",
		Args:  cobra.ExactArgs(1),
	}
	if update {
		cmd.Use = "update NAME"
		cmd.Short = "Replace an endpoint's settings"
	}
	fs := cmd.Flags()
	fs.StringVar(&e.URL, "url", "", "endpoint URL or directory")
	fs.StringVar((*string)(&e.Type), "type", string(models.EndpointAASAPI), "AAS_API, OPC_UA, WebDAV, FileSystem or S3")
	fs.StringVar(&e.Version, "version", "", "API version of AAS_API endpoints")
	fs.StringToStringVar(&e.Headers, "header", nil, "request header as key=value, repeatable")
	fs.StringVar(&schedule, "schedule", string(models.ScheduleEvery), "every, once, manual or disabled")
	fs.DurationVar(&interval, "interval", 0, "scan period of every schedules")
	_ = cmd.MarkFlagRequired("url")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		e.Name = args[0]
		e.Schedule = &models.Schedule{Type: models.ScheduleType(schedule)}
		if interval > 0 {
			e.Schedule.Values = []timex.Duration{timex.D(interval)}
		}
		if err := e.Validate(); err != nil {
			return err
		}
		return opts.withClient(cmd, func(ctx context.Context, c *gs.Client) error {
			if update {
				if err := c.UpdateEndpoint(ctx, &e); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "endpoint %s updated\n", e.Name)
				return nil
			}
			if err := c.AddEndpoint(ctx, &e); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "endpoint %s added\n", e.Name)
			return nil
		})
	}
	return cmd
}

func newEndpointsRemoveCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove NAME",
		Aliases: []string{"rm"},
		Short:   "Remove an endpoint and its documents",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(cmd, func(ctx context.Context, c *gs.Client) error {
				if err := c.RemoveEndpoint(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "endpoint %s removed\n", args[0])
				return nil
			})
		},
	}
}
