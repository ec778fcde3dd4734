package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/aasindex/internal/models"
	gs "github.com/dmitrijs2005/aasindex/internal/server/grpc"
)

// parseKey reads "endpoint/id". Ids may contain slashes.
func parseKey(s string) (models.DocumentKey, error) {
	endpoint, id, ok := strings.Cut(s, "/")
	if !ok || endpoint == "" || id == "" {
		return models.DocumentKey{}, fmt.Errorf("invalid document key %q, want ENDPOINT/ID", s)
	}
	return models.DocumentKey{Endpoint: endpoint, ID: id}, nil
}

func newDocumentsCmd(opts *clientOptions) *cobra.Command {
	var (
		filter, language string
		after, before    string
		limit            int
		last, asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "Page through indexed documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cursor := models.FirstPage(limit)
			switch {
			case after != "":
				key, err := parseKey(after)
				if err != nil {
					return err
				}
				cursor = models.NextPage(key, limit)
			case before != "":
				key, err := parseKey(before)
				if err != nil {
					return err
				}
				cursor = models.PreviousPage(key, limit)
			case last:
				cursor = models.LastPage(limit)
			}

			return opts.withClient(cmd, func(ctx context.Context, c *gs.Client) error {
				page, err := c.Documents(ctx, cursor, filter, language)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), page)
				}
				rows := make([]string, 0, len(page.Documents))
				for _, d := range page.Documents {
					rows = append(rows, fmt.Sprintf("%s\t%s\t%s\t%s", d.Endpoint, d.ID, d.IDShort, d.AssetID))
				}
				if err := table(cmd.OutOrStdout(), "ENDPOINT\tID\tID SHORT\tASSET", rows); err != nil {
					return err
				}
				if page.Previous != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "previous: --before %s\n", page.Previous)
				}
				if page.Next != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "next: --after %s\n", page.Next)
				}
				return nil
			})
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&filter, "filter", "f", "", "filter expression, e.g. '#Prop:Power = 7.5'")
	fs.StringVar(&language, "language", "", "language of keyword matching")
	fs.IntVarP(&limit, "limit", "n", 0, "page size")
	fs.StringVar(&after, "after", "", "page after ENDPOINT/ID")
	fs.StringVar(&before, "before", "", "page before ENDPOINT/ID")
	fs.BoolVar(&last, "last", false, "show the last page")
	fs.BoolVar(&asJSON, "json", false, "print the page as JSON")
	cmd.MarkFlagsMutuallyExclusive("after", "before", "last")
	return cmd
}

func newDocumentCmd(opts *clientOptions) *cobra.Command {
	var content bool
	cmd := &cobra.Command{
		Use:   "document ENDPOINT ID",
		Short: "Print a document as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(cmd, func(ctx context.Context, c *gs.Client) error {
				if content {
					env, err := c.Content(ctx, args[0], args[1])
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), env)
				}
				doc, err := c.Document(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), doc)
			})
		},
	}
	cmd.Flags().BoolVar(&content, "content", false, "print the AAS environment instead of the metadata")
	return cmd
}
