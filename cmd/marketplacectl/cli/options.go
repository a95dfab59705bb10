package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sourcing-hub/marketplace/internal/refdata"
)

func newOptionsCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "options",
		Short: "Inspect or refresh the directory filter options",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the current filter options",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			o, err := e.service.Options(opts.context(cmd))
			if err != nil {
				return err
			}
			return opts.writeOptions(cmd.OutOrStdout(), o)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Reload filter options from upstream and notify API instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			o, err := e.service.RefreshOptions(opts.context(cmd))
			if err != nil {
				return err
			}
			return opts.writeOptions(cmd.OutOrStdout(), o)
		},
	})
	return cmd
}

func (o *Options) writeOptions(w io.Writer, opts refdata.Options) error {
	if o.JSON {
		return o.printJSON(w, opts)
	}
	rows := []struct {
		label  string
		values []string
	}{
		{"categories", opts.Categories},
		{"industries", opts.Industries},
		{"locations", opts.Locations},
		{"certifications", opts.Certifications},
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(w, "%-15s %s\n", row.label+":", strings.Join(row.values, ", ")); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "source: %s, fetched %s\n", opts.Source, opts.FetchedAt.UTC().Format(time.RFC3339))
	return err
}
