package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/ois-incident-etl/internal/domain"
)

func newParseCmd(opts *rootOptions) *cobra.Command {
	var compact bool

	cmd := &cobra.Command{
		Use:   "parse <file|url>",
		Short: "Print accepted records as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := opts.read(cmd.Context(), args[0], opts.logger(cmd))
			if err != nil {
				return err
			}

			records, summary := domain.Extract(raw)

			enc := json.NewEncoder(cmd.OutOrStdout())
			if !compact {
				enc.SetIndent("", "  ")
			}
			if err := enc.Encode(records); err != nil {
				return fmt.Errorf("encode records: %w", err)
			}
			printSummary(cmd.ErrOrStderr(), summary)
			return nil
		},
	}
	cmd.Flags().BoolVar(&compact, "compact", false, "emit compact JSON")
	return cmd
}

func printSummary(w io.Writer, s domain.ExtractSummary) {
	fmt.Fprintf(w, "seen=%d accepted=%d rejected=%d duplicates=%d\n", s.Seen, s.Accepted, s.Rejected, s.Duplicates)
}
