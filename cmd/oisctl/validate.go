package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/ois-incident-etl/internal/domain"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate <file|url>",
		Short: "Report rejected records and why",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := opts.read(cmd.Context(), args[0], opts.logger(cmd))
			if err != nil {
				return err
			}

			_, summary := domain.Extract(raw)
			writeValidation(cmd.OutOrStdout(), summary)

			if strict && summary.Rejected > 0 {
				return fmt.Errorf("%d of %d: %w", summary.Rejected, summary.Seen, errRejected)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit 1 when any record is rejected")
	return cmd
}

func writeValidation(w io.Writer, s domain.ExtractSummary) {
	printSummary(w, s)

	reasons := make([]domain.RejectReason, 0, len(s.Reasons))
	for r := range s.Reasons {
		reasons = append(reasons, r)
	}
	slices.Sort(reasons)
	for _, r := range reasons {
		fmt.Fprintf(w, "  %-22s %d\n", r, s.Reasons[r])
	}

	if len(s.Rejections) == 0 {
		return
	}
	fmt.Fprintln(w, "rejections:")
	for _, rej := range s.Rejections {
		caseNumber := rej.CaseNumber
		if caseNumber == "" {
			caseNumber = "-"
		}
		fmt.Fprintf(w, "  record %d  case %s  %s: %s\n", rej.Record, caseNumber, rej.Reason, rej.Detail)
	}
	if s.Rejected > len(s.Rejections) {
		fmt.Fprintf(w, "  ... %d more\n", s.Rejected-len(s.Rejections))
	}
}
