package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/ois-incident-etl/internal/adapter/source"
	"github.com/couchcryptid/ois-incident-etl/internal/observability"
)

// errRejected is returned by validate --strict when any record was rejected.
var errRejected = errors.New("records were rejected")

type rootOptions struct {
	logLevel string
	timeout  time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "oisctl",
		Short: "Dallas officer-involved shooting dataset tool",
		Long: `
oisctl reads the Dallas Police officer-involved shootings export, which may
contain multi-line and unbalanced quoted fields, and turns it into clean
incident records with coordinates.
`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "per-request timeout for URL sources")

	cmd.AddCommand(
		newParseCmd(opts),
		newValidateCmd(opts),
		newLoadCmd(opts),
	)
	return cmd
}

func (o *rootOptions) logger(cmd *cobra.Command) *slog.Logger {
	return observability.NewTextLogger(cmd.ErrOrStderr(), o.logLevel)
}

// fetcher resolves a positional argument into a URL or file source.
type fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

func (o *rootOptions) source(arg string, logger *slog.Logger) fetcher {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		return source.NewHTTPSource(arg, o.timeout, logger)
	}
	return source.NewFileSource(arg, logger)
}

func (o *rootOptions) read(ctx context.Context, arg string, logger *slog.Logger) (string, error) {
	raw, err := o.source(arg, logger).Fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", arg, err)
	}
	return raw, nil
}
