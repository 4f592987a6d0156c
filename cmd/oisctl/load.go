package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/ois-incident-etl/internal/adapter/store"
	"github.com/couchcryptid/ois-incident-etl/internal/config"
	"github.com/couchcryptid/ois-incident-etl/internal/domain"
	"github.com/couchcryptid/ois-incident-etl/internal/observability"
	"github.com/couchcryptid/ois-incident-etl/internal/pipeline"
)

type loadOptions struct {
	driver       string
	dsn          string
	h3Resolution int
}

func newLoadCmd(opts *rootOptions) *cobra.Command {
	lo := &loadOptions{}

	cmd := &cobra.Command{
		Use:   "load <file|url>",
		Short: "Replace the stored incidents with the parsed dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := opts.logger(cmd)

			db, err := store.Open(ctx, lo.driver, lo.dsn, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.InitSchema(ctx); err != nil {
				return err
			}

			p := pipeline.New(
				opts.source(args[0], logger),
				pipeline.NewTransformer(nil, lo.h3Resolution, logger),
				logger,
				observability.NewUnregisteredMetrics(),
				db,
			)

			var bar *progressbar.ProgressBar
			if isatty.IsTerminal(os.Stderr.Fd()) {
				p.SetProgress(func(done, total int) {
					if bar == nil {
						bar = progressbar.NewOptions(total,
							progressbar.OptionSetDescription("Loading incidents"),
							progressbar.OptionSetWriter(os.Stderr),
							progressbar.OptionShowCount(),
							progressbar.OptionClearOnFinish(),
						)
					}
					_ = bar.Set(done)
				})
			}

			report, err := p.RunOnce(ctx)
			if bar != nil {
				_ = bar.Finish()
			}
			printSummary(cmd.ErrOrStderr(), report.Summary)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d incidents into %s\n", report.Loaded, lo.dsn)
			return nil
		},
	}
	cmd.Flags().StringVar(&lo.driver, "driver", config.DriverSQLite, "database driver (sqlite, pgx)")
	cmd.Flags().StringVar(&lo.dsn, "db", "data/incidents.db", "database path or connection URL")
	cmd.Flags().IntVar(&lo.h3Resolution, "h3-resolution", domain.DefaultH3Resolution, "H3 resolution for incident cells")
	return cmd
}
