package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nicktill/titlefrag/pkg/export"
)

func newExportCommand(a *app) *cobra.Command {
	var (
		format string
		opts   export.ExportOptions
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dump committed titles as TSV or JSON.",
		Long: `Writes titles from the configured store to stdout, or to --output.
TSV output uses the \N sentinel for absent values, so it can be loaded again
with "titlefrag load".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			store, err := a.openStore(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer closeStore(a, store)

			var w io.Writer = a.stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer func() {
					if cerr := f.Close(); err == nil {
						err = cerr
					}
				}()
				w = f
			}

			exporter := export.NewExporter(store)
			var result *export.ExportResult
			switch format {
			case "tsv":
				result, err = exporter.ExportTSV(ctx, w, opts)
			case "json":
				result, err = exporter.ExportJSON(ctx, w, opts)
			default:
				return fmt.Errorf("unknown format %q (must be tsv or json)", format)
			}
			if err != nil {
				return err
			}

			a.log.Info("export complete",
				zap.String("format", result.Format),
				zap.Int("titles", result.TitlesExported))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&format, "format", "tsv", "output format: tsv or json")
	flags.StringVarP(&opts.Query, "query", "q", "", "only export titles whose primaryTitle contains this text")
	flags.IntVar(&opts.Limit, "limit", 0, "maximum titles to export (0 exports up to the search cap)")
	flags.BoolVar(&opts.Header, "header", false, "write a TSV header line")
	flags.StringVarP(&output, "output", "o", "", "write to this file instead of stdout")

	return cmd
}
