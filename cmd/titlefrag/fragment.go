package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nicktill/titlefrag/pkg/fragment"
	"github.com/nicktill/titlefrag/pkg/tsv"
)

func newFragmentCommand(a *app) *cobra.Command {
	var (
		budget     int
		yearColumn int
		header     bool
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "fragment [FILE]",
		Short: "Compute the fragmentation year of a title.basics TSV file.",
		Long: `Reads at most --budget rows of FILE (stdin when FILE is "-" or omitted),
tallies their start years and prints the year frequency table followed by the
weighted median year, which is the boundary for splitting titles between two
nodes. Lines with too few fields are skipped without using up the budget.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}

			cfg := a.cfg
			if cmd.Flags().Changed("budget") {
				cfg.Fragment.Budget = budget
			}
			if cmd.Flags().Changed("year-column") {
				if yearColumn < 0 {
					return fmt.Errorf("--year-column must not be negative (got %d)", yearColumn)
				}
				cfg.Fragment.YearColumn = yearColumn
				if cfg.Fragment.MinFields <= yearColumn {
					cfg.Fragment.MinFields = yearColumn + 1
				}
			}
			analyzer := cfg.Analyzer()

			start := time.Now()
			in := tsv.Options{SkipHeader: header, TrimSpace: true}
			var (
				stats *fragment.Stats
				err   error
			)
			if path == "-" {
				stats, err = analyzer.Analyze(cmd.Context(), tsv.NewReader(a.stdin, in))
			} else {
				stats, err = analyzer.AnalyzeFile(cmd.Context(), path, in)
			}
			if err != nil {
				return err
			}

			a.log.Debug("fragment computed",
				zap.Int("considered", stats.TotalConsidered),
				zap.Int("valid", stats.TotalValid),
				zap.Int("skipped", stats.Skipped),
				zap.Duration("elapsed", time.Since(start)))

			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			return fragment.WriteReport(a.stdout, stats)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&budget, "budget", fragment.DefaultBudget, "maximum number of rows considered")
	flags.IntVar(&yearColumn, "year-column", fragment.DefaultYearColumn, "zero-based startYear column")
	flags.BoolVar(&header, "header", false, "skip the first line of the input")
	flags.BoolVar(&asJSON, "json", false, "print the statistic as JSON")

	return cmd
}
