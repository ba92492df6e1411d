package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nicktill/titlefrag/pkg/config"
	"github.com/nicktill/titlefrag/pkg/fragment"
	"github.com/nicktill/titlefrag/pkg/ingest"
	"github.com/nicktill/titlefrag/pkg/storage"
	"github.com/nicktill/titlefrag/pkg/tsv"
)

func newLoadCommand(a *app) *cobra.Command {
	var (
		policy  string
		header  bool
		splitAt int
		upper   string
	)

	cmd := &cobra.Command{
		Use:   "load [FILE]",
		Short: "Normalize a title.basics TSV file into the title store.",
		Long: `Reads five-column records (tconst, titleType, primaryTitle, startYear,
runtimeMinutes) from FILE, or stdin when FILE is "-" or omitted, and inserts
them into the configured store in a single commit.

With --split-at YEAR the load is routed across two stores: titles up to YEAR
(and titles without a start year) go to the configured store, later titles go
to the store named by --upper (a badger directory or a mysql table).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}

			cfg := a.cfg
			if cmd.Flags().Changed("policy") {
				cfg.Load.Policy = policy
			}
			if cmd.Flags().Changed("header") {
				cfg.Load.SkipHeader = header
			}
			p, err := ingest.ParsePolicy(cfg.Load.Policy)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			sink, cleanup, err := a.openSink(cmd, cfg, splitAt, upper)
			if err != nil {
				return err
			}
			defer cleanup()

			loader := ingest.NewLoader(sink,
				ingest.WithPolicy(p),
				ingest.WithLogger(a.log),
				ingest.WithProgress(cfg.Load.ProgressEvery, func(pr ingest.Progress) {
					a.log.Info("load progress",
						zap.Int64("lines", pr.Lines),
						zap.Int64("loaded", pr.Loaded),
						zap.Int64("skipped", pr.Skipped))
				}),
			)

			in := tsv.Options{SkipHeader: cfg.Load.SkipHeader}
			var result *ingest.LoadResult
			if path == "-" {
				result, err = loader.Load(ctx, stdinSource{tsv.NewReader(a.stdin, in)})
			} else {
				result, err = loader.LoadFile(ctx, path, in)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(a.stdout, "Loaded %d titles from %s (%d lines, %d skipped) in %s\n",
				result.Loaded, result.Source, result.TotalLines, result.Skipped, result.Duration.Round(time.Millisecond))
			if router, ok := sink.(*fragment.Router); ok {
				lower, upperN := router.Counts()
				fmt.Fprintf(a.stdout, "Split at %d: %d lower, %d upper\n", router.Boundary, lower, upperN)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&policy, "policy", "skip", "bad record policy: skip or abort")
	flags.BoolVar(&header, "header", false, "skip the first line of the input")
	flags.IntVar(&splitAt, "split-at", 0, "route titles after this start year to --upper")
	flags.StringVar(&upper, "upper", "", "badger directory or mysql table for the upper fragment")

	return cmd
}

// openSink opens the configured store, or a boundary router over two stores
// when --split-at is set. cleanup closes whatever was opened.
func (a *app) openSink(cmd *cobra.Command, cfg *config.File, splitAt int, upper string) (storage.Sink, func(), error) {
	ctx := cmd.Context()

	lower, err := a.openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if !cmd.Flags().Changed("split-at") {
		return lower, func() { closeStore(a, lower) }, nil
	}

	upperCfg := *cfg
	switch cfg.Storage.Backend {
	case config.BackendBadger:
		if upper == "" {
			upper = filepath.Clean(cfg.Storage.DataDir) + "-upper"
		}
		upperCfg.Storage.DataDir = upper
	case config.BackendMySQL:
		if upper == "" {
			upper = cfg.MySQL.Table + "_upper"
		}
		upperCfg.MySQL.Table = upper
	case config.BackendMemory:
	default:
		lower.Close()
		return nil, nil, errors.New("unsupported backend for --split-at")
	}

	upperStore, err := a.openStore(ctx, &upperCfg)
	if err != nil {
		lower.Close()
		return nil, nil, fmt.Errorf("upper fragment: %w", err)
	}

	router := fragment.NewRouter(splitAt, lower, upperStore)
	return router, func() {
		if err := router.Close(); err != nil {
			a.log.Warn("failed to close fragments", zap.Error(err))
		}
	}, nil
}

func closeStore(a *app, s storage.Store) {
	if err := s.Close(); err != nil {
		a.log.Warn("failed to close store", zap.Error(err))
	}
}

// stdinSource names the command's stdin in load results
type stdinSource struct {
	*tsv.Reader
}

func (stdinSource) Name() string { return "stdin" }
