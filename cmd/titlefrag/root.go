package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/nicktill/titlefrag/pkg/config"
	"github.com/nicktill/titlefrag/pkg/logging"
	"github.com/nicktill/titlefrag/pkg/server"
	"github.com/nicktill/titlefrag/pkg/storage"
)

// app carries state shared by every subcommand once the root has run
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	cfg        *config.File
	log        *zap.Logger
}

// NewRootCommand builds the titlefrag command tree
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}

	rc := &cobra.Command{
		Use:   "titlefrag",
		Short: "Load IMDb title extracts and compute their fragmentation year.",
		Long: `titlefrag normalizes title.basics TSV extracts (tconst, titleType,
primaryTitle, startYear, runtimeMinutes) into a title store, and computes the
weighted median start year over a bounded prefix of a file. That year is the
boundary for splitting titles across two storage nodes.

Configuration is read from --config (YAML), then TITLEFRAG_* environment
variables, then command line flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Flags())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	flags := rc.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	flags.String("backend", "", "storage backend: memory, badger or mysql")
	flags.String("data-dir", "", "badger data directory")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: console or json")

	rc.AddCommand(newLoadCommand(a))
	rc.AddCommand(newFragmentCommand(a))
	rc.AddCommand(newExportCommand(a))
	rc.AddCommand(newServeCommand(a))

	rc.SetIn(stdin)
	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

// setup loads configuration, applies flags that were set explicitly, and
// installs the global logger.
func (a *app) setup(flags *pflag.FlagSet) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	override := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	override("backend", &cfg.Storage.Backend)
	override("data-dir", &cfg.Storage.DataDir)
	override("log-level", &cfg.Logging.Level)
	override("log-format", &cfg.Logging.Format)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)

	a.cfg = cfg
	a.log = logger
	return nil
}

func (a *app) openStore(ctx context.Context, cfg *config.File) (storage.Store, error) {
	return server.InitializeStorage(ctx, cfg, a.log)
}
