// Package cli wires the sessionflow command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"sessionflow/internal/blob"
	"sessionflow/internal/config"
	"sessionflow/internal/core"
	"sessionflow/internal/logger"
)

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries the global flags and the resources built from them.
type app struct {
	configFile string
	envFile    string
	verbose    bool
	logFormat  string

	cfg *config.Config
	log zerolog.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{log: zerolog.Nop()}
	cmd := &cobra.Command{
		Use:           "sessionflow",
		Short:         "Load lab, subject and session records into a relational pipeline",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configFile, "config", config.DefaultConfigFile, "DataJoint style JSON config file")
	pf.StringVar(&a.envFile, "env-file", config.DefaultEnvFile, "dotenv file loaded before the environment")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging and one line per ingested table")
	pf.StringVar(&a.logFormat, "log-format", logger.FormatConsole, "log format: console|json")

	cmd.AddCommand(
		ingestCmd(a),
		schemaCmd(a),
		sessionCmd(a),
		dataCmd(a),
		teardownCmd(a),
	)
	return cmd
}

func (a *app) load(stderr io.Writer) error {
	cfg, err := config.Load(config.Options{ConfigFile: a.configFile, EnvFile: a.envFile})
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Options{Level: cfg.LogLevel, Format: a.logFormat, Verbose: a.verbose, Out: stderr})
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log
	return nil
}

// pipeline opens the configured backend. The caller closes it.
func (a *app) pipeline(ctx context.Context, activate bool) (*core.Pipeline, error) {
	p, err := core.OpenPipeline(ctx, a.cfg.StorageOptions(), core.WithLogger(a.log))
	if err != nil {
		return nil, err
	}
	if activate {
		if err := p.Activate(ctx); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("activate schema: %w", err)
		}
	}
	return p, nil
}

func (a *app) store(ctx context.Context) (blob.Store, error) {
	return blob.Open(ctx, a.cfg.BlobOptions())
}
