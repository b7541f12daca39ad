package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"booksys/internal/config"
	"booksys/internal/logging"
	"booksys/internal/repository/sqlite"
)

type rootOptions struct {
	configPath string
	dbPath     string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "booksys",
		Short:         "Personal book catalog service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&o.configPath, "config", "", "config file (default: search $BOOKSYS_CONFIG, ./booksys.yaml, XDG, /etc)")
	cmd.PersistentFlags().StringVar(&o.dbPath, "db", "", "SQLite database path (overrides config)")
	cmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "log level (overrides config)")

	cmd.AddCommand(
		newServeCmd(o),
		newMigrateCmd(o),
		newVacuumCmd(o),
		newPruneSessionsCmd(o),
		newExportCmd(o),
		newInitConfigCmd(o),
	)

	return cmd
}

// load resolves the config and builds the logger for a command
func (o *rootOptions) load() (*config.Config, string, *logrus.Logger, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if o.configPath != "" {
		cfg, path, err = config.LoadFromPath(o.configPath)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return nil, path, nil, fmt.Errorf("load config: %w", err)
	}

	o.applyFlags(cfg)

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, path, nil, err
	}
	return cfg, path, logger, nil
}

// applyFlags lets command-line flags win over file and environment
func (o *rootOptions) applyFlags(cfg *config.Config) {
	if o.dbPath != "" {
		cfg.Database.Path = o.dbPath
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
}

func openRepository(cfg *config.Config, logger logrus.FieldLogger) (*sqlite.Repository, error) {
	repo, err := sqlite.New(cfg.Database.Path, sqlite.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}
	return repo, nil
}
