package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"booksys/internal/codec"
	"booksys/internal/config"
	"booksys/internal/repository/sqlite"
	"booksys/internal/service"
)

func newMigrateCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, logger, err := o.load()
			if err != nil {
				return err
			}

			repo, err := sqlite.Open(cfg.Database.Path, sqlite.WithLogger(logger))
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.MigrateUp(); err != nil {
				return err
			}
			version, dirty, err := repo.MigrateVersion()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", version, dirty)
			return nil
		},
	}
}

func newVacuumCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "vacuum",
		Short: "Compact the database file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, logger, err := o.load()
			if err != nil {
				return err
			}

			repo, err := openRepository(cfg, logger)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.Vacuum(cmd.Context()); err != nil {
				return err
			}
			logger.WithField("path", cfg.Database.Path).Info("database vacuumed")
			return nil
		},
	}
}

func newPruneSessionsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prune-sessions",
		Short: "Delete expired login sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, logger, err := o.load()
			if err != nil {
				return err
			}

			repo, err := openRepository(cfg, logger)
			if err != nil {
				return err
			}
			defer repo.Close()

			// pruning never hashes, so no hasher is needed
			accounts := service.NewAccountService(repo, repo, nil, nil, service.WithAccountLogger(logger))
			n, err := accounts.PruneExpiredSessions(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d expired sessions\n", n)
			return nil
		},
	}
}

func newExportCmd(o *rootOptions) *cobra.Command {
	var (
		username string
		format   string
		output   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a user's catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, logger, err := o.load()
			if err != nil {
				return err
			}

			c, err := codec.ForFormat(format)
			if err != nil {
				return err
			}

			repo, err := openRepository(cfg, logger)
			if err != nil {
				return err
			}
			defer repo.Close()

			user, err := repo.GetUserByUsername(cmd.Context(), username)
			if err != nil {
				return err
			}
			if user == nil {
				return fmt.Errorf("user %q not found", username)
			}

			books := service.NewBookService(repo, nil, service.BookServiceConfig{}, logger)

			var buf bytes.Buffer
			if err := books.Export(cmd.Context(), user.ID, c, &buf); err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err := cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if err := atomic.WriteFile(output, &buf); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			logger.WithField("path", output).Info("catalog exported")
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "user", "u", "", "username whose books to export")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format (json or yaml)")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	cmd.MarkFlagRequired("user")

	return cmd
}

func newInitConfigCmd(o *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a config file with default settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultConfigPath()
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			cfg := config.DefaultConfig()
			o.applyFlags(cfg)
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n%s\n", path, cfg.Summary())
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
