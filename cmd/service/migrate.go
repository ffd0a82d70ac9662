package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/sqlstore"
	"github.com/jsamuelsen/quote-keeper/internal/platform/config"
)

func newMigrateCommand(profile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQL schema",
	}

	run := func(fn func(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*profile)
			if err != nil {
				return err
			}

			if cfg.Database.Driver == "" || cfg.Database.DSN == "" {
				return errors.New("database.driver and database.dsn must be set")
			}

			newLogger(cfg)

			return fn(cmd.Context(), cmd, cfg)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: run(func(ctx context.Context, _ *cobra.Command, cfg *config.Config) error {
				return withDatabase(cfg, func(db *sqlx.DB) error {
					return sqlstore.Migrate(ctx, db, cfg.Database.Driver)
				})
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: run(func(ctx context.Context, _ *cobra.Command, cfg *config.Config) error {
				return withDatabase(cfg, func(db *sqlx.DB) error {
					return sqlstore.Rollback(ctx, db, cfg.Database.Driver)
				})
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print applied and pending migrations",
			RunE: run(func(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
				return withDatabase(cfg, func(db *sqlx.DB) error {
					return sqlstore.WriteStatus(ctx, cmd.OutOrStdout(), db, cfg.Database.Driver)
				})
			}),
		},
	)

	return cmd
}

func withDatabase(cfg *config.Config, fn func(db *sqlx.DB) error) error {
	db, err := sqlstore.Open(cfg.Database.Driver, cfg.Database.DSN, sqlstore.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	return fn(db)
}
