package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/hmscore/internal/db"
	"github.com/gyeh/hmscore/internal/exitcode"
	"github.com/gyeh/hmscore/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the database schema up to the current shape",
	Long:  "Applies base migrations and additive column guards. Idempotent; safe to run on every start.",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	pool, err := db.NewPool(ctx, cfg.DSN, cfg.StatementTimeout)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool, log); err != nil {
		log.Error().Err(err).Msg("migration failed")
		os.Exit(exitcode.MigrateError)
	}

	log.Info().Msg("schema is up to date")
	return nil
}
