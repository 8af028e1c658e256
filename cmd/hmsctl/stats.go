package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/hmscore/internal/db"
	"github.com/gyeh/hmscore/internal/exitcode"
	"github.com/gyeh/hmscore/internal/logging"
	"github.com/gyeh/hmscore/internal/normalize"
	"github.com/gyeh/hmscore/internal/report"
)

var statsWorkloadLimit int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print dashboard aggregates",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsWorkloadLimit, "workload-limit", 5, "How many physicians to list by workload")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
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

	stats, err := report.Dashboard(ctx, pool, statsWorkloadLimit)
	if err != nil {
		log.Error().Err(err).Msg("stats query failed")
		os.Exit(exitcode.QueryError)
	}

	fmt.Printf("Patients: %d  Physicians: %d  Appointments: %d  Bills: %d\n",
		stats.Patients, stats.Physicians, stats.Appointments, stats.Bills)
	fmt.Printf("Revenue: %s paid, %s pending\n",
		normalize.CentsToDollars(stats.RevenuePaidCents),
		normalize.CentsToDollars(stats.RevenuePendingCents))
	for status, n := range stats.AppointmentsByStatus {
		fmt.Printf("  %-10s %d\n", status, n)
	}
	if len(stats.Workload) > 0 {
		fmt.Println("Busiest physicians:")
		for _, w := range stats.Workload {
			fmt.Printf("  %-30s %d appointments\n", w.Name, w.Appointments)
		}
	}
	return nil
}
