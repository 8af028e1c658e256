package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyeh/hmscore/internal/billing"
	"github.com/gyeh/hmscore/internal/db"
	"github.com/gyeh/hmscore/internal/exitcode"
	"github.com/gyeh/hmscore/internal/logging"
	"github.com/gyeh/hmscore/internal/model"
	"github.com/gyeh/hmscore/internal/normalize"
	"github.com/gyeh/hmscore/internal/registry"
	"github.com/gyeh/hmscore/internal/sched"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load a small demo dataset",
	Long:  "Creates a physician, a patient, a confirmed appointment, and a billed treatment. For local experimentation only.",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
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

	reg := registry.New(pool, log)
	appts := sched.New(pool, log)
	bills := billing.New(pool, log, cfg.BillableKinds)

	physID, err := reg.CreatePhysician(ctx, registry.NewPhysician{
		FirstName: "Ada", LastName: "Okoye", Specialization: "Internal Medicine",
		Department: "General", Availability: "Mon-Fri",
	})
	if err != nil {
		log.Error().Err(err).Msg("seed physician failed")
		os.Exit(exitcode.QueryError)
	}

	patID, err := reg.CreatePatient(ctx, registry.NewPatient{
		FirstName: "Sam", LastName: "Rivera", Phone: "555-0140", Address: "12 Elm St",
	})
	if err != nil {
		log.Error().Err(err).Msg("seed patient failed")
		os.Exit(exitcode.QueryError)
	}

	apptID, err := appts.Create(ctx, patID, nil, time.Now().Add(24*time.Hour), "Routine check-up")
	if err != nil {
		log.Error().Err(err).Msg("seed appointment failed")
		os.Exit(exitcode.QueryError)
	}
	if err := appts.AssignAndConfirm(ctx, apptID, physID, model.RoleAdmin); err != nil {
		log.Error().Err(err).Msg("seed confirm failed")
		os.Exit(exitcode.QueryError)
	}

	if _, err := bills.RecordTreatment(ctx, billing.NewTreatment{
		PatientID:     patID,
		PhysicianID:   &physID,
		AppointmentID: &apptID,
		Description:   "Initial consultation",
		CostCents:     normalize.DollarsToCents(150.00),
	}); err != nil {
		log.Error().Err(err).Msg("seed treatment failed")
		os.Exit(exitcode.QueryError)
	}

	log.Info().
		Int64("patient_id", patID).
		Int64("physician_id", physID).
		Int64("appointment_id", apptID).
		Msg("demo data seeded")
	return nil
}
