package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyeh/hmscore/internal/billing"
	"github.com/gyeh/hmscore/internal/db"
	"github.com/gyeh/hmscore/internal/exitcode"
	"github.com/gyeh/hmscore/internal/logging"
	"github.com/gyeh/hmscore/internal/model"
	"github.com/gyeh/hmscore/internal/normalize"
)

var payBillID int64

var payCmd = &cobra.Command{
	Use:   "pay",
	Short: "Process payment for a bill",
	Long:  "Marks the bill paid and stamps every unpaid charge line with the payment timestamp.",
	RunE:  runPay,
}

func init() {
	payCmd.Flags().Int64Var(&payBillID, "bill", 0, "Bill ID to pay (required)")
	_ = payCmd.MarkFlagRequired("bill")
	rootCmd.AddCommand(payCmd)
}

func runPay(cmd *cobra.Command, args []string) error {
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

	svc := billing.New(pool, log, cfg.BillableKinds)
	lines, err := svc.ListChargeLines(ctx, payBillID)
	if err != nil {
		log.Error().Err(err).Msg("list charge lines failed")
		os.Exit(exitcode.QueryError)
	}

	if err := svc.MarkPaid(ctx, payBillID, time.Now().UTC()); err != nil {
		if errors.Is(err, model.ErrInvalidState) || errors.Is(err, model.ErrNotFound) {
			log.Error().Err(err).Msg("payment rejected")
			os.Exit(exitcode.RejectedError)
		}
		log.Error().Err(err).Msg("payment failed")
		os.Exit(exitcode.QueryError)
	}

	var total int64
	for _, l := range lines {
		total += l.AmountCents
	}
	fmt.Printf("Bill %d paid: %d charge lines, %s total\n",
		payBillID, len(lines), normalize.CentsToDollars(total))
	return nil
}
