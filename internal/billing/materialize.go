package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	embedsql "github.com/gyeh/hmscore/internal/sql"
)

// charge is one pending charge line produced by a clinical event, not
// yet attached to a bill.
type charge struct {
	Kind        string
	EventRef    int64
	Description string
	AmountCents int64
}

// resolveOpenBill returns the id of the patient's open bill, creating
// one lazily when none exists, and holds a row lock on it for the rest
// of the transaction. The insert races through the partial unique index
// uq_bills_open: under concurrent writers exactly one insert succeeds
// and owns its row's lock. A loser locks the winner's row before using
// it; if a concurrent payment closed that bill while the loser waited,
// the locked re-check matches nothing and the loop opens a fresh bill.
// A closed bill can therefore never gain a charge line.
func resolveOpenBill(ctx context.Context, tx pgx.Tx, patientID int64) (int64, error) {
	for {
		var billID int64
		err := tx.QueryRow(ctx, embedsql.OpenBillUpsert, patientID).Scan(&billID)
		if err == nil {
			return billID, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, classify(fmt.Errorf("open bill: %w", err))
		}

		err = tx.QueryRow(ctx, embedsql.OpenBillLock, patientID).Scan(&billID)
		if err == nil {
			return billID, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("lock open bill: %w", err)
		}
	}
}

// materialize converts a clinical event into charge lines on the
// patient's open bill, inside the same transaction as the event write.
// It appends one line per charge and bumps the bill total in the same
// statement batch, which keeps total_cents == sum(items) at every
// commit point. The triggering event row is never touched. Charges of
// non-billable kinds are dropped up front; when nothing remains no bill
// is resolved or created and the returned id is 0.
func (s *Service) materialize(ctx context.Context, tx pgx.Tx, patientID int64, charges []charge) (int64, error) {
	billable := make([]charge, 0, len(charges))
	for _, c := range charges {
		if !s.billable[c.Kind] {
			s.log.Debug().Str("kind", c.Kind).Int64("event", c.EventRef).Msg("kind not billable, skipping charge")
			continue
		}
		billable = append(billable, c)
	}
	if len(billable) == 0 {
		return 0, nil
	}

	billID, err := resolveOpenBill(ctx, tx, patientID)
	if err != nil {
		return 0, err
	}

	for _, c := range billable {
		if _, err := tx.Exec(ctx, embedsql.AppendCharge,
			billID, c.Kind, c.EventRef, c.Description, c.AmountCents); err != nil {
			return 0, classify(fmt.Errorf("append charge: %w", err))
		}
		if _, err := tx.Exec(ctx, embedsql.BumpBillTotal, billID, c.AmountCents); err != nil {
			return 0, fmt.Errorf("bump bill total: %w", err)
		}
	}

	return billID, nil
}

// chargeExists reports whether a charge line for the given event is
// already on some bill.
func chargeExists(ctx context.Context, tx pgx.Tx, kind string, eventRef int64) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, embedsql.ChargeExists, kind, eventRef).Scan(&exists)
	return exists, err
}
