package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gyeh/hmscore/internal/model"
	embedsql "github.com/gyeh/hmscore/internal/sql"
)

// GetOpenBill returns the patient's open bill, or nil when the patient
// has none.
func (s *Service) GetOpenBill(ctx context.Context, patientID int64) (*model.Bill, error) {
	var b model.Bill
	err := s.pool.QueryRow(ctx, embedsql.OpenBillLookup, patientID).Scan(
		&b.ID, &b.PatientID, &b.TotalCents, &b.Paid, &b.CreatedAt, &b.PaidAt, &b.PaymentRef)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open bill lookup: %w", err)
	}
	return &b, nil
}

// ListChargeLines returns the bill's charge lines in insertion order.
func (s *Service) ListChargeLines(ctx context.Context, billID int64) ([]model.ChargeLine, error) {
	rows, err := s.pool.Query(ctx, embedsql.ListChargeLines, billID)
	if err != nil {
		return nil, fmt.Errorf("list charge lines: %w", err)
	}
	defer rows.Close()

	var lines []model.ChargeLine
	for rows.Next() {
		var l model.ChargeLine
		if err := rows.Scan(&l.ID, &l.BillID, &l.Kind, &l.EventRef,
			&l.Description, &l.AmountCents, &l.Paid, &l.PaidAt, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan charge line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// MarkPaid closes out the bill: every unpaid charge line is stamped with
// the payment timestamp and the bill becomes immutable. Rejects bills
// that are already paid or have no charge lines. The next billable event
// for the patient opens a fresh bill lazily.
func (s *Service) MarkPaid(ctx context.Context, billID int64, paidAt time.Time) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var patientID, totalCents int64
		var paid bool
		err := tx.QueryRow(ctx, embedsql.LockBill, billID).Scan(&patientID, &totalCents, &paid)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: bill %d", model.ErrNotFound, billID)
		}
		if err != nil {
			return fmt.Errorf("lock bill: %w", err)
		}
		if paid {
			return fmt.Errorf("%w: bill %d already paid", model.ErrInvalidState, billID)
		}

		var lineCount int64
		if err := tx.QueryRow(ctx, embedsql.CountChargeLines, billID).Scan(&lineCount); err != nil {
			return fmt.Errorf("count charge lines: %w", err)
		}
		if lineCount == 0 {
			return fmt.Errorf("%w: bill %d has no charge lines", model.ErrInvalidState, billID)
		}

		if _, err := tx.Exec(ctx, embedsql.MarkItemsPaid, billID, paidAt); err != nil {
			return fmt.Errorf("mark items paid: %w", err)
		}

		paymentRef := uuid.NewString()
		if _, err := tx.Exec(ctx, embedsql.MarkBillPaid, billID, paidAt, paymentRef); err != nil {
			return fmt.Errorf("mark bill paid: %w", err)
		}

		s.log.Info().
			Int64("bill_id", billID).
			Int64("patient_id", patientID).
			Int64("lines", lineCount).
			Str("payment_ref", paymentRef).
			Msg("bill paid")
		return nil
	})
}

// OutstandingBalance sums unpaid charge lines across all of the
// patient's bills. A paid bill has none by definition, so in practice
// this equals the open bill's total, but summing keeps the number right
// if partial payments ever appear.
func (s *Service) OutstandingBalance(ctx context.Context, patientID int64) (int64, error) {
	var cents int64
	if err := s.pool.QueryRow(ctx, embedsql.OutstandingBalance, patientID).Scan(&cents); err != nil {
		return 0, fmt.Errorf("outstanding balance: %w", err)
	}
	return cents, nil
}
