package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/hmscore/internal/model"
	"github.com/gyeh/hmscore/internal/normalize"
	embedsql "github.com/gyeh/hmscore/internal/sql"
)

// Service owns every write to clinical events, bills, and charge lines.
// Each operation is one transaction: the event row, its charge lines,
// and the bill-total bump commit together or not at all.
type Service struct {
	pool     *pgxpool.Pool
	log      zerolog.Logger
	billable map[string]bool
}

// New builds a Service. billableKinds selects which charge kinds
// materialize into bill items; pass model.ChargeKindNames() for all.
func New(pool *pgxpool.Pool, log zerolog.Logger, billableKinds []string) *Service {
	billable := make(map[string]bool, len(billableKinds))
	for _, k := range billableKinds {
		billable[k] = true
	}
	return &Service{pool: pool, log: log, billable: billable}
}

// NewTreatment carries the fields for a treatment record.
type NewTreatment struct {
	PatientID     int64
	PhysicianID   *int64
	AppointmentID *int64
	Description   string
	CostCents     int64
	Notes         string
}

// RecordTreatment inserts the treatment and materializes its charge on
// the patient's open bill, one atomic unit.
func (s *Service) RecordTreatment(ctx context.Context, nt NewTreatment) (treatmentID int64, err error) {
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, embedsql.InsertTreatment,
			nt.PatientID, nt.PhysicianID, nt.AppointmentID,
			nt.Description, nt.CostCents, nt.Notes,
		).Scan(&treatmentID); err != nil {
			return classify(fmt.Errorf("insert treatment: %w", err))
		}

		billID, err := s.materialize(ctx, tx, nt.PatientID, []charge{{
			Kind:        "treatment",
			EventRef:    treatmentID,
			Description: normalize.Description(nt.Description, "Treatment"),
			AmountCents: nt.CostCents,
		}})
		if err != nil {
			return err
		}

		s.log.Info().
			Int64("treatment_id", treatmentID).
			Int64("patient_id", nt.PatientID).
			Int64("bill_id", billID).
			Str("amount", normalize.CentsToDollars(nt.CostCents)).
			Msg("treatment recorded")
		return nil
	})
	if err != nil {
		return 0, err
	}
	return treatmentID, nil
}

// MedicationLine is one costed medication on a prescription.
type MedicationLine struct {
	Name           string
	Note           string
	Dosage         string
	Quantity       int32
	UnitPriceCents int64
}

// NewPrescription carries the fields for a prescription under an
// existing treatment.
type NewPrescription struct {
	TreatmentID int64
	Notes       string
	Items       []MedicationLine
}

// RecordPrescription inserts the prescription with its items, links the
// treatment back to it, and materializes one charge line per costed
// item. Quantity defaults to 1 when unset; the charge amount is
// unit price times quantity, as the original ledger computed it.
func (s *Service) RecordPrescription(ctx context.Context, np NewPrescription) (prescriptionID int64, err error) {
	if len(np.Items) == 0 {
		return 0, fmt.Errorf("%w: prescription has no medication lines", model.ErrInvalidState)
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var patientID int64
		var physicianID *int64
		if err := tx.QueryRow(ctx, embedsql.TreatmentParties, np.TreatmentID).Scan(&patientID, &physicianID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: treatment %d", model.ErrNotFound, np.TreatmentID)
			}
			return fmt.Errorf("treatment lookup: %w", err)
		}

		if err := tx.QueryRow(ctx, embedsql.InsertPrescription,
			np.TreatmentID, patientID, physicianID, np.Notes,
		).Scan(&prescriptionID); err != nil {
			return classify(fmt.Errorf("insert prescription: %w", err))
		}

		charges := make([]charge, 0, len(np.Items))
		for _, item := range np.Items {
			qty := item.Quantity
			if qty <= 0 {
				qty = 1
			}
			var itemID int64
			if err := tx.QueryRow(ctx, embedsql.InsertPrescriptionItem,
				prescriptionID, item.Name, item.Note, item.Dosage, qty, item.UnitPriceCents,
			).Scan(&itemID); err != nil {
				return classify(fmt.Errorf("insert prescription item: %w", err))
			}
			charges = append(charges, charge{
				Kind:        "medication",
				EventRef:    itemID,
				Description: normalize.Description(item.Name, "Medication"),
				AmountCents: item.UnitPriceCents * int64(qty),
			})
		}

		if _, err := tx.Exec(ctx, embedsql.LinkTreatmentPrescription, np.TreatmentID, prescriptionID); err != nil {
			return fmt.Errorf("link treatment: %w", err)
		}

		billID, err := s.materialize(ctx, tx, patientID, charges)
		if err != nil {
			return err
		}

		s.log.Info().
			Int64("prescription_id", prescriptionID).
			Int64("patient_id", patientID).
			Int64("bill_id", billID).
			Int("items", len(np.Items)).
			Msg("prescription recorded")
		return nil
	})
	if err != nil {
		return 0, err
	}
	return prescriptionID, nil
}

// OrderLabTest creates a lab test in the ordered state. Ordering does
// not bill; only the completion edge does.
func (s *Service) OrderLabTest(ctx context.Context, patientID int64, physicianID *int64, testName string, costCents int64) (labTestID int64, err error) {
	err = s.pool.QueryRow(ctx, embedsql.InsertLabTest,
		patientID, physicianID, testName, costCents,
	).Scan(&labTestID)
	if err != nil {
		return 0, classify(fmt.Errorf("insert lab test: %w", err))
	}
	return labTestID, nil
}

// MarkLabTestCompleted transitions the test to completed and bills it,
// in one transaction. The update fires only on the transition edge, so
// re-saving an already-completed test is a no-op rather than a second
// charge. A cancelled test cannot be completed.
func (s *Service) MarkLabTestCompleted(ctx context.Context, labTestID int64, result string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var patientID, costCents int64
		var testName string
		err := tx.QueryRow(ctx, embedsql.CompleteLabTest, labTestID, result).
			Scan(&patientID, &testName, &costCents)
		if errors.Is(err, pgx.ErrNoRows) {
			return s.explainCompletionMiss(ctx, tx, labTestID)
		}
		if err != nil {
			return fmt.Errorf("complete lab test: %w", err)
		}

		// A lab test must never carry two charge lines.
		dup, err := chargeExists(ctx, tx, "lab_test", labTestID)
		if err != nil {
			return fmt.Errorf("charge check: %w", err)
		}
		if dup {
			return fmt.Errorf("%w: lab test %d already billed", model.ErrInvalidState, labTestID)
		}

		billID, err := s.materialize(ctx, tx, patientID, []charge{{
			Kind:        "lab_test",
			EventRef:    labTestID,
			Description: normalize.Description(testName, "Lab test"),
			AmountCents: costCents,
		}})
		if err != nil {
			return err
		}

		s.log.Info().
			Int64("lab_test_id", labTestID).
			Int64("patient_id", patientID).
			Int64("bill_id", billID).
			Msg("lab test completed and billed")
		return nil
	})
}

// explainCompletionMiss distinguishes the three ways the completion
// update can match no rows: unknown id, already completed (no-op), or
// cancelled (rejected).
func (s *Service) explainCompletionMiss(ctx context.Context, tx pgx.Tx, labTestID int64) error {
	var status string
	err := tx.QueryRow(ctx, embedsql.LabTestStatus, labTestID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: lab test %d", model.ErrNotFound, labTestID)
	}
	if err != nil {
		return fmt.Errorf("lab test status: %w", err)
	}
	switch model.LabTestStatus(status) {
	case model.LabCompleted:
		s.log.Debug().Int64("lab_test_id", labTestID).Msg("lab test already completed, re-save ignored")
		return nil
	case model.LabCancelled:
		return fmt.Errorf("%w: lab test %d is cancelled", model.ErrInvalidState, labTestID)
	}
	return fmt.Errorf("%w: lab test %d in unexpected status %s", model.ErrInvalidState, labTestID, status)
}
