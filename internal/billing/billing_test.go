package billing_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gyeh/hmscore/internal/billing"
	"github.com/gyeh/hmscore/internal/model"
	"github.com/gyeh/hmscore/internal/registry"
)

func TestRecordTreatment_OpensBillLazily(t *testing.T) {
	pool, svc, reg := setupServices(t)
	ctx := context.Background()
	patientID := insertPatient(t, reg, "Ana", "Silva")

	tID, err := svc.RecordTreatment(ctx, billing.NewTreatment{
		PatientID:   patientID,
		Description: "Physical therapy",
		CostCents:   15000,
	})
	if err != nil {
		t.Fatalf("record treatment: %v", err)
	}

	bill, err := svc.GetOpenBill(ctx, patientID)
	if err != nil {
		t.Fatalf("get open bill: %v", err)
	}
	if bill == nil {
		t.Fatal("expected an open bill after first treatment")
	}
	if bill.TotalCents != 15000 {
		t.Errorf("bill total = %d, want 15000", bill.TotalCents)
	}

	lines, err := svc.ListChargeLines(ctx, bill.ID)
	if err != nil {
		t.Fatalf("list charge lines: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 charge line, got %d", len(lines))
	}
	if lines[0].Kind != "treatment" || lines[0].EventRef != tID {
		t.Errorf("line = %+v, want treatment ref %d", lines[0], tID)
	}
	if lines[0].Description != "Physical therapy" {
		t.Errorf("description = %q", lines[0].Description)
	}

	// Second billable event lands on the same open bill.
	if _, err := svc.RecordPrescription(ctx, billing.NewPrescription{
		TreatmentID: tID,
		Items: []billing.MedicationLine{
			{Name: "Ibuprofen", Dosage: "200mg", Quantity: 1, UnitPriceCents: 3000},
		},
	}); err != nil {
		t.Fatalf("record prescription: %v", err)
	}

	bill2, err := svc.GetOpenBill(ctx, patientID)
	if err != nil {
		t.Fatalf("get open bill: %v", err)
	}
	if bill2.ID != bill.ID {
		t.Errorf("prescription opened a second bill: %d vs %d", bill2.ID, bill.ID)
	}
	if bill2.TotalCents != 18000 {
		t.Errorf("bill total = %d, want 18000", bill2.TotalCents)
	}
	lines, err = svc.ListChargeLines(ctx, bill.ID)
	if err != nil {
		t.Fatalf("list charge lines: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 charge lines, got %d", len(lines))
	}
	if lines[1].Kind != "medication" || lines[1].AmountCents != 3000 {
		t.Errorf("second line = %+v", lines[1])
	}

	assertLedgerConsistent(t, pool)
}

func TestRecordTreatment_UnknownPatient(t *testing.T) {
	_, svc, _ := setupServices(t)

	_, err := svc.RecordTreatment(context.Background(), billing.NewTreatment{
		PatientID: 999999, Description: "Ghost", CostCents: 100,
	})
	if !errors.Is(err, model.ErrConstraint) {
		t.Fatalf("expected ErrConstraint, got %v", err)
	}
}

func TestRecordPrescription_QuantityMultiplies(t *testing.T) {
	pool, svc, reg := setupServices(t)
	ctx := context.Background()
	patientID := insertPatient(t, reg, "Bo", "Lund")

	tID, err := svc.RecordTreatment(ctx, billing.NewTreatment{
		PatientID: patientID, Description: "Consult", CostCents: 0,
	})
	if err != nil {
		t.Fatalf("record treatment: %v", err)
	}

	if _, err := svc.RecordPrescription(ctx, billing.NewPrescription{
		TreatmentID: tID,
		Items: []billing.MedicationLine{
			{Name: "Amoxicillin", Quantity: 3, UnitPriceCents: 1250},
			{Name: "Saline", Quantity: 0, UnitPriceCents: 500}, // defaults to 1
		},
	}); err != nil {
		t.Fatalf("record prescription: %v", err)
	}

	bill, err := svc.GetOpenBill(ctx, patientID)
	if err != nil || bill == nil {
		t.Fatalf("get open bill: %v", err)
	}
	if bill.TotalCents != 3*1250+500 {
		t.Errorf("bill total = %d, want %d", bill.TotalCents, 3*1250+500)
	}
	assertLedgerConsistent(t, pool)
}

func TestRecordPrescription_Rejections(t *testing.T) {
	_, svc, _ := setupServices(t)
	ctx := context.Background()

	_, err := svc.RecordPrescription(ctx, billing.NewPrescription{TreatmentID: 1})
	if !errors.Is(err, model.ErrInvalidState) {
		t.Errorf("no items: expected ErrInvalidState, got %v", err)
	}

	_, err = svc.RecordPrescription(ctx, billing.NewPrescription{
		TreatmentID: 424242,
		Items:       []billing.MedicationLine{{Name: "X", UnitPriceCents: 1}},
	})
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("unknown treatment: expected ErrNotFound, got %v", err)
	}
}

func TestMarkLabTestCompleted_EdgeTrigger(t *testing.T) {
	pool, svc, reg := setupServices(t)
	ctx := context.Background()
	patientID := insertPatient(t, reg, "Kim", "Osei")

	labID, err := svc.OrderLabTest(ctx, patientID, nil, "CBC panel", 4500)
	if err != nil {
		t.Fatalf("order lab test: %v", err)
	}

	// Ordering alone must not bill.
	if bill, _ := svc.GetOpenBill(ctx, patientID); bill != nil {
		t.Fatal("ordering a lab test should not open a bill")
	}

	if err := svc.MarkLabTestCompleted(ctx, labID, "normal"); err != nil {
		t.Fatalf("complete lab test: %v", err)
	}

	// Second completion is a re-save, not a second charge.
	if err := svc.MarkLabTestCompleted(ctx, labID, "normal"); err != nil {
		t.Fatalf("re-save should be a no-op: %v", err)
	}

	bill, err := svc.GetOpenBill(ctx, patientID)
	if err != nil || bill == nil {
		t.Fatalf("get open bill: %v", err)
	}
	lines, err := svc.ListChargeLines(ctx, bill.ID)
	if err != nil {
		t.Fatalf("list charge lines: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected exactly 1 charge line after double completion, got %d", len(lines))
	}
	if lines[0].Kind != "lab_test" || lines[0].AmountCents != 4500 {
		t.Errorf("line = %+v", lines[0])
	}
	if bill.TotalCents != 4500 {
		t.Errorf("bill total = %d, want 4500", bill.TotalCents)
	}
	assertLedgerConsistent(t, pool)
}

func TestMarkLabTestCompleted_Rejections(t *testing.T) {
	pool, svc, reg := setupServices(t)
	ctx := context.Background()
	patientID := insertPatient(t, reg, "Lee", "Park")

	if err := svc.MarkLabTestCompleted(ctx, 999999, ""); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("unknown lab test: expected ErrNotFound, got %v", err)
	}

	labID, err := svc.OrderLabTest(ctx, patientID, nil, "Lipid panel", 2000)
	if err != nil {
		t.Fatalf("order lab test: %v", err)
	}
	if _, err := pool.Exec(ctx, "UPDATE lab_tests SET status = 'cancelled' WHERE id = $1", labID); err != nil {
		t.Fatalf("cancel lab test: %v", err)
	}
	if err := svc.MarkLabTestCompleted(ctx, labID, ""); !errors.Is(err, model.ErrInvalidState) {
		t.Errorf("cancelled lab test: expected ErrInvalidState, got %v", err)
	}
}

func TestMarkPaid_Lifecycle(t *testing.T) {
	pool, svc, reg := setupServices(t)
	ctx := context.Background()
	patientID := insertPatient(t, reg, "Noa", "Cohen")

	tID, err := svc.RecordTreatment(ctx, billing.NewTreatment{
		PatientID: patientID, Description: "Treatment", CostCents: 15000,
	})
	if err != nil {
		t.Fatalf("record treatment: %v", err)
	}
	if _, err := svc.RecordPrescription(ctx, billing.NewPrescription{
		TreatmentID: tID,
		Items:       []billing.MedicationLine{{Name: "Med", Quantity: 1, UnitPriceCents: 3000}},
	}); err != nil {
		t.Fatalf("record prescription: %v", err)
	}

	bill, err := svc.GetOpenBill(ctx, patientID)
	if err != nil || bill == nil {
		t.Fatalf("get open bill: %v", err)
	}

	paidAt := time.Now().UTC().Truncate(time.Microsecond)
	if err := svc.MarkPaid(ctx, bill.ID, paidAt); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	// Bill closed, every line stamped with the payment timestamp.
	if open, _ := svc.GetOpenBill(ctx, patientID); open != nil {
		t.Error("bill should be closed after payment")
	}
	lines, err := svc.ListChargeLines(ctx, bill.ID)
	if err != nil {
		t.Fatalf("list charge lines: %v", err)
	}
	for _, l := range lines {
		if !l.Paid {
			t.Errorf("line %d should be paid", l.ID)
		}
		if l.PaidAt == nil || !l.PaidAt.Equal(paidAt) {
			t.Errorf("line %d paid_at = %v, want %v", l.ID, l.PaidAt, paidAt)
		}
	}

	var paymentRef *string
	if err := pool.QueryRow(ctx, "SELECT payment_ref FROM bills WHERE id = $1", bill.ID).Scan(&paymentRef); err != nil {
		t.Fatalf("payment ref: %v", err)
	}
	if paymentRef == nil || *paymentRef == "" {
		t.Error("paid bill should carry a payment reference")
	}

	// The next billable event opens a fresh bill starting from zero.
	if _, err := svc.RecordTreatment(ctx, billing.NewTreatment{
		PatientID: patientID, Description: "Follow-up", CostCents: 2500,
	}); err != nil {
		t.Fatalf("follow-up treatment: %v", err)
	}
	next, err := svc.GetOpenBill(ctx, patientID)
	if err != nil || next == nil {
		t.Fatalf("get next bill: %v", err)
	}
	if next.ID == bill.ID {
		t.Error("payment should have closed the previous bill")
	}
	if next.TotalCents != 2500 {
		t.Errorf("next bill total = %d, want 2500", next.TotalCents)
	}
	assertLedgerConsistent(t, pool)
}

func TestMarkPaid_Twice(t *testing.T) {
	_, svc, reg := setupServices(t)
	ctx := context.Background()
	patientID := insertPatient(t, reg, "Ira", "Moss")

	if _, err := svc.RecordTreatment(ctx, billing.NewTreatment{
		PatientID: patientID, Description: "Treatment", CostCents: 18000,
	}); err != nil {
		t.Fatalf("record treatment: %v", err)
	}
	bill, err := svc.GetOpenBill(ctx, patientID)
	if err != nil || bill == nil {
		t.Fatalf("get open bill: %v", err)
	}

	if err := svc.MarkPaid(ctx, bill.ID, time.Now().UTC()); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	err = svc.MarkPaid(ctx, bill.ID, time.Now().UTC())
	if !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("second payment: expected ErrInvalidState, got %v", err)
	}
}

func TestMarkPaid_EmptyBillRejected(t *testing.T) {
	pool, svc, reg := setupServices(t)
	ctx := context.Background()
	patientID := insertPatient(t, reg, "Ada", "Wong")

	// Charge lines are only ever created by the materializer, so an
	// empty bill has to be planted directly.
	var billID int64
	if err := pool.QueryRow(ctx,
		"INSERT INTO bills (patient_id) VALUES ($1) RETURNING id", patientID).Scan(&billID); err != nil {
		t.Fatalf("plant empty bill: %v", err)
	}

	err := svc.MarkPaid(ctx, billID, time.Now().UTC())
	if !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("empty bill: expected ErrInvalidState, got %v", err)
	}
}

func TestMarkPaid_UnknownBill(t *testing.T) {
	_, svc, _ := setupServices(t)
	err := svc.MarkPaid(context.Background(), 987654, time.Now().UTC())
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOutstandingBalance(t *testing.T) {
	_, svc, reg := setupServices(t)
	ctx := context.Background()
	patientID := insertPatient(t, reg, "Uma", "Dietz")

	if cents, err := svc.OutstandingBalance(ctx, patientID); err != nil || cents != 0 {
		t.Fatalf("fresh patient balance = %d, %v; want 0", cents, err)
	}

	if _, err := svc.RecordTreatment(ctx, billing.NewTreatment{
		PatientID: patientID, Description: "Treatment", CostCents: 15000,
	}); err != nil {
		t.Fatalf("record treatment: %v", err)
	}
	if cents, err := svc.OutstandingBalance(ctx, patientID); err != nil || cents != 15000 {
		t.Fatalf("balance = %d, %v; want 15000", cents, err)
	}

	bill, _ := svc.GetOpenBill(ctx, patientID)
	if err := svc.MarkPaid(ctx, bill.ID, time.Now().UTC()); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if cents, err := svc.OutstandingBalance(ctx, patientID); err != nil || cents != 0 {
		t.Fatalf("post-payment balance = %d, %v; want 0", cents, err)
	}
}

// TestRecordTreatment_DuringPayment holds a payment transaction's bill
// lock open across a concurrent treatment. The charge must land on a
// fresh bill, never on the bill being closed.
func TestRecordTreatment_DuringPayment(t *testing.T) {
	pool, svc, reg := setupServices(t)
	ctx := context.Background()
	patientID := insertPatient(t, reg, "Gus", "Brandt")

	if _, err := svc.RecordTreatment(ctx, billing.NewTreatment{
		PatientID: patientID, Description: "Surgery", CostCents: 15000,
	}); err != nil {
		t.Fatalf("record treatment: %v", err)
	}
	bill, err := svc.GetOpenBill(ctx, patientID)
	if err != nil || bill == nil {
		t.Fatalf("get open bill: %v", err)
	}

	// Take the same row lock MarkPaid takes, then close the bill while
	// a concurrent treatment waits on it.
	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback(ctx)
	var lockedPatient int64
	if err := tx.QueryRow(ctx,
		"SELECT patient_id FROM bills WHERE id = $1 FOR UPDATE", bill.ID).Scan(&lockedPatient); err != nil {
		t.Fatalf("lock bill: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := svc.RecordTreatment(ctx, billing.NewTreatment{
			PatientID: patientID, Description: "Follow-up", CostCents: 2500,
		})
		done <- err
	}()

	// Let the concurrent treatment reach the lock wait before the
	// payment commits.
	time.Sleep(200 * time.Millisecond)
	paidAt := time.Now().UTC()
	if _, err := tx.Exec(ctx,
		"UPDATE bill_items SET paid = TRUE, paid_at = $2 WHERE bill_id = $1 AND NOT paid", bill.ID, paidAt); err != nil {
		t.Fatalf("stamp lines: %v", err)
	}
	if _, err := tx.Exec(ctx,
		"UPDATE bills SET paid = TRUE, paid_at = $2, payment_ref = 'test-ref' WHERE id = $1", bill.ID, paidAt); err != nil {
		t.Fatalf("close bill: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit payment: %v", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("concurrent treatment: %v", err)
	}

	// The closed bill is untouched: one line, still fully paid.
	lines, err := svc.ListChargeLines(ctx, bill.ID)
	if err != nil {
		t.Fatalf("list paid bill lines: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("paid bill has %d lines, want 1", len(lines))
	}
	for _, l := range lines {
		if !l.Paid {
			t.Errorf("line %d on the paid bill is unpaid", l.ID)
		}
	}

	next, err := svc.GetOpenBill(ctx, patientID)
	if err != nil || next == nil {
		t.Fatalf("get next bill: %v", err)
	}
	if next.ID == bill.ID {
		t.Fatal("charge landed on the closed bill")
	}
	if next.TotalCents != 2500 {
		t.Errorf("next bill total = %d, want 2500", next.TotalCents)
	}
	assertLedgerConsistent(t, pool)
}

// TestRecordTreatment_NonBillableKindOpensNoBill configures a billable
// set that excludes treatments: the event row is written but no charge
// materializes and, in particular, no empty bill appears.
func TestRecordTreatment_NonBillableKindOpensNoBill(t *testing.T) {
	pool := setupDB(t)
	log := setupLog()
	reg := registry.New(pool, log)
	svc := billing.New(pool, log, []string{"lab_test"})
	ctx := context.Background()
	patientID := insertPatient(t, reg, "Teo", "Marsh")

	tID, err := svc.RecordTreatment(ctx, billing.NewTreatment{
		PatientID: patientID, Description: "Consult", CostCents: 9900,
	})
	if err != nil {
		t.Fatalf("record treatment: %v", err)
	}
	var n int64
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM treatments WHERE id = $1", tID).Scan(&n); err != nil || n != 1 {
		t.Fatalf("treatment row count = %d, %v; want 1", n, err)
	}

	if bill, err := svc.GetOpenBill(ctx, patientID); err != nil {
		t.Fatalf("get open bill: %v", err)
	} else if bill != nil {
		t.Fatalf("filtered charge opened bill %d", bill.ID)
	}
	if n := countOpenBills(t, pool, patientID); n != 0 {
		t.Errorf("open bills = %d, want 0", n)
	}
}

// TestConcurrentEvents_SingleOpenBill drives N concurrent billable
// events for one patient with no open bill and asserts the partial
// unique index funnels every charge onto a single bill.
func TestConcurrentEvents_SingleOpenBill(t *testing.T) {
	pool, svc, reg := setupServices(t)
	ctx := context.Background()
	patientID := insertPatient(t, reg, "Rio", "Tanaka")

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordTreatment(ctx, billing.NewTreatment{
				PatientID: patientID, Description: "Concurrent", CostCents: 1000,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent treatment: %v", err)
		}
	}

	if n := countOpenBills(t, pool, patientID); n != 1 {
		t.Fatalf("expected exactly 1 open bill, got %d", n)
	}
	bill, err := svc.GetOpenBill(ctx, patientID)
	if err != nil || bill == nil {
		t.Fatalf("get open bill: %v", err)
	}
	if bill.TotalCents != writers*1000 {
		t.Errorf("bill total = %d, want %d", bill.TotalCents, writers*1000)
	}
	lines, err := svc.ListChargeLines(ctx, bill.ID)
	if err != nil {
		t.Fatalf("list charge lines: %v", err)
	}
	if len(lines) != writers {
		t.Errorf("expected %d charge lines, got %d", writers, len(lines))
	}
	assertLedgerConsistent(t, pool)
}
