package model

import "time"

// Patient is the identity every clinical and billing row hangs off.
type Patient struct {
	ID        int64
	FirstName string
	LastName  string
	DOB       *time.Time
	Phone     string
	Address   string
	// PhysicianID is the patient's primary physician, if one is assigned.
	PhysicianID *int64
	Department  string
	CreatedAt   time.Time
}

// Physician is a credentialed clinician who can be assigned to
// appointments and treatments.
type Physician struct {
	ID             int64
	FirstName      string
	LastName       string
	Specialization string
	Contact        string
	Department     string
	Availability   string
	CreatedAt      time.Time
}

// Appointment moves through booked → confirmed → (completed|cancelled).
// PhysicianID stays nil until an administrative assignment confirms it.
type Appointment struct {
	ID          int64
	PatientID   int64
	PhysicianID *int64
	ScheduledAt time.Time
	Status      AppointmentStatus
	Notes       string
	FeeCents    int64
}

// Treatment is a billable clinical event recorded by a physician.
// PrescriptionID back-links a prescription issued from this treatment.
type Treatment struct {
	ID             int64
	PatientID      int64
	PhysicianID    *int64
	AppointmentID  *int64
	Description    string
	StartedAt      time.Time
	EndedAt        *time.Time
	CostCents      int64
	Notes          string
	PrescriptionID *int64
}

// Prescription groups costed medication items under a treatment.
type Prescription struct {
	ID          int64
	TreatmentID int64
	PatientID   int64
	PhysicianID *int64
	CreatedAt   time.Time
	Notes       string
}

// PrescriptionItem is one costed medication line; each item yields
// exactly one charge line on the patient's open bill.
type PrescriptionItem struct {
	ID             int64
	PrescriptionID int64
	MedicationName string
	MedicationNote string
	Dosage         string
	Quantity       int32
	UnitPriceCents int64
}

// LabTest bills on the edge transition to "completed", never on re-save.
type LabTest struct {
	ID          int64
	PatientID   int64
	PhysicianID *int64
	TestName    string
	RequestedAt time.Time
	PerformedAt *time.Time
	Result      string
	Status      LabTestStatus
	CostCents   int64
}

// Bill is the patient's billing timeline unit. At most one bill with
// Paid=false exists per patient at any time; once paid it is immutable.
type Bill struct {
	ID         int64
	PatientID  int64
	TotalCents int64
	Paid       bool
	CreatedAt  time.Time
	PaidAt     *time.Time
	PaymentRef *string
}

// ChargeLine is a single monetary entry on a bill, caused by exactly
// one clinical event. Lines are never created by a user-facing write.
type ChargeLine struct {
	ID          int64
	BillID      int64
	Kind        string // one of AllChargeKinds names
	EventRef    int64
	Description string
	AmountCents int64
	Paid        bool
	PaidAt      *time.Time
	CreatedAt   time.Time
}
