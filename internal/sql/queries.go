package sql

import "embed"

// Migrations holds the base schema migrations, applied in filename order.
//
//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed queries/open_bill_upsert.sql
var OpenBillUpsert string

//go:embed queries/open_bill_lookup.sql
var OpenBillLookup string

//go:embed queries/open_bill_lock.sql
var OpenBillLock string

//go:embed queries/append_charge.sql
var AppendCharge string

//go:embed queries/bump_bill_total.sql
var BumpBillTotal string

//go:embed queries/list_charge_lines.sql
var ListChargeLines string

//go:embed queries/lock_bill.sql
var LockBill string

//go:embed queries/count_charge_lines.sql
var CountChargeLines string

//go:embed queries/mark_items_paid.sql
var MarkItemsPaid string

//go:embed queries/mark_bill_paid.sql
var MarkBillPaid string

//go:embed queries/outstanding_balance.sql
var OutstandingBalance string

//go:embed queries/insert_treatment.sql
var InsertTreatment string

//go:embed queries/treatment_parties.sql
var TreatmentParties string

//go:embed queries/charge_exists.sql
var ChargeExists string

//go:embed queries/insert_prescription.sql
var InsertPrescription string

//go:embed queries/insert_prescription_item.sql
var InsertPrescriptionItem string

//go:embed queries/link_treatment_prescription.sql
var LinkTreatmentPrescription string

//go:embed queries/insert_lab_test.sql
var InsertLabTest string

//go:embed queries/complete_lab_test.sql
var CompleteLabTest string

//go:embed queries/lab_test_status.sql
var LabTestStatus string

//go:embed queries/insert_appointment.sql
var InsertAppointment string

//go:embed queries/lock_appointment.sql
var LockAppointment string

//go:embed queries/confirm_appointment.sql
var ConfirmAppointment string

//go:embed queries/set_appointment_status.sql
var SetAppointmentStatus string

//go:embed queries/insert_patient.sql
var InsertPatient string

//go:embed queries/insert_physician.sql
var InsertPhysician string

//go:embed queries/appointment_breakdown.sql
var AppointmentBreakdown string

//go:embed queries/revenue_summary.sql
var RevenueSummary string

//go:embed queries/physician_workload.sql
var PhysicianWorkload string
