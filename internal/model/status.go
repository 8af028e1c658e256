package model

// AppointmentStatus is one of the four values enforced by the
// appointments.status check constraint.
type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "booked"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// appointmentEdges declares every legal transition. Anything not listed
// fails with ErrInvalidTransition; completed and cancelled are terminal.
var appointmentEdges = map[AppointmentStatus][]AppointmentStatus{
	StatusBooked:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether from → to is a legal appointment edge.
func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range appointmentEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidAppointmentStatus reports whether s is one of the four named values.
func ValidAppointmentStatus(s AppointmentStatus) bool {
	switch s {
	case StatusBooked, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// LabTestStatus tracks a lab test from order to result.
type LabTestStatus string

const (
	LabOrdered    LabTestStatus = "ordered"
	LabInProgress LabTestStatus = "in_progress"
	LabCompleted  LabTestStatus = "completed"
	LabCancelled  LabTestStatus = "cancelled"
)

// Role is the caller capability threaded explicitly into core operations
// that need authorization, replacing any session mechanism.
type Role string

const (
	RoleAdmin     Role = "admin"
	RolePatient   Role = "patient"
	RolePhysician Role = "physician"
)
