package model

// DashboardStats captures the aggregate numbers shown on the admin
// dashboard: entity counts, appointment breakdown, and revenue split.
type DashboardStats struct {
	Patients     int64
	Physicians   int64
	Appointments int64
	Bills        int64

	AppointmentsByStatus map[AppointmentStatus]int64

	RevenuePaidCents    int64
	RevenuePendingCents int64

	// Workload lists physicians by appointment count, busiest first.
	Workload []PhysicianWorkload
}

// PhysicianWorkload is the appointment count for one physician.
type PhysicianWorkload struct {
	PhysicianID  int64
	Name         string
	Appointments int64
}
