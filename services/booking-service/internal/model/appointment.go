package model

import "time"

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentNoShow    AppointmentStatus = "no_show"
)

// Terminal reports whether the status permits no further transitions.
func (s AppointmentStatus) Terminal() bool {
	switch s {
	case AppointmentCancelled, AppointmentCompleted, AppointmentNoShow:
		return true
	}
	return false
}

// Appointment is a booked slot on a staff calendar. All instants are UTC.
// Revision is bumped on every write and guards against lost updates.
type Appointment struct {
	ID                 string
	UserID             string
	StaffID            string
	ServiceID          string
	StartTime          time.Time
	EndTime            time.Time
	Status             AppointmentStatus
	Notes              string
	CancellationReason string
	ExternalEventID    string
	Revision           int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Overlaps reports whether the appointment's half-open interval [start,end)
// intersects the given one.
func (a *Appointment) Overlaps(start, end time.Time) bool {
	return a.StartTime.Before(end) && start.Before(a.EndTime)
}
