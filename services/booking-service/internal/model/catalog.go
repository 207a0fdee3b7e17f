package model

import "time"

// Catalog rows are read-only inputs to booking; their CRUD lives in a
// separate admin surface.

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

type User struct {
	ID    string
	Name  string
	Email string
	Phone string
	Role  Role
}

type Staff struct {
	ID     string
	UserID string
	Name   string
}

type Service struct {
	ID              string
	Name            string
	DurationMinutes int
}

// StaffWorkingHours is one recurring working window, keyed by weekday.
// Start/End are minutes from midnight UTC; the window is half-open.
type StaffWorkingHours struct {
	ID          string
	StaffID     string
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
	Active      bool
}

type BreakKind string

const (
	BreakRecurring BreakKind = "recurring"
	BreakOneTime   BreakKind = "one_time"
)

// StaffBreak blocks out time inside working hours. Recurring breaks repeat on
// a weekday at fixed clock minutes; one-time breaks are absolute intervals.
type StaffBreak struct {
	ID          string
	StaffID     string
	Kind        BreakKind
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
	Start       time.Time
	End         time.Time
	Reason      string
}
