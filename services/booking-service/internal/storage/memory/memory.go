// Package memory is a mutex-guarded in-process implementation of the storage
// interfaces. It backs engine tests and local runs without Postgres.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

type Store struct {
	mu           sync.Mutex
	users        map[string]*model.User
	staff        map[string]*model.Staff
	services     map[string]*model.Service
	appointments map[string]*model.Appointment
	reminders    map[string]*model.Reminder
	workingHours map[string][]model.StaffWorkingHours
	breaks       map[string][]model.StaffBreak
}

func NewStore() *Store {
	return &Store{
		users:        make(map[string]*model.User),
		staff:        make(map[string]*model.Staff),
		services:     make(map[string]*model.Service),
		appointments: make(map[string]*model.Appointment),
		reminders:    make(map[string]*model.Reminder),
		workingHours: make(map[string][]model.StaffWorkingHours),
		breaks:       make(map[string][]model.StaffBreak),
	}
}

// Seeding helpers. Catalog rows have no mutation path through the engines.

func (s *Store) AddUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = &u
}

func (s *Store) AddStaff(st model.Staff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staff[st.ID] = &st
}

func (s *Store) AddService(sv model.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[sv.ID] = &sv
}

func (s *Store) SetWorkingHours(staffID string, hours []model.StaffWorkingHours) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workingHours[staffID] = append([]model.StaffWorkingHours(nil), hours...)
}

func (s *Store) AddBreak(b model.StaffBreak) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.breaks[b.StaffID] = append(s.breaks[b.StaffID], b)
}

// booking.CatalogStore

func (s *Store) User(ctx context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, &booking.NotFoundError{Entity: "user"}
	}
	cp := *u
	return &cp, nil
}

func (s *Store) Staff(ctx context.Context, id string) (*model.Staff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.staff[id]
	if !ok {
		return nil, &booking.NotFoundError{Entity: "staff"}
	}
	cp := *st
	return &cp, nil
}

func (s *Store) Service(ctx context.Context, id string) (*model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sv, ok := s.services[id]
	if !ok {
		return nil, &booking.NotFoundError{Entity: "service"}
	}
	cp := *sv
	return &cp, nil
}

// availability.Store

func (s *Store) WorkingHours(ctx context.Context, staffID string) ([]model.StaffWorkingHours, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.StaffWorkingHours(nil), s.workingHours[staffID]...), nil
}

func (s *Store) Breaks(ctx context.Context, staffID string) ([]model.StaffBreak, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.StaffBreak(nil), s.breaks[staffID]...), nil
}

// booking.AppointmentStore

func (s *Store) Insert(ctx context.Context, appt *model.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	cp := *appt
	s.appointments[appt.ID] = &cp
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appointments[id]
	if !ok {
		return nil, &booking.NotFoundError{Entity: "appointment"}
	}
	cp := *appt
	return &cp, nil
}

func (s *Store) Update(ctx context.Context, appt *model.Appointment, expectedRevision int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.appointments[appt.ID]
	if !ok {
		return &booking.NotFoundError{Entity: "appointment"}
	}
	if stored.Revision != expectedRevision {
		return booking.ErrStaleRevision
	}
	appt.Revision = expectedRevision + 1
	cp := *appt
	s.appointments[appt.ID] = &cp
	return nil
}

func (s *Store) SetExternalEventID(ctx context.Context, id string, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appointments[id]
	if !ok {
		return &booking.NotFoundError{Entity: "appointment"}
	}
	appt.ExternalEventID = eventID
	return nil
}

func (s *Store) ListOverlapping(ctx context.Context, staffID string, start, end time.Time, excludeID string) ([]*model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Appointment
	for _, appt := range s.appointments {
		if appt.StaffID != staffID || appt.ID == excludeID {
			continue
		}
		if appt.Status == model.AppointmentCancelled {
			continue
		}
		if appt.Overlaps(start, end) {
			cp := *appt
			out = append(out, &cp)
		}
	}
	sortByStart(out)
	return out, nil
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]*model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Appointment
	for _, appt := range s.appointments {
		if appt.UserID == userID {
			cp := *appt
			out = append(out, &cp)
		}
	}
	sortByStart(out)
	return out, nil
}

func (s *Store) ListByStaff(ctx context.Context, staffID string, from, to time.Time) ([]*model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Appointment
	for _, appt := range s.appointments {
		if appt.StaffID != staffID || appt.Status == model.AppointmentCancelled {
			continue
		}
		if appt.Overlaps(from, to) {
			cp := *appt
			out = append(out, &cp)
		}
	}
	sortByStart(out)
	return out, nil
}

// reminder.Store

func (s *Store) CreateBatch(ctx context.Context, reminders []*model.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rem := range reminders {
		if rem.ID == "" {
			rem.ID = uuid.NewString()
		}
		cp := *rem
		s.reminders[rem.ID] = &cp
	}
	return nil
}

func (s *Store) CancelPendingByAppointment(ctx context.Context, appointmentID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rem := range s.reminders {
		if rem.AppointmentID == appointmentID && rem.Status == model.ReminderPending {
			rem.Status = model.ReminderCancelled
			rem.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (s *Store) DueBefore(ctx context.Context, now time.Time) ([]*model.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Reminder
	for _, rem := range s.reminders {
		if rem.Status == model.ReminderPending && !rem.ScheduledAt.After(now) {
			cp := *rem
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (s *Store) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rem, ok := s.reminders[id]
	if !ok || rem.Status != model.ReminderPending {
		return nil
	}
	t := sentAt
	rem.Status = model.ReminderSent
	rem.SentAt = &t
	rem.LastError = ""
	rem.UpdatedAt = sentAt
	return nil
}

func (s *Store) Reschedule(ctx context.Context, id string, retryCount int, nextAt time.Time, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rem, ok := s.reminders[id]
	if !ok || rem.Status != model.ReminderPending {
		return nil
	}
	rem.RetryCount = retryCount
	rem.ScheduledAt = nextAt
	rem.LastError = lastError
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, id string, retryCount int, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rem, ok := s.reminders[id]
	if !ok || rem.Status != model.ReminderPending {
		return nil
	}
	rem.Status = model.ReminderFailed
	rem.RetryCount = retryCount
	rem.LastError = lastError
	return nil
}

func (s *Store) ListByAppointment(ctx context.Context, appointmentID string) ([]*model.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Reminder
	for _, rem := range s.reminders {
		if rem.AppointmentID == appointmentID {
			cp := *rem
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func sortByStart(appts []*model.Appointment) {
	sort.Slice(appts, func(i, j int) bool { return appts[i].StartTime.Before(appts[j].StartTime) })
}
