// Package booking is the appointment state machine. All slot mutation for a
// staff member goes through a per-staff exclusive section so that no two
// conflict-scan-then-write sequences for the same staff id can interleave.
package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/clock"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/outbox"
)

// AppointmentStore persists appointments. Update must compare the stored
// revision against expectedRevision and return ErrStaleRevision on mismatch;
// on success it bumps the revision.
type AppointmentStore interface {
	Insert(ctx context.Context, appt *model.Appointment) error
	Get(ctx context.Context, id string) (*model.Appointment, error)
	Update(ctx context.Context, appt *model.Appointment, expectedRevision int) error
	SetExternalEventID(ctx context.Context, id string, eventID string) error
	ListOverlapping(ctx context.Context, staffID string, start, end time.Time, excludeID string) ([]*model.Appointment, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Appointment, error)
	ListByStaff(ctx context.Context, staffID string, from, to time.Time) ([]*model.Appointment, error)
}

// CatalogStore resolves the referenced user/staff/service rows.
type CatalogStore interface {
	User(ctx context.Context, id string) (*model.User, error)
	Staff(ctx context.Context, id string) (*model.Staff, error)
	Service(ctx context.Context, id string) (*model.Service, error)
}

// ReminderScheduler is the reminder engine as seen from booking.
type ReminderScheduler interface {
	Schedule(ctx context.Context, appt *model.Appointment, user *model.User) error
	CancelForAppointment(ctx context.Context, appointmentID string) (int, error)
}

// AvailabilityChecker is the advisory working-hours predicate.
type AvailabilityChecker interface {
	IsBookable(ctx context.Context, staffID string, start, end time.Time) (bool, error)
}

type Actor struct {
	UserID string
	Role   model.Role
}

type BookRequest struct {
	UserID    string
	StaffID   string
	ServiceID string
	Start     time.Time
	End       time.Time
	Notes     string
}

// UpdateRequest carries optional changes. Start and End must be set together.
type UpdateRequest struct {
	Start *time.Time
	End   *time.Time
	Notes *string
}

type Service struct {
	appts     AppointmentStore
	catalog   CatalogStore
	reminders ReminderScheduler
	calendar  calendar.Gateway
	events    outbox.Sink
	avail     AvailabilityChecker
	clock     clock.Clock
	logger    *slog.Logger
	locks     *staffLocks
}

type Config struct {
	Appointments AppointmentStore
	Catalog      CatalogStore
	Reminders    ReminderScheduler
	Calendar     calendar.Gateway
	Events       outbox.Sink
	Availability AvailabilityChecker // optional; nil relies on the conflict scan only
	Clock        clock.Clock
	Logger       *slog.Logger
}

func NewService(cfg Config) *Service {
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		appts:     cfg.Appointments,
		catalog:   cfg.Catalog,
		reminders: cfg.Reminders,
		calendar:  cfg.Calendar,
		events:    cfg.Events,
		avail:     cfg.Availability,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		locks:     newStaffLocks(),
	}
}

// Book creates a pending appointment. The interval is validated before any
// conflict scan; the scan and insert run inside the staff member's exclusive
// section so two callers racing for the same slot can never both commit.
func (s *Service) Book(ctx context.Context, req BookRequest) (*model.Appointment, error) {
	start := req.Start.UTC()
	end := req.End.UTC()
	now := s.clock.Now()
	if !end.After(start) || !start.After(now) {
		return nil, ErrInvalidInterval
	}

	user, err := s.catalog.User(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if _, err := s.catalog.Staff(ctx, req.StaffID); err != nil {
		return nil, err
	}
	if _, err := s.catalog.Service(ctx, req.ServiceID); err != nil {
		return nil, err
	}

	if s.avail != nil {
		ok, err := s.avail.IsBookable(ctx, req.StaffID, start, end)
		if err != nil {
			return nil, fmt.Errorf("availability check: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("outside staff availability: %w", ErrConflict)
		}
	}

	appt := &model.Appointment{
		UserID:    req.UserID,
		StaffID:   req.StaffID,
		ServiceID: req.ServiceID,
		StartTime: start,
		EndTime:   end,
		Status:    model.AppointmentPending,
		Notes:     req.Notes,
		Revision:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	unlock := s.locks.Lock(req.StaffID)
	conflicts, err := s.appts.ListOverlapping(ctx, req.StaffID, start, end, "")
	if err != nil {
		unlock()
		return nil, err
	}
	if len(conflicts) > 0 {
		unlock()
		return nil, ErrConflict
	}
	if err := s.appts.Insert(ctx, appt); err != nil {
		unlock()
		return nil, err
	}
	unlock()

	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"staff_id", appt.StaffID,
		"start", appt.StartTime.Format(time.RFC3339),
	)

	// Reminders are soft relative to the booking: the slot is already
	// committed, a scheduling failure only loses notifications.
	if err := s.reminders.Schedule(ctx, appt, user); err != nil {
		s.logger.Error("reminder scheduling failed", "err", err, "appointment_id", appt.ID)
	}

	s.syncCalendarCreate(ctx, appt)
	s.recordEvent(ctx, "booking.appointment.booked.v1", appt)

	return appt, nil
}

// Update modifies notes and/or the interval. An unchanged interval skips the
// conflict scan and reminder regeneration entirely.
func (s *Service) Update(ctx context.Context, id string, actor Actor, req UpdateRequest) (*model.Appointment, error) {
	appt, err := s.appts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if actor.UserID != appt.UserID && actor.Role != model.RoleAdmin && actor.Role != model.RoleStaff {
		return nil, ErrUnauthorized
	}
	if appt.Status.Terminal() {
		return nil, fmt.Errorf("appointment is %s: %w", appt.Status, ErrConflict)
	}

	if (req.Start == nil) != (req.End == nil) {
		return nil, ErrInvalidInterval
	}

	timeChanged := false
	if req.Start != nil {
		start := req.Start.UTC()
		end := req.End.UTC()
		timeChanged = !start.Equal(appt.StartTime) || !end.Equal(appt.EndTime)
		if timeChanged {
			now := s.clock.Now()
			if !end.After(start) || !start.After(now) {
				return nil, ErrInvalidInterval
			}
			if s.avail != nil {
				ok, err := s.avail.IsBookable(ctx, appt.StaffID, start, end)
				if err != nil {
					return nil, fmt.Errorf("availability check: %w", err)
				}
				if !ok {
					return nil, fmt.Errorf("outside staff availability: %w", ErrConflict)
				}
			}
			appt.StartTime = start
			appt.EndTime = end
		}
	}
	if req.Notes != nil {
		appt.Notes = *req.Notes
	}

	appt.UpdatedAt = s.clock.Now()

	if timeChanged {
		unlock := s.locks.Lock(appt.StaffID)
		conflicts, err := s.appts.ListOverlapping(ctx, appt.StaffID, appt.StartTime, appt.EndTime, appt.ID)
		if err != nil {
			unlock()
			return nil, err
		}
		if len(conflicts) > 0 {
			unlock()
			return nil, ErrConflict
		}
		err = s.appts.Update(ctx, appt, appt.Revision)
		unlock()
		if err != nil {
			return nil, err
		}
	} else {
		if err := s.appts.Update(ctx, appt, appt.Revision); err != nil {
			return nil, err
		}
	}

	if timeChanged {
		s.regenerateReminders(ctx, appt)
		s.recordEvent(ctx, "booking.appointment.rescheduled.v1", appt)
	}

	if err := s.calendar.UpdateEvent(ctx, appt); err != nil {
		s.logger.Warn("calendar update failed", "err", err, "appointment_id", appt.ID)
	}

	return appt, nil
}

// Cancel marks the appointment cancelled and retires its pending reminders.
// Cancelling an already-cancelled appointment is a no-op success.
func (s *Service) Cancel(ctx context.Context, id string, actor Actor, reason string) error {
	appt, err := s.appts.Get(ctx, id)
	if err != nil {
		return err
	}

	if actor.UserID != appt.UserID && actor.Role != model.RoleAdmin {
		return ErrUnauthorized
	}
	if appt.Status == model.AppointmentCancelled {
		return nil
	}
	if appt.Status.Terminal() {
		return fmt.Errorf("appointment is %s: %w", appt.Status, ErrConflict)
	}

	appt.Status = model.AppointmentCancelled
	appt.CancellationReason = reason
	appt.UpdatedAt = s.clock.Now()
	if err := s.appts.Update(ctx, appt, appt.Revision); err != nil {
		return err
	}

	if n, err := s.reminders.CancelForAppointment(ctx, appt.ID); err != nil {
		s.logger.Error("reminder cancellation failed", "err", err, "appointment_id", appt.ID)
	} else {
		s.logger.Info("appointment cancelled", "appointment_id", appt.ID, "reminders_cancelled", n)
	}

	if err := s.calendar.DeleteEvent(ctx, appt); err != nil {
		s.logger.Warn("calendar delete failed", "err", err, "appointment_id", appt.ID)
	}
	s.recordEvent(ctx, "booking.appointment.cancelled.v1", appt)

	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Appointment, error) {
	return s.appts.Get(ctx, id)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]*model.Appointment, error) {
	return s.appts.ListByUser(ctx, userID)
}

// ListByStaff returns the non-cancelled appointments intersecting [from, to),
// ordered by start time ascending.
func (s *Service) ListByStaff(ctx context.Context, staffID string, from, to time.Time) ([]*model.Appointment, error) {
	return s.appts.ListByStaff(ctx, staffID, from.UTC(), to.UTC())
}

func (s *Service) regenerateReminders(ctx context.Context, appt *model.Appointment) {
	if _, err := s.reminders.CancelForAppointment(ctx, appt.ID); err != nil {
		s.logger.Error("reminder cancellation failed", "err", err, "appointment_id", appt.ID)
		return
	}
	user, err := s.catalog.User(ctx, appt.UserID)
	if err != nil {
		s.logger.Error("reminder regeneration failed: user lookup", "err", err, "appointment_id", appt.ID)
		return
	}
	if err := s.reminders.Schedule(ctx, appt, user); err != nil {
		s.logger.Error("reminder regeneration failed", "err", err, "appointment_id", appt.ID)
	}
}

func (s *Service) syncCalendarCreate(ctx context.Context, appt *model.Appointment) {
	eventID, err := s.calendar.CreateEvent(ctx, appt)
	if err != nil {
		s.logger.Warn("calendar sync failed", "err", err, "appointment_id", appt.ID)
		return
	}
	if eventID == "" {
		return
	}
	appt.ExternalEventID = eventID
	if err := s.appts.SetExternalEventID(ctx, appt.ID, eventID); err != nil {
		s.logger.Warn("storing external event id failed", "err", err, "appointment_id", appt.ID)
	}
}

func (s *Service) recordEvent(ctx context.Context, eventType string, appt *model.Appointment) {
	if s.events == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"user_id":        appt.UserID,
		"staff_id":       appt.StaffID,
		"service_id":     appt.ServiceID,
		"start_time":     appt.StartTime.Format(time.RFC3339),
		"end_time":       appt.EndTime.Format(time.RFC3339),
		"status":         string(appt.Status),
	})
	if err != nil {
		s.logger.Error("failed to build event payload", "err", err)
		return
	}
	if err := s.events.Record(ctx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	}); err != nil {
		s.logger.Error("failed to record event", "err", err, "event_type", eventType)
	}
}
