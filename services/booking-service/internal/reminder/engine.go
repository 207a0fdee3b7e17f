// Package reminder owns the reminder table: schedule derivation at booking
// time and the periodically-invoked due processor with per-reminder retry.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/clock"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/notify"
)

const (
	// maxRetries is the re-arm ceiling: a reminder is retried at backoffs of
	// 5, 10 and 20 minutes; the next failure is terminal.
	maxRetries  = 3
	baseBackoff = 5 * time.Minute
)

// Store persists reminders. The reminder engine is its sole writer.
type Store interface {
	CreateBatch(ctx context.Context, reminders []*model.Reminder) error
	// CancelPendingByAppointment retires pending rows only; sent and failed
	// rows remain as historical record. Returns the number cancelled.
	CancelPendingByAppointment(ctx context.Context, appointmentID string, now time.Time) (int, error)
	// DueBefore returns pending reminders with ScheduledAt <= now, ascending.
	DueBefore(ctx context.Context, now time.Time) ([]*model.Reminder, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	Reschedule(ctx context.Context, id string, retryCount int, nextAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, id string, retryCount int, lastError string) error
	ListByAppointment(ctx context.Context, appointmentID string) ([]*model.Reminder, error)
}

// AppointmentGetter resolves the owning appointment for message rendering.
type AppointmentGetter interface {
	Get(ctx context.Context, id string) (*model.Appointment, error)
}

// Stats summarizes one due-processor run.
type Stats struct {
	Processed   int
	Sent        int
	Failed      int
	Rescheduled int
}

type Engine struct {
	store   Store
	appts   AppointmentGetter
	gateway notify.Gateway
	clock   clock.Clock
	logger  *slog.Logger

	// running keeps overlapping processor invocations single-flight within
	// this process; cross-instance exclusion is the trigger's concern.
	running sync.Mutex
}

func NewEngine(store Store, appts AppointmentGetter, gateway notify.Gateway, clk clock.Clock, logger *slog.Logger) *Engine {
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   store,
		appts:   appts,
		gateway: gateway,
		clock:   clk,
		logger:  logger,
	}
}

// Schedule creates the full pending reminder batch for the appointment.
func (e *Engine) Schedule(ctx context.Context, appt *model.Appointment, user *model.User) error {
	reminders := buildSchedule(appt, user, e.clock.Now())
	if err := e.store.CreateBatch(ctx, reminders); err != nil {
		return fmt.Errorf("create reminders: %w", err)
	}
	e.logger.Info("reminders scheduled", "appointment_id", appt.ID, "count", len(reminders))
	return nil
}

// CancelForAppointment retires the appointment's pending reminders.
func (e *Engine) CancelForAppointment(ctx context.Context, appointmentID string) (int, error) {
	return e.store.CancelPendingByAppointment(ctx, appointmentID, e.clock.Now())
}

// ListForAppointment exposes the reminder history for an appointment.
func (e *Engine) ListForAppointment(ctx context.Context, appointmentID string) ([]*model.Reminder, error) {
	return e.store.ListByAppointment(ctx, appointmentID)
}

// ProcessDue delivers every pending reminder whose scheduled instant is at or
// before now. Each reminder succeeds or fails independently; one failure never
// aborts the batch. A run that overlaps an in-flight run returns zero Stats.
func (e *Engine) ProcessDue(ctx context.Context, now time.Time) (Stats, error) {
	if !e.running.TryLock() {
		e.logger.Warn("due-reminder run already in flight, skipping")
		return Stats{}, nil
	}
	defer e.running.Unlock()

	due, err := e.store.DueBefore(ctx, now)
	if err != nil {
		return Stats{}, fmt.Errorf("fetch due reminders: %w", err)
	}

	var stats Stats
	for _, r := range due {
		stats.Processed++

		delivered, sendErr := e.deliver(ctx, r)
		if sendErr == nil && delivered {
			if err := e.store.MarkSent(ctx, r.ID, now); err != nil {
				e.logger.Error("mark sent failed", "err", err, "reminder_id", r.ID)
				continue
			}
			stats.Sent++
			continue
		}

		msg := "delivery reported not sent"
		if sendErr != nil {
			msg = sendErr.Error()
		}

		if r.RetryCount < maxRetries {
			// Backoff doubles per attempt: 5, 10, 20 minutes.
			delay := baseBackoff << r.RetryCount
			nextAt := now.Add(delay)
			if err := e.store.Reschedule(ctx, r.ID, r.RetryCount+1, nextAt, msg); err != nil {
				e.logger.Error("reschedule failed", "err", err, "reminder_id", r.ID)
				continue
			}
			stats.Rescheduled++
			e.logger.Info("reminder re-armed",
				"reminder_id", r.ID,
				"retry_count", r.RetryCount+1,
				"next_at", nextAt.Format(time.RFC3339),
			)
		} else {
			if err := e.store.MarkFailed(ctx, r.ID, r.RetryCount+1, msg); err != nil {
				e.logger.Error("mark failed failed", "err", err, "reminder_id", r.ID)
				continue
			}
			stats.Failed++
			e.logger.Error("reminder permanently failed", "reminder_id", r.ID, "last_error", msg)
		}
	}

	if stats.Processed > 0 {
		e.logger.Info("due reminders processed",
			"processed", stats.Processed,
			"sent", stats.Sent,
			"failed", stats.Failed,
			"rescheduled", stats.Rescheduled,
		)
	}
	return stats, nil
}

func (e *Engine) deliver(ctx context.Context, r *model.Reminder) (bool, error) {
	appt, err := e.appts.Get(ctx, r.AppointmentID)
	if err != nil {
		return false, fmt.Errorf("appointment lookup: %w", err)
	}

	subject := "Appointment Reminder"
	body := fmt.Sprintf("Reminder: you have an appointment on %s.", appt.StartTime.Format(time.RFC1123))
	return e.gateway.Send(ctx, r.Channel, r.Recipient, subject, body)
}
