// Package calendar is the external calendar federation boundary. Sync is
// best-effort: the booking engine calls it post-commit and swallows errors;
// a sync failure never rolls back a booking.
package calendar

import (
	"context"
	"log/slog"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

type Gateway interface {
	// CreateEvent returns the provider's event id, empty when none was created.
	CreateEvent(ctx context.Context, appt *model.Appointment) (string, error)
	UpdateEvent(ctx context.Context, appt *model.Appointment) error
	DeleteEvent(ctx context.Context, appt *model.Appointment) error
}

// Noop stands in for Google/Microsoft federation until the OAuth flow lands.
type Noop struct {
	logger *slog.Logger
}

func NewNoop(logger *slog.Logger) *Noop {
	return &Noop{logger: logger}
}

func (g *Noop) CreateEvent(_ context.Context, appt *model.Appointment) (string, error) {
	g.logger.Debug("calendar sync skipped (no provider)", "appointment_id", appt.ID)
	return "", nil
}

func (g *Noop) UpdateEvent(_ context.Context, appt *model.Appointment) error {
	g.logger.Debug("calendar update skipped (no provider)", "appointment_id", appt.ID)
	return nil
}

func (g *Noop) DeleteEvent(_ context.Context, appt *model.Appointment) error {
	g.logger.Debug("calendar delete skipped (no provider)", "appointment_id", appt.ID)
	return nil
}
