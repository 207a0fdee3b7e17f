package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/apptbook/libs/db"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

const appointmentColumns = `id::text, user_id::text, staff_id::text, service_id::text,
	start_time, end_time, status, COALESCE(notes, ''), COALESCE(cancellation_reason, ''),
	COALESCE(external_event_id, ''), revision, created_at, updated_at`

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) Insert(ctx context.Context, appt *model.Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments
			(id, user_id, staff_id, service_id, start_time, end_time, status, notes, revision, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, appt.ID, appt.UserID, appt.StaffID, appt.ServiceID,
		appt.StartTime, appt.EndTime, appt.Status, appt.Notes, appt.Revision,
		appt.CreatedAt, appt.UpdatedAt)
	return mapWriteError(err)
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (*model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	appt, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &booking.NotFoundError{Entity: "appointment"}
	}
	return appt, err
}

// Update writes the row only when the stored revision still matches
// expectedRevision, bumping it by one; a zero row count with an existing row
// is a lost update.
func (r *AppointmentRepository) Update(ctx context.Context, appt *model.Appointment, expectedRevision int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET start_time = $2,
			end_time = $3,
			status = $4,
			notes = $5,
			cancellation_reason = $6,
			revision = revision + 1,
			updated_at = $7
		WHERE id = $1 AND revision = $8
	`, appt.ID, appt.StartTime, appt.EndTime, appt.Status, appt.Notes,
		appt.CancellationReason, appt.UpdatedAt, expectedRevision)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, appt.ID); err != nil {
			return err
		}
		return booking.ErrStaleRevision
	}
	appt.Revision = expectedRevision + 1
	return nil
}

// SetExternalEventID records the calendar provider's event id without
// touching the revision; calendar sync must not race user updates.
func (r *AppointmentRepository) SetExternalEventID(ctx context.Context, id string, eventID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET external_event_id = $2
		WHERE id = $1
	`, id, eventID)
	return err
}

func (r *AppointmentRepository) ListOverlapping(ctx context.Context, staffID string, start, end time.Time, excludeID string) ([]*model.Appointment, error) {
	var exclude any
	if excludeID != "" {
		exclude = excludeID
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE staff_id = $1
			AND status <> 'cancelled'
			AND start_time < $3
			AND end_time > $2
			AND ($4::uuid IS NULL OR id <> $4::uuid)
		ORDER BY start_time ASC
	`, staffID, start, end, exclude)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *AppointmentRepository) ListByUser(ctx context.Context, userID string) ([]*model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE user_id = $1
		ORDER BY start_time ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *AppointmentRepository) ListByStaff(ctx context.Context, staffID string, from, to time.Time) ([]*model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE staff_id = $1
			AND status <> 'cancelled'
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, staffID, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (*model.Appointment, error) {
	var appt model.Appointment
	err := row.Scan(
		&appt.ID,
		&appt.UserID,
		&appt.StaffID,
		&appt.ServiceID,
		&appt.StartTime,
		&appt.EndTime,
		&appt.Status,
		&appt.Notes,
		&appt.CancellationReason,
		&appt.ExternalEventID,
		&appt.Revision,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func collectAppointments(rows pgx.Rows) ([]*model.Appointment, error) {
	defer rows.Close()

	var appts []*model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}
