package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/apptbook/libs/db"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

const reminderColumns = `id::text, appointment_id::text, channel, COALESCE(recipient, ''),
	scheduled_at, sent_at, status, retry_count, COALESCE(last_error, ''), created_at, updated_at`

type ReminderRepository struct {
	pool *db.Pool
}

func NewReminderRepository(pool *db.Pool) *ReminderRepository {
	return &ReminderRepository{pool: pool}
}

// CreateBatch inserts all reminders in one transaction; a booking either gets
// its full reminder set or none of it.
func (r *ReminderRepository) CreateBatch(ctx context.Context, reminders []*model.Reminder) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, rem := range reminders {
		if rem.ID == "" {
			rem.ID = uuid.NewString()
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO reminders
				(id, appointment_id, channel, recipient, scheduled_at, status, retry_count, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, rem.ID, rem.AppointmentID, rem.Channel, rem.Recipient,
			rem.ScheduledAt, rem.Status, rem.RetryCount, rem.CreatedAt, rem.UpdatedAt)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *ReminderRepository) CancelPendingByAppointment(ctx context.Context, appointmentID string, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reminders
		SET status = 'cancelled', updated_at = $2
		WHERE appointment_id = $1 AND status = 'pending'
	`, appointmentID, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// DueBefore returns pending reminders whose scheduled instant has passed.
// The processor is single-flight per run, so no row claiming is needed here;
// the status guards on the mark queries keep racing writers honest.
func (r *ReminderRepository) DueBefore(ctx context.Context, now time.Time) ([]*model.Reminder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE status = 'pending' AND scheduled_at <= $1
		ORDER BY scheduled_at ASC
	`, now)
	if err != nil {
		return nil, err
	}
	return collectReminders(rows)
}

func (r *ReminderRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE reminders
		SET status = 'sent', sent_at = $2, last_error = NULL, updated_at = $2
		WHERE id = $1 AND status = 'pending'
	`, id, sentAt)
	return err
}

func (r *ReminderRepository) Reschedule(ctx context.Context, id string, retryCount int, nextAt time.Time, lastError string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE reminders
		SET retry_count = $2, scheduled_at = $3, last_error = $4, updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id, retryCount, nextAt, lastError)
	return err
}

func (r *ReminderRepository) MarkFailed(ctx context.Context, id string, retryCount int, lastError string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE reminders
		SET status = 'failed', retry_count = $2, last_error = $3, updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id, retryCount, lastError)
	return err
}

func (r *ReminderRepository) ListByAppointment(ctx context.Context, appointmentID string) ([]*model.Reminder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE appointment_id = $1
		ORDER BY scheduled_at ASC
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	return collectReminders(rows)
}

func collectReminders(rows pgx.Rows) ([]*model.Reminder, error) {
	defer rows.Close()

	var reminders []*model.Reminder
	for rows.Next() {
		var rem model.Reminder
		err := rows.Scan(
			&rem.ID,
			&rem.AppointmentID,
			&rem.Channel,
			&rem.Recipient,
			&rem.ScheduledAt,
			&rem.SentAt,
			&rem.Status,
			&rem.RetryCount,
			&rem.LastError,
			&rem.CreatedAt,
			&rem.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, &rem)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return reminders, nil
}
