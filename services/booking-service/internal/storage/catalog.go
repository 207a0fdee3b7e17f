package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/apptbook/libs/db"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

// CatalogRepository reads the users, staff, services and schedule tables.
// The booking engine only ever reads the catalog; seeding is migration work.
type CatalogRepository struct {
	pool *db.Pool
}

func NewCatalogRepository(pool *db.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) User(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, email, COALESCE(phone, ''), role
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &booking.NotFoundError{Entity: "user"}
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *CatalogRepository) Staff(ctx context.Context, id string) (*model.Staff, error) {
	var s model.Staff
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, COALESCE(user_id::text, ''), name
		FROM staff
		WHERE id = $1
	`, id).Scan(&s.ID, &s.UserID, &s.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &booking.NotFoundError{Entity: "staff"}
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *CatalogRepository) Service(ctx context.Context, id string) (*model.Service, error) {
	var s model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, duration_minutes
		FROM services
		WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.DurationMinutes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &booking.NotFoundError{Entity: "service"}
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *CatalogRepository) WorkingHours(ctx context.Context, staffID string) ([]model.StaffWorkingHours, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT staff_id::text, weekday, start_minute, end_minute, active
		FROM staff_working_hours
		WHERE staff_id = $1
		ORDER BY weekday, start_minute
	`, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hours []model.StaffWorkingHours
	for rows.Next() {
		var h model.StaffWorkingHours
		if err := rows.Scan(&h.StaffID, &h.Weekday, &h.StartMinute, &h.EndMinute, &h.Active); err != nil {
			return nil, err
		}
		hours = append(hours, h)
	}
	return hours, rows.Err()
}

func (r *CatalogRepository) Breaks(ctx context.Context, staffID string) ([]model.StaffBreak, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT staff_id::text, kind, COALESCE(weekday, 0),
			COALESCE(start_minute, 0), COALESCE(end_minute, 0),
			COALESCE(start_time, 'epoch'::timestamptz), COALESCE(end_time, 'epoch'::timestamptz),
			COALESCE(reason, '')
		FROM staff_breaks
		WHERE staff_id = $1
	`, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var breaks []model.StaffBreak
	for rows.Next() {
		var (
			b          model.StaffBreak
			start, end time.Time
		)
		if err := rows.Scan(&b.StaffID, &b.Kind, &b.Weekday, &b.StartMinute, &b.EndMinute, &start, &end, &b.Reason); err != nil {
			return nil, err
		}
		if b.Kind == model.BreakOneTime {
			b.Start, b.End = start, end
		}
		breaks = append(breaks, b)
	}
	return breaks, rows.Err()
}
