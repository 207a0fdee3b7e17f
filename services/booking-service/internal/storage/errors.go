package storage

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/booking"
)

// exclusionViolation is raised by the optional no_staff_overlap constraint,
// the DB-level backstop under the application's conflict scan.
const exclusionViolation = "23P01"

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
		return fmt.Errorf("staff slot taken: %w", booking.ErrConflict)
	}
	return err
}
