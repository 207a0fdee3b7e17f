package availability

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect:
// [a.Start,a.End) overlaps [b.Start,b.End) iff a.Start < b.End && b.Start < a.End.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// IsBookable reports whether the interval is fully contained in at least one
// active working window for its weekday and intersects no break. It is an
// advisory predicate; the booking engine's conflict scan is authoritative.
func IsBookable(iv Interval, hours []model.StaffWorkingHours, breaks []model.StaffBreak) bool {
	if !iv.End.After(iv.Start) {
		return false
	}

	start := iv.Start.UTC()
	startMinute := start.Hour()*60 + start.Minute()
	endMinute := startMinute + int(iv.End.Sub(iv.Start)/time.Minute)
	if endMinute > 24*60 {
		// Working windows never cross midnight, so neither can a bookable slot.
		return false
	}
	weekday := start.Weekday()

	contained := false
	for _, wh := range hours {
		if !wh.Active || wh.Weekday != weekday {
			continue
		}
		if wh.StartMinute <= startMinute && endMinute <= wh.EndMinute {
			contained = true
			break
		}
	}
	if !contained {
		// No working hours for the day means the staff member is unavailable.
		return false
	}

	for _, b := range breaks {
		switch b.Kind {
		case model.BreakRecurring:
			if b.Weekday == weekday && startMinute < b.EndMinute && b.StartMinute < endMinute {
				return false
			}
		case model.BreakOneTime:
			if Overlaps(iv, Interval{Start: b.Start, End: b.End}) {
				return false
			}
		}
	}
	return true
}

// AvailableSlots returns slot start times within [windowStart, windowEnd) where
// a booking of length duration would not overlap any of the busy intervals.
//
// All times are expected to be in the same location (timezone).
func AvailableSlots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !windowEnd.After(windowStart) {
		return nil
	}
	if windowStart.Add(duration).After(windowEnd) {
		return nil
	}

	var slots []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		if t.Before(now) {
			continue
		}
		if !overlapsAny(t, t.Add(duration), busy) {
			slots = append(slots, t)
		}
	}
	return slots
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(Interval{Start: start, End: end}, b) {
			return true
		}
	}
	return false
}

// Store supplies the schedule inputs for a staff member.
type Store interface {
	WorkingHours(ctx context.Context, staffID string) ([]model.StaffWorkingHours, error)
	Breaks(ctx context.Context, staffID string) ([]model.StaffBreak, error)
}

// Checker evaluates IsBookable against stored working hours and breaks.
type Checker struct {
	store Store
}

func NewChecker(store Store) *Checker {
	return &Checker{store: store}
}

func (c *Checker) IsBookable(ctx context.Context, staffID string, start, end time.Time) (bool, error) {
	hours, err := c.store.WorkingHours(ctx, staffID)
	if err != nil {
		return false, err
	}
	breaks, err := c.store.Breaks(ctx, staffID)
	if err != nil {
		return false, err
	}
	return IsBookable(Interval{Start: start, End: end}, hours, breaks), nil
}
