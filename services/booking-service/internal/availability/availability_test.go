package availability_test

import (
	"context"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/storage/memory"
)

func mustParse(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts
}

func TestIsBookable(t *testing.T) {
	// 2025-06-02 is a Monday.
	hours := []model.StaffWorkingHours{
		{StaffID: "s1", Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 17 * 60, Active: true},
		{StaffID: "s1", Weekday: time.Tuesday, StartMinute: 9 * 60, EndMinute: 12 * 60, Active: false},
	}
	breaks := []model.StaffBreak{
		{StaffID: "s1", Kind: model.BreakRecurring, Weekday: time.Monday, StartMinute: 12 * 60, EndMinute: 13 * 60},
		{
			StaffID: "s1", Kind: model.BreakOneTime,
			Start: time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 6, 2, 16, 0, 0, 0, time.UTC),
		},
	}

	cases := []struct {
		name  string
		start string
		end   string
		want  bool
	}{
		{"inside working hours", "2025-06-02T09:00:00Z", "2025-06-02T09:30:00Z", true},
		{"exactly fills the window", "2025-06-02T09:00:00Z", "2025-06-02T17:00:00Z", false}, // crosses lunch
		{"ends at window close", "2025-06-02T16:30:00Z", "2025-06-02T17:00:00Z", true},
		{"starts before window", "2025-06-02T08:30:00Z", "2025-06-02T09:30:00Z", false},
		{"runs past window", "2025-06-02T16:45:00Z", "2025-06-02T17:15:00Z", false},
		{"inside recurring break", "2025-06-02T12:15:00Z", "2025-06-02T12:45:00Z", false},
		{"touches break boundary", "2025-06-02T13:00:00Z", "2025-06-02T13:30:00Z", true},
		{"inside one-time break", "2025-06-02T15:30:00Z", "2025-06-02T15:45:00Z", false},
		{"inactive weekday", "2025-06-03T09:30:00Z", "2025-06-03T10:00:00Z", false},
		{"day with no hours", "2025-06-04T09:30:00Z", "2025-06-04T10:00:00Z", false},
		{"zero-length interval", "2025-06-02T10:00:00Z", "2025-06-02T10:00:00Z", false},
		{"inverted interval", "2025-06-02T11:00:00Z", "2025-06-02T10:00:00Z", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			iv := availability.Interval{Start: mustParse(t, tc.start), End: mustParse(t, tc.end)}
			got := availability.IsBookable(iv, hours, breaks)
			if got != tc.want {
				t.Fatalf("IsBookable(%s..%s) = %v, want %v", tc.start, tc.end, got, tc.want)
			}
		})
	}
}

func TestOverlapsHalfOpen(t *testing.T) {
	a := availability.Interval{
		Start: mustParse(t, "2025-06-02T10:00:00Z"),
		End:   mustParse(t, "2025-06-02T11:00:00Z"),
	}
	touching := availability.Interval{
		Start: mustParse(t, "2025-06-02T11:00:00Z"),
		End:   mustParse(t, "2025-06-02T12:00:00Z"),
	}
	if availability.Overlaps(a, touching) {
		t.Fatal("back-to-back intervals must not overlap")
	}
	overlapping := availability.Interval{
		Start: mustParse(t, "2025-06-02T10:30:00Z"),
		End:   mustParse(t, "2025-06-02T11:30:00Z"),
	}
	if !availability.Overlaps(a, overlapping) {
		t.Fatal("intersecting intervals must overlap")
	}
}

func TestAvailableSlots(t *testing.T) {
	windowStart := mustParse(t, "2025-06-02T09:00:00Z")
	windowEnd := mustParse(t, "2025-06-02T11:00:00Z")
	busy := []availability.Interval{
		{Start: mustParse(t, "2025-06-02T09:30:00Z"), End: mustParse(t, "2025-06-02T10:00:00Z")},
	}
	now := mustParse(t, "2025-06-02T08:00:00Z")

	slots := availability.AvailableSlots(windowStart, windowEnd, 30*time.Minute, 30*time.Minute, busy, now)

	want := []string{
		"2025-06-02T09:00:00Z",
		"2025-06-02T10:00:00Z",
		"2025-06-02T10:30:00Z",
	}
	if len(slots) != len(want) {
		t.Fatalf("got %d slots, want %d: %v", len(slots), len(want), slots)
	}
	for i, w := range want {
		if !slots[i].Equal(mustParse(t, w)) {
			t.Fatalf("slot[%d] = %s, want %s", i, slots[i].Format(time.RFC3339), w)
		}
	}
}

func TestAvailableSlotsSkipsPast(t *testing.T) {
	windowStart := mustParse(t, "2025-06-02T09:00:00Z")
	windowEnd := mustParse(t, "2025-06-02T10:00:00Z")
	now := mustParse(t, "2025-06-02T09:15:00Z")

	slots := availability.AvailableSlots(windowStart, windowEnd, 30*time.Minute, 30*time.Minute, nil, now)
	if len(slots) != 1 || !slots[0].Equal(mustParse(t, "2025-06-02T09:30:00Z")) {
		t.Fatalf("expected only the 09:30 slot, got %v", slots)
	}
}

func TestCheckerUsesStoredSchedule(t *testing.T) {
	store := memory.NewStore()
	store.SetWorkingHours("s1", []model.StaffWorkingHours{
		{StaffID: "s1", Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 17 * 60, Active: true},
	})
	store.AddBreak(model.StaffBreak{
		StaffID: "s1", Kind: model.BreakRecurring, Weekday: time.Monday,
		StartMinute: 12 * 60, EndMinute: 13 * 60,
	})

	checker := availability.NewChecker(store)
	ctx := context.Background()

	ok, err := checker.IsBookable(ctx, "s1", mustParse(t, "2025-06-02T10:00:00Z"), mustParse(t, "2025-06-02T10:30:00Z"))
	if err != nil || !ok {
		t.Fatalf("expected bookable, got ok=%v err=%v", ok, err)
	}
	ok, err = checker.IsBookable(ctx, "s1", mustParse(t, "2025-06-02T12:00:00Z"), mustParse(t, "2025-06-02T12:30:00Z"))
	if err != nil || ok {
		t.Fatalf("expected break to block booking, got ok=%v err=%v", ok, err)
	}
}
