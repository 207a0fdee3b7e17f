package reminder_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/clock"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/reminder"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/storage/memory"
)

type sentMessage struct {
	channel   model.ReminderChannel
	recipient string
	body      string
}

// scriptedGateway delivers or fails per channel.
type scriptedGateway struct {
	mu   sync.Mutex
	fail map[model.ReminderChannel]error // nil entry means deliver
	sent []sentMessage
}

func newScriptedGateway() *scriptedGateway {
	return &scriptedGateway{fail: make(map[model.ReminderChannel]error)}
}

func (g *scriptedGateway) Send(_ context.Context, channel model.ReminderChannel, recipient, _, body string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err, ok := g.fail[channel]; ok {
		if err == nil {
			return false, nil // undeliverable, no transport error
		}
		return false, err
	}
	g.sent = append(g.sent, sentMessage{channel: channel, recipient: recipient, body: body})
	return true, nil
}

func (g *scriptedGateway) sentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

type testEnv struct {
	store   *memory.Store
	engine  *reminder.Engine
	gateway *scriptedGateway
	clock   *clock.Fixed
	appt    *model.Appointment
	user    *model.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	clk := &clock.Fixed{T: time.Date(2025, 5, 30, 10, 0, 0, 0, time.UTC)}
	gateway := newScriptedGateway()
	engine := reminder.NewEngine(store, store, gateway, clk, nil)

	appt := &model.Appointment{
		ID:        "a1",
		UserID:    "u1",
		StaffID:   "s1",
		ServiceID: "svc1",
		StartTime: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC),
		Status:    model.AppointmentPending,
	}
	if err := store.Insert(context.Background(), appt); err != nil {
		t.Fatalf("insert appointment: %v", err)
	}
	user := &model.User{ID: "u1", Name: "Ada", Email: "ada@example.com", Phone: "+15550001"}

	return &testEnv{store: store, engine: engine, gateway: gateway, clock: clk, appt: appt, user: user}
}

func (e *testEnv) schedule(t *testing.T) {
	t.Helper()
	if err := e.engine.Schedule(context.Background(), e.appt, e.user); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
}

func TestScheduleCreatesFixedBatch(t *testing.T) {
	e := newTestEnv(t)
	e.schedule(t)

	reminders, err := e.engine.ListForAppointment(context.Background(), e.appt.ID)
	if err != nil {
		t.Fatalf("ListForAppointment: %v", err)
	}
	if len(reminders) != 3 {
		t.Fatalf("got %d reminders, want 3", len(reminders))
	}
	offsets := []time.Duration{24 * time.Hour, time.Hour, 15 * time.Minute}
	channels := []model.ReminderChannel{model.ChannelEmail, model.ChannelEmail, model.ChannelSMS}
	for i, r := range reminders {
		if got := e.appt.StartTime.Sub(r.ScheduledAt); got != offsets[i] {
			t.Fatalf("reminder[%d] offset = %s, want %s", i, got, offsets[i])
		}
		if r.Channel != channels[i] {
			t.Fatalf("reminder[%d] channel = %s, want %s", i, r.Channel, channels[i])
		}
	}
}

func TestProcessDueSendsOnlyDue(t *testing.T) {
	e := newTestEnv(t)
	e.schedule(t)
	ctx := context.Background()

	// At T-24h only the first email is due.
	now := e.appt.StartTime.Add(-24 * time.Hour)
	stats, err := e.engine.ProcessDue(ctx, now)
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if stats.Processed != 1 || stats.Sent != 1 {
		t.Fatalf("stats = %+v, want 1 processed 1 sent", stats)
	}
	if e.gateway.sentCount() != 1 {
		t.Fatalf("gateway sent %d messages, want 1", e.gateway.sentCount())
	}

	// The sent reminder is not picked up again.
	stats, err = e.engine.ProcessDue(ctx, now)
	if err != nil {
		t.Fatalf("second ProcessDue: %v", err)
	}
	if stats.Processed != 0 {
		t.Fatalf("stats = %+v, want nothing processed", stats)
	}

	// At T-15m the remaining two are due.
	now = e.appt.StartTime.Add(-15 * time.Minute)
	stats, err = e.engine.ProcessDue(ctx, now)
	if err != nil {
		t.Fatalf("third ProcessDue: %v", err)
	}
	if stats.Processed != 2 || stats.Sent != 2 {
		t.Fatalf("stats = %+v, want 2 processed 2 sent", stats)
	}

	reminders, _ := e.engine.ListForAppointment(ctx, e.appt.ID)
	for i, r := range reminders {
		if r.Status != model.ReminderSent || r.SentAt == nil {
			t.Fatalf("reminder[%d] = %s (sentAt %v), want sent", i, r.Status, r.SentAt)
		}
	}
}

func TestRetryBackoffThenTerminalFailure(t *testing.T) {
	e := newTestEnv(t)
	e.schedule(t)
	ctx := context.Background()
	e.gateway.fail[model.ChannelEmail] = errors.New("smtp unreachable")

	due := e.appt.StartTime.Add(-24 * time.Hour)

	// Three failures re-arm with doubling delays: +5m, +10m, +20m.
	now := due
	for attempt, wait := range []time.Duration{5 * time.Minute, 10 * time.Minute, 20 * time.Minute} {
		stats, err := e.engine.ProcessDue(ctx, now)
		if err != nil {
			t.Fatalf("attempt %d: %v", attempt+1, err)
		}
		if stats.Processed != 1 || stats.Rescheduled != 1 {
			t.Fatalf("attempt %d stats = %+v, want 1 rescheduled", attempt+1, stats)
		}

		reminders, _ := e.engine.ListForAppointment(ctx, e.appt.ID)
		r := reminders[0]
		if r.Status != model.ReminderPending || r.RetryCount != attempt+1 {
			t.Fatalf("attempt %d: status=%s retry=%d", attempt+1, r.Status, r.RetryCount)
		}
		wantNext := now.Add(wait)
		if !r.ScheduledAt.Equal(wantNext) {
			t.Fatalf("attempt %d: next at %s, want %s", attempt+1, r.ScheduledAt, wantNext)
		}
		if r.LastError != "smtp unreachable" {
			t.Fatalf("attempt %d: last error %q", attempt+1, r.LastError)
		}
		now = wantNext
	}

	// The fourth failure is terminal.
	stats, err := e.engine.ProcessDue(ctx, now)
	if err != nil {
		t.Fatalf("terminal attempt: %v", err)
	}
	if stats.Processed != 1 || stats.Failed != 1 {
		t.Fatalf("terminal stats = %+v, want 1 failed", stats)
	}
	reminders, _ := e.engine.ListForAppointment(ctx, e.appt.ID)
	r := reminders[0]
	if r.Status != model.ReminderFailed || r.RetryCount != 4 {
		t.Fatalf("terminal: status=%s retry=%d, want failed/4", r.Status, r.RetryCount)
	}

	// A failed reminder never comes due again.
	stats, _ = e.engine.ProcessDue(ctx, now.Add(time.Hour))
	if stats.Processed != 0 {
		t.Fatalf("failed reminder reprocessed: %+v", stats)
	}
}

func TestUndeliveredWithoutErrorRetries(t *testing.T) {
	e := newTestEnv(t)
	e.schedule(t)
	ctx := context.Background()

	// Delivery reported false with no transport error (push-style) still
	// takes the retry path.
	e.gateway.fail[model.ChannelEmail] = nil

	now := e.appt.StartTime.Add(-24 * time.Hour)
	stats, err := e.engine.ProcessDue(ctx, now)
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if stats.Rescheduled != 1 {
		t.Fatalf("stats = %+v, want 1 rescheduled", stats)
	}
	reminders, _ := e.engine.ListForAppointment(ctx, e.appt.ID)
	if reminders[0].LastError == "" {
		t.Fatal("expected a recorded delivery error")
	}
}

func TestCancelForAppointmentRetiresPendingOnly(t *testing.T) {
	e := newTestEnv(t)
	e.schedule(t)
	ctx := context.Background()

	// Send the first reminder, then cancel.
	if _, err := e.engine.ProcessDue(ctx, e.appt.StartTime.Add(-24*time.Hour)); err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	n, err := e.engine.CancelForAppointment(ctx, e.appt.ID)
	if err != nil {
		t.Fatalf("CancelForAppointment: %v", err)
	}
	if n != 2 {
		t.Fatalf("cancelled %d, want 2", n)
	}

	reminders, _ := e.engine.ListForAppointment(ctx, e.appt.ID)
	var sent, cancelled int
	for _, r := range reminders {
		switch r.Status {
		case model.ReminderSent:
			sent++
		case model.ReminderCancelled:
			cancelled++
		}
	}
	if sent != 1 || cancelled != 2 {
		t.Fatalf("sent=%d cancelled=%d, want 1 and 2", sent, cancelled)
	}

	// Nothing due after cancellation.
	stats, _ := e.engine.ProcessDue(ctx, e.appt.StartTime)
	if stats.Processed != 0 {
		t.Fatalf("cancelled reminders reprocessed: %+v", stats)
	}
}

func TestDeliveryBodyMentionsAppointmentTime(t *testing.T) {
	e := newTestEnv(t)
	e.schedule(t)

	if _, err := e.engine.ProcessDue(context.Background(), e.appt.StartTime.Add(-24*time.Hour)); err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	e.gateway.mu.Lock()
	defer e.gateway.mu.Unlock()
	if len(e.gateway.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(e.gateway.sent))
	}
	msg := e.gateway.sent[0]
	if msg.recipient != "ada@example.com" {
		t.Fatalf("recipient = %q", msg.recipient)
	}
	want := e.appt.StartTime.Format(time.RFC1123)
	if !strings.Contains(msg.body, want) {
		t.Fatalf("body %q does not mention %q", msg.body, want)
	}
}
