package outbox

import (
	"context"
	"log/slog"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Sink records domain events. The booking engine calls it post-commit and
// best-effort; a sink failure is logged, never surfaced.
type Sink interface {
	Record(ctx context.Context, evt Event) error
}

// LogSink is the no-broker fallback: events only hit the log.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(_ context.Context, evt Event) error {
	s.logger.Info("domain event",
		"event_type", evt.EventType,
		"aggregate_type", evt.AggregateType,
		"aggregate_id", evt.AggregateID,
	)
	return nil
}
