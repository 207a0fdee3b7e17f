// booking-service runs the due-reminder processor on a cron schedule and
// publishes outbox events to Kafka. The booking engine itself is consumed as
// a Go API by the surrounding service layer; this binary hosts the periodic
// and ops surfaces.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/apptbook/libs/config"
	"github.com/md-rashed-zaman/apptbook/libs/db"
	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	"github.com/md-rashed-zaman/apptbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/apptbook/libs/otel"
	"github.com/md-rashed-zaman/apptbook/libs/redisx"
	"github.com/md-rashed-zaman/apptbook/libs/runtime"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/clock"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/reminder"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/storage/memory"
)

const serviceName = "booking-service"

func main() {
	_ = godotenv.Load()

	logger := runtime.NewLogger(serviceName)

	ctx, stop := runtime.SignalContext()
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	shutdownTracing, err := otelx.Setup(ctx, otelx.ConfigFromEnv(serviceName))
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	var (
		pool         *db.Pool
		reminders    reminder.Store
		appointments reminder.AppointmentGetter
	)
	if databaseURL := config.String("DATABASE_URL", ""); databaseURL != "" {
		pool, err = db.Open(ctx, databaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		reminders = storage.NewReminderRepository(pool)
		appointments = storage.NewAppointmentRepository(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store (state is lost on restart)")
		mem := memory.NewStore()
		reminders, appointments = mem, mem
	}

	rdb := redisx.Open(config.String("REDIS_ADDR", ""))
	if rdb != nil {
		defer rdb.Close()
	}

	dispatcher := notify.NewDispatcher(
		notify.NewSMTPSender(
			config.String("SMTP_HOST", "localhost"),
			config.String("SMTP_PORT", "1025"),
			config.String("SMTP_FROM", ""),
		),
		notify.NewWebhookSMSSender(
			config.String("SMS_WEBHOOK_URL", ""),
			config.String("SMS_WEBHOOK_TOKEN", ""),
		),
		logger,
	)

	engine := reminder.NewEngine(reminders, appointments, dispatcher, clock.System(), logger)

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	if pool != nil {
		publisher := outbox.NewPublisher(pool, outbox.NewRepository(pool), logger, outbox.PublisherConfig{
			Brokers:   kafkaBrokers,
			PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
		})
		go publisher.Run(ctx)
	}

	// Cross-instance exclusion: at most one instance processes a given tick.
	mutex := redisx.NewMutex(rdb, "apptbook:reminders:run", config.Duration("REMINDER_LOCK_TTL", time.Minute))

	c := cron.New()
	cronSpec := config.String("REMINDER_CRON", "* * * * *")
	if _, err := c.AddFunc(cronSpec, func() {
		runDueReminders(ctx, engine, mutex, logger)
	}); err != nil {
		return err
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()
	logger.Info("reminder processor scheduled", "cron", cronSpec)

	port, err := config.Port("PORT", "8084")
	if err != nil {
		return err
	}

	var checks []runtime.ReadyCheck
	if pool != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "postgres", Check: db.ReadyCheck(pool)})
	}
	if kafkaBrokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)})
	}
	if rdb != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: redisx.ReadyCheck(rdb)})
	}

	handler := httpx.Chain(
		otelhttp.NewHandler(runtime.NewBaseMuxWithReady(checks...), serviceName),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithTimeout(5*time.Second),
	)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ops server listening", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(sctx)
}

func runDueReminders(ctx context.Context, engine *reminder.Engine, mutex *redisx.Mutex, logger *slog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 50*time.Second)
	defer cancel()

	token := uuid.NewString()
	ok, release, err := mutex.TryLock(runCtx, token)
	if err != nil {
		logger.Error("reminder run lock failed", "err", err)
		return
	}
	if !ok {
		logger.Debug("reminder run held by another instance, skipping")
		return
	}
	defer release(runCtx)

	if _, err := engine.ProcessDue(runCtx, time.Now().UTC()); err != nil {
		logger.Error("due reminder run failed", "err", err)
	}
}
