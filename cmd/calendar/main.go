package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/workplace-calendar/internal/application"
	"github.com/example/workplace-calendar/internal/config"
	"github.com/example/workplace-calendar/internal/persistence"
	"github.com/example/workplace-calendar/internal/persistence/sqlite"
)

// services is the composition root handed to whichever transport embeds this
// core. The binary itself only drives the reminder poller; everything else is
// exposed for the out-of-process callers that own routing and auth.
type services struct {
	Rooms          *application.RoomService
	Bookings       *application.BookingService
	Availability   *application.AvailabilityService
	Preferences    *application.PreferenceService
	Reminders      *application.ReminderService
	Participations *application.ParticipationService

	reminderRepo persistence.ReminderRepository
}

func buildServices(pool *sqlite.ConnectionPool, logger *slog.Logger) *services {
	idGenerator := uuid.NewString
	now := time.Now

	roomRepo := sqlite.NewRoomRepository(pool)
	bookingRepo := sqlite.NewBookingRepository(pool)
	eventRepo := sqlite.NewEventRepository(pool)
	preferenceRepo := sqlite.NewPreferenceRepository(pool)
	reminderRepo := sqlite.NewReminderRepository(pool)

	preferenceService := application.NewPreferenceService(preferenceRepo, reminderRepo, logger)
	reminderService := application.NewReminderService(reminderRepo, eventRepo, roomRepo, preferenceService, now, logger)

	return &services{
		Rooms:          application.NewRoomService(roomRepo, idGenerator, now, logger),
		Bookings:       application.NewBookingService(bookingRepo, roomRepo, reminderService, now, logger),
		Availability:   application.NewAvailabilityService(roomRepo, bookingRepo, logger),
		Preferences:    preferenceService,
		Reminders:      reminderService,
		Participations: application.NewParticipationService(eventRepo, reminderService, idGenerator, logger),
		reminderRepo:   reminderRepo,
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := sqlite.NewConnectionPool(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := pool.Migrate(ctx); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	svc := buildServices(pool, logger)

	if rooms, err := svc.Rooms.List(ctx); err != nil {
		logger.Error("failed to load room catalog", "error", err)
		os.Exit(1)
	} else {
		logger.Info("calendar core started",
			"rooms", len(rooms),
			"poll_interval", cfg.PollInterval.String(),
			"poll_window", cfg.PollWindow.String(),
		)
	}

	runReminderPoller(ctx, logger, svc.reminderRepo, time.Now, cfg.PollInterval, cfg.PollWindow)

	logger.Info("calendar core stopped")
}

// runReminderPoller periodically surfaces due, unsent reminders. It stands in
// for the external notifier: it logs each reminder and marks it sent so the
// next cycle does not pick it up again. Delivery itself (push, email) is out
// of scope for this core.
func runReminderPoller(ctx context.Context, logger *slog.Logger, reminders persistence.ReminderRepository, now func() time.Time, interval, window time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		from := now().UTC()
		due, err := reminders.ListUnsentRemindersDueBetween(ctx, from, from.Add(window))
		if err != nil {
			logger.Error("failed to query due reminders", "error", err)
			continue
		}

		for _, reminder := range due {
			logger.Info("reminder due",
				"reminder_id", reminder.ID,
				"user_id", reminder.UserID,
				"reminder_type", string(reminder.Type),
				"reminder_time", reminder.ReminderTime,
				"title", reminder.Title,
			)
			if _, err := reminders.MarkReminderSent(ctx, reminder.ID); err != nil {
				logger.Error("failed to mark reminder sent", "reminder_id", reminder.ID, "error", err)
			}
		}
	}
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
