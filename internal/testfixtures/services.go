package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/workplace-calendar/internal/application"
	"github.com/example/workplace-calendar/internal/persistence/memory"
)

// Services bundles the application services wired against one in-memory
// store, a deterministic clock and a deterministic id generator.
type Services struct {
	Store          *memory.Store
	Clock          *Clock
	IDGenerator    *IDGenerator
	Rooms          *application.RoomService
	Bookings       *application.BookingService
	Availability   *application.AvailabilityService
	Preferences    *application.PreferenceService
	Reminders      *application.ReminderService
	Participations *application.ParticipationService
}

// Option configures the fixture services.
type Option func(*fixtureConfig)

type fixtureConfig struct {
	clock  *Clock
	ids    *IDGenerator
	logger *slog.Logger
}

// WithClock overrides the clock used by the services.
func WithClock(clock *Clock) Option {
	return func(cfg *fixtureConfig) {
		cfg.clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the services.
func WithIDGenerator(gen *IDGenerator) Option {
	return func(cfg *fixtureConfig) {
		cfg.ids = gen
	}
}

// WithLogger overrides the logger used by the services.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *fixtureConfig) {
		cfg.logger = logger
	}
}

// NewServices constructs the full service graph over a fresh in-memory store.
func NewServices(opts ...Option) *Services {
	cfg := &fixtureConfig{
		clock: NewClock(time.Time{}),
		ids:   NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.clock == nil {
		cfg.clock = NewClock(time.Time{})
	}
	if cfg.ids == nil {
		cfg.ids = NewIDGenerator("id")
	}

	store := memory.NewStore(memory.WithNow(cfg.clock.NowFunc()))
	now := cfg.clock.NowFunc()
	ids := cfg.ids.NextFunc()
	logger := cfg.logger

	prefs := application.NewPreferenceService(store, store, logger)
	reminders := application.NewReminderService(store, store, store, prefs, now, logger)

	return &Services{
		Store:          store,
		Clock:          cfg.clock,
		IDGenerator:    cfg.ids,
		Rooms:          application.NewRoomService(store, ids, now, logger),
		Bookings:       application.NewBookingService(store, store, reminders, now, logger),
		Availability:   application.NewAvailabilityService(store, store, logger),
		Preferences:    prefs,
		Reminders:      reminders,
		Participations: application.NewParticipationService(store, reminders, ids, logger),
	}
}
