package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/workplace-calendar/internal/persistence"
	"github.com/example/workplace-calendar/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// database for integration-style persistence tests.
type SQLiteHarness struct {
	Pool        *sqlite.ConnectionPool
	Rooms       persistence.RoomRepository
	Bookings    persistence.BookingRepository
	Events      persistence.EventRepository
	Preferences persistence.PreferenceRepository
	Reminders   persistence.ReminderRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness over a temporary database file
// that is migrated automatically. Cleanup is registered with the provided
// testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "calendar.db")

	pool, err := sqlite.NewConnectionPool("file:" + path)
	if err != nil {
		tb.Fatalf("failed to open sqlite database: %v", err)
	}

	if err := pool.Migrate(context.Background()); err != nil {
		_ = pool.Close()
		tb.Fatalf("failed to migrate sqlite database: %v", err)
	}

	harness := &SQLiteHarness{
		Pool:        pool,
		Rooms:       sqlite.NewRoomRepository(pool),
		Bookings:    sqlite.NewBookingRepository(pool),
		Events:      sqlite.NewEventRepository(pool),
		Preferences: sqlite.NewPreferenceRepository(pool),
		Reminders:   sqlite.NewReminderRepository(pool),
		cleanup: func() {
			_ = pool.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
