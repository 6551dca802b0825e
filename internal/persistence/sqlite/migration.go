package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migration pairs a monotonically increasing version with the statements that
// bring the schema to it.
type migration struct {
	version    int
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS rooms (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL UNIQUE,
				location TEXT,
				capacity INTEGER NOT NULL CHECK (capacity >= 0),
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
		},
	},
	{
		version: 2,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS bookings (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				room_id TEXT NOT NULL REFERENCES rooms(id),
				user_id TEXT NOT NULL,
				booking_date TEXT NOT NULL,
				start_minute INTEGER NOT NULL CHECK (start_minute >= 0),
				end_minute INTEGER NOT NULL CHECK (end_minute <= 1440 AND start_minute < end_minute),
				purpose TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				UNIQUE (room_id, booking_date, start_minute)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_bookings_room_date ON bookings (room_id, booking_date)`,
		},
	},
	{
		version: 3,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS events (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				start_time TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS event_participations (
				event_id TEXT NOT NULL REFERENCES events(id),
				user_id TEXT NOT NULL,
				status TEXT NOT NULL CHECK (status IN ('pending', 'accepted', 'declined')),
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				PRIMARY KEY (event_id, user_id)
			)`,
		},
	},
	{
		version: 4,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS reminder_preferences (
				user_id TEXT PRIMARY KEY,
				event_reminder INTEGER NOT NULL DEFAULT 1,
				booking_reminder INTEGER NOT NULL DEFAULT 1,
				advance_minutes INTEGER NOT NULL CHECK (advance_minutes >= 0),
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
		},
	},
	{
		version: 5,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS reminders (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id TEXT NOT NULL,
				reminder_type TEXT NOT NULL CHECK (reminder_type IN ('room_booking', 'event_participation')),
				room_id TEXT,
				event_id TEXT,
				source_start TEXT NOT NULL,
				reminder_time TEXT NOT NULL,
				title TEXT,
				message TEXT,
				is_sent INTEGER NOT NULL DEFAULT 0,
				is_read INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_reminders_user_due ON reminders (user_id, reminder_time)`,
			`CREATE INDEX IF NOT EXISTS idx_reminders_source ON reminders (user_id, reminder_type, room_id, event_id, source_start)`,
		},
	},
}

// Migrate applies pending schema migrations, tracking progress in the
// schema_migrations table. It is safe to call on every startup.
func (cp *ConnectionPool) Migrate(ctx context.Context) error {
	_, err := cp.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	)`)
	if err != nil {
		return fmt.Errorf("failed to prepare migrations table: %w", err)
	}

	var current sql.NullInt64
	if err := cp.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if current.Valid && m.version <= int(current.Int64) {
			continue
		}
		err := cp.WithTransaction(ctx, func(tx *sql.Tx) error {
			for _, stmt := range m.statements {
				if _, err := tx.Exec(stmt); err != nil {
					return fmt.Errorf("migration %d failed: %w", m.version, err)
				}
			}
			if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", m.version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}
