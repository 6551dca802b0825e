package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/workplace-calendar/internal/persistence"
)

// PreferenceRepository implements persistence.PreferenceRepository using SQLite.
type PreferenceRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewPreferenceRepository creates a new SQLite preference repository.
func NewPreferenceRepository(pool *ConnectionPool) *PreferenceRepository {
	return &PreferenceRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// GetPreferences retrieves a user's stored preferences. Users who never stored
// one yield ErrNotFound; callers apply defaults.
func (r *PreferenceRepository) GetPreferences(ctx context.Context, userID string) (persistence.ReminderPreferences, error) {
	if userID == "" {
		return persistence.ReminderPreferences{}, persistence.ErrNotFound
	}

	var prefs persistence.ReminderPreferences
	var eventReminder, bookingReminder, advanceMinutes int
	var createdAtStr, updatedAtStr string

	err := r.helper.QueryRow(ctx, `
		SELECT user_id, event_reminder, booking_reminder, advance_minutes, created_at, updated_at
		FROM reminder_preferences WHERE user_id = ?
	`, userID).Scan(&prefs.UserID, &eventReminder, &bookingReminder, &advanceMinutes, &createdAtStr, &updatedAtStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.ReminderPreferences{}, persistence.ErrNotFound
		}
		return persistence.ReminderPreferences{}, r.mapper.MapError(err)
	}

	prefs.EventReminder = eventReminder != 0
	prefs.BookingReminder = bookingReminder != 0
	prefs.Advance = time.Duration(advanceMinutes) * time.Minute
	if prefs.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.ReminderPreferences{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if prefs.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.ReminderPreferences{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return prefs, nil
}

// SavePreferences inserts or replaces the user's preferences.
func (r *PreferenceRepository) SavePreferences(ctx context.Context, prefs persistence.ReminderPreferences) (persistence.ReminderPreferences, error) {
	if prefs.UserID == "" || prefs.Advance < 0 {
		return persistence.ReminderPreferences{}, persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()

	_, err := r.helper.Exec(ctx, `
		INSERT INTO reminder_preferences (user_id, event_reminder, booking_reminder, advance_minutes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			event_reminder = excluded.event_reminder,
			booking_reminder = excluded.booking_reminder,
			advance_minutes = excluded.advance_minutes,
			updated_at = excluded.updated_at
	`,
		prefs.UserID,
		boolToInt(prefs.EventReminder),
		boolToInt(prefs.BookingReminder),
		int(prefs.Advance/time.Minute),
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return persistence.ReminderPreferences{}, r.mapper.MapError(err)
	}

	prefs.UpdatedAt = now
	return prefs, nil
}
