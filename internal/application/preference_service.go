package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/workplace-calendar/internal/persistence"
)

// PreferenceRepository captures the preference persistence interactions needed
// by the service.
type PreferenceRepository interface {
	GetPreferences(ctx context.Context, userID string) (persistence.ReminderPreferences, error)
	SavePreferences(ctx context.Context, prefs persistence.ReminderPreferences) (persistence.ReminderPreferences, error)
}

// ReminderRetractor removes pending reminders when their preference is
// switched off.
type ReminderRetractor interface {
	DeleteUnsentRemindersOfType(ctx context.Context, userID string, rtype persistence.ReminderType) (int, error)
}

// PreferenceService manages per-user reminder settings. Users who never
// stored a preference get the defaults; the defaults are materialized without
// being persisted until the first toggle or update.
type PreferenceService struct {
	prefs     PreferenceRepository
	reminders ReminderRetractor
	logger    *slog.Logger
}

// NewPreferenceService wires dependencies for preference operations.
func NewPreferenceService(prefs PreferenceRepository, reminders ReminderRetractor, logger *slog.Logger) *PreferenceService {
	return &PreferenceService{
		prefs:     prefs,
		reminders: reminders,
		logger:    defaultLogger(logger),
	}
}

// GetOrDefault returns the user's stored preferences, or the defaults
// (both reminder kinds on, 15 minute advance) when none exist.
func (s *PreferenceService) GetOrDefault(ctx context.Context, userID string) (persistence.ReminderPreferences, error) {
	if userID == "" {
		return persistence.ReminderPreferences{}, validationError("user_id", "user id is required")
	}

	prefs, err := s.prefs.GetPreferences(ctx, userID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.DefaultReminderPreferences(userID), nil
		}
		return persistence.ReminderPreferences{}, fmt.Errorf("failed to load preferences: %w", err)
	}
	return prefs, nil
}

// ToggleEventReminder flips the event reminder flag, persists it and returns
// the new value. Disabling retracts the user's pending event reminders;
// re-enabling creates nothing retroactively.
func (s *PreferenceService) ToggleEventReminder(ctx context.Context, userID string) (bool, error) {
	return s.toggle(ctx, userID, persistence.ReminderTypeEventParticipation)
}

// ToggleBookingReminder flips the booking reminder flag, persists it and
// returns the new value. Disabling retracts the user's pending booking
// reminders; re-enabling creates nothing retroactively.
func (s *PreferenceService) ToggleBookingReminder(ctx context.Context, userID string) (bool, error) {
	return s.toggle(ctx, userID, persistence.ReminderTypeRoomBooking)
}

func (s *PreferenceService) toggle(ctx context.Context, userID string, rtype persistence.ReminderType) (bool, error) {
	prefs, err := s.GetOrDefault(ctx, userID)
	if err != nil {
		return false, err
	}

	var enabled bool
	switch rtype {
	case persistence.ReminderTypeRoomBooking:
		prefs.BookingReminder = !prefs.BookingReminder
		enabled = prefs.BookingReminder
	default:
		prefs.EventReminder = !prefs.EventReminder
		enabled = prefs.EventReminder
	}

	if _, err := s.prefs.SavePreferences(ctx, prefs); err != nil {
		return false, fmt.Errorf("failed to save preferences: %w", err)
	}

	logger := serviceLogger(ctx, s.logger, "preferences", "toggle", "user_id", userID, "reminder_type", string(rtype), "enabled", enabled)

	if !enabled && s.reminders != nil {
		retracted, err := s.reminders.DeleteUnsentRemindersOfType(ctx, userID, rtype)
		if err != nil {
			return false, fmt.Errorf("failed to retract pending reminders: %w", err)
		}
		logger.Info("preference disabled, pending reminders retracted", "retracted", retracted)
	} else {
		logger.Info("preference toggled")
	}

	return enabled, nil
}

// UpdateAdvance persists a new advance lead time. Reminder times already
// computed from the old value are left untouched.
func (s *PreferenceService) UpdateAdvance(ctx context.Context, userID string, advance time.Duration) (persistence.ReminderPreferences, error) {
	if advance < 0 {
		return persistence.ReminderPreferences{}, validationError("advance", "advance must not be negative")
	}

	prefs, err := s.GetOrDefault(ctx, userID)
	if err != nil {
		return persistence.ReminderPreferences{}, err
	}

	prefs.Advance = advance
	saved, err := s.prefs.SavePreferences(ctx, prefs)
	if err != nil {
		return persistence.ReminderPreferences{}, fmt.Errorf("failed to save preferences: %w", err)
	}
	return saved, nil
}
