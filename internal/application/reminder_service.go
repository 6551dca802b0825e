package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/workplace-calendar/internal/persistence"
)

// ReminderRepository captures the reminder persistence interactions needed by
// the engine.
type ReminderRepository interface {
	CreateReminder(ctx context.Context, reminder persistence.Reminder) (persistence.Reminder, error)
	DeleteRemindersForSource(ctx context.Context, userID string, rtype persistence.ReminderType, relatedID string, sourceStart *time.Time) (int, error)
	ListRemindersForUser(ctx context.Context, userID string) ([]persistence.Reminder, error)
	ListRemindersDueBetween(ctx context.Context, userID string, from, to time.Time) ([]persistence.Reminder, error)
	MarkReminderRead(ctx context.Context, id int64) (bool, error)
}

// EventCatalog exposes event lookup for participation reminders.
type EventCatalog interface {
	GetEvent(ctx context.Context, id string) (persistence.Event, error)
}

// RoomCatalog exposes room lookup operations.
type RoomCatalog interface {
	GetRoom(ctx context.Context, id string) (persistence.Room, error)
}

// ReminderService derives reminder records from bookings and event
// participations. It decides when a reminder should fire; delivery is an
// external concern that polls GetDueInWindow.
//
// At most one active reminder exists per source instance: every recomputation
// deletes the reminders correlated with the prior instance before inserting
// the replacement.
type ReminderService struct {
	reminders ReminderRepository
	events    EventCatalog
	rooms     RoomCatalog
	prefs     *PreferenceService
	now       func() time.Time
	logger    *slog.Logger
}

// NewReminderService wires dependencies for reminder derivation.
func NewReminderService(reminders ReminderRepository, events EventCatalog, rooms RoomCatalog, prefs *PreferenceService, now func() time.Time, logger *slog.Logger) *ReminderService {
	if now == nil {
		now = time.Now
	}
	return &ReminderService{
		reminders: reminders,
		events:    events,
		rooms:     rooms,
		prefs:     prefs,
		now:       now,
		logger:    defaultLogger(logger),
	}
}

// BuildBookingReminder computes the reminder record for a booking without
// persisting it. It returns nil when the owner's booking reminders are
// disabled, which silently suppresses creation.
func (s *ReminderService) BuildBookingReminder(ctx context.Context, booking persistence.Booking) (*persistence.Reminder, error) {
	prefs, err := s.prefs.GetOrDefault(ctx, booking.UserID)
	if err != nil {
		return nil, err
	}
	if !prefs.BookingReminder {
		return nil, nil
	}

	start := booking.StartsAt()
	reminder := &persistence.Reminder{
		UserID:       booking.UserID,
		Type:         persistence.ReminderTypeRoomBooking,
		RoomID:       booking.RoomID,
		SourceStart:  start,
		ReminderTime: start.Add(-prefs.Advance),
		Title:        "Upcoming room booking",
		Message:      s.bookingMessage(ctx, booking),
	}
	return reminder, nil
}

// OnBookingCreated records a reminder for a freshly created booking. It is a
// no-op returning (nil, nil) when the owner disabled booking reminders.
func (s *ReminderService) OnBookingCreated(ctx context.Context, booking persistence.Booking) (*persistence.Reminder, error) {
	logger := serviceLogger(ctx, s.logger, "reminders", "on_booking_created", "user_id", booking.UserID, "room_id", booking.RoomID)

	draft, err := s.BuildBookingReminder(ctx, booking)
	if err != nil {
		logger.Error("failed to derive booking reminder", "error", err)
		return nil, err
	}
	if draft == nil {
		return nil, nil
	}

	persisted, err := s.reminders.CreateReminder(ctx, *draft)
	if err != nil {
		logger.Error("failed to store booking reminder", "error", err)
		return nil, fmt.Errorf("failed to store booking reminder: %w", err)
	}

	logger.Info("booking reminder created", "reminder_id", persisted.ID, "reminder_time", persisted.ReminderTime)
	return &persisted, nil
}

// OnBookingTimeChanged retires the reminders correlated with the old booking
// instance and records one for the updated instance.
func (s *ReminderService) OnBookingTimeChanged(ctx context.Context, oldKey persistence.BookingKey, updated persistence.Booking) (*persistence.Reminder, error) {
	oldStart := oldKey.Date.Add(oldKey.Start)
	if _, err := s.reminders.DeleteRemindersForSource(ctx, oldKey.UserID, persistence.ReminderTypeRoomBooking, oldKey.RoomID, &oldStart); err != nil {
		return nil, fmt.Errorf("failed to retire stale booking reminders: %w", err)
	}
	return s.OnBookingCreated(ctx, updated)
}

// OnBookingDeleted retires the reminders correlated with a deleted booking.
// Absent reminders are not an error.
func (s *ReminderService) OnBookingDeleted(ctx context.Context, userID, roomID string, date time.Time, start time.Duration) error {
	sourceStart := date.Add(start)
	if _, err := s.reminders.DeleteRemindersForSource(ctx, userID, persistence.ReminderTypeRoomBooking, roomID, &sourceStart); err != nil {
		return fmt.Errorf("failed to retire booking reminders: %w", err)
	}
	return nil
}

// OnParticipationAccepted records a reminder for an accepted event
// participation. Non-accepted statuses and disabled event reminders yield
// (nil, nil).
func (s *ReminderService) OnParticipationAccepted(ctx context.Context, participation persistence.EventParticipation) (*persistence.Reminder, error) {
	logger := serviceLogger(ctx, s.logger, "reminders", "on_participation_accepted", "user_id", participation.UserID, "event_id", participation.EventID)

	if participation.Status != persistence.ParticipationAccepted {
		return nil, nil
	}

	prefs, err := s.prefs.GetOrDefault(ctx, participation.UserID)
	if err != nil {
		return nil, err
	}
	if !prefs.EventReminder {
		return nil, nil
	}

	event, err := s.events.GetEvent(ctx, participation.EventID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, ErrNotFound
		}
		logger.Error("failed to load event", "error", err)
		return nil, fmt.Errorf("failed to load event %s: %w", participation.EventID, err)
	}

	// Re-accepting or moving the event must never leave two active
	// reminders for the same participation.
	if _, err := s.reminders.DeleteRemindersForSource(ctx, participation.UserID, persistence.ReminderTypeEventParticipation, participation.EventID, nil); err != nil {
		return nil, fmt.Errorf("failed to retire stale participation reminders: %w", err)
	}

	reminder := persistence.Reminder{
		UserID:       participation.UserID,
		Type:         persistence.ReminderTypeEventParticipation,
		EventID:      participation.EventID,
		SourceStart:  event.Start,
		ReminderTime: event.Start.Add(-prefs.Advance),
		Title:        "Upcoming event",
		Message:      fmt.Sprintf("%s starts at %s", event.Title, event.Start.UTC().Format(time.RFC3339)),
	}

	persisted, err := s.reminders.CreateReminder(ctx, reminder)
	if err != nil {
		logger.Error("failed to store participation reminder", "error", err)
		return nil, fmt.Errorf("failed to store participation reminder: %w", err)
	}

	logger.Info("participation reminder created", "reminder_id", persisted.ID, "reminder_time", persisted.ReminderTime)
	return &persisted, nil
}

// OnParticipationDeleted retires every reminder for the user's participation
// in the event. Absent reminders are not an error.
func (s *ReminderService) OnParticipationDeleted(ctx context.Context, userID, eventID string) error {
	if _, err := s.reminders.DeleteRemindersForSource(ctx, userID, persistence.ReminderTypeEventParticipation, eventID, nil); err != nil {
		return fmt.Errorf("failed to retire participation reminders: %w", err)
	}
	return nil
}

// GetByUser returns all reminders for a user, in any state.
func (s *ReminderService) GetByUser(ctx context.Context, userID string) ([]persistence.Reminder, error) {
	if userID == "" {
		return nil, validationError("user_id", "user id is required")
	}
	reminders, err := s.reminders.ListRemindersForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return reminders, nil
}

// GetDueInWindow returns the user's reminders with from <= time < to, earliest
// first. An empty or inverted window yields no reminders.
func (s *ReminderService) GetDueInWindow(ctx context.Context, userID string, from, to time.Time) ([]persistence.Reminder, error) {
	if userID == "" {
		return nil, validationError("user_id", "user id is required")
	}
	if !from.Before(to) {
		return nil, nil
	}
	reminders, err := s.reminders.ListRemindersDueBetween(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query due reminders: %w", err)
	}
	return reminders, nil
}

// MarkAsRead flags a reminder as read. It reports false for unknown ids and
// is safe to repeat; re-marking a read reminder is not an error.
func (s *ReminderService) MarkAsRead(ctx context.Context, id int64) (bool, error) {
	ok, err := s.reminders.MarkReminderRead(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark reminder read: %w", err)
	}
	return ok, nil
}

func (s *ReminderService) bookingMessage(ctx context.Context, booking persistence.Booking) string {
	roomName := booking.RoomID
	if s.rooms != nil {
		if room, err := s.rooms.GetRoom(ctx, booking.RoomID); err == nil {
			roomName = room.Name
		}
	}
	return fmt.Sprintf("%s is booked from %s to %s on %s",
		roomName,
		formatOffset(booking.Start),
		formatOffset(booking.End),
		booking.Date.Format("2006-01-02"),
	)
}

func formatOffset(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}
