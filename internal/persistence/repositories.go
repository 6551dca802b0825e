package persistence

import (
	"context"
	"time"
)

// RoomRepository exposes catalog operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	// DeleteRoom removes a room together with its bookings and their
	// reminders in a single transaction.
	DeleteRoom(ctx context.Context, id string) error
}

// BookingRepository stores room bookings. The mutating operations run the
// overlap check and the write inside one store transaction so the no-overlap
// invariant holds under concurrent callers, and they apply the supplied
// reminder mutation in the same transaction so booking and reminder state
// never diverge.
type BookingRepository interface {
	// CreateBooking inserts the booking unless it overlaps an existing one
	// on the same room and date (ErrConflict). When reminder is non-nil it
	// is inserted atomically with the booking.
	CreateBooking(ctx context.Context, booking Booking, reminder *Reminder) (Booking, error)

	// UpdateBookingTimes moves the interval of the booking identified by
	// key, re-running the overlap check against the room's other bookings
	// for that date. Reminders correlated with the old interval's start are
	// deleted; when reminder is non-nil it is inserted in their place.
	UpdateBookingTimes(ctx context.Context, key BookingKey, newStart, newEnd time.Duration, reminder *Reminder) (Booking, error)

	// DeleteBooking removes the booking matching the natural key exactly,
	// retiring its reminders in the same transaction.
	DeleteBooking(ctx context.Context, key BookingKey) (Booking, error)

	GetBooking(ctx context.Context, key BookingKey) (Booking, error)
	ListBookingsForRoom(ctx context.Context, roomID string) ([]Booking, error)
	ListBookingsForRoomOnDate(ctx context.Context, roomID string, date time.Time) ([]Booking, error)
	// CountBookingsInDateRange counts bookings for the room whose date falls
	// within [fromDate, toDate], inclusive at day granularity.
	CountBookingsInDateRange(ctx context.Context, roomID string, fromDate, toDate time.Time) (int, error)
}

// EventRepository stores the event catalog and participations.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) error
	GetEvent(ctx context.Context, id string) (Event, error)
	UpsertParticipation(ctx context.Context, participation EventParticipation) error
	GetParticipation(ctx context.Context, eventID, userID string) (EventParticipation, error)
	DeleteParticipation(ctx context.Context, eventID, userID string) error
}

// PreferenceRepository stores per-user reminder preferences.
type PreferenceRepository interface {
	// GetPreferences returns ErrNotFound for users who never stored one.
	GetPreferences(ctx context.Context, userID string) (ReminderPreferences, error)
	// SavePreferences inserts or replaces the user's preferences.
	SavePreferences(ctx context.Context, prefs ReminderPreferences) (ReminderPreferences, error)
}

// ReminderRepository stores reminder records.
type ReminderRepository interface {
	CreateReminder(ctx context.Context, reminder Reminder) (Reminder, error)

	// DeleteRemindersForSource removes reminders correlated with one source
	// instance: relatedID is the room id for booking reminders and the event
	// id for participation reminders. A nil sourceStart matches any instance.
	DeleteRemindersForSource(ctx context.Context, userID string, rtype ReminderType, relatedID string, sourceStart *time.Time) (int, error)

	// DeleteUnsentRemindersOfType removes every reminder of the given type
	// for the user that has not been sent yet.
	DeleteUnsentRemindersOfType(ctx context.Context, userID string, rtype ReminderType) (int, error)

	ListRemindersForUser(ctx context.Context, userID string) ([]Reminder, error)
	// ListRemindersDueBetween returns the user's reminders with
	// from <= ReminderTime < to, earliest first.
	ListRemindersDueBetween(ctx context.Context, userID string, from, to time.Time) ([]Reminder, error)
	// ListUnsentRemindersDueBetween is the cross-user variant feeding the
	// delivery poller.
	ListUnsentRemindersDueBetween(ctx context.Context, from, to time.Time) ([]Reminder, error)

	// MarkReminderRead flags the reminder as read. It reports false when the
	// id does not exist and is safe to repeat.
	MarkReminderRead(ctx context.Context, id int64) (bool, error)
	// MarkReminderSent flags the reminder as handed to the notifier.
	MarkReminderSent(ctx context.Context, id int64) (bool, error)
}
