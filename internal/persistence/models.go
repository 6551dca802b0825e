package persistence

import "time"

// Room represents a bookable meeting room catalog entry.
type Room struct {
	ID        string
	Name      string
	Location  string
	Capacity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BookingKey is the natural key identifying a booking: the business fields a
// caller already holds, rather than the surrogate row id.
type BookingKey struct {
	RoomID string
	UserID string
	Date   time.Time
	Start  time.Duration
	End    time.Duration
}

// Booking represents a room reservation for a single calendar date. Date is
// midnight UTC; Start and End are half-open time-of-day offsets within it.
type Booking struct {
	ID        int64
	RoomID    string
	UserID    string
	Date      time.Time
	Start     time.Duration
	End       time.Duration
	Purpose   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key returns the natural key of the booking.
func (b Booking) Key() BookingKey {
	return BookingKey{
		RoomID: b.RoomID,
		UserID: b.UserID,
		Date:   b.Date,
		Start:  b.Start,
		End:    b.End,
	}
}

// StartsAt returns the absolute start instant of the booking.
func (b Booking) StartsAt() time.Time {
	return b.Date.Add(b.Start)
}

// Event represents a calendar event acting as a reminder source. Event
// management itself lives outside this module; only the fields reminder
// derivation needs are stored.
type Event struct {
	ID        string
	Title     string
	Start     time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ParticipationStatus enumerates the states of an event participation.
type ParticipationStatus string

const (
	ParticipationPending  ParticipationStatus = "pending"
	ParticipationAccepted ParticipationStatus = "accepted"
	ParticipationDeclined ParticipationStatus = "declined"
)

// EventParticipation links a user to an event.
type EventParticipation struct {
	EventID   string
	UserID    string
	Status    ParticipationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultReminderAdvance is the lead time applied until a user stores their
// own preference.
const DefaultReminderAdvance = 15 * time.Minute

// ReminderPreferences holds a user's reminder settings.
type ReminderPreferences struct {
	UserID          string
	EventReminder   bool
	BookingReminder bool
	Advance         time.Duration
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DefaultReminderPreferences returns the settings applied to users who have
// never stored a preference.
func DefaultReminderPreferences(userID string) ReminderPreferences {
	return ReminderPreferences{
		UserID:          userID,
		EventReminder:   true,
		BookingReminder: true,
		Advance:         DefaultReminderAdvance,
	}
}

// ReminderType distinguishes the source entity a reminder was derived from.
type ReminderType string

const (
	ReminderTypeRoomBooking        ReminderType = "room_booking"
	ReminderTypeEventParticipation ReminderType = "event_participation"
)

// Reminder is a pending notification record. SourceStart correlates the
// reminder with a specific instance of its source (the booking's date+start or
// the event's start), so recomputation can retire stale rows.
type Reminder struct {
	ID           int64
	UserID       string
	Type         ReminderType
	RoomID       string
	EventID      string
	SourceStart  time.Time
	ReminderTime time.Time
	Title        string
	Message      string
	IsSent       bool
	IsRead       bool
	CreatedAt    time.Time
}
