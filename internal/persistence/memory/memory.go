// Package memory provides an in-memory implementation of the persistence
// repositories. It mirrors the SQLite implementation's semantics, including
// atomic check-then-insert for bookings, and backs unit tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/workplace-calendar/internal/interval"
	"github.com/example/workplace-calendar/internal/persistence"
)

// Store holds all records behind a single mutex. The mutex spans the overlap
// check and the insert in booking writes, which is what makes concurrent
// creates safe here.
type Store struct {
	mu             sync.RWMutex
	now            func() time.Time
	rooms          map[string]persistence.Room
	bookings       map[int64]persistence.Booking
	events         map[string]persistence.Event
	participations map[participationKey]persistence.EventParticipation
	preferences    map[string]persistence.ReminderPreferences
	reminders      map[int64]persistence.Reminder
	nextBookingID  int64
	nextReminderID int64
}

type participationKey struct {
	eventID string
	userID  string
}

// Option configures a Store.
type Option func(*Store)

// WithNow overrides the clock used for record timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore returns an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:            time.Now,
		rooms:          make(map[string]persistence.Room),
		bookings:       make(map[int64]persistence.Booking),
		events:         make(map[string]persistence.Event),
		participations: make(map[participationKey]persistence.EventParticipation),
		preferences:    make(map[string]persistence.ReminderPreferences),
		reminders:      make(map[int64]persistence.Reminder),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// --- RoomRepository implementation ---

// CreateRoom stores a new room.
func (s *Store) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity < 0 {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; ok {
		return persistence.ErrDuplicate
	}
	for _, existing := range s.rooms {
		if existing.Name == room.Name {
			return persistence.ErrDuplicate
		}
	}

	now := s.now().UTC()
	room.CreatedAt = now
	room.UpdatedAt = now
	s.rooms[room.ID] = room
	return nil
}

// UpdateRoom updates an existing room.
func (s *Store) UpdateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity < 0 {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rooms[room.ID]
	if !ok {
		return persistence.ErrNotFound
	}

	room.CreatedAt = existing.CreatedAt
	room.UpdatedAt = s.now().UTC()
	s.rooms[room.ID] = room
	return nil
}

// GetRoom retrieves a room by ID.
func (s *Store) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return room, nil
}

// ListRooms returns all rooms ordered by name then ID.
func (s *Store) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]persistence.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Name == rooms[j].Name {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].Name < rooms[j].Name
	})
	return rooms, nil
}

// DeleteRoom removes a room, cascading to its bookings and their reminders.
func (s *Store) DeleteRoom(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[id]; !ok {
		return persistence.ErrNotFound
	}

	for bid, booking := range s.bookings {
		if booking.RoomID == id {
			delete(s.bookings, bid)
		}
	}
	for rid, reminder := range s.reminders {
		if reminder.Type == persistence.ReminderTypeRoomBooking && reminder.RoomID == id {
			delete(s.reminders, rid)
		}
	}
	delete(s.rooms, id)
	return nil
}

// --- BookingRepository implementation ---

// CreateBooking inserts a booking unless it overlaps an existing one for the
// same room and date. The reminder, when non-nil, is stored atomically.
func (s *Store) CreateBooking(ctx context.Context, booking persistence.Booking, reminder *persistence.Reminder) (persistence.Booking, error) {
	candidate := interval.Interval{Start: booking.Start, End: booking.End}
	if !candidate.Valid() {
		return persistence.Booking{}, persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	booking.Date = interval.DateOf(booking.Date)
	if _, conflict := interval.FirstConflict(s.occupiedLocked(booking.RoomID, booking.Date, 0), candidate); conflict {
		return persistence.Booking{}, persistence.ErrConflict
	}

	now := s.now().UTC()
	s.nextBookingID++
	booking.ID = s.nextBookingID
	booking.CreatedAt = now
	booking.UpdatedAt = now
	s.bookings[booking.ID] = booking

	if reminder != nil {
		s.insertReminderLocked(*reminder, now)
	}

	return booking, nil
}

// UpdateBookingTimes moves a booking's interval, re-validating the overlap
// invariant and swapping its reminder in the same critical section.
func (s *Store) UpdateBookingTimes(ctx context.Context, key persistence.BookingKey, newStart, newEnd time.Duration, reminder *persistence.Reminder) (persistence.Booking, error) {
	candidate := interval.Interval{Start: newStart, End: newEnd}
	if !candidate.Valid() {
		return persistence.Booking{}, persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.findByKeyLocked(key)
	if !ok {
		return persistence.Booking{}, persistence.ErrNotFound
	}

	if _, conflict := interval.FirstConflict(s.occupiedLocked(existing.RoomID, existing.Date, existing.ID), candidate); conflict {
		return persistence.Booking{}, persistence.ErrConflict
	}

	oldStart := existing.Date.Add(existing.Start)
	s.deleteRemindersForSourceLocked(existing.UserID, persistence.ReminderTypeRoomBooking, existing.RoomID, &oldStart)

	now := s.now().UTC()
	existing.Start = newStart
	existing.End = newEnd
	existing.UpdatedAt = now
	s.bookings[existing.ID] = existing

	if reminder != nil {
		s.insertReminderLocked(*reminder, now)
	}

	return existing, nil
}

// DeleteBooking removes the booking matching the natural key exactly together
// with its reminders.
func (s *Store) DeleteBooking(ctx context.Context, key persistence.BookingKey) (persistence.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.findByKeyLocked(key)
	if !ok {
		return persistence.Booking{}, persistence.ErrNotFound
	}

	delete(s.bookings, existing.ID)
	sourceStart := existing.Date.Add(existing.Start)
	s.deleteRemindersForSourceLocked(existing.UserID, persistence.ReminderTypeRoomBooking, existing.RoomID, &sourceStart)

	return existing, nil
}

// GetBooking retrieves a booking by its natural key.
func (s *Store) GetBooking(ctx context.Context, key persistence.BookingKey) (persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	existing, ok := s.findByKeyLocked(key)
	if !ok {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	return existing, nil
}

// ListBookingsForRoom returns all bookings for a room ordered by date then
// start time.
func (s *Store) ListBookingsForRoom(ctx context.Context, roomID string) ([]persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var bookings []persistence.Booking
	for _, booking := range s.bookings {
		if booking.RoomID == roomID {
			bookings = append(bookings, booking)
		}
	}
	sortBookings(bookings)
	return bookings, nil
}

// ListBookingsForRoomOnDate returns the room's bookings for one calendar date.
func (s *Store) ListBookingsForRoomOnDate(ctx context.Context, roomID string, date time.Time) ([]persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := interval.DateOf(date)
	var bookings []persistence.Booking
	for _, booking := range s.bookings {
		if booking.RoomID == roomID && booking.Date.Equal(day) {
			bookings = append(bookings, booking)
		}
	}
	sortBookings(bookings)
	return bookings, nil
}

// CountBookingsInDateRange counts the room's bookings with dates inside
// [fromDate, toDate] at day granularity.
func (s *Store) CountBookingsInDateRange(ctx context.Context, roomID string, fromDate, toDate time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from := interval.DateOf(fromDate)
	to := interval.DateOf(toDate)
	count := 0
	for _, booking := range s.bookings {
		if booking.RoomID != roomID {
			continue
		}
		if booking.Date.Before(from) || booking.Date.After(to) {
			continue
		}
		count++
	}
	return count, nil
}

// --- EventRepository implementation ---

// CreateEvent stores a new event catalog entry.
func (s *Store) CreateEvent(ctx context.Context, event persistence.Event) error {
	if event.ID == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[event.ID]; ok {
		return persistence.ErrDuplicate
	}

	now := s.now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now
	s.events[event.ID] = event
	return nil
}

// GetEvent retrieves an event by ID.
func (s *Store) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[id]
	if !ok {
		return persistence.Event{}, persistence.ErrNotFound
	}
	return event, nil
}

// UpsertParticipation inserts or replaces a participation row.
func (s *Store) UpsertParticipation(ctx context.Context, participation persistence.EventParticipation) error {
	if participation.EventID == "" || participation.UserID == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[participation.EventID]; !ok {
		return persistence.ErrForeignKeyViolation
	}

	key := participationKey{eventID: participation.EventID, userID: participation.UserID}
	now := s.now().UTC()
	if existing, ok := s.participations[key]; ok {
		participation.CreatedAt = existing.CreatedAt
	} else {
		participation.CreatedAt = now
	}
	participation.UpdatedAt = now
	s.participations[key] = participation
	return nil
}

// GetParticipation retrieves one participation row.
func (s *Store) GetParticipation(ctx context.Context, eventID, userID string) (persistence.EventParticipation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.participations[participationKey{eventID: eventID, userID: userID}]
	if !ok {
		return persistence.EventParticipation{}, persistence.ErrNotFound
	}
	return p, nil
}

// DeleteParticipation removes a participation row.
func (s *Store) DeleteParticipation(ctx context.Context, eventID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := participationKey{eventID: eventID, userID: userID}
	if _, ok := s.participations[key]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.participations, key)
	return nil
}

// --- PreferenceRepository implementation ---

// GetPreferences retrieves a user's stored preferences.
func (s *Store) GetPreferences(ctx context.Context, userID string) (persistence.ReminderPreferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefs, ok := s.preferences[userID]
	if !ok {
		return persistence.ReminderPreferences{}, persistence.ErrNotFound
	}
	return prefs, nil
}

// SavePreferences inserts or replaces the user's preferences.
func (s *Store) SavePreferences(ctx context.Context, prefs persistence.ReminderPreferences) (persistence.ReminderPreferences, error) {
	if prefs.UserID == "" || prefs.Advance < 0 {
		return persistence.ReminderPreferences{}, persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if existing, ok := s.preferences[prefs.UserID]; ok {
		prefs.CreatedAt = existing.CreatedAt
	} else {
		prefs.CreatedAt = now
	}
	prefs.UpdatedAt = now
	s.preferences[prefs.UserID] = prefs
	return prefs, nil
}

// --- ReminderRepository implementation ---

// CreateReminder stores a reminder record.
func (s *Store) CreateReminder(ctx context.Context, reminder persistence.Reminder) (persistence.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertReminderLocked(reminder, s.now().UTC()), nil
}

// DeleteRemindersForSource removes reminders correlated with one source
// instance. A nil sourceStart matches any instance.
func (s *Store) DeleteRemindersForSource(ctx context.Context, userID string, rtype persistence.ReminderType, relatedID string, sourceStart *time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deleteRemindersForSourceLocked(userID, rtype, relatedID, sourceStart), nil
}

// DeleteUnsentRemindersOfType removes every unsent reminder of the type for
// the user.
func (s *Store) DeleteUnsentRemindersOfType(ctx context.Context, userID string, rtype persistence.ReminderType) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, reminder := range s.reminders {
		if reminder.UserID == userID && reminder.Type == rtype && !reminder.IsSent {
			delete(s.reminders, id)
			deleted++
		}
	}
	return deleted, nil
}

// ListRemindersForUser returns all reminders for a user, earliest firing time
// first.
func (s *Store) ListRemindersForUser(ctx context.Context, userID string) ([]persistence.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var reminders []persistence.Reminder
	for _, reminder := range s.reminders {
		if reminder.UserID == userID {
			reminders = append(reminders, reminder)
		}
	}
	sortReminders(reminders)
	return reminders, nil
}

// ListRemindersDueBetween returns the user's reminders with
// from <= ReminderTime < to, earliest first.
func (s *Store) ListRemindersDueBetween(ctx context.Context, userID string, from, to time.Time) ([]persistence.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var reminders []persistence.Reminder
	for _, reminder := range s.reminders {
		if reminder.UserID != userID {
			continue
		}
		if reminder.ReminderTime.Before(from) || !reminder.ReminderTime.Before(to) {
			continue
		}
		reminders = append(reminders, reminder)
	}
	sortReminders(reminders)
	return reminders, nil
}

// ListUnsentRemindersDueBetween returns unsent reminders across all users in
// the window, earliest first.
func (s *Store) ListUnsentRemindersDueBetween(ctx context.Context, from, to time.Time) ([]persistence.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var reminders []persistence.Reminder
	for _, reminder := range s.reminders {
		if reminder.IsSent {
			continue
		}
		if reminder.ReminderTime.Before(from) || !reminder.ReminderTime.Before(to) {
			continue
		}
		reminders = append(reminders, reminder)
	}
	sortReminders(reminders)
	return reminders, nil
}

// MarkReminderRead flags the reminder as read, reporting false for unknown ids.
func (s *Store) MarkReminderRead(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminder, ok := s.reminders[id]
	if !ok {
		return false, nil
	}
	reminder.IsRead = true
	s.reminders[id] = reminder
	return true, nil
}

// MarkReminderSent flags the reminder as handed to the notifier.
func (s *Store) MarkReminderSent(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminder, ok := s.reminders[id]
	if !ok {
		return false, nil
	}
	reminder.IsSent = true
	s.reminders[id] = reminder
	return true, nil
}

// --- internal helpers ---

func (s *Store) occupiedLocked(roomID string, date time.Time, excludeID int64) []interval.Booked {
	var occupied []interval.Booked
	for _, booking := range s.bookings {
		if booking.RoomID != roomID || !booking.Date.Equal(date) || booking.ID == excludeID {
			continue
		}
		occupied = append(occupied, interval.Booked{
			BookingID: booking.ID,
			UserID:    booking.UserID,
			Interval:  interval.Interval{Start: booking.Start, End: booking.End},
		})
	}
	return occupied
}

func (s *Store) findByKeyLocked(key persistence.BookingKey) (persistence.Booking, bool) {
	day := interval.DateOf(key.Date)
	for _, booking := range s.bookings {
		if booking.RoomID == key.RoomID &&
			booking.UserID == key.UserID &&
			booking.Date.Equal(day) &&
			booking.Start == key.Start &&
			booking.End == key.End {
			return booking, true
		}
	}
	return persistence.Booking{}, false
}

func (s *Store) insertReminderLocked(reminder persistence.Reminder, now time.Time) persistence.Reminder {
	s.nextReminderID++
	reminder.ID = s.nextReminderID
	reminder.CreatedAt = now
	s.reminders[reminder.ID] = reminder
	return reminder
}

func (s *Store) deleteRemindersForSourceLocked(userID string, rtype persistence.ReminderType, relatedID string, sourceStart *time.Time) int {
	deleted := 0
	for id, reminder := range s.reminders {
		if reminder.UserID != userID || reminder.Type != rtype {
			continue
		}
		switch rtype {
		case persistence.ReminderTypeRoomBooking:
			if reminder.RoomID != relatedID {
				continue
			}
		default:
			if reminder.EventID != relatedID {
				continue
			}
		}
		if sourceStart != nil && !reminder.SourceStart.Equal(*sourceStart) {
			continue
		}
		delete(s.reminders, id)
		deleted++
	}
	return deleted
}

func sortBookings(bookings []persistence.Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].Date.Equal(bookings[j].Date) {
			return bookings[i].Start < bookings[j].Start
		}
		return bookings[i].Date.Before(bookings[j].Date)
	})
}

func sortReminders(reminders []persistence.Reminder) {
	sort.Slice(reminders, func(i, j int) bool {
		if reminders[i].ReminderTime.Equal(reminders[j].ReminderTime) {
			return reminders[i].ID < reminders[j].ID
		}
		return reminders[i].ReminderTime.Before(reminders[j].ReminderTime)
	})
}
