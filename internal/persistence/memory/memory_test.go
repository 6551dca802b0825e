package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/workplace-calendar/internal/persistence"
	"github.com/example/workplace-calendar/internal/persistence/memory"
	"github.com/example/workplace-calendar/internal/testfixtures"
)

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	clock := testfixtures.NewClock(time.Time{})
	return memory.NewStore(memory.WithNow(clock.NowFunc()))
}

func mustBooking(t *testing.T, store *memory.Store, roomID, userID string, start time.Duration) persistence.Booking {
	t.Helper()
	booking, err := store.CreateBooking(context.Background(), testfixtures.SampleBooking(roomID, userID, start), nil)
	require.NoError(t, err)
	return booking
}

func TestStoreRoomConstraints(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateRoom(ctx, testfixtures.SampleRoom("r1")))

	err := store.CreateRoom(ctx, testfixtures.SampleRoom("r1"))
	assert.ErrorIs(t, err, persistence.ErrDuplicate)

	clash := testfixtures.SampleRoom("r2")
	clash.Name = "Room r1"
	assert.ErrorIs(t, store.CreateRoom(ctx, clash), persistence.ErrDuplicate, "room names are unique")

	bad := testfixtures.SampleRoom("r3")
	bad.Capacity = -1
	assert.ErrorIs(t, store.CreateRoom(ctx, bad), persistence.ErrConstraintViolation)

	assert.ErrorIs(t, store.UpdateRoom(ctx, testfixtures.SampleRoom("missing")), persistence.ErrNotFound)
	assert.ErrorIs(t, store.DeleteRoom(ctx, "missing"), persistence.ErrNotFound)
}

func TestStoreListRoomsOrdering(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	zulu := testfixtures.SampleRoom("z")
	zulu.Name = "Zulu"
	alpha := testfixtures.SampleRoom("a")
	alpha.Name = "Alpha"
	require.NoError(t, store.CreateRoom(ctx, zulu))
	require.NoError(t, store.CreateRoom(ctx, alpha))

	rooms, err := store.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "Alpha", rooms[0].Name)
	assert.Equal(t, "Zulu", rooms[1].Name)
}

func TestStoreCreateBookingConflict(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	mustBooking(t, store, "r1", "alice", 9*time.Hour)

	_, err := store.CreateBooking(ctx, testfixtures.SampleBooking("r1", "bob", 9*time.Hour+30*time.Minute), nil)
	assert.ErrorIs(t, err, persistence.ErrConflict)

	// Different room or date is fine; a touching interval is too.
	_, err = store.CreateBooking(ctx, testfixtures.SampleBooking("r2", "bob", 9*time.Hour+30*time.Minute), nil)
	assert.NoError(t, err)
	_, err = store.CreateBooking(ctx, testfixtures.SampleBooking("r1", "bob", 10*time.Hour), nil)
	assert.NoError(t, err)

	shifted := testfixtures.SampleBooking("r1", "bob", 9*time.Hour)
	shifted.Date = shifted.Date.AddDate(0, 0, 1)
	_, err = store.CreateBooking(ctx, shifted, nil)
	assert.NoError(t, err)

	inverted := testfixtures.SampleBooking("r1", "carol", 12*time.Hour)
	inverted.End = inverted.Start
	_, err = store.CreateBooking(ctx, inverted, nil)
	assert.ErrorIs(t, err, persistence.ErrConstraintViolation)
}

func TestStoreBookingKeyNormalizesDate(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	booking := mustBooking(t, store, "r1", "alice", 9*time.Hour)

	// Looking up with a timestamp inside the same day resolves the booking.
	key := booking.Key()
	key.Date = key.Date.Add(13 * time.Hour)
	found, err := store.GetBooking(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, booking.ID, found.ID)
}

func TestStoreUpdateBookingTimes(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	booking := mustBooking(t, store, "r1", "alice", 9*time.Hour)
	mustBooking(t, store, "r1", "bob", 11*time.Hour)

	// Growing onto its own old slot is allowed: the booking is excluded from
	// the overlap check against itself.
	updated, err := store.UpdateBookingTimes(ctx, booking.Key(), 9*time.Hour+30*time.Minute, 10*time.Hour+30*time.Minute, nil)
	require.NoError(t, err)
	assert.Equal(t, booking.ID, updated.ID)

	_, err = store.UpdateBookingTimes(ctx, updated.Key(), 11*time.Hour, 13*time.Hour, nil)
	assert.ErrorIs(t, err, persistence.ErrConflict)

	_, err = store.UpdateBookingTimes(ctx, booking.Key(), 14*time.Hour, 15*time.Hour, nil)
	assert.ErrorIs(t, err, persistence.ErrNotFound, "the old key is stale after the move")
}

func TestStoreBookingReminderAtomicity(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	input := testfixtures.SampleBooking("r1", "alice", 9*time.Hour)
	reminder := &persistence.Reminder{
		UserID:       "alice",
		Type:         persistence.ReminderTypeRoomBooking,
		RoomID:       "r1",
		SourceStart:  input.StartsAt(),
		ReminderTime: input.StartsAt().Add(-15 * time.Minute),
	}
	booking, err := store.CreateBooking(ctx, input, reminder)
	require.NoError(t, err)

	reminders, err := store.ListRemindersForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, reminders, 1)

	// Moving the booking with a nil replacement reminder still retires the
	// old one; preference-disabled owners end up with none.
	_, err = store.UpdateBookingTimes(ctx, booking.Key(), 13*time.Hour, 14*time.Hour, nil)
	require.NoError(t, err)

	reminders, err = store.ListRemindersForUser(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, reminders)
}

func TestStoreDeleteBookingRetiresReminders(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	input := testfixtures.SampleBooking("r1", "alice", 9*time.Hour)
	reminder := &persistence.Reminder{
		UserID:      "alice",
		Type:        persistence.ReminderTypeRoomBooking,
		RoomID:      "r1",
		SourceStart: input.StartsAt(),
	}
	booking, err := store.CreateBooking(ctx, input, reminder)
	require.NoError(t, err)

	// A reminder for another instance of the same room survives.
	other := testfixtures.SampleBooking("r1", "alice", 13*time.Hour)
	otherReminder := &persistence.Reminder{
		UserID:      "alice",
		Type:        persistence.ReminderTypeRoomBooking,
		RoomID:      "r1",
		SourceStart: other.StartsAt(),
	}
	_, err = store.CreateBooking(ctx, other, otherReminder)
	require.NoError(t, err)

	_, err = store.DeleteBooking(ctx, booking.Key())
	require.NoError(t, err)

	reminders, err := store.ListRemindersForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, other.StartsAt(), reminders[0].SourceStart)
}

func TestStoreCountBookingsInDateRange(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	day := testfixtures.ReferenceDate()
	for offset := 0; offset < 3; offset++ {
		b := testfixtures.SampleBooking("r1", "alice", 9*time.Hour)
		b.Date = day.AddDate(0, 0, offset)
		_, err := store.CreateBooking(ctx, b, nil)
		require.NoError(t, err)
	}

	tests := []struct {
		name     string
		from, to time.Time
		want     int
	}{
		{"full range", day, day.AddDate(0, 0, 2), 3},
		{"single day", day.AddDate(0, 0, 1), day.AddDate(0, 0, 1), 1},
		{"bounds inclusive", day.AddDate(0, 0, 2), day.AddDate(0, 0, 5), 1},
		{"before everything", day.AddDate(0, 0, -3), day.AddDate(0, 0, -1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := store.CountBookingsInDateRange(ctx, "r1", tt.from, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.want, count)
		})
	}
}

func TestStoreParticipationForeignKey(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	err := store.UpsertParticipation(ctx, persistence.EventParticipation{
		EventID: "missing",
		UserID:  "alice",
		Status:  persistence.ParticipationAccepted,
	})
	assert.ErrorIs(t, err, persistence.ErrForeignKeyViolation)

	require.NoError(t, store.CreateEvent(ctx, testfixtures.SampleEvent("e1", time.Hour)))
	require.NoError(t, store.UpsertParticipation(ctx, persistence.EventParticipation{
		EventID: "e1",
		UserID:  "alice",
		Status:  persistence.ParticipationPending,
	}))

	// Upsert preserves CreatedAt while replacing the row.
	first, err := store.GetParticipation(ctx, "e1", "alice")
	require.NoError(t, err)
	require.NoError(t, store.UpsertParticipation(ctx, persistence.EventParticipation{
		EventID: "e1",
		UserID:  "alice",
		Status:  persistence.ParticipationAccepted,
	}))
	second, err := store.GetParticipation(ctx, "e1", "alice")
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, persistence.ParticipationAccepted, second.Status)
}

func TestStorePreferenceConstraints(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.SavePreferences(ctx, persistence.ReminderPreferences{UserID: ""})
	assert.ErrorIs(t, err, persistence.ErrConstraintViolation)

	_, err = store.SavePreferences(ctx, persistence.ReminderPreferences{UserID: "alice", Advance: -time.Minute})
	assert.ErrorIs(t, err, persistence.ErrConstraintViolation)

	_, err = store.GetPreferences(ctx, "alice")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	saved, err := store.SavePreferences(ctx, persistence.DefaultReminderPreferences("alice"))
	require.NoError(t, err)
	assert.Equal(t, persistence.DefaultReminderAdvance, saved.Advance)
	assert.False(t, saved.CreatedAt.IsZero())
}

func TestStoreUnsentReminderQueries(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	base := testfixtures.ReferenceTime()

	var ids []int64
	for i, user := range []string{"alice", "bob", "carol"} {
		reminder, err := store.CreateReminder(ctx, persistence.Reminder{
			UserID:       user,
			Type:         persistence.ReminderTypeRoomBooking,
			RoomID:       "r1",
			ReminderTime: base.Add(time.Duration(i) * 10 * time.Minute),
		})
		require.NoError(t, err)
		ids = append(ids, reminder.ID)
	}

	sent, err := store.MarkReminderSent(ctx, ids[1])
	require.NoError(t, err)
	require.True(t, sent)

	// Window [base, base+21m) holds all three times; the sent one is skipped.
	due, err := store.ListUnsentRemindersDueBetween(ctx, base, base.Add(21*time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "alice", due[0].UserID)
	assert.Equal(t, "carol", due[1].UserID)

	// The exclusive upper bound drops carol's reminder at base+20m.
	due, err = store.ListUnsentRemindersDueBetween(ctx, base, base.Add(20*time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "alice", due[0].UserID)
}

func TestStoreDeleteRoomCascade(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateRoom(ctx, testfixtures.SampleRoom("r1")))
	input := testfixtures.SampleBooking("r1", "alice", 9*time.Hour)
	_, err := store.CreateBooking(ctx, input, &persistence.Reminder{
		UserID:      "alice",
		Type:        persistence.ReminderTypeRoomBooking,
		RoomID:      "r1",
		SourceStart: input.StartsAt(),
	})
	require.NoError(t, err)

	// An event reminder for the same user is untouched by the cascade.
	_, err = store.CreateReminder(ctx, persistence.Reminder{
		UserID:  "alice",
		Type:    persistence.ReminderTypeEventParticipation,
		EventID: "e1",
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteRoom(ctx, "r1"))

	bookings, err := store.ListBookingsForRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, bookings)

	reminders, err := store.ListRemindersForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, persistence.ReminderTypeEventParticipation, reminders[0].Type)
}
