package application_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/workplace-calendar/internal/application"
	"github.com/example/workplace-calendar/internal/interval"
	"github.com/example/workplace-calendar/internal/persistence"
	"github.com/example/workplace-calendar/internal/testfixtures"
)

func newBookingFixture(t *testing.T) (*testfixtures.Services, persistence.Room) {
	t.Helper()
	svc := testfixtures.NewServices()
	room := testfixtures.SampleRoom("r1")
	require.NoError(t, svc.Store.CreateRoom(context.Background(), room))
	return svc, room
}

func bookingInput(roomID, userID string, start, end time.Duration) application.BookingInput {
	return application.BookingInput{
		RoomID:  roomID,
		UserID:  userID,
		Date:    testfixtures.ReferenceDate(),
		Start:   start,
		End:     end,
		Purpose: "team sync",
	}
}

func TestCreateBooking(t *testing.T) {
	svc, room := newBookingFixture(t)
	ctx := context.Background()

	booking, err := svc.Bookings.Create(ctx, bookingInput(room.ID, "alice", 9*time.Hour, 10*time.Hour))
	require.NoError(t, err)
	assert.NotZero(t, booking.ID)
	assert.Equal(t, room.ID, booking.RoomID)
	assert.Equal(t, testfixtures.ReferenceDate(), booking.Date)

	reminders, err := svc.Reminders.GetByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, reminders, 1, "creating a booking should create its reminder")
	assert.Equal(t, persistence.ReminderTypeRoomBooking, reminders[0].Type)
	assert.Equal(t, booking.StartsAt().Add(-15*time.Minute), reminders[0].ReminderTime)
}

func TestCreateBookingValidation(t *testing.T) {
	svc, room := newBookingFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input application.BookingInput
		field string
	}{
		{
			name:  "start equals end",
			input: bookingInput(room.ID, "alice", 9*time.Hour, 9*time.Hour),
			field: "time",
		},
		{
			name:  "start after end",
			input: bookingInput(room.ID, "alice", 10*time.Hour, 9*time.Hour),
			field: "time",
		},
		{
			name:  "missing user",
			input: bookingInput(room.ID, "", 9*time.Hour, 10*time.Hour),
			field: "user_id",
		},
		{
			name:  "end past midnight",
			input: bookingInput(room.ID, "alice", 23*time.Hour, 25*time.Hour),
			field: "end",
		},
		{
			name:  "sub-minute start",
			input: bookingInput(room.ID, "alice", 9*time.Hour+30*time.Second, 10*time.Hour),
			field: "start",
		},
		{
			name:  "sub-minute interval",
			input: bookingInput(room.ID, "alice", 9*time.Hour+30*time.Second, 9*time.Hour+40*time.Second),
			field: "end",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Bookings.Create(ctx, tt.input)
			var vErr *application.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Contains(t, vErr.FieldErrors, tt.field)
		})
	}
}

func TestCreateBookingUnknownRoom(t *testing.T) {
	svc, _ := newBookingFixture(t)

	_, err := svc.Bookings.Create(context.Background(), bookingInput("missing", "alice", 9*time.Hour, 10*time.Hour))
	assert.ErrorIs(t, err, application.ErrNotFound)
}

func TestCreateBookingConflicts(t *testing.T) {
	svc, room := newBookingFixture(t)
	ctx := context.Background()

	other := testfixtures.SampleRoom("r2")
	require.NoError(t, svc.Store.CreateRoom(ctx, other))

	_, err := svc.Bookings.Create(ctx, bookingInput(room.ID, "alice", 10*time.Hour, 12*time.Hour))
	require.NoError(t, err)

	// Overlapping interval on the same room and date is rejected.
	_, err = svc.Bookings.Create(ctx, bookingInput(room.ID, "bob", 9*time.Hour, 11*time.Hour))
	assert.ErrorIs(t, err, application.ErrConflict)

	// The same interval succeeds on a different room.
	_, err = svc.Bookings.Create(ctx, bookingInput(other.ID, "bob", 9*time.Hour, 11*time.Hour))
	assert.NoError(t, err)

	// And on a different date.
	nextDay := bookingInput(room.ID, "bob", 9*time.Hour, 11*time.Hour)
	nextDay.Date = testfixtures.ReferenceDate().AddDate(0, 0, 1)
	_, err = svc.Bookings.Create(ctx, nextDay)
	assert.NoError(t, err)

	// Touching endpoints are allowed.
	_, err = svc.Bookings.Create(ctx, bookingInput(room.ID, "carol", 12*time.Hour, 13*time.Hour))
	assert.NoError(t, err)
}

func TestUpdateBookingTimes(t *testing.T) {
	svc, room := newBookingFixture(t)
	ctx := context.Background()

	booking, err := svc.Bookings.Create(ctx, bookingInput(room.ID, "alice", 9*time.Hour, 10*time.Hour))
	require.NoError(t, err)
	_, err = svc.Bookings.Create(ctx, bookingInput(room.ID, "bob", 11*time.Hour, 12*time.Hour))
	require.NoError(t, err)

	// Extending into a free slot is fine, including touching bob's start.
	updated, err := svc.Bookings.UpdateEndTime(ctx, booking.Key(), 11*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 11*time.Hour, updated.End)

	// Extending into bob's interval is rejected.
	_, err = svc.Bookings.UpdateEndTime(ctx, updated.Key(), 11*time.Hour+30*time.Minute)
	assert.ErrorIs(t, err, application.ErrConflict)

	// Shrinking from the front works and excludes the booking itself from
	// the overlap check.
	moved, err := svc.Bookings.UpdateStartTime(ctx, updated.Key(), 9*time.Hour+30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 9*time.Hour+30*time.Minute, moved.Start)

	// Inverted result interval is rejected.
	_, err = svc.Bookings.UpdateStartTime(ctx, moved.Key(), 12*time.Hour)
	var vErr *application.ValidationError
	assert.ErrorAs(t, err, &vErr)

	// So are sub-minute offsets, before they reach the store.
	_, err = svc.Bookings.UpdateEndTime(ctx, moved.Key(), 11*time.Hour-30*time.Second)
	assert.ErrorAs(t, err, &vErr)

	// Stale key no longer resolves.
	_, err = svc.Bookings.UpdateEndTime(ctx, booking.Key(), 10*time.Hour+30*time.Minute)
	assert.ErrorIs(t, err, application.ErrNotFound)
}

func TestUpdateBookingSwapsReminder(t *testing.T) {
	svc, room := newBookingFixture(t)
	ctx := context.Background()

	booking, err := svc.Bookings.Create(ctx, bookingInput(room.ID, "alice", 9*time.Hour, 10*time.Hour))
	require.NoError(t, err)

	updated, err := svc.Bookings.UpdateEndTime(ctx, booking.Key(), 11*time.Hour)
	require.NoError(t, err)
	updated, err = svc.Bookings.UpdateStartTime(ctx, updated.Key(), 10*time.Hour)
	require.NoError(t, err)

	reminders, err := svc.Reminders.GetByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, reminders, 1, "recomputation must never leave duplicate reminders")
	assert.Equal(t, updated.StartsAt().Add(-15*time.Minute), reminders[0].ReminderTime,
		"the surviving reminder must reflect the new time")
	assert.Equal(t, updated.StartsAt(), reminders[0].SourceStart)
}

func TestDeleteBooking(t *testing.T) {
	svc, room := newBookingFixture(t)
	ctx := context.Background()

	booking, err := svc.Bookings.Create(ctx, bookingInput(room.ID, "alice", 9*time.Hour, 10*time.Hour))
	require.NoError(t, err)

	// Natural key must match exactly.
	wrongKey := booking.Key()
	wrongKey.End = 11 * time.Hour
	_, err = svc.Bookings.Delete(ctx, wrongKey)
	assert.ErrorIs(t, err, application.ErrNotFound)

	deleted, err := svc.Bookings.Delete(ctx, booking.Key())
	require.NoError(t, err)
	assert.Equal(t, booking.ID, deleted.ID)

	reminders, err := svc.Reminders.GetByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, reminders, "deleting a booking retires its reminder")

	_, err = svc.Bookings.Delete(ctx, booking.Key())
	assert.ErrorIs(t, err, application.ErrNotFound)
}

func TestGetBookingsRequiresRoom(t *testing.T) {
	svc, room := newBookingFixture(t)
	ctx := context.Background()

	_, err := svc.Bookings.Create(ctx, bookingInput(room.ID, "alice", 9*time.Hour, 10*time.Hour))
	require.NoError(t, err)

	bookings, err := svc.Bookings.Get(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, bookings, 1)

	_, err = svc.Bookings.Get(ctx, "missing")
	assert.ErrorIs(t, err, application.ErrNotFound)
}

// TestNoOverlapProperty drives the scheduler with randomized intervals and
// verifies that whatever subset it accepted is pairwise non-overlapping.
func TestNoOverlapProperty(t *testing.T) {
	svc, room := newBookingFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		start := time.Duration(rng.Intn(47)) * 30 * time.Minute
		length := time.Duration(1+rng.Intn(6)) * 30 * time.Minute
		end := start + length
		if end > interval.Day {
			end = interval.Day
		}

		_, err := svc.Bookings.Create(ctx, bookingInput(room.ID, "alice", start, end))
		if err != nil {
			require.ErrorIs(t, err, application.ErrConflict, "only conflicts may reject a valid interval")
		}
	}

	accepted, err := svc.Bookings.Get(ctx, room.ID)
	require.NoError(t, err)
	require.NotEmpty(t, accepted)

	for i := 0; i < len(accepted); i++ {
		for j := i + 1; j < len(accepted); j++ {
			if !accepted[i].Date.Equal(accepted[j].Date) {
				continue
			}
			a := interval.Interval{Start: accepted[i].Start, End: accepted[i].End}
			b := interval.Interval{Start: accepted[j].Start, End: accepted[j].End}
			assert.False(t, a.Overlaps(b),
				"bookings %d and %d overlap: [%v,%v) vs [%v,%v)", accepted[i].ID, accepted[j].ID, a.Start, a.End, b.Start, b.End)
		}
	}
}

// TestConcurrentCreateSafety fires overlapping creates concurrently and
// verifies exactly one wins per round.
func TestConcurrentCreateSafety(t *testing.T) {
	svc, room := newBookingFixture(t)
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		date := testfixtures.ReferenceDate().AddDate(0, 0, round)

		makeInput := func(user string) application.BookingInput {
			in := bookingInput(room.ID, user, 9*time.Hour, 11*time.Hour)
			in.Date = date
			return in
		}

		var wg sync.WaitGroup
		results := make([]error, 2)
		users := []string{"alice", "bob"}
		for i := range users {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, results[i] = svc.Bookings.Create(ctx, makeInput(users[i]))
			}(i)
		}
		wg.Wait()

		successes := 0
		for _, err := range results {
			if err == nil {
				successes++
			} else {
				require.ErrorIs(t, err, application.ErrConflict)
			}
		}
		assert.Equal(t, 1, successes, "round %d: exactly one concurrent create may win", round)
	}
}
