package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/workplace-calendar/internal/application"
	"github.com/example/workplace-calendar/internal/persistence"
	"github.com/example/workplace-calendar/internal/testfixtures"
)

func TestGetOrDefaultMaterializesDefaults(t *testing.T) {
	svc := testfixtures.NewServices()
	ctx := context.Background()

	prefs, err := svc.Preferences.GetOrDefault(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, prefs.EventReminder)
	assert.True(t, prefs.BookingReminder)
	assert.Equal(t, 15*time.Minute, prefs.Advance)

	// Reading defaults must not persist them.
	_, err = svc.Store.GetPreferences(ctx, "alice")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	_, err = svc.Preferences.GetOrDefault(ctx, "")
	var vErr *application.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestTogglePersistsAndRetractsPending(t *testing.T) {
	svc, room := newBookingFixture(t)
	ctx := context.Background()

	_, err := svc.Bookings.Create(ctx, bookingInput(room.ID, "alice", 9*time.Hour, 10*time.Hour))
	require.NoError(t, err)

	enabled, err := svc.Preferences.ToggleBookingReminder(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, enabled)

	// The first toggle persisted the record.
	stored, err := svc.Store.GetPreferences(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, stored.BookingReminder)
	assert.True(t, stored.EventReminder)

	// Disabling retracted the pending booking reminder.
	reminders, err := svc.Reminders.GetByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, reminders)

	enabled, err = svc.Preferences.ToggleBookingReminder(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestToggleLeavesSentRemindersAlone(t *testing.T) {
	svc, room := newBookingFixture(t)
	ctx := context.Background()

	_, err := svc.Bookings.Create(ctx, bookingInput(room.ID, "alice", 9*time.Hour, 10*time.Hour))
	require.NoError(t, err)

	reminders, err := svc.Reminders.GetByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, reminders, 1)

	sent, err := svc.Store.MarkReminderSent(ctx, reminders[0].ID)
	require.NoError(t, err)
	require.True(t, sent)

	_, err = svc.Preferences.ToggleBookingReminder(ctx, "alice")
	require.NoError(t, err)

	reminders, err = svc.Reminders.GetByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, reminders, 1, "already sent reminders survive the retraction")
	assert.True(t, reminders[0].IsSent)
}

func TestToggleIsIndependentPerType(t *testing.T) {
	svc, room := newBookingFixture(t)
	ctx := context.Background()

	event := testfixtures.SampleEvent("e1", 2*time.Hour)
	require.NoError(t, svc.Store.CreateEvent(ctx, event))
	_, err := svc.Participations.Accept(ctx, event.ID, "alice")
	require.NoError(t, err)
	_, err = svc.Bookings.Create(ctx, bookingInput(room.ID, "alice", 9*time.Hour, 10*time.Hour))
	require.NoError(t, err)

	_, err = svc.Preferences.ToggleEventReminder(ctx, "alice")
	require.NoError(t, err)

	reminders, err := svc.Reminders.GetByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, reminders, 1, "only the event reminder is retracted")
	assert.Equal(t, persistence.ReminderTypeRoomBooking, reminders[0].Type)
}

func TestUpdateAdvance(t *testing.T) {
	svc, room := newBookingFixture(t)
	ctx := context.Background()

	first, err := svc.Bookings.Create(ctx, bookingInput(room.ID, "alice", 9*time.Hour, 10*time.Hour))
	require.NoError(t, err)

	prefs, err := svc.Preferences.UpdateAdvance(ctx, "alice", 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, prefs.Advance)

	second, err := svc.Bookings.Create(ctx, bookingInput(room.ID, "alice", 11*time.Hour, 12*time.Hour))
	require.NoError(t, err)

	reminders, err := svc.Reminders.GetByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, reminders, 2)

	byStart := map[time.Time]persistence.Reminder{}
	for _, r := range reminders {
		byStart[r.SourceStart] = r
	}
	// The change applies to new reminders only.
	assert.Equal(t, first.StartsAt().Add(-15*time.Minute), byStart[first.StartsAt()].ReminderTime)
	assert.Equal(t, second.StartsAt().Add(-30*time.Minute), byStart[second.StartsAt()].ReminderTime)
}

func TestUpdateAdvanceRejectsNegative(t *testing.T) {
	svc := testfixtures.NewServices()

	_, err := svc.Preferences.UpdateAdvance(context.Background(), "alice", -time.Minute)
	var vErr *application.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.FieldErrors, "advance")
}
