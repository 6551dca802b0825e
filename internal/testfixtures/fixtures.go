package testfixtures

import (
	"time"

	"github.com/example/workplace-calendar/internal/persistence"
)

// ReferenceTime is the shared instant fixtures are anchored to: a Tuesday
// morning, so same-week date arithmetic in tests stays within one month.
func ReferenceTime() time.Time {
	return time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC)
}

// ReferenceDate is ReferenceTime's calendar date at midnight UTC.
func ReferenceDate() time.Time {
	return time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
}

// SampleRoom returns a valid room record keyed by id.
func SampleRoom(id string) persistence.Room {
	return persistence.Room{
		ID:       id,
		Name:     "Room " + id,
		Location: "Floor 3",
		Capacity: 8,
	}
}

// SampleBooking returns a valid one-hour booking for the reference date.
func SampleBooking(roomID, userID string, start time.Duration) persistence.Booking {
	return persistence.Booking{
		RoomID:  roomID,
		UserID:  userID,
		Date:    ReferenceDate(),
		Start:   start,
		End:     start + time.Hour,
		Purpose: "weekly sync",
	}
}

// SampleEvent returns an event starting at the reference time plus offset.
func SampleEvent(id string, offset time.Duration) persistence.Event {
	return persistence.Event{
		ID:    id,
		Title: "Event " + id,
		Start: ReferenceTime().Add(offset),
	}
}
