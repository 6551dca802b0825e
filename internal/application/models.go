package application

import "time"

// BookingInput captures caller provided booking fields. Date carries the
// calendar date (time of day is ignored); Start and End are half-open
// time-of-day offsets within that date.
type BookingInput struct {
	RoomID  string
	UserID  string
	Date    time.Time
	Start   time.Duration
	End     time.Duration
	Purpose string
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Name     string
	Location string
	Capacity int
}

// EventInput captures the fields needed to register an event as a reminder
// source.
type EventInput struct {
	Title string
	Start time.Time
}
