package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/workplace-calendar/internal/interval"
	"github.com/example/workplace-calendar/internal/persistence"
)

// RoomLister exposes the room catalog reads needed by availability queries.
type RoomLister interface {
	GetRoom(ctx context.Context, id string) (persistence.Room, error)
	ListRooms(ctx context.Context) ([]persistence.Room, error)
}

// BookingRangeQuery exposes the booking reads needed by availability queries.
type BookingRangeQuery interface {
	ListBookingsForRoomOnDate(ctx context.Context, roomID string, date time.Time) ([]persistence.Booking, error)
	CountBookingsInDateRange(ctx context.Context, roomID string, fromDate, toDate time.Time) (int, error)
}

// AvailabilityService answers which rooms are free. It deliberately carries
// two differently scoped checks: AvailableRooms works at whole-day
// granularity across the requested range, while IsAvailable tests true
// interval overlap on the start timestamp's date.
type AvailabilityService struct {
	rooms    RoomLister
	bookings BookingRangeQuery
	logger   *slog.Logger
}

// NewAvailabilityService wires dependencies for availability queries.
func NewAvailabilityService(rooms RoomLister, bookings BookingRangeQuery, logger *slog.Logger) *AvailabilityService {
	return &AvailabilityService{
		rooms:    rooms,
		bookings: bookings,
		logger:   defaultLogger(logger),
	}
}

// AvailableRooms returns the rooms with zero bookings on any date within
// [start.date, end.date]. A room booked for one hour anywhere in the range
// counts as unavailable for the whole range; IsAvailable is the precise
// per-interval check.
func (s *AvailabilityService) AvailableRooms(ctx context.Context, start, end time.Time) ([]persistence.Room, error) {
	return s.availableRooms(ctx, start, end, 0)
}

// AvailableRoomsByCapacity composes the date-level availability check with a
// minimum capacity filter.
func (s *AvailabilityService) AvailableRoomsByCapacity(ctx context.Context, start, end time.Time, minCapacity int) ([]persistence.Room, error) {
	if minCapacity < 0 {
		return nil, validationError("min_capacity", "capacity must not be negative")
	}
	return s.availableRooms(ctx, start, end, minCapacity)
}

func (s *AvailabilityService) availableRooms(ctx context.Context, start, end time.Time, minCapacity int) ([]persistence.Room, error) {
	vErr := &ValidationError{}
	validateRange(start, end, vErr)
	if vErr.HasErrors() {
		return nil, vErr
	}

	rooms, err := s.rooms.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	fromDate := interval.DateOf(start)
	toDate := interval.DateOf(end)

	var available []persistence.Room
	for _, room := range rooms {
		if room.Capacity < minCapacity {
			continue
		}
		count, err := s.bookings.CountBookingsInDateRange(ctx, room.ID, fromDate, toDate)
		if err != nil {
			return nil, fmt.Errorf("failed to count bookings for room %s: %w", room.ID, err)
		}
		if count == 0 {
			available = append(available, room)
		}
	}
	return available, nil
}

// IsAvailable reports whether the room is free for [start, end) on start's
// date, using the half-open overlap rule: a booking ending exactly when the
// candidate begins does not block it.
func (s *AvailabilityService) IsAvailable(ctx context.Context, roomID string, start, end time.Time) (bool, error) {
	vErr := &ValidationError{}
	validateRange(start, end, vErr)
	if vErr.HasErrors() {
		return false, vErr
	}

	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("failed to look up room %s: %w", roomID, err)
	}

	bookings, err := s.bookings.ListBookingsForRoomOnDate(ctx, roomID, start)
	if err != nil {
		return false, fmt.Errorf("failed to list bookings: %w", err)
	}

	candidate := interval.Interval{Start: interval.TimeOfDay(start), End: interval.TimeOfDay(end)}
	for _, booking := range bookings {
		occupied := interval.Interval{Start: booking.Start, End: booking.End}
		if occupied.Overlaps(candidate) {
			return false, nil
		}
	}
	return true, nil
}

func validateRange(start, end time.Time, vErr *ValidationError) {
	if start.IsZero() {
		vErr.add("start", "start is required")
	}
	if end.IsZero() {
		vErr.add("end", "end is required")
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		vErr.add("time", "start must be before end")
	}
}
