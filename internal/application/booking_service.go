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

// BookingRepository captures the booking persistence interactions needed by
// the service. The mutating operations are conflict-checked and apply the
// supplied reminder change atomically with the booking write.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking persistence.Booking, reminder *persistence.Reminder) (persistence.Booking, error)
	UpdateBookingTimes(ctx context.Context, key persistence.BookingKey, newStart, newEnd time.Duration, reminder *persistence.Reminder) (persistence.Booking, error)
	DeleteBooking(ctx context.Context, key persistence.BookingKey) (persistence.Booking, error)
	GetBooking(ctx context.Context, key persistence.BookingKey) (persistence.Booking, error)
	ListBookingsForRoom(ctx context.Context, roomID string) ([]persistence.Booking, error)
}

// BookingService schedules room bookings, enforcing the no-overlap invariant:
// for a fixed room and date no two bookings' [start, end) intervals may
// overlap. Touching endpoints are allowed, so back-to-back meetings work.
type BookingService struct {
	bookings  BookingRepository
	rooms     RoomCatalog
	reminders *ReminderService
	now       func() time.Time
	logger    *slog.Logger
}

// NewBookingService wires dependencies for booking operations.
func NewBookingService(bookings BookingRepository, rooms RoomCatalog, reminders *ReminderService, now func() time.Time, logger *slog.Logger) *BookingService {
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		bookings:  bookings,
		rooms:     rooms,
		reminders: reminders,
		now:       now,
		logger:    defaultLogger(logger),
	}
}

// Create validates and persists a new booking. The owner's reminder, when
// their preference allows one, is stored in the same transaction. Overlapping
// requests fail with ErrConflict; an unknown room fails with ErrNotFound.
func (s *BookingService) Create(ctx context.Context, input BookingInput) (persistence.Booking, error) {
	logger := serviceLogger(ctx, s.logger, "bookings", "create", "room_id", input.RoomID, "user_id", input.UserID)

	vErr := &ValidationError{}
	validateBookingCore(input.RoomID, input.UserID, input.Date, vErr)
	validateBookingInterval(input.Start, input.End, vErr)
	if vErr.HasErrors() {
		return persistence.Booking{}, vErr
	}

	if err := s.ensureRoomExists(ctx, input.RoomID); err != nil {
		return persistence.Booking{}, err
	}

	booking := persistence.Booking{
		RoomID:  input.RoomID,
		UserID:  input.UserID,
		Date:    interval.DateOf(input.Date),
		Start:   input.Start,
		End:     input.End,
		Purpose: input.Purpose,
	}

	reminder, err := s.reminders.BuildBookingReminder(ctx, booking)
	if err != nil {
		return persistence.Booking{}, err
	}

	persisted, err := s.bookings.CreateBooking(ctx, booking, reminder)
	if err != nil {
		mapped := mapBookingRepoError(err)
		logger.Warn("booking rejected", "error_kind", ErrorKind(mapped), "error", err)
		return persistence.Booking{}, mapped
	}

	logger.Info("booking created", "booking_id", persisted.ID, "date", persisted.Date.Format("2006-01-02"))
	return persisted, nil
}

// UpdateStartTime moves the booking's start, re-validating the overlap
// invariant against the room's other bookings for that date.
func (s *BookingService) UpdateStartTime(ctx context.Context, key persistence.BookingKey, newStart time.Duration) (persistence.Booking, error) {
	return s.updateTimes(ctx, "update_start_time", key, func(b persistence.Booking) (time.Duration, time.Duration) {
		return newStart, b.End
	})
}

// UpdateEndTime moves the booking's end, re-validating the overlap invariant
// against the room's other bookings for that date.
func (s *BookingService) UpdateEndTime(ctx context.Context, key persistence.BookingKey, newEnd time.Duration) (persistence.Booking, error) {
	return s.updateTimes(ctx, "update_end_time", key, func(b persistence.Booking) (time.Duration, time.Duration) {
		return b.Start, newEnd
	})
}

func (s *BookingService) updateTimes(ctx context.Context, operation string, key persistence.BookingKey, resolve func(persistence.Booking) (time.Duration, time.Duration)) (persistence.Booking, error) {
	logger := serviceLogger(ctx, s.logger, "bookings", operation, "room_id", key.RoomID, "user_id", key.UserID)

	existing, err := s.bookings.GetBooking(ctx, key)
	if err != nil {
		return persistence.Booking{}, mapBookingRepoError(err)
	}

	newStart, newEnd := resolve(existing)

	vErr := &ValidationError{}
	validateBookingInterval(newStart, newEnd, vErr)
	if vErr.HasErrors() {
		return persistence.Booking{}, vErr
	}

	// The natural key changes with the interval, so the reminder for the
	// old instance has to be replaced, not updated. The repository swaps it
	// in the same transaction as the time change.
	updated := existing
	updated.Start = newStart
	updated.End = newEnd
	reminder, err := s.reminders.BuildBookingReminder(ctx, updated)
	if err != nil {
		return persistence.Booking{}, err
	}

	persisted, err := s.bookings.UpdateBookingTimes(ctx, key, newStart, newEnd, reminder)
	if err != nil {
		mapped := mapBookingRepoError(err)
		logger.Warn("booking update rejected", "error_kind", ErrorKind(mapped), "error", err)
		return persistence.Booking{}, mapped
	}

	logger.Info("booking times updated", "booking_id", persisted.ID)
	return persisted, nil
}

// Delete removes the booking matching the natural key exactly, together with
// its reminders. A key that resolves no booking fails with ErrNotFound.
func (s *BookingService) Delete(ctx context.Context, key persistence.BookingKey) (persistence.Booking, error) {
	logger := serviceLogger(ctx, s.logger, "bookings", "delete", "room_id", key.RoomID, "user_id", key.UserID)

	deleted, err := s.bookings.DeleteBooking(ctx, key)
	if err != nil {
		return persistence.Booking{}, mapBookingRepoError(err)
	}

	logger.Info("booking deleted", "booking_id", deleted.ID)
	return deleted, nil
}

// Get returns all bookings for a room, ordered by date then start time. It is
// read-only and has no side effects.
func (s *BookingService) Get(ctx context.Context, roomID string) ([]persistence.Booking, error) {
	if err := s.ensureRoomExists(ctx, roomID); err != nil {
		return nil, err
	}

	bookings, err := s.bookings.ListBookingsForRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

func (s *BookingService) ensureRoomExists(ctx context.Context, roomID string) error {
	if s.rooms == nil {
		return nil
	}
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to look up room %s: %w", roomID, err)
	}
	return nil
}

func validateBookingCore(roomID, userID string, date time.Time, vErr *ValidationError) {
	if roomID == "" {
		vErr.add("room_id", "room id is required")
	}
	if userID == "" {
		vErr.add("user_id", "user id is required")
	}
	if date.IsZero() {
		vErr.add("date", "date is required")
	}
}

func validateBookingInterval(start, end time.Duration, vErr *ValidationError) {
	// The store keeps offsets in whole minutes; rejecting finer resolution
	// here keeps the persisted interval identical to the validated one.
	if start < 0 || start >= interval.Day || start%time.Minute != 0 {
		vErr.add("start", "start must be a whole-minute time of day")
	}
	if end <= 0 || end > interval.Day || end%time.Minute != 0 {
		vErr.add("end", "end must be a whole-minute time of day")
	}
	if start >= end {
		vErr.add("time", "start must be before end")
	}
}

func mapBookingRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrConflict) {
		return ErrConflict
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		return validationError("time", "start must be before end")
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		return ErrNotFound
	}
	return err
}
