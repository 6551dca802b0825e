package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/workplace-calendar/internal/interval"
	"github.com/example/workplace-calendar/internal/persistence"
)

const dateLayout = "2006-01-02"

// BookingRepository implements persistence.BookingRepository using SQLite.
//
// Transactions begin IMMEDIATE (see ConnectionPool), so the overlap check and
// the write hold the writer lock together and two concurrent creates for the
// same room and date cannot both pass the check. The unique index on
// (room_id, booking_date, start_minute) backstops identical start times.
type BookingRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewBookingRepository creates a new SQLite booking repository.
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateBooking inserts a booking after verifying it does not overlap any
// existing booking for the same room and date. The reminder, when non-nil, is
// inserted in the same transaction.
func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking, reminder *persistence.Reminder) (persistence.Booking, error) {
	if !(interval.Interval{Start: booking.Start, End: booking.End}).Valid() {
		return persistence.Booking{}, persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	booking.Date = interval.DateOf(booking.Date)
	booking.CreatedAt = now
	booking.UpdatedAt = now

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		occupied, err := r.listIntervalsTx(tx, booking.RoomID, booking.Date, 0)
		if err != nil {
			return err
		}
		candidate := interval.Interval{Start: booking.Start, End: booking.End}
		if _, conflict := interval.FirstConflict(occupied, candidate); conflict {
			return persistence.ErrConflict
		}

		result, err := r.helper.ExecTx(tx, `
			INSERT INTO bookings (room_id, user_id, booking_date, start_minute, end_minute, purpose, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			booking.RoomID,
			booking.UserID,
			booking.Date.Format(dateLayout),
			durationToMinutes(booking.Start),
			durationToMinutes(booking.End),
			booking.Purpose,
			booking.CreatedAt.Format(time.RFC3339),
			booking.UpdatedAt.Format(time.RFC3339),
		)
		if err != nil {
			return r.mapBookingError(err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get inserted booking id: %w", err)
		}
		booking.ID = id

		if reminder != nil {
			if _, err := insertReminderTx(tx, *reminder, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return persistence.Booking{}, err
	}

	return booking, nil
}

// UpdateBookingTimes moves the interval of the booking identified by its
// natural key, re-validating the overlap invariant against the room's other
// bookings on that date. Reminders for the old interval are retired and the
// replacement, when non-nil, inserted atomically.
func (r *BookingRepository) UpdateBookingTimes(ctx context.Context, key persistence.BookingKey, newStart, newEnd time.Duration, reminder *persistence.Reminder) (persistence.Booking, error) {
	if !(interval.Interval{Start: newStart, End: newEnd}).Valid() {
		return persistence.Booking{}, persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	var updated persistence.Booking

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		existing, err := r.getByKeyTx(tx, key)
		if err != nil {
			return err
		}

		occupied, err := r.listIntervalsTx(tx, existing.RoomID, existing.Date, existing.ID)
		if err != nil {
			return err
		}
		candidate := interval.Interval{Start: newStart, End: newEnd}
		if _, conflict := interval.FirstConflict(occupied, candidate); conflict {
			return persistence.ErrConflict
		}

		_, err = r.helper.ExecTx(tx, `
			UPDATE bookings SET start_minute = ?, end_minute = ?, updated_at = ? WHERE id = ?
		`,
			durationToMinutes(newStart),
			durationToMinutes(newEnd),
			now.Format(time.RFC3339),
			existing.ID,
		)
		if err != nil {
			return r.mapBookingError(err)
		}

		oldStart := existing.Date.Add(existing.Start)
		if err := deleteRemindersForSourceTx(tx, existing.UserID, persistence.ReminderTypeRoomBooking, existing.RoomID, &oldStart); err != nil {
			return err
		}
		if reminder != nil {
			if _, err := insertReminderTx(tx, *reminder, now); err != nil {
				return err
			}
		}

		updated = existing
		updated.Start = newStart
		updated.End = newEnd
		updated.UpdatedAt = now
		return nil
	})
	if err != nil {
		return persistence.Booking{}, err
	}

	return updated, nil
}

// DeleteBooking removes the booking matching the natural key exactly, retiring
// its reminders in the same transaction.
func (r *BookingRepository) DeleteBooking(ctx context.Context, key persistence.BookingKey) (persistence.Booking, error) {
	var deleted persistence.Booking

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		existing, err := r.getByKeyTx(tx, key)
		if err != nil {
			return err
		}

		if _, err := r.helper.ExecTx(tx, `DELETE FROM bookings WHERE id = ?`, existing.ID); err != nil {
			return r.mapBookingError(err)
		}

		sourceStart := existing.Date.Add(existing.Start)
		if err := deleteRemindersForSourceTx(tx, existing.UserID, persistence.ReminderTypeRoomBooking, existing.RoomID, &sourceStart); err != nil {
			return err
		}

		deleted = existing
		return nil
	})
	if err != nil {
		return persistence.Booking{}, err
	}

	return deleted, nil
}

// GetBooking retrieves a booking by its natural key.
func (r *BookingRepository) GetBooking(ctx context.Context, key persistence.BookingKey) (persistence.Booking, error) {
	row := r.helper.QueryRow(ctx, bookingSelect+`
		WHERE room_id = ? AND user_id = ? AND booking_date = ? AND start_minute = ? AND end_minute = ?
	`,
		key.RoomID,
		key.UserID,
		interval.DateOf(key.Date).Format(dateLayout),
		durationToMinutes(key.Start),
		durationToMinutes(key.End),
	)
	return scanBooking(row)
}

// ListBookingsForRoom returns all bookings for a room ordered by date then
// start time.
func (r *BookingRepository) ListBookingsForRoom(ctx context.Context, roomID string) ([]persistence.Booking, error) {
	rows, err := r.helper.Query(ctx, bookingSelect+`
		WHERE room_id = ?
		ORDER BY booking_date ASC, start_minute ASC
	`, roomID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()
	return collectBookings(rows, r.mapper)
}

// ListBookingsForRoomOnDate returns the room's bookings for one calendar date
// ordered by start time.
func (r *BookingRepository) ListBookingsForRoomOnDate(ctx context.Context, roomID string, date time.Time) ([]persistence.Booking, error) {
	rows, err := r.helper.Query(ctx, bookingSelect+`
		WHERE room_id = ? AND booking_date = ?
		ORDER BY start_minute ASC
	`, roomID, interval.DateOf(date).Format(dateLayout))
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()
	return collectBookings(rows, r.mapper)
}

// CountBookingsInDateRange counts the room's bookings whose date falls within
// [fromDate, toDate] at day granularity.
func (r *BookingRepository) CountBookingsInDateRange(ctx context.Context, roomID string, fromDate, toDate time.Time) (int, error) {
	var count int
	err := r.helper.QueryRow(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE room_id = ? AND booking_date >= ? AND booking_date <= ?
	`,
		roomID,
		interval.DateOf(fromDate).Format(dateLayout),
		interval.DateOf(toDate).Format(dateLayout),
	).Scan(&count)
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	return count, nil
}

const bookingSelect = `
	SELECT id, room_id, user_id, booking_date, start_minute, end_minute, purpose, created_at, updated_at
	FROM bookings
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (persistence.Booking, error) {
	var b persistence.Booking
	var dateStr, createdAtStr, updatedAtStr string
	var startMin, endMin int
	var purpose sql.NullString

	err := row.Scan(&b.ID, &b.RoomID, &b.UserID, &dateStr, &startMin, &endMin, &purpose, &createdAtStr, &updatedAtStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Booking{}, persistence.ErrNotFound
		}
		return persistence.Booking{}, err
	}

	if b.Date, err = time.ParseInLocation(dateLayout, dateStr, time.UTC); err != nil {
		return persistence.Booking{}, fmt.Errorf("failed to parse booking_date: %w", err)
	}
	b.Start = minutesToDuration(startMin)
	b.End = minutesToDuration(endMin)
	if purpose.Valid {
		b.Purpose = purpose.String
	}
	if b.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.Booking{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if b.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.Booking{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return b, nil
}

func collectBookings(rows *sql.Rows, mapper *ErrorMapper) ([]persistence.Booking, error) {
	var bookings []persistence.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, mapper.MapError(err)
	}
	return bookings, nil
}

// getByKeyTx resolves a booking by natural key inside a transaction.
func (r *BookingRepository) getByKeyTx(tx *sql.Tx, key persistence.BookingKey) (persistence.Booking, error) {
	row := r.helper.QueryRowTx(tx, bookingSelect+`
		WHERE room_id = ? AND user_id = ? AND booking_date = ? AND start_minute = ? AND end_minute = ?
	`,
		key.RoomID,
		key.UserID,
		interval.DateOf(key.Date).Format(dateLayout),
		durationToMinutes(key.Start),
		durationToMinutes(key.End),
	)
	return scanBooking(row)
}

// listIntervalsTx loads the occupied intervals for a room and date, excluding
// the booking with excludeID when non-zero.
func (r *BookingRepository) listIntervalsTx(tx *sql.Tx, roomID string, date time.Time, excludeID int64) ([]interval.Booked, error) {
	rows, err := r.helper.QueryTx(tx, `
		SELECT id, user_id, start_minute, end_minute FROM bookings
		WHERE room_id = ? AND booking_date = ? AND id != ?
	`, roomID, interval.DateOf(date).Format(dateLayout), excludeID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var occupied []interval.Booked
	for rows.Next() {
		var id int64
		var userID string
		var startMin, endMin int
		if err := rows.Scan(&id, &userID, &startMin, &endMin); err != nil {
			return nil, r.mapper.MapError(err)
		}
		occupied = append(occupied, interval.Booked{
			BookingID: id,
			UserID:    userID,
			Interval: interval.Interval{
				Start: minutesToDuration(startMin),
				End:   minutesToDuration(endMin),
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return occupied, nil
}

// mapBookingError maps SQLite errors to persistence errors for booking writes.
func (r *BookingRepository) mapBookingError(err error) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()

	// The (room_id, booking_date, start_minute) unique index is the backstop
	// for the overlap invariant; report its violation as a conflict.
	if containsAny(errStr, "UNIQUE constraint failed") {
		if containsAny(errStr, "bookings.room_id", "bookings.booking_date", "bookings.start_minute") {
			return persistence.ErrConflict
		}
		return persistence.ErrDuplicate
	}

	return r.mapper.MapError(err)
}

func durationToMinutes(d time.Duration) int {
	return int(d / time.Minute)
}

func minutesToDuration(m int) time.Duration {
	return time.Duration(m) * time.Minute
}
