package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/workplace-calendar/internal/persistence"
)

// ReminderRepository implements persistence.ReminderRepository using SQLite.
type ReminderRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewReminderRepository creates a new SQLite reminder repository.
func NewReminderRepository(pool *ConnectionPool) *ReminderRepository {
	return &ReminderRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateReminder inserts a reminder record.
func (r *ReminderRepository) CreateReminder(ctx context.Context, reminder persistence.Reminder) (persistence.Reminder, error) {
	now := time.Now().UTC()

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		id, err := insertReminderTx(tx, reminder, now)
		if err != nil {
			return err
		}
		reminder.ID = id
		reminder.CreatedAt = now
		return nil
	})
	if err != nil {
		return persistence.Reminder{}, err
	}

	return reminder, nil
}

// DeleteRemindersForSource removes reminders correlated with one source
// instance. A nil sourceStart matches every instance of the source.
func (r *ReminderRepository) DeleteRemindersForSource(ctx context.Context, userID string, rtype persistence.ReminderType, relatedID string, sourceStart *time.Time) (int, error) {
	var deleted int

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		n, err := deleteRemindersForSourceCountTx(tx, userID, rtype, relatedID, sourceStart)
		if err != nil {
			return err
		}
		deleted = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	return deleted, nil
}

// DeleteUnsentRemindersOfType removes every not-yet-sent reminder of the type
// for the user. Used when the matching preference is switched off.
func (r *ReminderRepository) DeleteUnsentRemindersOfType(ctx context.Context, userID string, rtype persistence.ReminderType) (int, error) {
	result, err := r.helper.Exec(ctx, `
		DELETE FROM reminders WHERE user_id = ? AND reminder_type = ? AND is_sent = 0
	`, userID, string(rtype))
	if err != nil {
		return 0, r.mapper.MapError(err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// ListRemindersForUser returns all reminders for a user, newest firing time
// last.
func (r *ReminderRepository) ListRemindersForUser(ctx context.Context, userID string) ([]persistence.Reminder, error) {
	rows, err := r.helper.Query(ctx, reminderSelect+`
		WHERE user_id = ?
		ORDER BY reminder_time ASC, id ASC
	`, userID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()
	return collectReminders(rows, r.mapper)
}

// ListRemindersDueBetween returns the user's reminders with
// from <= reminder_time < to, earliest first.
func (r *ReminderRepository) ListRemindersDueBetween(ctx context.Context, userID string, from, to time.Time) ([]persistence.Reminder, error) {
	rows, err := r.helper.Query(ctx, reminderSelect+`
		WHERE user_id = ? AND reminder_time >= ? AND reminder_time < ?
		ORDER BY reminder_time ASC, id ASC
	`, userID, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()
	return collectReminders(rows, r.mapper)
}

// ListUnsentRemindersDueBetween returns unsent reminders across all users with
// from <= reminder_time < to, earliest first. This feeds the delivery poller.
func (r *ReminderRepository) ListUnsentRemindersDueBetween(ctx context.Context, from, to time.Time) ([]persistence.Reminder, error) {
	rows, err := r.helper.Query(ctx, reminderSelect+`
		WHERE is_sent = 0 AND reminder_time >= ? AND reminder_time < ?
		ORDER BY reminder_time ASC, id ASC
	`, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()
	return collectReminders(rows, r.mapper)
}

// MarkReminderRead sets is_read on the reminder. It reports false when the id
// does not exist; repeating the call for a read reminder still reports true.
func (r *ReminderRepository) MarkReminderRead(ctx context.Context, id int64) (bool, error) {
	return r.setFlag(ctx, id, "is_read")
}

// MarkReminderSent sets is_sent on the reminder.
func (r *ReminderRepository) MarkReminderSent(ctx context.Context, id int64) (bool, error) {
	return r.setFlag(ctx, id, "is_sent")
}

func (r *ReminderRepository) setFlag(ctx context.Context, id int64, column string) (bool, error) {
	result, err := r.helper.Exec(ctx, `UPDATE reminders SET `+column+` = 1 WHERE id = ?`, id)
	if err != nil {
		return false, r.mapper.MapError(err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

const reminderSelect = `
	SELECT id, user_id, reminder_type, room_id, event_id, source_start, reminder_time, title, message, is_sent, is_read, created_at
	FROM reminders
`

func scanReminder(row rowScanner) (persistence.Reminder, error) {
	var rec persistence.Reminder
	var rtype, sourceStartStr, reminderTimeStr, createdAtStr string
	var roomID, eventID, title, message sql.NullString
	var isSent, isRead int

	err := row.Scan(&rec.ID, &rec.UserID, &rtype, &roomID, &eventID, &sourceStartStr, &reminderTimeStr, &title, &message, &isSent, &isRead, &createdAtStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Reminder{}, persistence.ErrNotFound
		}
		return persistence.Reminder{}, err
	}

	rec.Type = persistence.ReminderType(rtype)
	if roomID.Valid {
		rec.RoomID = roomID.String
	}
	if eventID.Valid {
		rec.EventID = eventID.String
	}
	if title.Valid {
		rec.Title = title.String
	}
	if message.Valid {
		rec.Message = message.String
	}
	rec.IsSent = isSent != 0
	rec.IsRead = isRead != 0

	if rec.SourceStart, err = time.Parse(time.RFC3339, sourceStartStr); err != nil {
		return persistence.Reminder{}, fmt.Errorf("failed to parse source_start: %w", err)
	}
	if rec.ReminderTime, err = time.Parse(time.RFC3339, reminderTimeStr); err != nil {
		return persistence.Reminder{}, fmt.Errorf("failed to parse reminder_time: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.Reminder{}, fmt.Errorf("failed to parse created_at: %w", err)
	}

	return rec, nil
}

func collectReminders(rows *sql.Rows, mapper *ErrorMapper) ([]persistence.Reminder, error) {
	var reminders []persistence.Reminder
	for rows.Next() {
		rec, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapper.MapError(err)
	}
	return reminders, nil
}

// insertReminderTx inserts a reminder inside an existing transaction. It is
// shared with the booking repository so reminder swaps commit with the booking
// write they belong to.
func insertReminderTx(tx *sql.Tx, reminder persistence.Reminder, now time.Time) (int64, error) {
	var roomID, eventID sql.NullString
	if reminder.RoomID != "" {
		roomID = sql.NullString{String: reminder.RoomID, Valid: true}
	}
	if reminder.EventID != "" {
		eventID = sql.NullString{String: reminder.EventID, Valid: true}
	}

	result, err := tx.Exec(`
		INSERT INTO reminders (user_id, reminder_type, room_id, event_id, source_start, reminder_time, title, message, is_sent, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		reminder.UserID,
		string(reminder.Type),
		roomID,
		eventID,
		reminder.SourceStart.UTC().Format(time.RFC3339),
		reminder.ReminderTime.UTC().Format(time.RFC3339),
		reminder.Title,
		reminder.Message,
		boolToInt(reminder.IsSent),
		boolToInt(reminder.IsRead),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return 0, NewErrorMapper().MapError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted reminder id: %w", err)
	}
	return id, nil
}

// deleteRemindersForSourceTx removes reminders for one source instance inside
// an existing transaction.
func deleteRemindersForSourceTx(tx *sql.Tx, userID string, rtype persistence.ReminderType, relatedID string, sourceStart *time.Time) error {
	_, err := deleteRemindersForSourceCountTx(tx, userID, rtype, relatedID, sourceStart)
	return err
}

func deleteRemindersForSourceCountTx(tx *sql.Tx, userID string, rtype persistence.ReminderType, relatedID string, sourceStart *time.Time) (int, error) {
	query := `DELETE FROM reminders WHERE user_id = ? AND reminder_type = ?`
	args := []any{userID, string(rtype)}

	switch rtype {
	case persistence.ReminderTypeRoomBooking:
		query += ` AND room_id = ?`
	default:
		query += ` AND event_id = ?`
	}
	args = append(args, relatedID)

	if sourceStart != nil {
		query += ` AND source_start = ?`
		args = append(args, sourceStart.UTC().Format(time.RFC3339))
	}

	result, err := tx.Exec(query, args...)
	if err != nil {
		return 0, NewErrorMapper().MapError(err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
