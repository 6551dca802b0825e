package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/workplace-calendar/internal/persistence"
)

// EventRepository implements persistence.EventRepository using SQLite.
type EventRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewEventRepository creates a new SQLite event repository.
func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateEvent inserts a new event catalog entry.
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event) error {
	if event.ID == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()

	_, err := r.helper.Exec(ctx, `
		INSERT INTO events (id, title, start_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		event.ID,
		event.Title,
		event.Start.UTC().Format(time.RFC3339),
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}

	return nil
}

// GetEvent retrieves an event by ID.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	if id == "" {
		return persistence.Event{}, persistence.ErrNotFound
	}

	var event persistence.Event
	var startStr, createdAtStr, updatedAtStr string

	err := r.helper.QueryRow(ctx, `
		SELECT id, title, start_time, created_at, updated_at FROM events WHERE id = ?
	`, id).Scan(&event.ID, &event.Title, &startStr, &createdAtStr, &updatedAtStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Event{}, persistence.ErrNotFound
		}
		return persistence.Event{}, r.mapper.MapError(err)
	}

	if event.Start, err = time.Parse(time.RFC3339, startStr); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse start_time: %w", err)
	}
	if event.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if event.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return event, nil
}

// UpsertParticipation inserts or replaces a participation row.
func (r *EventRepository) UpsertParticipation(ctx context.Context, participation persistence.EventParticipation) error {
	if participation.EventID == "" || participation.UserID == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC().Format(time.RFC3339)

	_, err := r.helper.Exec(ctx, `
		INSERT INTO event_participations (event_id, user_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (event_id, user_id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at
	`,
		participation.EventID,
		participation.UserID,
		string(participation.Status),
		now,
		now,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}

	return nil
}

// GetParticipation retrieves one participation row.
func (r *EventRepository) GetParticipation(ctx context.Context, eventID, userID string) (persistence.EventParticipation, error) {
	var p persistence.EventParticipation
	var status, createdAtStr, updatedAtStr string

	err := r.helper.QueryRow(ctx, `
		SELECT event_id, user_id, status, created_at, updated_at
		FROM event_participations WHERE event_id = ? AND user_id = ?
	`, eventID, userID).Scan(&p.EventID, &p.UserID, &status, &createdAtStr, &updatedAtStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.EventParticipation{}, persistence.ErrNotFound
		}
		return persistence.EventParticipation{}, r.mapper.MapError(err)
	}

	p.Status = persistence.ParticipationStatus(status)
	if p.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.EventParticipation{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.EventParticipation{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return p, nil
}

// DeleteParticipation removes a participation row.
func (r *EventRepository) DeleteParticipation(ctx context.Context, eventID, userID string) error {
	result, err := r.helper.Exec(ctx, `
		DELETE FROM event_participations WHERE event_id = ? AND user_id = ?
	`, eventID, userID)
	if err != nil {
		return r.mapper.MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}

	return nil
}
