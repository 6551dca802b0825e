package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/workplace-calendar/internal/persistence"
)

// EventRepository captures the event and participation persistence
// interactions needed by the service.
type EventRepository interface {
	CreateEvent(ctx context.Context, event persistence.Event) error
	GetEvent(ctx context.Context, id string) (persistence.Event, error)
	UpsertParticipation(ctx context.Context, participation persistence.EventParticipation) error
	GetParticipation(ctx context.Context, eventID, userID string) (persistence.EventParticipation, error)
	DeleteParticipation(ctx context.Context, eventID, userID string) error
}

// ParticipationService records event participation state and routes the
// changes through the reminder engine: accepting creates a reminder (when the
// preference allows), declining or removing retracts it.
type ParticipationService struct {
	events      EventRepository
	reminders   *ReminderService
	idGenerator func() string
	logger      *slog.Logger
}

// NewParticipationService wires dependencies for participation operations.
func NewParticipationService(events EventRepository, reminders *ReminderService, idGenerator func() string, logger *slog.Logger) *ParticipationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	return &ParticipationService{
		events:      events,
		reminders:   reminders,
		idGenerator: idGenerator,
		logger:      defaultLogger(logger),
	}
}

// RegisterEvent stores an event catalog entry so it can act as a reminder
// source. Full event management lives outside this module.
func (s *ParticipationService) RegisterEvent(ctx context.Context, input EventInput) (persistence.Event, error) {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.Title) == "" {
		vErr.add("title", "title is required")
	}
	if input.Start.IsZero() {
		vErr.add("start", "start is required")
	}
	if vErr.HasErrors() {
		return persistence.Event{}, vErr
	}

	event := persistence.Event{
		ID:    s.idGenerator(),
		Title: strings.TrimSpace(input.Title),
		Start: input.Start.UTC(),
	}
	if err := s.events.CreateEvent(ctx, event); err != nil {
		return persistence.Event{}, mapEventRepoError(err)
	}
	return event, nil
}

// Accept marks the user's participation as accepted and derives its reminder.
func (s *ParticipationService) Accept(ctx context.Context, eventID, userID string) (persistence.EventParticipation, error) {
	return s.setStatus(ctx, eventID, userID, persistence.ParticipationAccepted)
}

// Decline marks the user's participation as declined and retracts any
// reminder derived from it.
func (s *ParticipationService) Decline(ctx context.Context, eventID, userID string) (persistence.EventParticipation, error) {
	return s.setStatus(ctx, eventID, userID, persistence.ParticipationDeclined)
}

func (s *ParticipationService) setStatus(ctx context.Context, eventID, userID string, status persistence.ParticipationStatus) (persistence.EventParticipation, error) {
	logger := serviceLogger(ctx, s.logger, "participations", "set_status", "event_id", eventID, "user_id", userID, "status", string(status))

	if eventID == "" || userID == "" {
		return persistence.EventParticipation{}, validationError("participation", "event id and user id are required")
	}

	if _, err := s.events.GetEvent(ctx, eventID); err != nil {
		return persistence.EventParticipation{}, mapEventRepoError(err)
	}

	participation := persistence.EventParticipation{
		EventID: eventID,
		UserID:  userID,
		Status:  status,
	}
	if err := s.events.UpsertParticipation(ctx, participation); err != nil {
		return persistence.EventParticipation{}, mapEventRepoError(err)
	}

	switch status {
	case persistence.ParticipationAccepted:
		if _, err := s.reminders.OnParticipationAccepted(ctx, participation); err != nil {
			return persistence.EventParticipation{}, err
		}
	default:
		if err := s.reminders.OnParticipationDeleted(ctx, userID, eventID); err != nil {
			return persistence.EventParticipation{}, err
		}
	}

	logger.Info("participation updated")
	return participation, nil
}

// Remove deletes the participation row and retracts any reminder derived
// from it.
func (s *ParticipationService) Remove(ctx context.Context, eventID, userID string) error {
	if err := s.events.DeleteParticipation(ctx, eventID, userID); err != nil {
		return mapEventRepoError(err)
	}
	if err := s.reminders.OnParticipationDeleted(ctx, userID, eventID); err != nil {
		return err
	}
	return nil
}

// Get retrieves one participation row.
func (s *ParticipationService) Get(ctx context.Context, eventID, userID string) (persistence.EventParticipation, error) {
	participation, err := s.events.GetParticipation(ctx, eventID, userID)
	if err != nil {
		return persistence.EventParticipation{}, mapEventRepoError(err)
	}
	return participation, nil
}

func mapEventRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		return validationError("participation", "event id and user id are required")
	}
	return fmt.Errorf("participation storage failure: %w", err)
}
