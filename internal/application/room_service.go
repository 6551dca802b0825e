package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/workplace-calendar/internal/persistence"
)

// RoomRepository captures the room persistence interactions needed by the
// service.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room persistence.Room) error
	UpdateRoom(ctx context.Context, room persistence.Room) error
	GetRoom(ctx context.Context, id string) (persistence.Room, error)
	ListRooms(ctx context.Context) ([]persistence.Room, error)
	DeleteRoom(ctx context.Context, id string) error
}

// RoomService maintains the room catalog. Deleting a room cascades to its
// bookings and their reminders at the store.
type RoomService struct {
	rooms       RoomRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRoomService wires dependencies for room catalog operations.
func NewRoomService(rooms RoomRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RoomService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RoomService{
		rooms:       rooms,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// Create validates and stores a new room.
func (s *RoomService) Create(ctx context.Context, input RoomInput) (persistence.Room, error) {
	logger := serviceLogger(ctx, s.logger, "rooms", "create", "name", input.Name)

	vErr := &ValidationError{}
	validateRoomCore(input, vErr)
	if vErr.HasErrors() {
		return persistence.Room{}, vErr
	}

	room := persistence.Room{
		ID:       s.idGenerator(),
		Name:     strings.TrimSpace(input.Name),
		Location: input.Location,
		Capacity: input.Capacity,
	}

	if err := s.rooms.CreateRoom(ctx, room); err != nil {
		return persistence.Room{}, mapRoomRepoError(err)
	}

	logger.Info("room created", "room_id", room.ID)
	return room, nil
}

// Update replaces the descriptive fields of an existing room.
func (s *RoomService) Update(ctx context.Context, id string, input RoomInput) (persistence.Room, error) {
	vErr := &ValidationError{}
	validateRoomCore(input, vErr)
	if vErr.HasErrors() {
		return persistence.Room{}, vErr
	}

	existing, err := s.rooms.GetRoom(ctx, id)
	if err != nil {
		return persistence.Room{}, mapRoomRepoError(err)
	}

	existing.Name = strings.TrimSpace(input.Name)
	existing.Location = input.Location
	existing.Capacity = input.Capacity

	if err := s.rooms.UpdateRoom(ctx, existing); err != nil {
		return persistence.Room{}, mapRoomRepoError(err)
	}
	return existing, nil
}

// Get retrieves a room by ID.
func (s *RoomService) Get(ctx context.Context, id string) (persistence.Room, error) {
	room, err := s.rooms.GetRoom(ctx, id)
	if err != nil {
		return persistence.Room{}, mapRoomRepoError(err)
	}
	return room, nil
}

// List returns all rooms.
func (s *RoomService) List(ctx context.Context) ([]persistence.Room, error) {
	rooms, err := s.rooms.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

// Delete removes a room together with its bookings and their reminders.
func (s *RoomService) Delete(ctx context.Context, id string) error {
	logger := serviceLogger(ctx, s.logger, "rooms", "delete", "room_id", id)

	if err := s.rooms.DeleteRoom(ctx, id); err != nil {
		return mapRoomRepoError(err)
	}

	logger.Info("room deleted")
	return nil
}

func validateRoomCore(input RoomInput, vErr *ValidationError) {
	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if input.Capacity < 0 {
		vErr.add("capacity", "capacity must not be negative")
	}
}

func mapRoomRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		return validationError("capacity", "capacity must not be negative")
	}
	return err
}
