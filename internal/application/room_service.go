package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/roombook/internal/persistence"
)

var roomFilterKeys = map[string]struct{}{
	"name":  {},
	"place": {},
}

// RoomLocation returns the canonical resource path of a room.
func RoomLocation(id string) string {
	return "/rooms/" + id
}

// RoomService orchestrates validation and persistence for rooms.
type RoomService struct {
	rooms        RoomRepository
	meetings     MeetingRepository
	availability *AvailabilityService
	now          func() time.Time
	logger       *slog.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(rooms RoomRepository, meetings MeetingRepository, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(rooms, meetings, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
func NewRoomServiceWithLogger(rooms RoomRepository, meetings MeetingRepository, now func() time.Time, logger *slog.Logger) *RoomService {
	if now == nil {
		now = time.Now
	}
	logger = defaultLogger(logger)
	return &RoomService{
		rooms:        rooms,
		meetings:     meetings,
		availability: NewAvailabilityServiceWithLogger(rooms, meetings, logger),
		now:          now,
		logger:       logger,
	}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

// CreateRoom validates input and persists a new room.
func (s *RoomService) CreateRoom(ctx context.Context, params CreateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateRoom",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "failed to create room", "room created", "room_id", room.ID)
	}()

	vErr := validateRoomInput(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now().UTC()
	room = Room{
		Name:        strings.TrimSpace(params.Input.Name),
		Description: normalizeOptionalString(params.Input.Description),
		Place:       strings.TrimSpace(params.Input.Place),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var id string
	id, err = s.rooms.Save(ctx, room)
	if err != nil {
		room = Room{}
		err = mapRoomRepoError(err)
		return
	}
	room.ID = id
	return
}

// GetRoom returns a single room.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (Room, error) {
	if s == nil {
		return Room{}, fmt.Errorf("RoomService is nil")
	}
	if s.rooms == nil {
		return Room{}, fmt.Errorf("room repository not configured")
	}
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		return Room{}, mapRoomRepoError(err)
	}
	return room, nil
}

// UpdateRoom replaces the caller editable attributes of an existing room.
func (s *RoomService) UpdateRoom(ctx context.Context, params UpdateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateRoom",
		"principal_id", params.Principal.UserID,
		"room_id", params.RoomID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "failed to update room", "room updated")
	}()

	var existing Room
	existing, err = s.rooms.FindByID(ctx, params.RoomID)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	vErr := validateRoomInput(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.Name = strings.TrimSpace(params.Input.Name)
	updated.Description = normalizeOptionalString(params.Input.Description)
	updated.Place = strings.TrimSpace(params.Input.Place)
	updated.UpdatedAt = s.now().UTC()

	if _, err = s.rooms.Save(ctx, updated); err != nil {
		err = mapRoomRepoError(err)
		return
	}

	room = updated
	return
}

// DeleteRoom removes an existing room. Meetings booked in the room go with it.
func (s *RoomService) DeleteRoom(ctx context.Context, principal Principal, roomID string) error {
	if s == nil {
		return fmt.Errorf("RoomService is nil")
	}
	if s.rooms == nil {
		return fmt.Errorf("room repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteRoom",
		"principal_id", principal.UserID,
		"room_id", roomID,
	)

	if err := s.rooms.Delete(ctx, roomID); err != nil {
		err = mapRoomRepoError(err)
		logOutcome(ctx, logger, err, "failed to delete room", "")
		return err
	}

	logger.InfoContext(ctx, "room deleted")
	return nil
}

// ListRooms returns one page of rooms in stable order.
func (s *RoomService) ListRooms(ctx context.Context, params ListParams) (page RoomPage, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	vErr := validateListParams(params, roomFilterKeys)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var items []Room
	var total int
	items, total, err = s.rooms.List(ctx, persistence.Filter(params.Filter), pageWindow(params))
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}
	if items == nil {
		items = []Room{}
	}

	page = RoomPage{Items: items, Page: params.Page, AllCount: total}
	return
}

// ListAvailableRooms returns the rooms that are free for the whole of [start, end).
func (s *RoomService) ListAvailableRooms(ctx context.Context, start, end time.Time) (rooms []Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	vErr := &ValidationError{}
	if start.IsZero() {
		vErr.add("available_from", "available_from is required")
	}
	if end.IsZero() {
		vErr.add("available_to", "available_to is required")
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		vErr.add("available_to", "available_to must be after available_from")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	rooms, err = s.availability.ListAvailableRooms(ctx, start.UTC(), end.UTC())
	if rooms == nil && err == nil {
		rooms = []Room{}
	}
	return
}

// ListRoomMeetings lists the confirmed meetings booked in roomID.
func (s *RoomService) ListRoomMeetings(ctx context.Context, roomID string, params ListMeetingsParams) (MeetingPage, error) {
	if s == nil {
		return MeetingPage{}, fmt.Errorf("RoomService is nil")
	}
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return MeetingPage{}, err
	}
	params.Filter = withFilter(params.Filter, "room_id", roomID)
	return listMeetings(ctx, s.meetings, params, s.now())
}

func validateRoomInput(input RoomInput) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if strings.TrimSpace(input.Place) == "" {
		vErr.add("place", "place is required")
	}

	return vErr
}

func mapRoomRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrUnknownFilter) {
		vErr := &ValidationError{}
		vErr.add("filter", "unsupported filter")
		return vErr
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("place", "place is required")
		return vErr
	}
	return err
}

func normalizeOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
