package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/roombook/internal/persistence"
	"github.com/example/roombook/internal/scheduler"
)

const tracerName = "github.com/example/roombook/internal/application"

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorKind(err))
	}
	span.End()
}

// AvailabilityService answers whether rooms are free for a time window. It
// reads confirmed meetings from the repository and delegates the interval
// checks to the scheduler package.
type AvailabilityService struct {
	rooms    RoomRepository
	meetings MeetingRepository
	logger   *slog.Logger
}

// NewAvailabilityService constructs an availability service.
func NewAvailabilityService(rooms RoomRepository, meetings MeetingRepository) *AvailabilityService {
	return NewAvailabilityServiceWithLogger(rooms, meetings, nil)
}

// NewAvailabilityServiceWithLogger constructs an availability service with a specified logger.
func NewAvailabilityServiceWithLogger(rooms RoomRepository, meetings MeetingRepository, logger *slog.Logger) *AvailabilityService {
	return &AvailabilityService{rooms: rooms, meetings: meetings, logger: defaultLogger(logger)}
}

func (s *AvailabilityService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AvailabilityService", operation, attrs...)
}

// IsAvailable reports whether roomID has no confirmed meeting overlapping
// [start, end). The meeting identified by excludingMeetingID is ignored so an
// update never conflicts with itself.
func (s *AvailabilityService) IsAvailable(ctx context.Context, roomID string, start, end time.Time, excludingMeetingID string) (available bool, err error) {
	if s == nil {
		err = fmt.Errorf("AvailabilityService is nil")
		return
	}
	if s.meetings == nil {
		err = fmt.Errorf("meeting repository not configured")
		return
	}

	ctx, span := tracer().Start(ctx, "AvailabilityService.IsAvailable",
		trace.WithAttributes(attribute.String("room.id", roomID)))
	defer func() {
		span.SetAttributes(attribute.Bool("room.available", available))
		endSpan(span, err)
	}()

	var window scheduler.Window
	if window, err = windowOf(start, end); err != nil {
		return
	}

	var bookings []scheduler.Booking
	bookings, err = s.bookings(ctx, roomID, start, end)
	if err != nil {
		return
	}

	available = scheduler.IsAvailable(bookings, roomID, window, excludingMeetingID)
	if !available {
		s.loggerWith(ctx, "IsAvailable", "room_id", roomID).DebugContext(ctx, "room is booked",
			"conflicts", len(scheduler.DetectConflicts(bookings, scheduler.Booking{ID: excludingMeetingID, RoomID: roomID, Start: start, End: end})))
	}
	return
}

// SelectAvailableRoom returns the first room, in stable repository order,
// that is free for [start, end). It returns ErrNoRoomAvailable when every
// room is booked.
func (s *AvailabilityService) SelectAvailableRoom(ctx context.Context, start, end time.Time) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("AvailabilityService is nil")
		return
	}

	ctx, span := tracer().Start(ctx, "AvailabilityService.SelectAvailableRoom")
	defer func() {
		if err == nil {
			span.SetAttributes(attribute.String("room.id", room.ID))
		}
		endSpan(span, err)
	}()

	var window scheduler.Window
	if window, err = windowOf(start, end); err != nil {
		return
	}

	var rooms []Room
	var bookings []scheduler.Booking
	rooms, bookings, err = s.snapshot(ctx, start, end)
	if err != nil {
		return
	}

	roomID, ok := scheduler.FirstAvailable(roomIDs(rooms), bookings, window)
	if !ok {
		err = ErrNoRoomAvailable
		return
	}
	for _, candidate := range rooms {
		if candidate.ID == roomID {
			room = candidate
			break
		}
	}
	return
}

// ListAvailableRooms returns every room free for [start, end) in stable order.
func (s *AvailabilityService) ListAvailableRooms(ctx context.Context, start, end time.Time) (free []Room, err error) {
	if s == nil {
		err = fmt.Errorf("AvailabilityService is nil")
		return
	}

	ctx, span := tracer().Start(ctx, "AvailabilityService.ListAvailableRooms")
	defer func() {
		span.SetAttributes(attribute.Int("room.free_count", len(free)))
		endSpan(span, err)
	}()

	var window scheduler.Window
	if window, err = windowOf(start, end); err != nil {
		return
	}

	var rooms []Room
	var bookings []scheduler.Booking
	rooms, bookings, err = s.snapshot(ctx, start, end)
	if err != nil {
		return
	}

	freeIDs := make(map[string]struct{})
	for _, id := range scheduler.AvailableRooms(roomIDs(rooms), bookings, window) {
		freeIDs[id] = struct{}{}
	}
	free = make([]Room, 0, len(freeIDs))
	for _, room := range rooms {
		if _, ok := freeIDs[room.ID]; ok {
			free = append(free, room)
		}
	}
	return
}

func (s *AvailabilityService) snapshot(ctx context.Context, start, end time.Time) ([]Room, []scheduler.Booking, error) {
	if s.rooms == nil || s.meetings == nil {
		return nil, nil, fmt.Errorf("availability repositories not configured")
	}
	rooms, _, err := s.rooms.List(ctx, nil, persistence.Page{})
	if err != nil {
		return nil, nil, err
	}
	bookings, err := s.bookings(ctx, "", start, end)
	if err != nil {
		return nil, nil, err
	}
	return rooms, bookings, nil
}

func (s *AvailabilityService) bookings(ctx context.Context, roomID string, start, end time.Time) ([]scheduler.Booking, error) {
	meetings, err := s.meetings.Overlapping(ctx, roomID, start, end)
	if err != nil {
		return nil, err
	}
	bookings := make([]scheduler.Booking, 0, len(meetings))
	for _, meeting := range meetings {
		bookings = append(bookings, scheduler.Booking{
			ID:          meeting.ID,
			RoomID:      meeting.RoomID,
			Start:       meeting.Start,
			End:         meeting.End,
			Placeholder: meeting.Placeholder,
		})
	}
	return bookings, nil
}

// windowOf rejects empty or inverted windows before any storage is read.
func windowOf(start, end time.Time) (scheduler.Window, error) {
	window := scheduler.Window{Start: start, End: end}
	if !window.Valid() {
		vErr := &ValidationError{}
		vErr.add("end_time", "end_time must be after start_time")
		return window, vErr
	}
	return window, nil
}

func roomIDs(rooms []Room) []string {
	ids := make([]string, len(rooms))
	for i, room := range rooms {
		ids[i] = room.ID
	}
	return ids
}
