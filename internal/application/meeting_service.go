package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/roombook/internal/persistence"
)

// Booking modes reported to BookingMetrics.
const (
	BookingModeDirect       = "direct"
	BookingModeMaterialized = "materialized"
	BookingModeUpdated      = "updated"
	BookingModeMoved        = "moved"
)

var meetingFilterKeys = map[string]struct{}{
	"room_id": {},
	"user_id": {},
	"name":    {},
}

// MeetingLocation returns the canonical resource path of a meeting.
func MeetingLocation(id string) string {
	return "/meetings/" + id
}

// MeetingService manages the meeting lifecycle: direct bookings, reservation
// slots and their materialization, updates guarded by concurrency tokens, and
// listings.
type MeetingService struct {
	meetings       MeetingRepository
	rooms          RoomRepository
	availability   *AvailabilityService
	tokenGenerator func() string
	now            func() time.Time
	metrics        BookingMetrics
	logger         *slog.Logger
}

// NewMeetingService constructs a meeting service with the provided dependencies.
func NewMeetingService(meetings MeetingRepository, rooms RoomRepository, tokenGenerator func() string, now func() time.Time) *MeetingService {
	return NewMeetingServiceWithLogger(meetings, rooms, tokenGenerator, now, nil)
}

// NewMeetingServiceWithLogger constructs a meeting service with a specified logger.
func NewMeetingServiceWithLogger(meetings MeetingRepository, rooms RoomRepository, tokenGenerator func() string, now func() time.Time, logger *slog.Logger) *MeetingService {
	if tokenGenerator == nil {
		tokenGenerator = NewConcurrencyToken
	}
	if now == nil {
		now = time.Now
	}
	logger = defaultLogger(logger)
	return &MeetingService{
		meetings:       meetings,
		rooms:          rooms,
		availability:   NewAvailabilityServiceWithLogger(rooms, meetings, logger),
		tokenGenerator: tokenGenerator,
		now:            now,
		metrics:        noopBookingMetrics{},
		logger:         logger,
	}
}

// WithMetrics attaches a booking metrics sink and returns the service.
func (s *MeetingService) WithMetrics(metrics BookingMetrics) *MeetingService {
	if s != nil && metrics != nil {
		s.metrics = metrics
	}
	return s
}

func (s *MeetingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "MeetingService", operation, attrs...)
}

// CreateMeeting books a meeting directly, bypassing the reservation slot. An
// explicit room must exist and be free; without one the first free room is
// selected.
func (s *MeetingService) CreateMeeting(ctx context.Context, params CreateMeetingParams) (result MeetingResult, err error) {
	if s == nil {
		err = fmt.Errorf("MeetingService is nil")
		return
	}
	if s.meetings == nil {
		err = fmt.Errorf("meeting repository not configured")
		return
	}

	ctx, span := tracer().Start(ctx, "MeetingService.CreateMeeting")
	logger := s.loggerWith(ctx, "CreateMeeting", "principal_id", params.Principal.UserID)
	defer func() {
		s.recordOutcome(err, BookingModeDirect)
		logOutcome(ctx, logger, err, "failed to create meeting", "meeting created",
			"meeting_id", result.Meeting.ID, "room_id", result.Meeting.RoomID)
		endSpan(span, err)
	}()

	owner := strings.TrimSpace(params.Principal.UserID)
	if owner == "" {
		err = ErrUnauthorized
		return
	}

	input, vErr := normalizeMeetingInput(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var room Room
	room, err = s.resolveRoom(ctx, input.RoomID, "", input.Start, input.End, "")
	if err != nil {
		return
	}
	span.SetAttributes(attribute.String("room.id", room.ID))

	token := s.tokenGenerator()
	if token == "" {
		err = fmt.Errorf("failed to generate concurrency token")
		return
	}

	now := s.now().UTC()
	meeting := Meeting{
		Name:        input.Name,
		Description: input.Description,
		Start:       input.Start,
		End:         input.End,
		RoomID:      room.ID,
		OwnerID:     owner,
		ETag:        token,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var id string
	id, err = s.meetings.Save(ctx, meeting)
	if err != nil {
		err = mapMeetingRepoError(err)
		return
	}
	meeting.ID = id

	result = MeetingResult{Meeting: meeting, Location: MeetingLocation(id), ETag: token, Created: true}
	return
}

// SaveMeeting fills in a reservation slot or updates an existing meeting.
//
// The acting user is stamped as owner before anything else. The input is
// validated, the stored record looked up, its ownership and concurrency token
// checked, and the room resolved: the requested room, else the stored one,
// else the first free room. The record is then replaced with the placeholder
// flag cleared and a fresh concurrency token.
func (s *MeetingService) SaveMeeting(ctx context.Context, params SaveMeetingParams) (result MeetingResult, err error) {
	if s == nil {
		err = fmt.Errorf("MeetingService is nil")
		return
	}
	if s.meetings == nil {
		err = fmt.Errorf("meeting repository not configured")
		return
	}

	ctx, span := tracer().Start(ctx, "MeetingService.SaveMeeting",
		trace.WithAttributes(attribute.String("meeting.id", params.MeetingID)))
	logger := s.loggerWith(ctx, "SaveMeeting",
		"principal_id", params.Principal.UserID,
		"meeting_id", params.MeetingID,
	)
	mode := BookingModeUpdated
	defer func() {
		s.recordOutcome(err, mode)
		logOutcome(ctx, logger, err, "failed to save meeting", "meeting saved",
			"room_id", result.Meeting.RoomID, "created", result.Created)
		endSpan(span, err)
	}()

	owner := strings.TrimSpace(params.Principal.UserID)
	if owner == "" {
		err = ErrUnauthorized
		return
	}

	input, vErr := normalizeMeetingInput(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var existing Meeting
	existing, err = s.meetings.FindByID(ctx, params.MeetingID)
	if err != nil {
		err = mapMeetingRepoError(err)
		return
	}
	if existing.Placeholder {
		mode = BookingModeMaterialized
	}
	if existing.OwnerID != owner {
		err = ErrForbidden
		return
	}
	if err = checkConcurrencyToken(params.IfMatch, existing.ETag, true); err != nil {
		return
	}

	var room Room
	room, err = s.resolveRoom(ctx, input.RoomID, existing.RoomID, input.Start, input.End, existing.ID)
	if err != nil {
		return
	}

	token := s.tokenGenerator()
	if token == "" {
		err = fmt.Errorf("failed to generate concurrency token")
		return
	}

	updated := existing
	updated.Name = input.Name
	updated.Description = input.Description
	updated.Start = input.Start
	updated.End = input.End
	updated.RoomID = room.ID
	updated.OwnerID = owner
	updated.Placeholder = false
	updated.ETag = token
	updated.UpdatedAt = s.now().UTC()
	if existing.Placeholder {
		updated.CreatedAt = updated.UpdatedAt
	}

	if err = s.meetings.Replace(ctx, updated, existing.ETag); err != nil {
		err = mapMeetingRepoError(err)
		return
	}

	result = MeetingResult{Meeting: updated, ETag: token, Created: existing.Placeholder}
	if result.Created {
		result.Location = MeetingLocation(updated.ID)
	}
	return
}

// IssueSlot hands out a reservation slot for the acting user. A slot that is
// still pending is returned again instead of creating another one.
func (s *MeetingService) IssueSlot(ctx context.Context, principal Principal) (result SlotResult, err error) {
	if s == nil {
		err = fmt.Errorf("MeetingService is nil")
		return
	}
	if s.meetings == nil {
		err = fmt.Errorf("meeting repository not configured")
		return
	}

	ctx, span := tracer().Start(ctx, "MeetingService.IssueSlot")
	logger := s.loggerWith(ctx, "IssueSlot", "principal_id", principal.UserID)
	defer func() {
		if err == nil {
			s.metrics.SlotIssued(!result.Created)
		}
		logOutcome(ctx, logger, err, "failed to issue reservation slot", "reservation slot issued",
			"meeting_id", result.MeetingID, "created", result.Created)
		endSpan(span, err)
	}()

	owner := strings.TrimSpace(principal.UserID)
	if owner == "" {
		err = ErrUnauthorized
		return
	}

	var pending Meeting
	pending, err = s.meetings.FindPlaceholder(ctx, owner)
	switch {
	case err == nil:
		result = slotResult(pending, false)
		return
	case !errors.Is(err, persistence.ErrNotFound):
		return
	}

	token := s.tokenGenerator()
	if token == "" {
		err = fmt.Errorf("failed to generate concurrency token")
		return
	}

	now := s.now().UTC()
	slot := Meeting{
		OwnerID:     owner,
		ETag:        token,
		Placeholder: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var id string
	id, err = s.meetings.Save(ctx, slot)
	if errors.Is(err, persistence.ErrDuplicate) {
		// A concurrent request issued the slot first.
		pending, err = s.meetings.FindPlaceholder(ctx, owner)
		if err != nil {
			err = mapMeetingRepoError(err)
			return
		}
		result = slotResult(pending, false)
		return
	}
	if err != nil {
		err = mapMeetingRepoError(err)
		return
	}
	slot.ID = id

	result = slotResult(slot, true)
	return
}

// GetMeeting returns a confirmed meeting. Pending reservation slots are not
// visible and read as ErrNotFound.
func (s *MeetingService) GetMeeting(ctx context.Context, principal Principal, meetingID string) (meeting Meeting, err error) {
	if s == nil {
		err = fmt.Errorf("MeetingService is nil")
		return
	}
	if s.meetings == nil {
		err = fmt.Errorf("meeting repository not configured")
		return
	}

	meeting, err = s.meetings.FindByID(ctx, meetingID)
	if err != nil {
		err = mapMeetingRepoError(err)
		return
	}
	if meeting.Placeholder {
		meeting = Meeting{}
		err = ErrNotFound
	}
	return
}

// DeleteMeeting cancels a meeting owned by the acting user. A supplied
// concurrency token must match the stored one.
func (s *MeetingService) DeleteMeeting(ctx context.Context, params DeleteMeetingParams) (err error) {
	if s == nil {
		return fmt.Errorf("MeetingService is nil")
	}
	if s.meetings == nil {
		return fmt.Errorf("meeting repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteMeeting",
		"principal_id", params.Principal.UserID,
		"meeting_id", params.MeetingID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "failed to delete meeting", "meeting deleted")
	}()

	var existing Meeting
	existing, err = s.meetings.FindByID(ctx, params.MeetingID)
	if err != nil {
		err = mapMeetingRepoError(err)
		return
	}
	if existing.OwnerID != params.Principal.UserID {
		err = ErrForbidden
		return
	}
	if err = checkConcurrencyToken(params.IfMatch, existing.ETag, false); err != nil {
		return
	}

	if err = s.meetings.Delete(ctx, existing.ID); err != nil {
		err = mapMeetingRepoError(err)
	}
	return
}

// ListMeetings returns one page of confirmed meetings. Meetings that have
// already ended are left out unless IncludePast is set.
func (s *MeetingService) ListMeetings(ctx context.Context, params ListMeetingsParams) (page MeetingPage, err error) {
	if s == nil {
		err = fmt.Errorf("MeetingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListMeetings")
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, err, "failed to list meetings", "")
			return
		}
		logger.DebugContext(ctx, "meetings listed", "result_count", len(page.Items), "all_count", page.AllCount)
	}()

	page, err = listMeetings(ctx, s.meetings, params, s.now())
	return
}

// MoveMeeting assigns a meeting to another room, keeping its time window.
func (s *MeetingService) MoveMeeting(ctx context.Context, params MoveMeetingParams) (result MeetingResult, err error) {
	if s == nil {
		err = fmt.Errorf("MeetingService is nil")
		return
	}
	if s.meetings == nil {
		err = fmt.Errorf("meeting repository not configured")
		return
	}

	ctx, span := tracer().Start(ctx, "MeetingService.MoveMeeting",
		trace.WithAttributes(
			attribute.String("meeting.id", params.MeetingID),
			attribute.String("room.id", params.RoomID),
		))
	logger := s.loggerWith(ctx, "MoveMeeting",
		"principal_id", params.Principal.UserID,
		"meeting_id", params.MeetingID,
		"room_id", params.RoomID,
	)
	defer func() {
		s.recordOutcome(err, BookingModeMoved)
		logOutcome(ctx, logger, err, "failed to move meeting", "meeting moved")
		endSpan(span, err)
	}()

	owner := strings.TrimSpace(params.Principal.UserID)
	if owner == "" {
		err = ErrUnauthorized
		return
	}

	roomID := strings.TrimSpace(params.RoomID)
	if roomID == "" {
		vErr := &ValidationError{}
		vErr.add("room_id", "room_id is required")
		err = vErr
		return
	}

	var existing Meeting
	existing, err = s.meetings.FindByID(ctx, params.MeetingID)
	if err != nil {
		err = mapMeetingRepoError(err)
		return
	}
	if existing.Placeholder {
		err = ErrNotFound
		return
	}
	if existing.OwnerID != owner {
		err = ErrForbidden
		return
	}
	if err = checkConcurrencyToken(params.IfMatch, existing.ETag, true); err != nil {
		return
	}

	var room Room
	room, err = s.resolveRoom(ctx, &roomID, "", existing.Start, existing.End, existing.ID)
	if err != nil {
		return
	}

	token := s.tokenGenerator()
	if token == "" {
		err = fmt.Errorf("failed to generate concurrency token")
		return
	}

	updated := existing
	updated.RoomID = room.ID
	updated.ETag = token
	updated.UpdatedAt = s.now().UTC()

	if err = s.meetings.Replace(ctx, updated, existing.ETag); err != nil {
		err = mapMeetingRepoError(err)
		return
	}

	result = MeetingResult{Meeting: updated, ETag: token}
	return
}

// ListUserMeetings lists the confirmed meetings owned by userID.
func (s *MeetingService) ListUserMeetings(ctx context.Context, userID string, params ListMeetingsParams) (MeetingPage, error) {
	params.Filter = withFilter(params.Filter, "user_id", userID)
	return s.ListMeetings(ctx, params)
}

// DeleteUserMeetings cancels every meeting and pending slot owned by userID.
// Only the user themselves may do this.
func (s *MeetingService) DeleteUserMeetings(ctx context.Context, principal Principal, userID string) (deleted int, err error) {
	if s == nil {
		err = fmt.Errorf("MeetingService is nil")
		return
	}
	if s.meetings == nil {
		err = fmt.Errorf("meeting repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "DeleteUserMeetings",
		"principal_id", principal.UserID,
		"user_id", userID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "failed to delete user meetings", "user meetings deleted", "deleted", deleted)
	}()

	if principal.UserID == "" {
		err = ErrUnauthorized
		return
	}
	if principal.UserID != userID {
		err = ErrForbidden
		return
	}

	deleted, err = s.meetings.DeleteMany(ctx, persistence.Filter{"user_id": userID})
	if err != nil {
		err = mapMeetingRepoError(err)
	}
	return
}

// resolveRoom picks the room for a meeting window. A requested room wins over
// the stored fallback; either must exist and be free. With neither, the first
// free room is selected.
func (s *MeetingService) resolveRoom(ctx context.Context, requested *string, fallback string, start, end time.Time, meetingID string) (Room, error) {
	roomID := fallback
	if requested != nil && strings.TrimSpace(*requested) != "" {
		roomID = strings.TrimSpace(*requested)
	}

	if roomID == "" {
		return s.availability.SelectAvailableRoom(ctx, start, end)
	}

	if s.rooms == nil {
		return Room{}, fmt.Errorf("room repository not configured")
	}
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		return Room{}, mapRoomRepoError(err)
	}

	available, err := s.availability.IsAvailable(ctx, room.ID, start, end, meetingID)
	if err != nil {
		return Room{}, err
	}
	if !available {
		return Room{}, fmt.Errorf("room %s is booked: %w", room.ID, ErrConflict)
	}
	return room, nil
}

func (s *MeetingService) recordOutcome(err error, mode string) {
	switch {
	case err == nil:
		s.metrics.MeetingBooked(mode)
	case errors.Is(err, ErrNoRoomAvailable):
		s.metrics.BookingRejected("no_room")
	case errors.Is(err, ErrConflict):
		s.metrics.BookingRejected("conflict")
	case errors.Is(err, ErrPreconditionFailed):
		s.metrics.BookingRejected("precondition")
	}
}

func slotResult(meeting Meeting, created bool) SlotResult {
	return SlotResult{
		MeetingID: meeting.ID,
		Location:  MeetingLocation(meeting.ID),
		ETag:      meeting.ETag,
		Created:   created,
	}
}

// checkConcurrencyToken compares the caller's token with the stored one. An
// absent token is accepted only when it is optional.
func checkConcurrencyToken(supplied, stored string, required bool) error {
	supplied = strings.TrimSpace(supplied)
	if supplied == "" {
		if required {
			return fmt.Errorf("concurrency token required: %w", ErrPreconditionFailed)
		}
		return nil
	}
	if supplied != stored {
		return fmt.Errorf("concurrency token mismatch: %w", ErrPreconditionFailed)
	}
	return nil
}

// normalizeMeetingInput trims text fields, converts the window to UTC at
// second precision, and validates required fields.
func normalizeMeetingInput(input MeetingInput) (MeetingInput, *ValidationError) {
	vErr := &ValidationError{}

	normalized := MeetingInput{
		Name:        strings.TrimSpace(input.Name),
		Description: normalizeOptionalString(input.Description),
		Start:       input.Start.UTC().Truncate(time.Second),
		End:         input.End.UTC().Truncate(time.Second),
		RoomID:      normalizeOptionalString(input.RoomID),
	}

	if normalized.Name == "" {
		vErr.add("name", "name is required")
	}
	if input.Start.IsZero() {
		vErr.add("start_time", "start_time is required")
	}
	if input.End.IsZero() {
		vErr.add("end_time", "end_time is required")
	}
	if !input.Start.IsZero() && !input.End.IsZero() && !normalized.Start.Before(normalized.End) {
		vErr.add("end_time", "end_time must be after start_time")
	}

	return normalized, vErr
}

func listMeetings(ctx context.Context, repo MeetingRepository, params ListMeetingsParams, now time.Time) (MeetingPage, error) {
	if repo == nil {
		return MeetingPage{}, fmt.Errorf("meeting repository not configured")
	}

	vErr := validateListParams(params.ListParams, meetingFilterKeys)
	if vErr.HasErrors() {
		return MeetingPage{}, vErr
	}

	query := persistence.MeetingQuery{Filter: persistence.Filter(params.Filter)}
	if !params.IncludePast {
		reference := now.UTC()
		query.EndsAfter = &reference
	}

	items, total, err := repo.Query(ctx, query, pageWindow(params.ListParams))
	if err != nil {
		return MeetingPage{}, mapMeetingRepoError(err)
	}
	if items == nil {
		items = []Meeting{}
	}
	return MeetingPage{Items: items, Page: params.Page, AllCount: total}, nil
}

func validateListParams(params ListParams, allowed map[string]struct{}) *ValidationError {
	vErr := &ValidationError{}
	for key := range params.Filter {
		if _, ok := allowed[key]; !ok {
			vErr.add(key, "unsupported filter")
		}
	}
	if params.Page < 0 {
		vErr.add("page", "page must not be negative")
	}
	if params.Items < 0 {
		vErr.add("items", "items must not be negative")
	}
	if params.Page > 0 && params.Items > 0 && params.Page > math.MaxInt/params.Items {
		vErr.add("page", "page is out of range")
	}
	return vErr
}

// pageWindow converts a zero-based page number and page size to a storage
// window. A page size of zero means everything.
func pageWindow(params ListParams) persistence.Page {
	if params.Items <= 0 {
		return persistence.Page{}
	}
	return persistence.Page{Skip: params.Page * params.Items, Limit: params.Items}
}

func withFilter(filter map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(filter)+1)
	for k, v := range filter {
		out[k] = v
	}
	out[key] = value
	return out
}

func mapMeetingRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrConflict):
		return ErrConflict
	case errors.Is(err, persistence.ErrStale):
		return ErrPreconditionFailed
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrNotFound
	case errors.Is(err, persistence.ErrUnknownFilter):
		vErr := &ValidationError{}
		vErr.add("filter", "unsupported filter")
		return vErr
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("end_time", "end_time must be after start_time")
		return vErr
	}
	return err
}
