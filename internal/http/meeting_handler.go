package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/roombook/internal/application"
)

const maxMeetingBodyBytes = 1 << 20

type meetingService interface {
	CreateMeeting(ctx context.Context, params application.CreateMeetingParams) (application.MeetingResult, error)
	SaveMeeting(ctx context.Context, params application.SaveMeetingParams) (application.MeetingResult, error)
	IssueSlot(ctx context.Context, principal application.Principal) (application.SlotResult, error)
	GetMeeting(ctx context.Context, principal application.Principal, meetingID string) (application.Meeting, error)
	DeleteMeeting(ctx context.Context, params application.DeleteMeetingParams) error
	ListMeetings(ctx context.Context, params application.ListMeetingsParams) (application.MeetingPage, error)
	MoveMeeting(ctx context.Context, params application.MoveMeetingParams) (application.MeetingResult, error)
}

type MeetingHandler struct {
	service   meetingService
	responder responder
	logger    *slog.Logger
}

func NewMeetingHandler(service meetingService, logger *slog.Logger) *MeetingHandler {
	base := defaultLogger(logger)
	return &MeetingHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *MeetingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "MeetingHandler", operation, attrs...)
}

// Create handles POST /meetings. An empty body asks for a reservation slot:
// 201 when a new one was issued, 202 when the caller's pending slot is handed
// out again. A JSON body books a meeting directly.
func (h *MeetingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMeetingBodyBytes))
	if err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").InfoContext(r.Context(), "failed to read meeting request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, codeBadRequest, errBadRequestBody)
		return
	}

	if len(bytes.TrimSpace(body)) == 0 {
		h.issueSlot(w, r, principal)
		return
	}

	input, vErr, err := decodeMeetingRequest(body)
	if err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").InfoContext(r.Context(), "failed to decode meeting request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, codeBadRequest, errBadRequestBody)
		return
	}
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	result, err := h.service.CreateMeeting(r.Context(), application.CreateMeetingParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Location", result.Location)
	setETag(w, result.ETag)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, meetingResponse{Meeting: toMeetingDTO(result.Meeting)})
}

func (h *MeetingHandler) issueSlot(w http.ResponseWriter, r *http.Request, principal application.Principal) {
	slot, err := h.service.IssueSlot(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	status := http.StatusCreated
	if !slot.Created {
		status = http.StatusAccepted
	}
	w.Header().Set("Location", slot.Location)
	setETag(w, slot.ETag)
	h.responder.writeJSON(r.Context(), w, status, slotResponse{ID: slot.MeetingID, Location: slot.Location})
}

func (h *MeetingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	meeting, err := h.service.GetMeeting(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	setETag(w, meeting.ETag)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, meetingResponse{Meeting: toMeetingDTO(meeting)})
}

// Save handles PUT /meetings/{id}. It fills in a reservation slot (201) or
// updates a confirmed meeting (200). If-Match must carry the current ETag.
func (h *MeetingHandler) Save(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	meetingID := r.PathValue("id")
	principal, _ := PrincipalFromContext(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMeetingBodyBytes))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, codeBadRequest, errBadRequestBody)
		return
	}
	input, vErr, err := decodeMeetingRequest(body)
	if err != nil {
		h.log(r.Context(), "Save", "meeting_id", meetingID, "error_kind", "bad_request").InfoContext(r.Context(), "failed to decode meeting update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, codeBadRequest, errBadRequestBody)
		return
	}
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	result, err := h.service.SaveMeeting(r.Context(), application.SaveMeetingParams{
		Principal: principal,
		MeetingID: meetingID,
		Input:     input,
		IfMatch:   ifMatch(r),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
		w.Header().Set("Location", result.Location)
	}
	setETag(w, result.ETag)
	h.responder.writeJSON(r.Context(), w, status, meetingResponse{Meeting: toMeetingDTO(result.Meeting)})
}

func (h *MeetingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	err := h.service.DeleteMeeting(r.Context(), application.DeleteMeetingParams{
		Principal: principal,
		MeetingID: r.PathValue("id"),
		IfMatch:   ifMatch(r),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *MeetingHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	params, vErr := buildListMeetingsParams(r.URL.Query())
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	page, err := h.service.ListMeetings(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toMeetingPageDTO(page))
}

// Move handles PUT /meetings/{id}/rooms/{room_id}.
func (h *MeetingHandler) Move(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	result, err := h.service.MoveMeeting(r.Context(), application.MoveMeetingParams{
		Principal: principal,
		MeetingID: r.PathValue("id"),
		RoomID:    r.PathValue("room_id"),
		IfMatch:   ifMatch(r),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	setETag(w, result.ETag)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, meetingResponse{Meeting: toMeetingDTO(result.Meeting)})
}

type meetingRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	RoomID      *string `json:"room_id"`
}

// decodeMeetingRequest returns a decode error for malformed JSON and a
// validation error for unparseable timestamps.
func decodeMeetingRequest(body []byte) (application.MeetingInput, *application.ValidationError, error) {
	var req meetingRequest
	decoder := json.NewDecoder(bytes.NewReader(body))
	if err := decoder.Decode(&req); err != nil {
		return application.MeetingInput{}, nil, err
	}
	if decoder.More() {
		return application.MeetingInput{}, nil, errors.New("unexpected data after JSON object")
	}

	vErr := &application.ValidationError{}
	input := application.MeetingInput{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Start:       parseTimestamp(vErr, "start_time", req.StartTime),
		End:         parseTimestamp(vErr, "end_time", req.EndTime),
	}
	if req.RoomID != nil {
		if roomID := strings.TrimSpace(*req.RoomID); roomID != "" {
			input.RoomID = &roomID
		}
	}
	if vErr.HasErrors() {
		return application.MeetingInput{}, vErr, nil
	}
	return input, nil, nil
}

type meetingResponse struct {
	Meeting meetingDTO `json:"meeting"`
}

type slotResponse struct {
	ID       string `json:"id"`
	Location string `json:"location"`
}

type meetingDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	RoomID      string  `json:"room_id"`
	UserID      string  `json:"user_id"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type meetingPageDTO struct {
	Items    []meetingDTO `json:"items"`
	Page     int          `json:"page"`
	AllCount int          `json:"all_count"`
}

func toMeetingDTO(meeting application.Meeting) meetingDTO {
	return meetingDTO{
		ID:          meeting.ID,
		Name:        meeting.Name,
		Description: meeting.Description,
		StartTime:   formatTimestamp(meeting.Start),
		EndTime:     formatTimestamp(meeting.End),
		RoomID:      meeting.RoomID,
		UserID:      meeting.OwnerID,
		CreatedAt:   formatTimestamp(meeting.CreatedAt),
		UpdatedAt:   formatTimestamp(meeting.UpdatedAt),
	}
}

func toMeetingPageDTO(page application.MeetingPage) meetingPageDTO {
	out := make([]meetingDTO, 0, len(page.Items))
	for _, meeting := range page.Items {
		out = append(out, toMeetingDTO(meeting))
	}
	return meetingPageDTO{Items: out, Page: page.Page, AllCount: page.AllCount}
}
