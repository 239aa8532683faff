package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/example/roombook/internal/application"
)

type userService interface {
	RegisterUser(ctx context.Context, params application.RegisterUserParams) (application.User, error)
	GetUser(ctx context.Context, userID string) (application.User, error)
	UpdateUser(ctx context.Context, params application.UpdateUserParams) (application.User, error)
	DeleteUser(ctx context.Context, principal application.Principal, userID string) error
}

type userMeetingService interface {
	ListUserMeetings(ctx context.Context, userID string, params application.ListMeetingsParams) (application.MeetingPage, error)
	DeleteUserMeetings(ctx context.Context, principal application.Principal, userID string) (int, error)
}

type UserHandler struct {
	service   userService
	meetings  userMeetingService
	responder responder
	logger    *slog.Logger
}

func NewUserHandler(service userService, meetings userMeetingService, logger *slog.Logger) *UserHandler {
	base := defaultLogger(logger)
	return &UserHandler{service: service, meetings: meetings, responder: newResponder(base), logger: base}
}

func (h *UserHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "UserHandler", operation, attrs...)
}

// Register handles POST /users. No session is required.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Register", "error_kind", "bad_request").InfoContext(r.Context(), "failed to decode user request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, codeBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Register", "login", req.Login)

	user, err := h.service.RegisterUser(r.Context(), application.RegisterUserParams{Input: req.toInput()})
	if err != nil {
		logger.InfoContext(r.Context(), "user registration failed", "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Location", application.UserLocation(user.ID))
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	user, err := h.service.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	userID := r.PathValue("id")
	principal, _ := PrincipalFromContext(r.Context())

	var req userPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "user_id", userID, "error_kind", "bad_request").InfoContext(r.Context(), "failed to decode user update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, codeBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "user_id", userID)

	user, err := h.service.UpdateUser(r.Context(), application.UpdateUserParams{
		Principal: principal,
		UserID:    userID,
		Patch: application.UserPatch{
			Login:    req.Login,
			Password: req.Password,
			Name:     req.Name,
		},
	})
	if err != nil {
		logger.InfoContext(r.Context(), "user update failed", "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "user updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	userID := r.PathValue("id")
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "user_id", userID)

	if err := h.service.DeleteUser(r.Context(), principal, userID); err != nil {
		logger.InfoContext(r.Context(), "user delete failed", "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	clearSessionCookie(w)
	logger.InfoContext(r.Context(), "user deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// ListMeetings handles GET /users/{id}/meetings.
func (h *UserHandler) ListMeetings(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.meetings == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	params, vErr := buildListMeetingsParams(r.URL.Query())
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	page, err := h.meetings.ListUserMeetings(r.Context(), r.PathValue("id"), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toMeetingPageDTO(page))
}

// DeleteMeetings handles DELETE /users/{id}/meetings.
func (h *UserHandler) DeleteMeetings(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.meetings == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	userID := r.PathValue("id")
	principal, _ := PrincipalFromContext(r.Context())

	deleted, err := h.meetings.DeleteUserMeetings(r.Context(), principal, userID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "DeleteMeetings", "user_id", userID).InfoContext(r.Context(), "user meetings cancelled", "deleted", deleted)
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type userRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (r userRequest) toInput() application.UserInput {
	return application.UserInput{
		Login:    r.Login,
		Password: r.Password,
		Name:     r.Name,
	}
}

type userPatchRequest struct {
	Login    *string `json:"login"`
	Password *string `json:"password"`
	Name     *string `json:"name"`
}

type userResponse struct {
	User userDTO `json:"user"`
}

type userDTO struct {
	ID        string `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toUserDTO(user application.User) userDTO {
	return userDTO{
		ID:        user.ID,
		Login:     user.Login,
		Name:      user.Name,
		CreatedAt: formatTimestamp(user.CreatedAt),
		UpdatedAt: formatTimestamp(user.UpdatedAt),
	}
}
