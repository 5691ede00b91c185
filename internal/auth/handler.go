package auth

import (
	"errors"
	"net/http"

	"clan-manager/internal/apperr"
	"clan-manager/internal/httpx"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if body.Username == "" || body.Password == "" {
		httpx.WriteError(w, r, apperr.Validation("username and password are required"))
		return
	}

	user, err := h.service.Register(r.Context(), body.Username, body.Password)
	if err != nil {
		httpx.WriteError(w, r, ToAppError(err))
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "user registered successfully",
		"user":    user.Identity(),
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if body.Username == "" || body.Password == "" {
		httpx.WriteError(w, r, apperr.Validation("username and password are required"))
		return
	}

	session, err := h.service.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		httpx.WriteError(w, r, ToAppError(err))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, session)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	caller, ok := IdentityFrom(r.Context())
	if !ok {
		httpx.WriteError(w, r, apperr.Unauthenticated("missing authorization token"))
		return
	}

	user, err := h.service.Me(r.Context(), caller.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			httpx.WriteError(w, r, apperr.Unauthenticated("user no longer exists"))
			return
		}
		httpx.WriteError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, user)
}

// ToAppError maps the package's errors onto client-facing ones.
func ToAppError(err error) error {
	var locked LockedError
	switch {
	case errors.As(err, &locked):
		return apperr.Locked("account temporarily locked, try again later", locked.RetryAfter)
	case errors.Is(err, ErrInvalidCredentials):
		return apperr.Unauthenticated("invalid credentials")
	case errors.Is(err, ErrUsernameTaken):
		return apperr.Validation("username already exists")
	case errors.Is(err, ErrUserNotFound):
		return apperr.NotFound("user not found")
	default:
		return err
	}
}
