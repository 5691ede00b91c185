package clanwar

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"clan-manager/internal/apperr"
	"clan-manager/internal/httpx"
)

type Store interface {
	ListByDate(ctx context.Context, date time.Time) ([]Registration, error)
	Save(ctx context.Context, userID string, date time.Time, attending bool) (time.Time, error)
}

type Handler struct {
	store Store
	now   func() time.Time
}

func NewHandler(store Store) *Handler {
	return &Handler{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

func UserIDFromPath(r *http.Request) string {
	return mux.Vars(r)["userId"]
}

// parseDate reads a YYYY-MM-DD day, defaulting to today in UTC.
func (h *Handler) parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		now := h.now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}

	date, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, apperr.Validation("date must be formatted as YYYY-MM-DD")
	}
	return date, nil
}

type dayResponse struct {
	Date          string         `json:"date"`
	Attending     int            `json:"attending"`
	NotAttending  int            `json:"not_attending"`
	Registrations []Registration `json:"registrations"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	date, err := h.parseDate(r.URL.Query().Get("date"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	registrations, err := h.store.ListByDate(r.Context(), date)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	resp := dayResponse{Date: date.Format(DateLayout), Registrations: registrations}
	for _, reg := range registrations {
		if reg.Attending {
			resp.Attending++
		} else {
			resp.NotAttending++
		}
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

type registerRequest struct {
	Date      string `json:"date"`
	Attending *bool  `json:"attending"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromPath(r)
	if _, err := uuid.Parse(userID); err != nil {
		httpx.WriteError(w, r, apperr.NotFound("user not found"))
		return
	}

	var body registerRequest
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if body.Attending == nil {
		httpx.WriteError(w, r, apperr.Validation("attending is required"))
		return
	}

	date, err := h.parseDate(body.Date)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	updatedAt, err := h.store.Save(r.Context(), userID, date, *body.Attending)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			httpx.WriteError(w, r, apperr.NotFound("user not found"))
			return
		}
		httpx.WriteError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"user_id":    userID,
		"date":       date.Format(DateLayout),
		"attending":  *body.Attending,
		"updated_at": updatedAt,
	})
}
