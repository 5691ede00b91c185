package strategy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"clan-manager/internal/apperr"
	"clan-manager/internal/auth"
	"clan-manager/internal/httpx"
	"clan-manager/internal/media"
)

const (
	maxTitleChars       = 100
	maxDescriptionChars = 1000
	maxCreateBodyBytes  = 8 << 20
)

type Store interface {
	List(ctx context.Context) ([]Image, error)
	Create(ctx context.Context, image Image) error
	Delete(ctx context.Context, id string) error
}

type Handler struct {
	store  Store
	images *media.Images
	now    func() time.Time
}

func NewHandler(store Store, images *media.Images) *Handler {
	return &Handler{
		store:  store,
		images: images,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	images, err := h.store.List(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, images)
}

type createRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageData   string `json:"image_data"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.IdentityFrom(r.Context())
	if !ok {
		httpx.WriteError(w, r, apperr.Unauthenticated("missing authorization token"))
		return
	}

	var body createRequest
	if err := httpx.DecodeJSONLimit(w, r, &body, maxCreateBodyBytes); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	body.Title = strings.TrimSpace(body.Title)
	body.Description = strings.TrimSpace(body.Description)
	if body.Title == "" || utf8.RuneCountInString(body.Title) > maxTitleChars {
		httpx.WriteError(w, r, apperr.Validation("title must be between 1 and 100 characters"))
		return
	}
	if utf8.RuneCountInString(body.Description) > maxDescriptionChars {
		httpx.WriteError(w, r, apperr.Validation("description must not exceed 1000 characters"))
		return
	}
	if strings.TrimSpace(body.ImageData) == "" {
		httpx.WriteError(w, r, apperr.Validation("image_data is required"))
		return
	}

	imageURL, err := h.images.Store(r.Context(), body.ImageData, "clan-manager/strategies")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		httpx.WriteError(w, r, fmt.Errorf("generate uuid v7: %w", err))
		return
	}

	image := Image{
		ID:          id.String(),
		UserID:      caller.UserID,
		Author:      caller.Username,
		Title:       body.Title,
		Description: body.Description,
		ImageURL:    imageURL,
		CreatedAt:   h.now(),
	}
	if err := h.store.Create(r.Context(), image); err != nil {
		if errors.Is(err, ErrAuthorNotFound) {
			httpx.WriteError(w, r, apperr.Unauthenticated("user no longer exists"))
			return
		}
		httpx.WriteError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, image)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := uuid.Parse(id); err != nil {
		httpx.WriteError(w, r, apperr.NotFound("strategy not found"))
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, r, apperr.NotFound("strategy not found"))
			return
		}
		httpx.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
