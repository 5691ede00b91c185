package roster

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"clan-manager/internal/apperr"
	"clan-manager/internal/httpx"
	"clan-manager/internal/media"
)

// An inline artifact image is base64 and up to 5 MiB decoded.
const maxEquipmentBodyBytes = 8 << 20

type Store interface {
	GetStats(ctx context.Context, userID string) (Stats, error)
	SaveStats(ctx context.Context, stats Stats) error
	GetEquipment(ctx context.Context, userID string) (Equipment, error)
	SaveEquipment(ctx context.Context, equipment Equipment) error
	GetConsumables(ctx context.Context, userID string) (Consumables, error)
	SaveConsumables(ctx context.Context, consumables Consumables) error
}

type Handler struct {
	store  Store
	images *media.Images
}

func NewHandler(store Store, images *media.Images) *Handler {
	return &Handler{store: store, images: images}
}

// UserIDFromPath is the owner of the roster resource addressed by the request.
func UserIDFromPath(r *http.Request) string {
	return mux.Vars(r)["userId"]
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := UserIDFromPath(r)
	if _, err := uuid.Parse(userID); err != nil {
		httpx.WriteError(w, r, apperr.NotFound("user not found"))
		return "", false
	}
	return userID, true
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	stats, err := h.store.GetStats(r.Context(), userID)
	if err != nil {
		httpx.WriteError(w, r, toAppError(err))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, stats)
}

type statsRequest struct {
	IngameName  string `json:"ingame_name"`
	DiscordName string `json:"discord_name"`
	Kills       int    `json:"kills"`
	Deaths      int    `json:"deaths"`
}

func (h *Handler) PutStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var body statsRequest
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	stats := Stats{
		UserID:      userID,
		IngameName:  body.IngameName,
		DiscordName: body.DiscordName,
		Kills:       body.Kills,
		Deaths:      body.Deaths,
	}
	if err := stats.Validate(); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := h.store.SaveStats(r.Context(), stats); err != nil {
		httpx.WriteError(w, r, toAppError(err))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "stats updated successfully", "stats": stats})
}

func (h *Handler) GetEquipment(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	equipment, err := h.store.GetEquipment(r.Context(), userID)
	if err != nil {
		httpx.WriteError(w, r, toAppError(err))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, equipment)
}

type equipmentRequest struct {
	Weapons        string `json:"weapons"`
	Armors         string `json:"armors"`
	ArtifactBuilds string `json:"artifact_builds"`
	ArtifactImage  string `json:"artifact_image"`
}

func (h *Handler) PutEquipment(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var body equipmentRequest
	if err := httpx.DecodeJSONLimit(w, r, &body, maxEquipmentBodyBytes); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	equipment := Equipment{
		UserID:         userID,
		Weapons:        body.Weapons,
		Armors:         body.Armors,
		ArtifactBuilds: body.ArtifactBuilds,
	}
	if err := equipment.Validate(); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	image, err := h.images.Store(r.Context(), body.ArtifactImage, "clan-manager/artifacts")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	equipment.ArtifactImage = image

	if err := h.store.SaveEquipment(r.Context(), equipment); err != nil {
		httpx.WriteError(w, r, toAppError(err))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "equipment updated successfully", "equipment": equipment})
}

func (h *Handler) GetConsumables(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	consumables, err := h.store.GetConsumables(r.Context(), userID)
	if err != nil {
		httpx.WriteError(w, r, toAppError(err))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, consumables)
}

func (h *Handler) PutConsumables(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var consumables Consumables
	if err := httpx.DecodeJSON(w, r, &consumables); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	consumables.UserID = userID

	if err := consumables.Validate(); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := h.store.SaveConsumables(r.Context(), consumables); err != nil {
		httpx.WriteError(w, r, toAppError(err))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "consumables updated successfully", "consumables": consumables})
}

func toAppError(err error) error {
	if errors.Is(err, ErrUserNotFound) {
		return apperr.NotFound("user not found")
	}
	return err
}
