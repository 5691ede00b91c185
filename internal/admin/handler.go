package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"clan-manager/internal/apperr"
	"clan-manager/internal/auth"
	"clan-manager/internal/clientip"
	"clan-manager/internal/httpx"
	"clan-manager/internal/observability"
	"clan-manager/internal/roster"
	"clan-manager/internal/security"
)

type UserManager interface {
	DeleteUser(ctx context.Context, caller auth.Identity, userID string) error
	ChangeRole(ctx context.Context, caller auth.Identity, userID, role string) (auth.User, error)
}

type MemberLister interface {
	Overview(ctx context.Context) ([]roster.MemberOverview, error)
}

// Handler serves the admin-only endpoints. Routes are expected behind
// auth.RequireAdmin.
type Handler struct {
	users     UserManager
	members   MemberLister
	blacklist *security.Blacklist
}

func NewHandler(users UserManager, members MemberLister, blacklist *security.Blacklist) *Handler {
	return &Handler{users: users, members: members, blacklist: blacklist}
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.Overview(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, members)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFrom(r.Context())
	userID := mux.Vars(r)["id"]

	if err := h.users.DeleteUser(r.Context(), caller, userID); err != nil {
		httpx.WriteError(w, r, auth.ToAppError(err))
		return
	}

	observability.LoggerFrom(r.Context()).Info("user_deleted", map[string]any{
		"user_id": userID,
		"by":      caller.UserID,
	})
	w.WriteHeader(http.StatusNoContent)
}

type roleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFrom(r.Context())
	userID := mux.Vars(r)["id"]

	var body roleRequest
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	user, err := h.users.ChangeRole(r.Context(), caller, userID, body.Role)
	if err != nil {
		httpx.WriteError(w, r, auth.ToAppError(err))
		return
	}

	observability.LoggerFrom(r.Context()).Info("user_role_changed", map[string]any{
		"user_id": userID,
		"role":    string(user.Role),
		"by":      caller.UserID,
	})
	httpx.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) ListBlocked(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.blacklist.List())
}

type blockRequest struct {
	IP         string `json:"ip"`
	Reason     string `json:"reason"`
	TTLMinutes int    `json:"ttl_minutes"`
}

func (h *Handler) Block(w http.ResponseWriter, r *http.Request) {
	var body blockRequest
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if body.TTLMinutes < 0 {
		httpx.WriteError(w, r, apperr.Validation("ttl_minutes must not be negative"))
		return
	}
	if clientip.Normalize(body.IP) == clientip.FromRequest(r) {
		httpx.WriteError(w, r, apperr.Validation("you cannot block your own address"))
		return
	}

	entry, err := h.blacklist.Block(body.IP, body.Reason, time.Duration(body.TTLMinutes)*time.Minute)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	caller, _ := auth.IdentityFrom(r.Context())
	observability.LoggerFrom(r.Context()).Warn("ip_blacklisted", map[string]any{
		"ip":     entry.IP,
		"reason": entry.Reason,
		"by":     caller.UserID,
	})
	httpx.WriteJSON(w, http.StatusCreated, entry)
}

func (h *Handler) Unblock(w http.ResponseWriter, r *http.Request) {
	ip := mux.Vars(r)["ip"]
	if !h.blacklist.Unblock(ip) {
		httpx.WriteError(w, r, apperr.NotFound("address is not blocked"))
		return
	}

	observability.LoggerFrom(r.Context()).Info("ip_unblocked", map[string]any{"ip": clientip.Normalize(ip)})
	w.WriteHeader(http.StatusNoContent)
}
