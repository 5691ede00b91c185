package maintenance

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"clan-manager/internal/apperr"
	"clan-manager/internal/httpx"
	"clan-manager/internal/observability"
)

type CounterSweeper interface {
	Sweep(ctx context.Context, now time.Time) (int64, error)
}

type BlacklistSweeper interface {
	Sweep() int
}

type CleanupResult struct {
	DeletedCounters         int64 `json:"deleted_counters"`
	DeletedBlacklistEntries int   `json:"deleted_blacklist_entries"`
}

// CleanupHandler drops closed rate-limit and lockout windows and expired
// blacklist entries. It is meant to be called by a scheduler holding the cron
// secret; without a configured secret the endpoint does not exist.
type CleanupHandler struct {
	counters   CounterSweeper
	blacklist  BlacklistSweeper
	logger     *observability.Logger
	cronSecret string
	now        func() time.Time
}

func NewCleanupHandler(counters CounterSweeper, blacklist BlacklistSweeper, logger *observability.Logger, cronSecret string) *CleanupHandler {
	return &CleanupHandler{
		counters:   counters,
		blacklist:  blacklist,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		httpx.WriteError(w, r, apperr.NotFound("endpoint not found"))
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") ||
		subtle.ConstantTimeCompare([]byte(strings.TrimSpace(parts[1])), []byte(h.cronSecret)) != 1 {
		httpx.WriteError(w, r, apperr.Unauthenticated("unauthorized"))
		return
	}

	var result CleanupResult
	deleted, err := h.counters.Sweep(r.Context(), h.now())
	if err != nil {
		h.logger.Error("cleanup_failed", map[string]any{"error": err.Error()})
		httpx.WriteError(w, r, err)
		return
	}
	result.DeletedCounters = deleted
	result.DeletedBlacklistEntries = h.blacklist.Sweep()

	h.logger.Info("cleanup_completed", map[string]any{
		"deleted_counters":          result.DeletedCounters,
		"deleted_blacklist_entries": result.DeletedBlacklistEntries,
	})

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"result": result,
	})
}
