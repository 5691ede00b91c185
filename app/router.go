package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"clan-manager/internal/admin"
	"clan-manager/internal/apperr"
	"clan-manager/internal/auth"
	"clan-manager/internal/clanwar"
	"clan-manager/internal/clientip"
	"clan-manager/internal/httpx"
	"clan-manager/internal/maintenance"
	"clan-manager/internal/media"
	"clan-manager/internal/observability"
	"clan-manager/internal/roster"
	"clan-manager/internal/security"
	"clan-manager/internal/strategy"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps is everything the HTTP surface is assembled from.
type Deps struct {
	Logger         *observability.Logger
	TrustProxy     bool
	AllowedOrigins []string

	Blacklist       *security.Blacklist
	SpeedLimiter    *security.SpeedLimiter
	LoginLimiter    *security.RateLimiter
	RegisterLimiter *security.RateLimiter
	APILimiter      *security.RateLimiter
	Tokens          auth.TokenVerifier

	Auth     *auth.Handler
	Roster   *roster.Handler
	ClanWar  *clanwar.Handler
	Strategy *strategy.Handler
	Media    *media.UploadHandler
	Admin    *admin.Handler
	Cleanup  *maintenance.CleanupHandler
	Database Pinger
}

func NewRouter(d Deps) http.Handler {
	root := mux.NewRouter()
	root.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, r, apperr.NotFound("endpoint not found"))
	})
	root.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})

	root.HandleFunc("/health", healthHandler(d.Database)).Methods(http.MethodGet)
	root.HandleFunc("/internal/maintenance/cleanup", d.Cleanup.Handle)

	root.Handle("/api/auth/login", d.LoginLimiter.Middleware(http.HandlerFunc(d.Auth.Login))).Methods(http.MethodPost)
	root.Handle("/api/auth/register", d.RegisterLimiter.Middleware(http.HandlerFunc(d.Auth.Register))).Methods(http.MethodPost)

	api := root.PathPrefix("/api").Subrouter()
	api.Use(d.APILimiter.Middleware, auth.Authenticate(d.Tokens))

	api.HandleFunc("/me", d.Auth.Me).Methods(http.MethodGet)

	rosterOwner := auth.RequireOwnerOrAdmin(roster.UserIDFromPath)
	api.Handle("/stats/{userId}", rosterOwner(http.HandlerFunc(d.Roster.GetStats))).Methods(http.MethodGet)
	api.Handle("/stats/{userId}", rosterOwner(http.HandlerFunc(d.Roster.PutStats))).Methods(http.MethodPut)
	api.Handle("/equipment/{userId}", rosterOwner(http.HandlerFunc(d.Roster.GetEquipment))).Methods(http.MethodGet)
	api.Handle("/equipment/{userId}", rosterOwner(http.HandlerFunc(d.Roster.PutEquipment))).Methods(http.MethodPut)
	api.Handle("/consumables/{userId}", rosterOwner(http.HandlerFunc(d.Roster.GetConsumables))).Methods(http.MethodGet)
	api.Handle("/consumables/{userId}", rosterOwner(http.HandlerFunc(d.Roster.PutConsumables))).Methods(http.MethodPut)

	api.HandleFunc("/clan-war", d.ClanWar.List).Methods(http.MethodGet)
	api.Handle("/clan-war/{userId}", auth.RequireOwnerOrAdmin(clanwar.UserIDFromPath)(http.HandlerFunc(d.ClanWar.Register))).Methods(http.MethodPut)

	api.HandleFunc("/clan-strats", d.Strategy.List).Methods(http.MethodGet)
	api.Handle("/clan-strats", auth.RequireAdmin(http.HandlerFunc(d.Strategy.Create))).Methods(http.MethodPost)
	api.Handle("/clan-strats/{id}", auth.RequireAdmin(http.HandlerFunc(d.Strategy.Delete))).Methods(http.MethodDelete)

	api.HandleFunc("/media/upload", d.Media.Upload).Methods(http.MethodPost)

	adminOnly := api.NewRoute().Subrouter()
	adminOnly.Use(auth.RequireAdmin)
	adminOnly.HandleFunc("/users", d.Admin.ListUsers).Methods(http.MethodGet)
	adminOnly.HandleFunc("/users/{id}", d.Admin.DeleteUser).Methods(http.MethodDelete)
	adminOnly.HandleFunc("/users/{id}/role", d.Admin.ChangeRole).Methods(http.MethodPatch)
	adminOnly.HandleFunc("/admin/blacklist", d.Admin.ListBlocked).Methods(http.MethodGet)
	adminOnly.HandleFunc("/admin/blacklist", d.Admin.Block).Methods(http.MethodPost)
	adminOnly.HandleFunc("/admin/blacklist/{ip}", d.Admin.Unblock).Methods(http.MethodDelete)

	var handler http.Handler = root
	handler = d.SpeedLimiter.Middleware(handler)
	handler = security.CORS(d.AllowedOrigins, handler)
	handler = security.SecurityHeaders(handler)
	handler = d.Blacklist.Middleware(handler)
	handler = observability.RequestLoggingMiddleware(d.Logger, handler)
	handler = clientip.Middleware(d.TrustProxy, handler)
	return observability.RecoverMiddleware(d.Logger, handler)
}

func healthHandler(database Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}

		httpx.WriteJSON(w, status, body)
	}
}
