package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"clan-manager/internal/admin"
	"clan-manager/internal/auth"
	"clan-manager/internal/clanwar"
	"clan-manager/internal/config"
	"clan-manager/internal/maintenance"
	"clan-manager/internal/media"
	"clan-manager/internal/observability"
	"clan-manager/internal/roster"
	"clan-manager/internal/security"
	"clan-manager/internal/strategy"
)

const (
	testSecret    = "a-very-long-test-secret-of-32-bytes!"
	adminPassword = "warlord123"
	clientAddr    = "192.0.2.10:40000"
)

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]auth.User
}

func (m *memoryUsers) Create(_ context.Context, user auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == user.Username {
			return auth.ErrUsernameTaken
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *memoryUsers) GetByUsername(_ context.Context, username string) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Username == username {
			return user, nil
		}
	}
	return auth.User{}, auth.ErrUserNotFound
}

func (m *memoryUsers) GetByID(_ context.Context, id string) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return user, nil
}

func (m *memoryUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return auth.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memoryUsers) UpdateRole(_ context.Context, id string, role auth.Role) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	user.Role = role
	m.users[id] = user
	return user, nil
}

func (m *memoryUsers) EnsureAdmin(_ context.Context, user auth.User) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.users {
		if existing.Username == user.Username {
			existing.PasswordHash = user.PasswordHash
			existing.Role = auth.RoleAdmin
			m.users[id] = existing
			return existing, nil
		}
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryUsers) exists(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[id]
	return ok
}

// memoryRoster keeps one row of each kind per user and, like the users join
// in SQL, reports a missing user as not found.
type memoryRoster struct {
	users *memoryUsers

	mu          sync.Mutex
	stats       map[string]roster.Stats
	equipment   map[string]roster.Equipment
	consumables map[string]roster.Consumables
}

func (m *memoryRoster) GetStats(_ context.Context, userID string) (roster.Stats, error) {
	if !m.users.exists(userID) {
		return roster.Stats{}, roster.ErrUserNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := m.stats[userID]
	stats.UserID = userID
	return stats, nil
}

func (m *memoryRoster) SaveStats(_ context.Context, stats roster.Stats) error {
	if !m.users.exists(stats.UserID) {
		return roster.ErrUserNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[stats.UserID] = stats
	return nil
}

func (m *memoryRoster) GetEquipment(_ context.Context, userID string) (roster.Equipment, error) {
	if !m.users.exists(userID) {
		return roster.Equipment{}, roster.ErrUserNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	equipment := m.equipment[userID]
	equipment.UserID = userID
	return equipment, nil
}

func (m *memoryRoster) SaveEquipment(_ context.Context, equipment roster.Equipment) error {
	if !m.users.exists(equipment.UserID) {
		return roster.ErrUserNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.equipment[equipment.UserID] = equipment
	return nil
}

func (m *memoryRoster) GetConsumables(_ context.Context, userID string) (roster.Consumables, error) {
	if !m.users.exists(userID) {
		return roster.Consumables{}, roster.ErrUserNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	consumables := m.consumables[userID]
	consumables.UserID = userID
	return consumables, nil
}

func (m *memoryRoster) SaveConsumables(_ context.Context, consumables roster.Consumables) error {
	if !m.users.exists(consumables.UserID) {
		return roster.ErrUserNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumables[consumables.UserID] = consumables
	return nil
}

func (m *memoryRoster) Overview(_ context.Context) ([]roster.MemberOverview, error) {
	m.users.mu.Lock()
	defer m.users.mu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()

	members := make([]roster.MemberOverview, 0, len(m.users.users))
	for id, user := range m.users.users {
		members = append(members, roster.MemberOverview{
			ID:          id,
			Username:    user.Username,
			Role:        string(user.Role),
			CreatedAt:   user.CreatedAt,
			Stats:       m.stats[id],
			Equipment:   m.equipment[id],
			Consumables: m.consumables[id],
		})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Username < members[j].Username })
	return members, nil
}

type noClanWar struct{}

func (noClanWar) ListByDate(context.Context, time.Time) ([]clanwar.Registration, error) {
	return nil, nil
}

func (noClanWar) Save(context.Context, string, time.Time, bool) (time.Time, error) {
	return time.Now().UTC(), nil
}

type noStrategies struct{}

func (noStrategies) List(context.Context) ([]strategy.Image, error) { return nil, nil }
func (noStrategies) Create(context.Context, strategy.Image) error { return nil }
func (noStrategies) Delete(context.Context, string) error { return strategy.ErrNotFound }

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error {
	return p.err
}

type testServer struct {
	handler http.Handler
	users   *memoryUsers
	logs    *bytes.Buffer
}

func newTestServer(t *testing.T, apiMax int) *testServer {
	t.Helper()

	logs := &bytes.Buffer{}
	logger := observability.NewLoggerTo(logs)
	counters := security.NewMemoryStore()
	users := &memoryUsers{users: make(map[string]auth.User)}

	tokens, err := auth.NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	service := auth.NewService(users, security.NewLoginTracker(counters, 5, 15*time.Minute), tokens).
		WithBcryptCost(bcrypt.MinCost)
	_, err = service.BootstrapAdmin(context.Background(), "warlord", adminPassword)
	require.NoError(t, err)

	rosterStore := &memoryRoster{
		users:       users,
		stats:       make(map[string]roster.Stats),
		equipment:   make(map[string]roster.Equipment),
		consumables: make(map[string]roster.Consumables),
	}
	images := media.NewImages(nil)
	blacklist := security.NewBlacklist()

	handler := NewRouter(Deps{
		Logger:         logger,
		AllowedOrigins: []string{"https://clan.example"},

		Blacklist:       blacklist,
		SpeedLimiter:    security.NewSpeedLimiter(counters, security.SpeedPolicy{After: 10_000}),
		LoginLimiter:    security.NewRateLimiter(counters, security.Policy{Name: "login", Max: 15, Window: 15 * time.Minute, SkipSuccessful: true, Message: loginLimitMessage}),
		RegisterLimiter: security.NewRateLimiter(counters, security.Policy{Name: "register", Max: 20, Window: time.Hour, Message: registerLimitMessage}),
		APILimiter:      security.NewRateLimiter(counters, security.Policy{Name: "api", Max: apiMax, Window: time.Minute, Message: apiLimitMessage}),
		Tokens:          tokens,

		Auth:     auth.NewHandler(service),
		Roster:   roster.NewHandler(rosterStore, images),
		ClanWar:  clanwar.NewHandler(noClanWar{}),
		Strategy: strategy.NewHandler(noStrategies{}, images),
		Media:    media.NewUploadHandler(nil),
		Admin:    admin.NewHandler(service, rosterStore, blacklist),
		Cleanup:  maintenance.NewCleanupHandler(counters, blacklist, logger, "cron-secret"),
		Database: fakePinger{},
	})

	return &testServer{handler: handler, users: users, logs: logs}
}

type call struct {
	method string
	path   string
	body   string
	token  string
	addr   string
}

func (s *testServer) do(c call) *httptest.ResponseRecorder {
	var body io.Reader
	if c.body != "" {
		body = strings.NewReader(c.body)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	req.RemoteAddr = clientAddr
	if c.addr != "" {
		req.RemoteAddr = c.addr
	}
	if c.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, username, password string) auth.Session {
	t.Helper()
	rec := s.do(call{method: http.MethodPost, path: "/api/auth/login", body: `{"username":"` + username + `","password":"` + password + `"}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var session auth.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	return session
}

func (s *testServer) register(t *testing.T, username, password string) auth.Identity {
	t.Helper()
	rec := s.do(call{method: http.MethodPost, path: "/api/auth/register", body: `{"username":"` + username + `","password":"` + password + `"}`})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body struct {
		Message string        `json:"message"`
		User    auth.Identity `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "user registered successfully", body.Message)
	return body.User
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body["error"]
}

func TestRegisterLoginAndOwnStats(t *testing.T) {
	srv := newTestServer(t, 200)

	user := srv.register(t, "scout_01", "password1")
	assert.Equal(t, auth.RoleUser, user.Role)

	session := srv.login(t, "scout_01", "password1")
	assert.Equal(t, user.UserID, session.User.UserID)

	rec := srv.do(call{method: http.MethodGet, path: "/api/me", token: session.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"scout_01"`)

	rec = srv.do(call{method: http.MethodPut, path: "/api/stats/" + user.UserID, token: session.Token, body: `{"ingame_name":"Scout","kills":12,"deaths":3}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(call{method: http.MethodGet, path: "/api/stats/" + user.UserID, token: session.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	var stats roster.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, "Scout", stats.IngameName)
	assert.Equal(t, 12, stats.Kills)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	srv := newTestServer(t, 200)
	srv.register(t, "scout_01", "password1")

	rec := srv.do(call{method: http.MethodPost, path: "/api/auth/register", body: `{"username":"scout_01","password":"password2"}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "username already exists", errorMessage(t, rec))
}

func TestLoginLocksAfterFiveFailures(t *testing.T) {
	srv := newTestServer(t, 200)
	srv.register(t, "scout_01", "password1")

	for i := 1; i <= 5; i++ {
		rec := srv.do(call{method: http.MethodPost, path: "/api/auth/login", body: `{"username":"scout_01","password":"wrong-pass1"}`})
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i)
	}

	rec := srv.do(call{method: http.MethodPost, path: "/api/auth/login", body: `{"username":"scout_01","password":"password1"}`})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "account temporarily locked, try again later", errorMessage(t, rec))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, srv.logs.String(), `"account_locked"`)
}

func TestLoginLimiterRejectsAfterRepeatedFailures(t *testing.T) {
	srv := newTestServer(t, 200)

	for i := 0; i < 15; i++ {
		rec := srv.do(call{method: http.MethodPost, path: "/api/auth/login", body: `{"username":"ghost_` + string(rune('a'+i)) + `","password":"password1"}`})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := srv.do(call{method: http.MethodPost, path: "/api/auth/login", body: `{"username":"warlord","password":"` + adminPassword + `"}`})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, loginLimitMessage, errorMessage(t, rec))

	other := srv.do(call{method: http.MethodPost, path: "/api/auth/login", addr: "192.0.2.99:1000", body: `{"username":"warlord","password":"` + adminPassword + `"}`})
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestDeletedUserTokenGetsNotFound(t *testing.T) {
	srv := newTestServer(t, 200)
	user := srv.register(t, "scout_01", "password1")
	userSession := srv.login(t, "scout_01", "password1")
	adminSession := srv.login(t, "warlord", adminPassword)

	rec := srv.do(call{method: http.MethodDelete, path: "/api/users/" + user.UserID, token: adminSession.Token})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = srv.do(call{method: http.MethodGet, path: "/api/stats/" + user.UserID, token: userSession.Token})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "user not found", errorMessage(t, rec))

	rec = srv.do(call{method: http.MethodGet, path: "/api/me", token: userSession.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGuardsOnProtectedRoutes(t *testing.T) {
	srv := newTestServer(t, 200)
	alice := srv.register(t, "alice", "password1")
	bob := srv.register(t, "bob_the_builder", "password2")
	aliceSession := srv.login(t, "alice", "password1")
	adminSession := srv.login(t, "warlord", adminPassword)

	tests := []struct {
		name    string
		call    call
		status  int
		message string
	}{
		{name: "no token", call: call{method: http.MethodGet, path: "/api/stats/" + alice.UserID}, status: http.StatusUnauthorized, message: "missing authorization token"},
		{name: "garbage token", call: call{method: http.MethodGet, path: "/api/me", token: "not.a.jwt"}, status: http.StatusUnauthorized, message: "invalid token"},
		{name: "other user's stats", call: call{method: http.MethodGet, path: "/api/stats/" + bob.UserID, token: aliceSession.Token}, status: http.StatusForbidden, message: "access denied"},
		{name: "other user's clan war entry", call: call{method: http.MethodPut, path: "/api/clan-war/" + bob.UserID, token: aliceSession.Token, body: `{"attending":true}`}, status: http.StatusForbidden, message: "access denied"},
		{name: "user listing for non admin", call: call{method: http.MethodGet, path: "/api/users", token: aliceSession.Token}, status: http.StatusForbidden, message: "access denied"},
		{name: "strategy upload for non admin", call: call{method: http.MethodPost, path: "/api/clan-strats", token: aliceSession.Token, body: `{"title":"x"}`}, status: http.StatusForbidden, message: "access denied"},
		{name: "admin reads anyone's stats", call: call{method: http.MethodGet, path: "/api/stats/" + bob.UserID, token: adminSession.Token}, status: http.StatusOK},
		{name: "admin deletes missing strategy", call: call{method: http.MethodDelete, path: "/api/clan-strats/0190a8a4-0000-7000-8000-000000000000", token: adminSession.Token}, status: http.StatusNotFound, message: "strategy not found"},
		{name: "uploads not configured", call: call{method: http.MethodPost, path: "/api/media/upload", token: aliceSession.Token}, status: http.StatusServiceUnavailable, message: "image uploads are not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(tt.call)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.message != "" {
				assert.Equal(t, tt.message, errorMessage(t, rec))
			}
		})
	}
}

func TestAdminChangesRoleAndListsMembers(t *testing.T) {
	srv := newTestServer(t, 200)
	user := srv.register(t, "scout_01", "password1")
	adminSession := srv.login(t, "warlord", adminPassword)

	rec := srv.do(call{method: http.MethodPatch, path: "/api/users/" + user.UserID + "/role", token: adminSession.Token, body: `{"role":"admin"}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(call{method: http.MethodPatch, path: "/api/users/" + adminSession.User.UserID + "/role", token: adminSession.Token, body: `{"role":"user"}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "you cannot change your own role", errorMessage(t, rec))

	rec = srv.do(call{method: http.MethodGet, path: "/api/users", token: adminSession.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	var members []roster.MemberOverview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &members))
	require.Len(t, members, 2)
	assert.Equal(t, "scout_01", members[0].Username)
	assert.Equal(t, "admin", members[0].Role)
}

func TestBlacklistedAddressIsRejectedEverywhere(t *testing.T) {
	srv := newTestServer(t, 200)
	adminSession := srv.login(t, "warlord", adminPassword)

	rec := srv.do(call{method: http.MethodPost, path: "/api/admin/blacklist", token: adminSession.Token, body: `{"ip":"203.0.113.7","reason":"spam"}`})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, srv.logs.String(), `"ip_blacklisted"`)

	for _, path := range []string{"/api/auth/login", "/health", "/no/such/route"} {
		rec = srv.do(call{method: http.MethodGet, path: path, addr: "203.0.113.7:5000"})
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
		assert.Equal(t, "access from your address has been blocked", errorMessage(t, rec))
	}

	preflight := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	preflight.RemoteAddr = "203.0.113.7:5000"
	preflight.Header.Set("Origin", "https://clan.example")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, preflight)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = srv.do(call{method: http.MethodPost, path: "/api/admin/blacklist", token: adminSession.Token, body: `{"ip":"192.0.2.10"}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "you cannot block your own address", errorMessage(t, rec))

	rec = srv.do(call{method: http.MethodDelete, path: "/api/admin/blacklist/203.0.113.7", token: adminSession.Token})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(call{method: http.MethodGet, path: "/health", addr: "203.0.113.7:5000"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPILimiterRejectsOverLimit(t *testing.T) {
	srv := newTestServer(t, 2)
	session := srv.login(t, "warlord", adminPassword)

	for i := 0; i < 2; i++ {
		rec := srv.do(call{method: http.MethodGet, path: "/api/me", token: session.Token})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("RateLimit-Limit"))
	}

	rec := srv.do(call{method: http.MethodGet, path: "/api/me", token: session.Token})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, apiLimitMessage, errorMessage(t, rec))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestUnknownRoutesAndMethods(t *testing.T) {
	srv := newTestServer(t, 200)

	rec := srv.do(call{method: http.MethodGet, path: "/api/nothing-here"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "endpoint not found", errorMessage(t, rec))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = srv.do(call{method: http.MethodGet, path: "/api/auth/login"})
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, 200)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.RemoteAddr = clientAddr
	req.Header.Set("Origin", "https://clan.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://clan.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthAndMaintenance(t *testing.T) {
	srv := newTestServer(t, 200)

	rec := srv.do(call{method: http.MethodGet, path: "/health"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = srv.do(call{method: http.MethodPost, path: "/internal/maintenance/cleanup"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(call{method: http.MethodPost, path: "/internal/maintenance/cleanup", token: "cron-secret"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHealthReportsDegradedDatabase(t *testing.T) {
	rec := httptest.NewRecorder()
	healthHandler(fakePinger{err: errors.New("connection refused")})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
}

func assembleConfig() config.Config {
	return config.Config{
		JWTSecret:      testSecret,
		AllowedOrigins: []string{"*"},
		BlockedIPs:     []string{"203.0.113.9"},
		CounterStore:   config.CounterStoreMemory,
		TokenTTL:       time.Hour,
		BcryptCost:     bcrypt.MinCost,

		LoginMaxAttempts:  5,
		LoginLockWindow:   15 * time.Minute,
		LoginRateLimit:    config.RateLimit{Max: 15, Window: 15 * time.Minute},
		RegisterRateLimit: config.RateLimit{Max: 20, Window: time.Hour},
		APIRateLimit:      config.RateLimit{Max: 200, Window: time.Minute},
	}
}

func TestAssembleWiresConfiguration(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	logs := &bytes.Buffer{}
	deps, err := Assemble(context.Background(), assembleConfig(), mock, observability.NewLoggerTo(logs))
	require.NoError(t, err)

	assert.Equal(t, "login", deps.LoginLimiter.Policy().Name)
	assert.True(t, deps.LoginLimiter.Policy().SkipSuccessful)
	assert.Equal(t, registerLimitMessage, deps.RegisterLimiter.Policy().Message)
	assert.Equal(t, 200, deps.APILimiter.Policy().Max)
	assert.True(t, deps.Blacklist.IsBlocked("203.0.113.9"))
	assert.Contains(t, logs.String(), `"cloudinary_disabled"`)

	deps.Database = fakePinger{}
	handler := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssembleRejectsBadConfiguration(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cfg := assembleConfig()
	cfg.BlockedIPs = []string{"not-an-ip"}
	_, err = Assemble(context.Background(), cfg, mock, observability.NewLoggerTo(io.Discard))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BLOCKED_IPS")

	cfg = assembleConfig()
	cfg.JWTSecret = "short"
	_, err = Assemble(context.Background(), cfg, mock, observability.NewLoggerTo(io.Discard))
	require.Error(t, err)

	cfg = assembleConfig()
	cfg.CloudinaryURL = "https://not-cloudinary"
	_, err = Assemble(context.Background(), cfg, mock, observability.NewLoggerTo(io.Discard))
	require.Error(t, err)
}
