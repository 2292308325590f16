package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"printer-fieldops/internal/auth"
	"printer-fieldops/internal/config"
	"printer-fieldops/internal/event"
	"printer-fieldops/internal/handler"
	"printer-fieldops/internal/middleware"
	"printer-fieldops/internal/model"
	"printer-fieldops/internal/service"
)

const (
	sessionSecret   = "session-secret-for-router-tests"
	deviceSecret    = "device-secret-for-router-tests"
	bootstrapSecret = "bootstrap-secret-for-router-tests"
	adminPassword   = "Correct-Horse-9battery"
	trustedProxy    = "192.0.2.10"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]model.WebUser
}

func (s *memUsers) byName(name string) (model.WebUser, bool) {
	for _, u := range s.users {
		if strings.EqualFold(u.Username, name) {
			return u, true
		}
	}
	return model.WebUser{}, false
}

func (s *memUsers) FindByID(_ context.Context, id string) (model.WebUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.WebUser{}, model.ErrUserNotFound
	}
	return u, nil
}

func (s *memUsers) FindByUsername(_ context.Context, username string) (model.WebUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byName(username)
	if !ok {
		return model.WebUser{}, model.ErrUserNotFound
	}
	return u, nil
}

func (s *memUsers) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), nil
}

func (s *memUsers) Create(_ context.Context, u model.WebUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byName(u.Username); taken {
		return model.ErrUserAlreadyExists
	}
	s.users[u.ID] = u
	return nil
}

func (s *memUsers) CreateFirst(_ context.Context, u model.WebUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.users) > 0 {
		return model.ErrBootstrapAlreadyDone
	}
	s.users[u.ID] = u
	return nil
}

func (s *memUsers) List(context.Context) ([]model.WebUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.WebUser, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *memUsers) Update(_ context.Context, id string, patch model.UserPatch, at time.Time) (model.WebUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.WebUser{}, model.ErrUserNotFound
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.Active != nil {
		u.Active = *patch.Active
	}
	u.UpdatedAt = at
	s.users[id] = u
	return u, nil
}

func (s *memUsers) UpdatePassword(_ context.Context, id string, update model.PasswordUpdate, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	u.PasswordHash, u.HashAlgorithm, u.UpdatedAt = update.Hash, update.Algorithm, at
	s.users[id] = u
	return nil
}

func (s *memUsers) CompleteLogin(_ context.Context, id string, at time.Time, rehash *model.PasswordUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || !u.Active {
		return model.ErrUserNotFound
	}
	u.LastLoginAt = &at
	if rehash != nil {
		u.PasswordHash, u.HashAlgorithm = rehash.Hash, rehash.Algorithm
	}
	s.users[id] = u
	return nil
}

func (s *memUsers) ImportBatch(_ context.Context, users []model.WebUser) ([]model.WebUser, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var inserted []model.WebUser
	var duplicates []string
	for _, u := range users {
		if _, taken := s.byName(u.Username); taken {
			duplicates = append(duplicates, u.Username)
			continue
		}
		s.users[u.ID] = u
		inserted = append(inserted, u)
	}
	return inserted, duplicates, nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func (s *memAudit) Log(_ context.Context, entry model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memAudit) Query(context.Context, model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditEntry(nil), s.entries...), model.Meta{Page: 1, Limit: 50, Total: len(s.entries), TotalPages: 1}, nil
}

type memTokens struct{}

func (memTokens) Upsert(_ context.Context, token model.DeviceToken) (model.DeviceToken, error) {
	return token, nil
}

type memField struct {
	mu            sync.Mutex
	installations map[string]model.Installation
	incidents     []model.Incident
}

func (s *memField) Create(_ context.Context, in model.Installation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installations[in.ID] = in
	return nil
}

func (s *memField) List(context.Context, int) ([]model.Installation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Installation, 0, len(s.installations))
	for _, in := range s.installations {
		out = append(out, in)
	}
	return out, nil
}

func (s *memField) Exists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.installations[id]
	return ok, nil
}

type memIncidents struct{ field *memField }

func (s memIncidents) Create(_ context.Context, inc model.Incident) error {
	s.field.mu.Lock()
	defer s.field.mu.Unlock()
	s.field.incidents = append(s.field.incidents, inc)
	return nil
}

type testServer struct {
	handler http.Handler
	field   *memField
	bus     *event.InMemoryBus
}

func newTestServer(t *testing.T, opts service.AuthOptions) testServer {
	t.Helper()

	hasher, err := auth.NewHasher(1000)
	require.NoError(t, err)

	cfg := &config.Config{Server: config.Server{
		RateLimitRPM:     10000,
		AuthRateLimitRPM: 10000,
		RequestTimeout:   5 * time.Second,
		CORSOrigins:      []string{"*"},
		TrustedProxies:   []string{trustedProxy},
	}}

	users := &memUsers{users: map[string]model.WebUser{}}
	audit := service.NewAuditService(&memAudit{})
	gate := auth.NewGate()
	limiter := auth.NewLoginLimiter(auth.NewMemoryAttemptStore())
	field := &memField{installations: map[string]model.Installation{
		"inst-1": {ID: "inst-1", PrinterSerial: "ZC3-1", PrinterModel: "ZC300", DriverVersion: "1.0", SiteName: "HQ"},
	}}
	bus := event.NewBus()

	authService := service.NewAuthService(users, hasher, limiter, audit, opts)

	h := New(
		cfg,
		nil,
		middleware.NewAuthMiddleware(authService, authService, gate),
		handler.NewAuthHandler(authService),
		handler.NewUserHandler(service.NewUserService(users, hasher, gate, audit)),
		handler.NewAuditHandler(audit),
		handler.NewDeviceHandler(service.NewDeviceService(memTokens{})),
		handler.NewFieldHandler(service.NewFieldService(field, memIncidents{field: field}, nil, bus)),
		handler.NewCredentialsHandler(service.NewCredentialService(model.CloudCredentials{Bucket: "photos", SecretAccessKey: "supersecretkey"})),
	)
	return testServer{handler: h, field: field, bus: bus}
}

func fullOptions() service.AuthOptions {
	return service.AuthOptions{SessionSecret: sessionSecret, DeviceSecret: deviceSecret, BootstrapSecret: bootstrapSecret}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
}

func (s testServer) do(t *testing.T, method string, path string, body string, headers map[string]string) (int, envelope) {
	t.Helper()
	return s.doFrom(t, "", method, path, body, headers)
}

// doFrom sends the request from remoteAddr; empty keeps the httptest default peer.
func (s testServer) doFrom(t *testing.T, remoteAddr string, method string, path string, body string, headers map[string]string) (int, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func signed(method string, path string, body string) map[string]string {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	return map[string]string{
		auth.HeaderTimestamp: ts,
		auth.HeaderSignature: auth.SignRequest([]byte(deviceSecret), method, path, ts, []byte(body)),
		auth.HeaderDeviceID:  "tablet-7",
	}
}

func bootstrap(t *testing.T, s testServer) string {
	t.Helper()

	status, env := s.do(t, http.MethodPost, "/web/auth/bootstrap",
		`{"bootstrap_secret":"`+bootstrapSecret+`","username":"root","password":"`+adminPassword+`"}`, nil)
	require.Equal(t, http.StatusCreated, status)

	var session model.SessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &session))
	require.Equal(t, "Bearer", session.TokenType)
	require.Equal(t, model.RoleSuperAdmin, session.User.Role)
	return session.AccessToken
}

func TestWebAuthFlow(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, fullOptions())

	status, env := s.do(t, http.MethodPost, "/web/auth/login", `{"username":"root","password":"`+adminPassword+`"}`, nil)
	require.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "BOOTSTRAP_REQUIRED", env.Error.Code)

	rootToken := bootstrap(t, s)

	status, env = s.do(t, http.MethodPost, "/web/auth/bootstrap",
		`{"bootstrap_secret":"`+bootstrapSecret+`","username":"other","password":"`+adminPassword+`"}`, nil)
	require.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "BOOTSTRAP_ALREADY_DONE", env.Error.Code)

	status, env = s.do(t, http.MethodPost, "/web/auth/login", `{"username":"root","password":"wrong-Password-1"}`, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)

	status, _ = s.do(t, http.MethodGet, "/web/auth/me", "", bearer(rootToken))
	require.Equal(t, http.StatusOK, status)

	status, env = s.do(t, http.MethodPost, "/web/auth/users",
		`{"username":"tech","password":"Field-Tech-2026!"}`, bearer(rootToken))
	require.Equal(t, http.StatusCreated, status, env.Error)

	status, env = s.do(t, http.MethodPost, "/web/auth/login", `{"username":"tech","password":"Field-Tech-2026!"}`, nil)
	require.Equal(t, http.StatusOK, status)
	var viewer model.SessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &viewer))
	assert.Equal(t, int64(8*3600), viewer.ExpiresIn)

	status, env = s.do(t, http.MethodGet, "/web/auth/users", "", bearer(viewer.AccessToken))
	require.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	status, _ = s.do(t, http.MethodPost, "/devices", `{"fcm_token":"fcm-123"}`, bearer(viewer.AccessToken))
	require.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, http.MethodPost, "/web/auth/refresh", "", bearer(viewer.AccessToken))
	require.Equal(t, http.StatusOK, status)

	status, env = s.do(t, http.MethodGet, "/web/auth/cloud-credentials", "", bearer(rootToken))
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), "**********tkey")

	status, env = s.do(t, http.MethodGet, "/web/auth/audit", "", bearer(rootToken))
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), model.AuditBootstrap)
}

func TestLoginLockoutIgnoresForgedForwardedFor(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, fullOptions())
	bootstrap(t, s)

	wrong := `{"username":"root","password":"wrong-Password-1"}`
	forged := func(n int) map[string]string {
		return map[string]string{"X-Forwarded-For": "10.0.0." + strconv.Itoa(n), "X-Real-IP": "10.1.0." + strconv.Itoa(n)}
	}

	for i := 1; i <= auth.LoginThreshold; i++ {
		status, env := s.do(t, http.MethodPost, "/web/auth/login", wrong, forged(i))
		require.Equal(t, http.StatusUnauthorized, status, "attempt %d", i)
		assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)
	}

	for i := 10; i < 30; i++ {
		status, env := s.do(t, http.MethodPost, "/web/auth/login", wrong, forged(i))
		require.Equal(t, http.StatusTooManyRequests, status, "attempt %d", i)
		assert.Equal(t, "RATE_LIMITED", env.Error.Code)
	}

	status, _ := s.do(t, http.MethodPost, "/web/auth/login", `{"username":"root","password":"`+adminPassword+`"}`, forged(99))
	require.Equal(t, http.StatusTooManyRequests, status)

	// Behind the trusted proxy the forwarded client is its own key.
	status, _ = s.doFrom(t, trustedProxy+":443", http.MethodPost, "/web/auth/login",
		`{"username":"root","password":"`+adminPassword+`"}`, map[string]string{"X-Forwarded-For": "198.51.100.7"})
	require.Equal(t, http.StatusOK, status)
}

func TestSessionTokenDoesNotOpenDeviceRoutes(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, fullOptions())
	rootToken := bootstrap(t, s)

	status, env := s.do(t, http.MethodGet, "/installations", "", bearer(rootToken))
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_SIGNATURE", env.Error.Code)
}

func TestDeviceRoutes(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, fullOptions())
	events, unsubscribe := s.bus.Subscribe()
	defer unsubscribe()

	status, env := s.do(t, http.MethodGet, "/installations?limit=10", "", signed(http.MethodGet, "/installations?limit=10", ""))
	require.Equal(t, http.StatusOK, status, env.Error)

	body := `{"installation_id":"inst-1","severity":"critical","description":"fuser overheating"}`
	status, env = s.do(t, http.MethodPost, "/incidents", body, signed(http.MethodPost, "/incidents", body))
	require.Equal(t, http.StatusCreated, status, env.Error)
	require.Len(t, s.field.incidents, 1)
	assert.Equal(t, "tablet-7", s.field.incidents[0].DeviceID)
	assert.Equal(t, event.TypeIncidentReported, (<-events).Type)
	assert.Equal(t, event.TypeIncidentCritical, (<-events).Type)

	// Signature covers the body: replaying headers with another body fails.
	headers := signed(http.MethodPost, "/incidents", body)
	status, env = s.do(t, http.MethodPost, "/incidents", strings.Replace(body, "critical", "low", 1), headers)
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_SIGNATURE", env.Error.Code)

	photo := `{"installation_id":"inst-1","content_type":"image/jpeg"}`
	status, env = s.do(t, http.MethodPost, "/photos/upload-url", photo, signed(http.MethodPost, "/photos/upload-url", photo))
	require.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", env.Error.Code)
}

func TestMissingSecretsAreMisconfigured(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, service.AuthOptions{})

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodPost, "/web/auth/login", `{"username":"root","password":"x"}`},
		{http.MethodPost, "/web/auth/bootstrap", `{"bootstrap_secret":"x","username":"root","password":"x"}`},
		{http.MethodGet, "/web/auth/me", ""},
		{http.MethodGet, "/installations", ""},
	} {
		status, env := s.do(t, tc.method, tc.path, tc.body, bearer("anything"))
		assert.Equal(t, http.StatusServiceUnavailable, status, tc.path)
		assert.Equal(t, "SERVICE_MISCONFIGURED", env.Error.Code, tc.path)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, fullOptions())

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fieldops_http_requests_total")
}
