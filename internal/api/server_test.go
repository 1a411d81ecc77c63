package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/gray-logic-entities/internal/auth"
	"github.com/nerrad567/gray-logic-entities/internal/entitystore"
	"github.com/nerrad567/gray-logic-entities/internal/entitystore/schema"
	"github.com/nerrad567/gray-logic-entities/internal/feature"
	"github.com/nerrad567/gray-logic-entities/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-entities/internal/infrastructure/logging"
)

const (
	testSecret   = "test-secret-key-at-least-32-characters-long"
	testPassword = "correct-horse"
)

func testLogger() *logging.Logger {
	return logging.NewWriter(io.Discard, config.LoggingConfig{Level: "error", Format: "text"}, "test")
}

// testServer creates a Server with a real entity store backed by in-memory SQLite.
func testServer(t *testing.T) (*Server, *entitystore.Store) {
	t.Helper()
	return testServerWithNumbers(t, nil)
}

func testServerWithNumbers(t *testing.T, numbers *feature.Numbers) (*Server, *entitystore.Store) {
	t.Helper()

	store := entitystore.NewStore(entitystore.NewSQLiteRepository(setupTestDB(t)), schema.Default())
	if err := store.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}

	log := testLogger()
	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{
				Secret:         testSecret,
				AccessTokenTTL: 15,
			},
			Admin: config.AdminConfig{Username: "admin", Password: testPassword},
		},
		Logger:  log,
		Store:   store,
		Numbers: numbers,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.hub.Run(ctx)

	store.SetOnChange(srv.BroadcastEntityChange)
	return srv, store
}

// setupTestDB creates an in-memory SQLite database with the entity_store schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	ddl := `
		CREATE TABLE entity_store (
			unique_id  TEXT PRIMARY KEY,
			platform   TEXT NOT NULL,
			data       TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;
	`
	if _, execErr := db.Exec(ddl); execErr != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", execErr)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// authToken issues a valid bearer token for srv.
func authToken(t *testing.T, srv *Server) string {
	t.Helper()
	token, err := srv.tokens.Issue("admin")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return token
}

// do sends an authenticated request through the router.
func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", "Bearer "+authToken(t, srv))
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	decodeBody(t, w, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
}

func TestHealth_DegradedDatabase(t *testing.T) {
	srv, _ := testServer(t)
	db := setupTestDB(t)
	db.Close() //nolint:errcheck // closed to fail the ping
	srv.db = db

	w := do(t, srv, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp healthResponse
	decodeBody(t, w, &resp)
	if resp.Status != "degraded" {
		t.Errorf("status = %q, want degraded", resp.Status)
	}
	if resp.Components["database"] == "ok" {
		t.Error("closed database reported ok")
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: testLogger()}); err == nil {
		t.Error("New() without store should fail")
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	srv, _ := testServer(t)
	srv.cfg.CORS.AllowedOrigins = []string{"https://admin.example"}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("ACAO = %q, want empty", got)
	}
}

func TestNotFound(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv, http.MethodGet, "/api/v1/nonexistent", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestBodySizeLimit(t *testing.T) {
	srv, _ := testServer(t)

	body := `{"platform":"switch","data":{"name":"` + strings.Repeat("x", maxRequestBodySize) + `"}}`
	w := do(t, srv, http.MethodPost, "/api/v1/entity-store", body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("oversized body status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// ─── Auth Tests ────────────────────────────────────────────────────

func TestLogin_Success(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	body := `{"username": "admin", "password": "` + testPassword + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp loginResponse
	decodeBody(t, w, &resp)
	if resp.AccessToken == "" {
		t.Error("expected access_token to be non-empty")
	}
	if resp.TokenType != "Bearer" {
		t.Errorf("token_type = %q, want Bearer", resp.TokenType)
	}
	if resp.ExpiresIn != 15*60 {
		t.Errorf("expires_in = %d, want %d", resp.ExpiresIn, 15*60)
	}

	// The issued token opens protected routes.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/entity-store", nil)
	req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("protected route with login token status = %d, want 200", w.Code)
	}
}

func TestLogin_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		password string
		body     string
		want     int
	}{
		{name: "wrong password", password: testPassword, body: `{"username":"admin","password":"wrong"}`, want: http.StatusUnauthorized},
		{name: "wrong user", password: testPassword, body: `{"username":"root","password":"` + testPassword + `"}`, want: http.StatusUnauthorized},
		{name: "login disabled", password: "", body: `{"username":"admin","password":""}`, want: http.StatusUnauthorized},
		{name: "invalid json", password: testPassword, body: `{`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := testServer(t)
			srv.secCfg.Admin.Password = tt.password

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			srv.buildRouter().ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestLogin_HashedPassword(t *testing.T) {
	srv, _ := testServer(t)
	hash, err := auth.Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 16, SaltLen: 8}.Hash(testPassword)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	srv.secCfg.Admin.Password = hash

	for body, want := range map[string]int{
		`{"username":"admin","password":"` + testPassword + `"}`: http.StatusOK,
		`{"username":"admin","password":"` + hash + `"}`:         http.StatusUnauthorized,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
		w := httptest.NewRecorder()
		srv.buildRouter().ServeHTTP(w, req)
		if w.Code != want {
			t.Errorf("body %s: status = %d, want %d", body, w.Code, want)
		}
	}
}

func TestAuthMiddleware(t *testing.T) {
	srv, _ := testServer(t)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    auth.Issuer,
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	expiredToken, _ := expired.SignedString([]byte(testSecret))

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    auth.Issuer,
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	foreignToken, _ := foreign.SignedString([]byte("another-secret-key-at-least-32-chars!!"))

	noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:  auth.Issuer,
		Subject: "admin",
	})
	noExpiryToken, _ := noExpiry.SignedString([]byte(testSecret))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic YWRtaW46YWRtaW4=", want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not-a-jwt", want: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expiredToken, want: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + foreignToken, want: http.StatusUnauthorized},
		{name: "no expiry", header: "Bearer " + noExpiryToken, want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + authToken(t, srv), want: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + authToken(t, srv), want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/numbers", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			srv.buildRouter().ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestWSTicket_SingleUse(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv, http.MethodPost, "/api/v1/auth/ws-ticket", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp ticketResponse
	decodeBody(t, w, &resp)
	if resp.Ticket == "" || resp.ExpiresIn != int(ticketTTL.Seconds()) {
		t.Fatalf("response = %+v", resp)
	}

	subject, ok := srv.tickets.consume(resp.Ticket)
	if !ok {
		t.Error("ticket should be valid on first use")
	}
	if subject != "admin" {
		t.Errorf("ticket subject = %q, want admin", subject)
	}

	if _, ok := srv.tickets.consume(resp.Ticket); ok {
		t.Error("ticket should not be valid on second use")
	}
}

func TestTicketStore_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ts := newTicketStore()
	ts.now = func() time.Time { return now }

	expired, err := ts.issue("admin")
	if err != nil {
		t.Fatalf("issue() error = %v", err)
	}
	stale, _ := ts.issue("admin") //nolint:errcheck // checked above

	now = now.Add(ticketTTL)
	fresh, _ := ts.issue("admin") //nolint:errcheck // checked above

	if _, ok := ts.consume(expired); ok {
		t.Error("ticket at its expiry instant should be rejected")
	}
	if got := ts.sweep(); got != 1 {
		t.Errorf("sweep() removed %d, want 1", got)
	}
	if _, ok := ts.consume(stale); ok {
		t.Error("swept ticket should be gone")
	}
	if _, ok := ts.consume(fresh); !ok {
		t.Error("fresh ticket should be valid")
	}
	if ts.len() != 0 {
		t.Errorf("len() = %d, want 0", ts.len())
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "Bearer abc", want: "abc", ok: true},
		{header: "bearer abc", want: "abc", ok: true},
		{header: "Bearer    ", ok: false},
		{header: "Basic abc", ok: false},
		{header: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, ok := bearerToken(r)
			if got != tt.want || ok != tt.ok {
				t.Errorf("bearerToken() = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

// ─── Metrics Tests ─────────────────────────────────────────────────

func TestMetrics(t *testing.T) {
	srv, store := testServer(t)
	if _, err := store.Create(context.Background(), map[string]any{
		"platform": "switch",
		"data":     map[string]any{"switch_address": "1/1/1"},
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	var m SystemMetrics
	decodeBody(t, w, &m)
	if m.Entities.Total != 1 || m.Entities.ByPlatform["switch"] != 1 {
		t.Errorf("entities = %+v", m.Entities)
	}
	if m.Version != "test" {
		t.Errorf("version = %q", m.Version)
	}
	if m.MQTT.Configured {
		t.Error("mqtt reported as configured without a client")
	}
}

// ─── Lifecycle Tests ───────────────────────────────────────────────

func TestServer_HealthCheckBeforeStart(t *testing.T) {
	srv, _ := testServer(t)
	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
}

func TestServer_CloseBeforeStart(t *testing.T) {
	srv, _ := testServer(t)
	if err := srv.Close(); err != nil {
		t.Errorf("Close() before Start error = %v", err)
	}
}
