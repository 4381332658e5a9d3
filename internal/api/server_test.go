package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/hatch-bridge/internal/auth"
	hatchbridge "github.com/nerrad567/hatch-bridge/internal/bridges/hatch"
	"github.com/nerrad567/hatch-bridge/internal/device"
	"github.com/nerrad567/hatch-bridge/internal/infrastructure/config"
	"github.com/nerrad567/hatch-bridge/internal/infrastructure/logging"
)

const (
	testAdminUser     = "admin"
	testAdminPassword = "correct-horse-battery-staple"
)

// fakeBridgeMetrics implements BridgeMetricsProvider for metrics tests.
type fakeBridgeMetrics struct {
	metrics hatchbridge.BridgeMetrics
}

func (f *fakeBridgeMetrics) GetMetrics() hatchbridge.BridgeMetrics {
	return f.metrics
}

// testServer creates a Server with a real device registry backed by in-memory SQLite.
func testServer(t *testing.T) (*Server, *device.Registry) {
	t.Helper()

	db := setupTestDB(t)
	repo := device.NewSQLiteRepository(db)
	registry := device.NewRegistry(repo)
	if err := registry.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}

	hash, err := auth.HashPassword(testAdminPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

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
				Secret:         "test-secret-key-at-least-32-characters-long",
				AccessTokenTTL: 15,
			},
			Admin: config.AdminUserConfig{
				Username:     testAdminUser,
				PasswordHash: hash,
			},
		},
		Logger:       log,
		Registry:     registry,
		MQTT:         nil, // Command tests cover the unavailable path
		StateHistory: device.NewSQLiteStateHistoryRepository(db),
		Bridge: &fakeBridgeMetrics{metrics: hatchbridge.BridgeMetrics{
			SessionConnected:  true,
			Status:            "healthy",
			StatesPublished:   12,
			CommandsProcessed: 3,
			DevicesManaged:    2,
		}},
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	// Initialise hub for tests
	srv.hub = NewHub(srv.wsCfg, log)
	go srv.hub.Run(context.Background())

	return srv, registry
}

// setupTestDB creates an in-memory SQLite database with the bridge schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE devices (
			id                TEXT PRIMARY KEY,
			name              TEXT NOT NULL,
			slug              TEXT NOT NULL,
			product           TEXT NOT NULL,
			generation        TEXT NOT NULL,
			mac               TEXT NOT NULL DEFAULT '',
			firmware_version  TEXT NOT NULL DEFAULT '',
			capabilities      TEXT NOT NULL DEFAULT '[]',
			state             TEXT NOT NULL DEFAULT '{}',
			health_status     TEXT NOT NULL DEFAULT 'unknown',
			created_at        TEXT NOT NULL,
			updated_at        TEXT NOT NULL,
			last_seen_at      TEXT
		);
		CREATE UNIQUE INDEX idx_devices_slug ON devices(slug);
		CREATE TABLE device_state_history (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id   TEXT NOT NULL,
			state       TEXT NOT NULL,
			source      TEXT NOT NULL DEFAULT 'shadow',
			recorded_at TEXT NOT NULL
		);
	`

	if _, execErr := db.Exec(schema); execErr != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", execErr)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// seedDevice inserts a test device through the registry.
func seedDevice(t *testing.T, registry *device.Registry, id, generation string) {
	t.Helper()

	dev := &device.Device{
		ID:           id,
		Name:         "Nursery " + id,
		Slug:         "nursery-" + strings.ToLower(id),
		Product:      "restoreIot",
		Generation:   generation,
		MAC:          "aa:bb:cc:dd:ee:ff",
		Capabilities: device.CapabilitiesForGeneration(generation),
		State:        device.State{"is_on": true, "brightness_percent": 50.0},
		HealthStatus: device.HealthStatusOnline,
	}
	if generation == device.GenerationLegacy {
		dev.Product = "restore"
	}
	if err := registry.CreateDevice(context.Background(), dev); err != nil {
		t.Fatalf("CreateDevice(%s): %v", id, err)
	}
}

// loginToken performs a login and returns the access token.
func loginToken(t *testing.T, router http.Handler) string {
	t.Helper()

	body := `{"username":"` + testAdminUser + `","password":"` + testAdminPassword + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body: %s", w.Code, w.Body.String())
	}

	var resp loginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal login response: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("login returned empty access token")
	}
	return resp.AccessToken
}

// authedRequest builds a request carrying a bearer token.
func authedRequest(method, target, token string, body string) *http.Request {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
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
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

func TestHealth_ContentType(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	ct := w.Header().Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
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

func TestNotFound(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Auth Tests ────────────────────────────────────────────────────

func TestLogin_Success(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	token := loginToken(t, router)
	if token == "" {
		t.Fatal("empty token")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"wrong password", `{"username":"admin","password":"nope"}`, http.StatusUnauthorized},
		{"wrong username", `{"username":"root","password":"` + testAdminPassword + `"}`, http.StatusUnauthorized},
		{"missing fields", `{"username":"admin"}`, http.StatusBadRequest},
		{"invalid JSON", `{not json`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestProtectedRoutes_RequireAuth(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	paths := []string{
		"/api/v1/devices",
		"/api/v1/devices/rest-abc",
		"/api/v1/devices/rest-abc/state",
		"/api/v1/devices/rest-abc/history",
	}

	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s without token: status = %d, want %d", path, w.Code, http.StatusUnauthorized)
		}
	}
}

func TestAuthMiddleware_RejectsGarbageToken(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := authedRequest(http.MethodGet, "/api/v1/devices", "not-a-jwt", "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_TokenQueryParam(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	token := loginToken(t, router)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices?token="+token, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
}

// ─── Device Endpoint Tests ─────────────────────────────────────────

func TestListDevices(t *testing.T) {
	srv, registry := testServer(t)
	router := srv.buildRouter()
	token := loginToken(t, router)

	seedDevice(t, registry, "rest-iot1", device.GenerationIoT)
	seedDevice(t, registry, "rest-leg1", device.GenerationLegacy)

	req := authedRequest(http.MethodGet, "/api/v1/devices", token, "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if int(resp["count"].(float64)) != 2 {
		t.Errorf("count = %v, want 2", resp["count"])
	}
}

func TestListDevices_GenerationFilter(t *testing.T) {
	srv, registry := testServer(t)
	router := srv.buildRouter()
	token := loginToken(t, router)

	seedDevice(t, registry, "rest-iot1", device.GenerationIoT)
	seedDevice(t, registry, "rest-leg1", device.GenerationLegacy)

	req := authedRequest(http.MethodGet, "/api/v1/devices?generation="+device.GenerationLegacy, token, "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if int(resp["count"].(float64)) != 1 {
		t.Errorf("count = %v, want 1", resp["count"])
	}
}

func TestGetDevice(t *testing.T) {
	srv, registry := testServer(t)
	router := srv.buildRouter()
	token := loginToken(t, router)

	seedDevice(t, registry, "rest-iot1", device.GenerationIoT)

	req := authedRequest(http.MethodGet, "/api/v1/devices/rest-iot1", token, "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var dev device.Device
	if err := json.Unmarshal(w.Body.Bytes(), &dev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if dev.ID != "rest-iot1" {
		t.Errorf("ID = %q, want rest-iot1", dev.ID)
	}
	if dev.Generation != device.GenerationIoT {
		t.Errorf("Generation = %q, want %q", dev.Generation, device.GenerationIoT)
	}
}

func TestGetDevice_NotFound(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	token := loginToken(t, router)

	req := authedRequest(http.MethodGet, "/api/v1/devices/rest-missing", token, "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestGetDeviceState(t *testing.T) {
	srv, registry := testServer(t)
	router := srv.buildRouter()
	token := loginToken(t, router)

	seedDevice(t, registry, "rest-iot1", device.GenerationIoT)

	req := authedRequest(http.MethodGet, "/api/v1/devices/rest-iot1/state", token, "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	state, ok := resp["state"].(map[string]any)
	if !ok {
		t.Fatalf("state missing from response: %v", resp)
	}
	if state["is_on"] != true {
		t.Errorf("is_on = %v, want true", state["is_on"])
	}
}

func TestGetDeviceHistory(t *testing.T) {
	srv, registry := testServer(t)
	router := srv.buildRouter()
	token := loginToken(t, router)

	seedDevice(t, registry, "rest-iot1", device.GenerationIoT)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		state := device.State{"is_on": i%2 == 0, "brightness_percent": float64(i * 10)}
		if err := srv.stateHistory.RecordStateChange(ctx, "rest-iot1", state, device.StateHistorySourceShadow); err != nil {
			t.Fatalf("RecordStateChange: %v", err)
		}
	}

	req := authedRequest(http.MethodGet, "/api/v1/devices/rest-iot1/history?limit=2", token, "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if int(resp["count"].(float64)) != 2 {
		t.Errorf("count = %v, want 2", resp["count"])
	}
}

func TestGetDeviceHistory_InvalidLimit(t *testing.T) {
	srv, registry := testServer(t)
	router := srv.buildRouter()
	token := loginToken(t, router)

	seedDevice(t, registry, "rest-iot1", device.GenerationIoT)

	for _, limit := range []string{"0", "-1", "9999", "abc"} {
		req := authedRequest(http.MethodGet, "/api/v1/devices/rest-iot1/history?limit="+limit, token, "")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want %d", limit, w.Code, http.StatusBadRequest)
		}
	}
}

func TestDeviceCommand_BusUnavailable(t *testing.T) {
	srv, registry := testServer(t)
	router := srv.buildRouter()
	token := loginToken(t, router)

	seedDevice(t, registry, "rest-iot1", device.GenerationIoT)

	body := `{"command":"turn_on"}`
	req := authedRequest(http.MethodPost, "/api/v1/devices/rest-iot1/command", token, body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusServiceUnavailable, w.Body.String())
	}
}

func TestDeviceCommand_Validation(t *testing.T) {
	srv, registry := testServer(t)
	router := srv.buildRouter()
	token := loginToken(t, router)

	seedDevice(t, registry, "rest-iot1", device.GenerationIoT)

	tests := []struct {
		name   string
		target string
		body   string
		want   int
	}{
		{"unknown device", "/api/v1/devices/rest-nope/command", `{"command":"turn_on"}`, http.StatusNotFound},
		{"missing command", "/api/v1/devices/rest-iot1/command", `{}`, http.StatusBadRequest},
		{"invalid JSON", "/api/v1/devices/rest-iot1/command", `{nope`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := authedRequest(http.MethodPost, tt.target, token, tt.body)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

// ─── Metrics Tests ─────────────────────────────────────────────────

func TestMetrics(t *testing.T) {
	srv, registry := testServer(t)
	router := srv.buildRouter()

	seedDevice(t, registry, "rest-iot1", device.GenerationIoT)
	seedDevice(t, registry, "rest-leg1", device.GenerationLegacy)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var metrics SystemMetrics
	if err := json.Unmarshal(w.Body.Bytes(), &metrics); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if metrics.Version != "test" {
		t.Errorf("version = %q, want test", metrics.Version)
	}
	if metrics.Runtime.Goroutines <= 0 {
		t.Error("expected positive goroutine count")
	}
	if metrics.Devices.Total != 2 {
		t.Errorf("devices total = %d, want 2", metrics.Devices.Total)
	}
	if metrics.Devices.ByGeneration[device.GenerationIoT] != 1 {
		t.Errorf("iot generation count = %d, want 1", metrics.Devices.ByGeneration[device.GenerationIoT])
	}
	if metrics.Bridge == nil {
		t.Fatal("expected bridge metrics in response")
	}
	if metrics.Bridge.Status != "healthy" {
		t.Errorf("bridge status = %q, want healthy", metrics.Bridge.Status)
	}
	if metrics.Bridge.StatesPublished != 12 {
		t.Errorf("states published = %d, want 12", metrics.Bridge.StatesPublished)
	}
}

// ─── WebSocket Hub Tests ───────────────────────────────────────────

func TestHub_BroadcastToSubscribedClient(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	hub := NewHub(config.WebSocketConfig{}, log)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, 4),
		subscriptions: map[string]struct{}{ChannelStateChanged: {}},
	}
	hub.Register(client)

	hub.Broadcast(ChannelStateChanged, map[string]any{"device_id": "rest-iot1"})

	select {
	case data := <-client.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type != WSTypeEvent {
			t.Errorf("type = %q, want %q", msg.Type, WSTypeEvent)
		}
		if msg.EventType != ChannelStateChanged {
			t.Errorf("event_type = %q, want %q", msg.EventType, ChannelStateChanged)
		}
	case <-time.After(time.Second):
		t.Fatal("no broadcast received")
	}
}

func TestHub_SkipsUnsubscribedClient(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	hub := NewHub(config.WebSocketConfig{}, log)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, 4),
		subscriptions: map[string]struct{}{},
	}
	hub.Register(client)

	hub.Broadcast(ChannelStateChanged, map[string]any{"device_id": "rest-iot1"})

	select {
	case <-client.send:
		t.Fatal("unsubscribed client received broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnregisterClosesSendOnce(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	hub := NewHub(config.WebSocketConfig{}, log)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, 1),
		subscriptions: map[string]struct{}{},
	}
	hub.Register(client)

	hub.Unregister(client)
	hub.Unregister(client) // second call must not panic

	if hub.ClientCount() != 0 {
		t.Errorf("client count = %d, want 0", hub.ClientCount())
	}
}
