package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/hikumo-bridge/internal/climate"
	"github.com/nerrad567/hikumo-bridge/internal/hikumo"
	"github.com/nerrad567/hikumo-bridge/internal/house"
	"github.com/nerrad567/hikumo-bridge/internal/infrastructure/config"
	"github.com/nerrad567/hikumo-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/hikumo-bridge/internal/journal"
)

// mockHouse serves a fixed set of devices.
type mockHouse struct {
	mu        sync.Mutex
	devices   map[string]*climate.Device
	connected bool
	resets    int
}

func newMockHouse() *mockHouse {
	d := climate.NewDevice(climate.DeviceOptions{
		ID:        "1234",
		Name:      "Living room",
		DeviceURL: "hlrrwifi://1111-2222-3333/1234",
	})
	d.MergeVendorSnapshot([]hikumo.RawState{
		{Name: "hlrrwifi:MainOperationState", Value: "on"},
		{Name: "hlrrwifi:ModeChangeState", Value: "heating"},
		{Name: "core:TargetTemperatureState", Value: float64(22)},
	}, true)

	return &mockHouse{
		devices:   map[string]*climate.Device{d.ID(): d},
		connected: true,
	}
}

func (m *mockHouse) Devices() []climate.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	states := make([]climate.State, 0, len(m.devices))
	for _, d := range m.devices {
		states = append(states, d.Snapshot())
	}
	return states
}

func (m *mockHouse) Device(id string) (*climate.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", house.ErrUnknownDevice, id)
	}
	return d, nil
}

func (m *mockHouse) DeviceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.devices)
}

func (m *mockHouse) BusConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockHouse) RequestReset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
}

// mockJournal returns canned entries.
type mockJournal struct {
	entries   []journal.Entry
	err       error
	lastLimit int
}

func (m *mockJournal) Record(context.Context, journal.Entry) error { return nil }

func (m *mockJournal) Recent(_ context.Context, deviceID string, limit int) ([]journal.Entry, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	var out []journal.Entry
	for _, e := range m.entries {
		if e.DeviceID == deviceID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockJournal) Prune(context.Context, time.Duration) (int64, error) { return 0, nil }

// testServer creates a Server over a mock house and an isolated registry.
func testServer(t *testing.T, j journal.Repository) (*Server, *mockHouse) {
	t.Helper()

	h := newMockHouse()
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "hikumo_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		Logger:   logging.Discard(),
		House:    h,
		Journal:  j,
		Gatherer: reg,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv, h
}

func do(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

// --- Construction ---

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
	}{
		{"missing logger", Deps{House: newMockHouse()}},
		{"missing house", Deps{Logger: logging.Discard()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

// --- Health ---

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		connected  bool
		wantStatus string
	}{
		{"bus connected", true, "ok"},
		{"bus disconnected", false, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, h := testServer(t, nil)
			h.connected = tt.connected

			w := do(t, srv, http.MethodGet, "/api/v1/health")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			var body HealthResponse
			decode(t, w, &body)
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
			if body.MQTTConnected != tt.connected || body.Devices != 1 || body.Version != "test" {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

// --- Devices ---

func TestListDevices(t *testing.T) {
	srv, _ := testServer(t, nil)

	w := do(t, srv, http.MethodGet, "/api/v1/devices")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Devices []climate.State `json:"devices"`
		Count   int             `json:"count"`
	}
	decode(t, w, &body)
	if body.Count != 1 || len(body.Devices) != 1 {
		t.Fatalf("count = %d, devices = %d", body.Count, len(body.Devices))
	}
	if body.Devices[0].BusMode != "heat" || body.Devices[0].TargetTemperature != 22 {
		t.Errorf("device = %+v", body.Devices[0])
	}
}

func TestGetDevice(t *testing.T) {
	srv, _ := testServer(t, nil)

	w := do(t, srv, http.MethodGet, "/api/v1/devices/1234")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var state climate.State
	decode(t, w, &state)
	if state.ID != "1234" || state.Name != "Living room" || state.Dirty {
		t.Errorf("state = %+v", state)
	}
	if !state.Online {
		t.Error("Online = false, want true")
	}
}

func TestGetDevice_NotFound(t *testing.T) {
	srv, _ := testServer(t, nil)

	w := do(t, srv, http.MethodGet, "/api/v1/devices/nope")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var e ErrorResponse
	decode(t, w, &e)
	if e.Code != "not_found" || e.Status != http.StatusNotFound {
		t.Errorf("error = %+v, want not_found", e)
	}
}

// --- Commands ---

func TestListCommands(t *testing.T) {
	j := &mockJournal{entries: []journal.Entry{
		{ID: "cmd-1", DeviceID: "1234", Outcome: journal.OutcomeOK},
		{ID: "cmd-2", DeviceID: "other", Outcome: journal.OutcomeFailed},
	}}
	srv, _ := testServer(t, j)

	w := do(t, srv, http.MethodGet, "/api/v1/devices/1234/commands?limit=5")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Commands []journal.Entry `json:"commands"`
		Count    int             `json:"count"`
	}
	decode(t, w, &body)
	if body.Count != 1 || body.Commands[0].ID != "cmd-1" {
		t.Errorf("body = %+v", body)
	}
	if j.lastLimit != 5 {
		t.Errorf("limit = %d, want 5", j.lastLimit)
	}
}

func TestListCommands_Errors(t *testing.T) {
	tests := []struct {
		name    string
		journal journal.Repository
		path    string
		want    int
	}{
		{"journal disabled", nil, "/api/v1/devices/1234/commands", http.StatusNotFound},
		{"unknown device", &mockJournal{}, "/api/v1/devices/nope/commands", http.StatusNotFound},
		{"bad limit", &mockJournal{}, "/api/v1/devices/1234/commands?limit=abc", http.StatusBadRequest},
		{"negative limit", &mockJournal{}, "/api/v1/devices/1234/commands?limit=-1", http.StatusBadRequest},
		{"store failure", &mockJournal{err: errors.New("disk gone")}, "/api/v1/devices/1234/commands", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := testServer(t, tt.journal)
			if w := do(t, srv, http.MethodGet, tt.path); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

// --- Reset ---

func TestReset(t *testing.T) {
	srv, h := testServer(t, nil)

	w := do(t, srv, http.MethodPost, "/api/v1/reset")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	if h.resets != 1 {
		t.Errorf("resets = %d, want 1", h.resets)
	}

	if w := do(t, srv, http.MethodGet, "/api/v1/reset"); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET reset status = %d, want 405", w.Code)
	}
}

// --- Metrics ---

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := testServer(t, nil)

	w := do(t, srv, http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "hikumo_test_total 1") {
		t.Errorf("metrics body missing counter:\n%s", w.Body.String())
	}
}

// --- Middleware ---

func TestRequestID_Generated(t *testing.T) {
	srv, _ := testServer(t, nil)

	w := do(t, srv, http.MethodGet, "/api/v1/health")
	if got := w.Header().Get("X-Request-ID"); len(got) != 8 {
		t.Errorf("X-Request-ID = %q, want 8 characters", got)
	}
}

func TestRequestID_Propagated(t *testing.T) {
	srv, _ := testServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	srv, _ := testServer(t, nil)

	handler := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusBadRequest, "bad_request"},
		{http.StatusNotFound, "not_found"},
		{http.StatusMethodNotAllowed, "method_not_allowed"},
		{http.StatusInternalServerError, "internal_server_error"},
	}
	for _, tt := range tests {
		if got := errorCode(tt.status); got != tt.want {
			t.Errorf("errorCode(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := testServer(t, nil)

	if w := do(t, srv, http.MethodGet, "/api/v1/nothing"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// --- Lifecycle ---

func TestStartClose(t *testing.T) {
	srv, _ := testServer(t, nil)

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start = nil, want error")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestClose_NotStarted(t *testing.T) {
	srv, _ := testServer(t, nil)
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
