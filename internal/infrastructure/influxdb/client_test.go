package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/hikumo-bridge/internal/climate"
	"github.com/nerrad567/hikumo-bridge/internal/infrastructure/config"
	"github.com/nerrad567/hikumo-bridge/internal/infrastructure/influxdb"
)

// fakeInflux answers pings and captures line-protocol writes.
type fakeInflux struct {
	mu          sync.Mutex
	writes      []string
	pingStatus  int
	writeStatus int
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/ping"):
		w.Header().Set("X-Influxdb-Version", "v2.7.0")
		w.WriteHeader(f.pingStatus)
	case strings.HasSuffix(r.URL.Path, "/write"):
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.writes = append(f.writes, string(body))
		status := f.writeStatus
		f.mu.Unlock()
		if status != http.StatusNoContent {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			io.WriteString(w, `{"code":"invalid","message":"bad point"}`) //nolint:errcheck // Test server
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeInflux) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.writes, "\n")
}

func newFakeInflux(t *testing.T) (*fakeInflux, config.InfluxDBConfig) {
	t.Helper()
	fake := &fakeInflux{pingStatus: http.StatusNoContent, writeStatus: http.StatusNoContent}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	return fake, config.InfluxDBConfig{
		Enabled:       true,
		URL:           srv.URL,
		Token:         "test-token",
		Org:           "hikumo",
		Bucket:        "climate",
		BatchSize:     100,
		FlushInterval: 60,
	}
}

func snapshot() climate.State {
	return climate.State{
		ID:                 "dev-1",
		Name:               "Living room",
		PowerState:         "on",
		BusMode:            "heat",
		Temperature:        21,
		TargetTemperature:  22,
		OutdoorTemperature: -5,
		Online:             true,
	}
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_Disabled(t *testing.T) {
	_, err := influxdb.Connect(context.Background(), config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect(t *testing.T) {
	_, cfg := newFakeInflux(t)

	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := influxdb.Connect(context.Background(), config.InfluxDBConfig{Enabled: true, URL: url, Token: "x"})
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	_, cfg := newFakeInflux(t)
	cfg.BatchSize = -1
	cfg.FlushInterval = 0

	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() with defaulted batch settings error = %v", err)
	}
	client.Close() //nolint:errcheck // Test cleanup
}

// =============================================================================
// Write Tests
// =============================================================================

func TestWriteClimate(t *testing.T) {
	fake, cfg := newFakeInflux(t)

	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	client.WriteClimate(snapshot())
	client.Close() //nolint:errcheck // Close flushes pending points

	body := fake.body()
	for _, want := range []string{
		`climate,device_id=dev-1,name=Living\ room `,
		"target_temperature=22",
		"outdoor_temperature=-5",
		"online=true",
		`mode="heat"`,
		`power_state="on"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("line protocol %q missing %q", body, want)
		}
	}
}

func TestWritePointWithTime(t *testing.T) {
	fake, cfg := newFakeInflux(t)

	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	client.WritePointWithTime("bridge", map[string]string{"host": "attic"}, map[string]any{"devices": 3}, ts)
	client.Close() //nolint:errcheck // Close flushes pending points

	if body := fake.body(); !strings.Contains(body, "bridge,host=attic devices=3i") || !strings.Contains(body, "1772355600000000000") {
		t.Errorf("line protocol = %q", body)
	}
}

func TestWriteErrorCallback(t *testing.T) {
	fake, cfg := newFakeInflux(t)
	fake.writeStatus = http.StatusBadRequest

	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	errCh := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case errCh <- err:
		default:
		}
	})

	client.WriteClimate(snapshot())
	client.Close() //nolint:errcheck // Close flushes pending points

	select {
	case err := <-errCh:
		if !errors.Is(err, influxdb.ErrWriteFailed) {
			t.Errorf("callback error = %v, want ErrWriteFailed", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("write error callback not invoked")
	}
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestClose(t *testing.T) {
	fake, cfg := newFakeInflux(t)

	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}

	// Writes after close are dropped.
	client.WriteClimate(snapshot())
	if body := fake.body(); body != "" {
		t.Errorf("write after Close reached the server: %q", body)
	}
}

func TestClose_Nil(t *testing.T) {
	var client *influxdb.Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
	if client.IsConnected() {
		t.Error("nil client reports connected")
	}
}
