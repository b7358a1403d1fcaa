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

	"github.com/nerrad567/gray-logic-routines/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-routines/internal/infrastructure/influxdb"
)

// fakeInflux answers /ping and records line-protocol bodies posted to /api/v2/write.
type fakeInflux struct {
	mu     sync.Mutex
	bodies []string
	pingOK bool
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ping":
		if !f.pingOK {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case "/api/v2/write":
		body, _ := io.ReadAll(r.Body) //nolint:errcheck // test server
		f.mu.Lock()
		f.bodies = append(f.bodies, string(body))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeInflux) written() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.bodies, "\n")
}

func startFake(t *testing.T, pingOK bool) (*fakeInflux, config.InfluxDBConfig) {
	t.Helper()
	fake := &fakeInflux{pingOK: pingOK}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	return fake, config.InfluxDBConfig{
		Enabled:       true,
		URL:           srv.URL,
		Token:         "test-token",
		Org:           "graylogic",
		Bucket:        "routines",
		BatchSize:     10,
		FlushInterval: 1,
	}
}

func TestConnect_Disabled(t *testing.T) {
	_, err := influxdb.Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unhealthy(t *testing.T) {
	_, cfg := startFake(t, false)

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	_, cfg := startFake(t, true)
	cfg.BatchSize = 0
	cfg.FlushInterval = -1

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestWriteRoutineRun(t *testing.T) {
	fake, cfg := startFake(t, true)

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	start := time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC)
	client.WriteRoutineRun(influxdb.RunSample{
		RoutineID: "morning",
		Trigger:   "time",
		StartedAt: start,
		Duration:  1500 * time.Millisecond,
		Actions:   2,
		Failures:  1,
	})
	client.WriteActionResult(influxdb.ActionSample{
		RoutineID: "morning",
		DeviceID:  "lamp-1",
		Kind:      "toggle",
		OK:        true,
		At:        start,
	})
	client.Flush()

	got := fake.written()
	for _, want := range []string{
		"routine_run,routine_id=morning,trigger=time",
		"duration_ms=1500i",
		"failures=1i",
		"ok=false",
		"routine_action,device_id=lamp-1,kind=toggle,routine_id=morning ok=1i",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("written line protocol missing %q\n%s", want, got)
		}
	}
}

func TestWriteAfterClose(t *testing.T) {
	fake, cfg := startFake(t, true)

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	client.WriteRoutineRun(influxdb.RunSample{RoutineID: "late", Trigger: "manual", StartedAt: time.Now()})
	client.Flush()

	if strings.Contains(fake.written(), "late") {
		t.Error("point written after Close()")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}
}

func TestClose_Nil(t *testing.T) {
	var client influxdb.Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
}
