package influxdb

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

	"github.com/ledfx/ledfx-core/internal/infrastructure/config"
)

// fakeServer answers pings and records write bodies.
type fakeServer struct {
	*httptest.Server
	writes chan string
	health int
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{writes: make(chan string, 16), health: http.StatusNoContent}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.WriteHeader(fs.health)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body) //nolint:errcheck // Test server
			fs.writes <- string(body)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(fs.Close)
	return fs
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "ledfx-test-token",
		Org:           "ledfx",
		Bucket:        "telemetry",
		BatchSize:     100,
		FlushInterval: 60,
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false
	if _, err := Connect(cfg); !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := Connect(testConfig(url)); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteDeviceStats(t *testing.T) {
	fs := newFakeServer(t)
	cfg := testConfig(fs.URL)
	cfg.BatchSize = 0
	cfg.FlushInterval = -1

	c, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	c.WriteDeviceStats("desk-strip", 120, 3, true)
	c.Flush()

	select {
	case body := <-fs.writes:
		for _, want := range []string{"device_stats,device_id=desk-strip", "frames=120", "flush_errors=3", "active=true"} {
			if !strings.Contains(body, want) {
				t.Errorf("line protocol %q missing %q", body, want)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no write received")
	}

	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}

	// Dropped silently once closed.
	c.WriteDeviceStats("desk-strip", 1, 0, false)
	c.Flush()
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestClose_Nil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
}

type recordingWriter struct {
	mu    sync.Mutex
	calls []DeviceStats
}

func (w *recordingWriter) WriteDeviceStats(id string, frames, errs uint64, active bool) {
	w.mu.Lock()
	w.calls = append(w.calls, DeviceStats{ID: id, FramesFlushed: frames, FlushErrors: errs, Active: active})
	w.mu.Unlock()
}

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.calls)
}

func TestRunReporter(t *testing.T) {
	w := &recordingWriter{}
	source := func() []DeviceStats {
		return []DeviceStats{
			{ID: "a", FramesFlushed: 10, Active: true},
			{ID: "b", FlushErrors: 2},
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunReporter(ctx, w, 5*time.Millisecond, source)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for w.count() < 4 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	n := w.count()
	if n < 6 || n%2 != 0 {
		t.Fatalf("writes = %d, want at least two ticks plus the final report", n)
	}
	if got := w.calls[n-1]; got.ID != "b" || got.FlushErrors != 2 {
		t.Errorf("last write = %+v, want device b", got)
	}
}
