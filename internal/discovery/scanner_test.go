package discovery

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ledfx/ledfx-core/internal/infrastructure/config"
)

// fakeBrowser replays candidates and counts listener removals.
type fakeBrowser struct {
	candidates []Candidate
	listenErr  error

	mu      sync.Mutex
	service string
	stops   atomic.Int32
}

func (f *fakeBrowser) Listen(_ context.Context, service string, fn func(Candidate)) (func(), error) {
	if f.listenErr != nil {
		return nil, f.listenErr
	}
	f.mu.Lock()
	f.service = service
	f.mu.Unlock()

	for _, c := range f.candidates {
		fn(c)
	}
	return func() { f.stops.Add(1) }, nil
}

func TestScanner_WindowElapses(t *testing.T) {
	browser := &fakeBrowser{candidates: []Candidate{
		{Instance: "desk", Addrs: []string{"10.0.0.7"}},
		{Instance: "shelf", HostName: "shelf.local"},
	}}
	s := NewScanner(browser, config.DiscoveryConfig{ScanDuration: 20 * time.Millisecond})

	var hosts []string
	if err := s.Scan(context.Background(), func(c Candidate) { hosts = append(hosts, c.Host()) }); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if len(hosts) != 2 || hosts[0] != "10.0.0.7" || hosts[1] != "shelf.local" {
		t.Errorf("hosts = %v, want [10.0.0.7 shelf.local]", hosts)
	}
	if got := browser.stops.Load(); got != 1 {
		t.Errorf("listener removed %d times, want 1", got)
	}
	if browser.service != DefaultServiceType {
		t.Errorf("service = %q, want %q", browser.service, DefaultServiceType)
	}
}

func TestScanner_Cancelled(t *testing.T) {
	browser := &fakeBrowser{}
	s := NewScanner(browser, config.DiscoveryConfig{ScanDuration: time.Hour, ServiceType: "_ddp._udp"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Scan(ctx, func(Candidate) {}) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Scan() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Scan() did not return after cancellation")
	}

	if got := browser.stops.Load(); got != 1 {
		t.Errorf("listener removed %d times, want 1", got)
	}
	if browser.service != "_ddp._udp" {
		t.Errorf("service = %q, want configured _ddp._udp", browser.service)
	}
}

func TestScanner_ListenError(t *testing.T) {
	listenErr := errors.New("no multicast")
	s := NewScanner(&fakeBrowser{listenErr: listenErr}, config.DiscoveryConfig{})

	if err := s.Scan(context.Background(), func(Candidate) {}); !errors.Is(err, listenErr) {
		t.Errorf("Scan() error = %v, want %v", err, listenErr)
	}
	if s.window != DefaultScanWindow {
		t.Errorf("window = %v, want default %v", s.window, DefaultScanWindow)
	}
}

func TestScanner_RejectsConcurrentScan(t *testing.T) {
	s := NewScanner(&fakeBrowser{}, config.DiscoveryConfig{ScanDuration: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		close(started)
		s.Scan(ctx, func(Candidate) {}) //nolint:errcheck // Cancelled below
	}()
	<-started

	// The first scan may not have claimed the flag yet.
	deadline := time.Now().Add(2 * time.Second)
	for !s.scanning.Load() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := s.Scan(ctx, func(Candidate) {}); !errors.Is(err, ErrScanInProgress) {
		t.Errorf("second Scan() error = %v, want ErrScanInProgress", err)
	}
	cancel()
	<-done
}

func TestCandidate_Host(t *testing.T) {
	tests := []struct {
		name string
		c    Candidate
		want string
	}{
		{"address first", Candidate{HostName: "wled.local", Addrs: []string{"10.0.0.2", "fe80::1"}}, "10.0.0.2"},
		{"host name fallback", Candidate{HostName: "wled.local"}, "wled.local"},
		{"nothing", Candidate{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Host(); got != tt.want {
				t.Errorf("Host() = %q, want %q", got, tt.want)
			}
		})
	}
}
