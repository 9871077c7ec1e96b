package discovery

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ledfx/ledfx-core/internal/infrastructure/config"
)

// DefaultScanWindow is how long a scan listens when none is configured.
const DefaultScanWindow = 30 * time.Second

// DefaultServiceType is the service WLED controllers advertise.
const DefaultServiceType = "_wled._tcp"

// Logger defines the logging interface used by discovery.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Browser delivers advertisements of service to fn until stop is called.
// stop must be safe to call once and must not return before fn has
// stopped being called.
type Browser interface {
	Listen(ctx context.Context, service string, fn func(Candidate)) (stop func(), err error)
}

// Scanner runs time-boxed discovery scans.
type Scanner struct {
	browser Browser
	service string
	window  time.Duration
	logger  Logger

	scanning atomic.Bool
}

// NewScanner creates a scanner from the discovery configuration.
func NewScanner(browser Browser, cfg config.DiscoveryConfig) *Scanner {
	s := &Scanner{
		browser: browser,
		service: cfg.ServiceType,
		window:  cfg.ScanDuration,
		logger:  noopLogger{},
	}
	if s.service == "" {
		s.service = DefaultServiceType
	}
	if s.window <= 0 {
		s.window = DefaultScanWindow
	}
	return s
}

// SetLogger sets the logger for the scanner.
func (s *Scanner) SetLogger(logger Logger) {
	s.logger = logger
}

// Scan listens for the scan window, passing each candidate to handler.
//
// Returns:
//   - nil when the window elapsed
//   - ctx.Err() when the context was cancelled first
//   - ErrScanInProgress if another scan is running
//
// The listener is removed before Scan returns in every case.
func (s *Scanner) Scan(ctx context.Context, handler func(Candidate)) error {
	if !s.scanning.CompareAndSwap(false, true) {
		return ErrScanInProgress
	}
	defer s.scanning.Store(false)

	s.logger.Info("discovery scan started", "service", s.service, "window", s.window)

	stop, err := s.browser.Listen(ctx, s.service, func(c Candidate) {
		s.logger.Debug("discovered candidate", "instance", c.Instance, "host", c.Host())
		handler(c)
	})
	if err != nil {
		return fmt.Errorf("starting %s listener: %w", s.service, err)
	}

	var once sync.Once
	remove := func() { once.Do(stop) }
	defer remove()

	timer := time.NewTimer(s.window)
	defer timer.Stop()

	select {
	case <-timer.C:
		remove()
		s.logger.Info("discovery scan finished", "service", s.service)
		return nil
	case <-ctx.Done():
		remove()
		s.logger.Info("discovery scan cancelled", "service", s.service)
		return ctx.Err()
	}
}
