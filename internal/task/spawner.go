package task

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
)

// ErrClosed is returned to the sink of a task submitted after Close.
var ErrClosed = errors.New("task: spawner closed")

// Logger defines the logging interface used by the Spawner.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Func is the body of a background task.
type Func func(ctx context.Context) error

// Sink receives the result of a finished task. A nil error means success.
type Sink func(err error)

// Spawner starts background tasks and tracks them until Close.
//
// All methods are safe for concurrent use.
type Spawner struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
	logger Logger
}

// NewSpawner creates a Spawner whose tasks are cancelled when parent is
// cancelled or Close is called.
func NewSpawner(parent context.Context) *Spawner {
	ctx, cancel := context.WithCancel(parent)
	return &Spawner{
		ctx:    ctx,
		cancel: cancel,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger used by the default sink.
func (s *Spawner) SetLogger(logger Logger) {
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
}

// Go runs fn in a new goroutine. When fn returns (or panics) its error is
// passed to sink; a nil sink logs non-nil errors at warn level.
func (s *Spawner) Go(name string, fn Func, sink Sink) {
	s.mu.Lock()
	logger := s.logger
	if sink == nil {
		sink = func(err error) {
			if err != nil {
				logger.Warn("background task failed", "task", name, "error", err)
			}
		}
	}
	if s.closed {
		s.mu.Unlock()
		sink(ErrClosed)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		err := s.run(logger, name, fn)
		sink(err)
	}()
}

func (s *Spawner) run(logger Logger, name string, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("background task panicked", "task", name, "stack", string(debug.Stack()))
			err = fmt.Errorf("task %s panicked: %v", name, r)
		}
	}()
	return fn(s.ctx)
}

// Wait blocks until every task started so far has finished.
func (s *Spawner) Wait() {
	s.wg.Wait()
}

// Close cancels the shared context, rejects new tasks and waits for the
// running ones to finish. Calling Close more than once is safe.
func (s *Spawner) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
