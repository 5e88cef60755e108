package embedding

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/rcliao/memory-engine/internal/logging"
	"github.com/rcliao/memory-engine/internal/textutil"
)

// Status is the lifecycle state of the embedding service.
type Status string

const (
	StatusNotLoaded Status = "not_loaded"
	StatusLoading   Status = "loading"
	StatusReady     Status = "ready"
	StatusDegraded  Status = "degraded"
	StatusDisabled  Status = "disabled"
)

// ServiceOptions bounds loading and inference.
type ServiceOptions struct {
	Provider      string
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxInputChars int
}

// Service lazily loads an Embedder on first use. Concurrent callers share one
// load; after MaxAttempts failed attempts the service stays degraded for the
// life of the process and Embed returns nil immediately.
type Service struct {
	load  Loader
	opts  ServiceOptions
	group singleflight.Group
	log   *log.Logger

	mu       sync.RWMutex
	status   Status
	embedder Embedder
	lastErr  error
}

// NewService wraps a loader. A nil loader yields a disabled service.
func NewService(load Loader, opts ServiceOptions) *Service {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 500 * time.Millisecond
	}
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = 2000
	}
	s := &Service{
		load:   load,
		opts:   opts,
		status: StatusNotLoaded,
		log:    logger().With("provider", opts.Provider),
	}
	if load == nil {
		s.status = StatusDisabled
	}
	return s
}

// NewStaticService wraps an already constructed Embedder.
func NewStaticService(e Embedder, maxInputChars int) *Service {
	s := NewService(func(context.Context) (Embedder, error) { return e, nil },
		ServiceOptions{Provider: "static", MaxAttempts: 1, MaxInputChars: maxInputChars})
	s.status = StatusReady
	s.embedder = e
	return s
}

func logger() *log.Logger {
	return logging.For("embedding")
}

// Status reports the current lifecycle state.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Provider is the configured provider name.
func (s *Service) Provider() string {
	return s.opts.Provider
}

// LastError is the error that degraded the service, if any.
func (s *Service) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Dims is the vector width once loaded, else 0.
func (s *Service) Dims() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.embedder == nil {
		return 0
	}
	return s.embedder.Dims()
}

// Embed returns an L2-normalized vector for text, or nil when no vector can
// be produced. Failures are logged, never returned.
func (s *Service) Embed(ctx context.Context, text string) Vector {
	e := s.ensure(ctx)
	if e == nil {
		return nil
	}
	v, err := e.Embed(ctx, textutil.Truncate(text, s.opts.MaxInputChars))
	if err != nil {
		s.log.Warn("embedding failed, falling back to lexical", "err", err)
		return nil
	}
	if len(v) == 0 {
		return nil
	}
	return Normalize(append(Vector(nil), v...))
}

func (s *Service) ensure(ctx context.Context) Embedder {
	s.mu.RLock()
	status, e := s.status, s.embedder
	s.mu.RUnlock()
	switch status {
	case StatusReady:
		return e
	case StatusDegraded, StatusDisabled:
		return nil
	}

	v, _, _ := s.group.Do("load", func() (any, error) {
		s.mu.Lock()
		switch s.status {
		case StatusReady:
			e := s.embedder
			s.mu.Unlock()
			return e, nil
		case StatusDegraded, StatusDisabled:
			s.mu.Unlock()
			return nil, nil
		}
		s.status = StatusLoading
		s.mu.Unlock()

		// A caller giving up must not abort the load the others are waiting on.
		e, err := s.loadWithRetry(context.WithoutCancel(ctx))

		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			s.status = StatusDegraded
			s.lastErr = err
			s.log.Error("embedding model unavailable, search degraded to lexical", "err", err)
			return nil, err
		}
		s.status = StatusReady
		s.embedder = e
		s.log.Info("embedding model ready", "dims", e.Dims())
		return e, nil
	})
	e, _ = v.(Embedder)
	return e
}

func (s *Service) loadWithRetry(ctx context.Context) (Embedder, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.InitialDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = s.opts.InitialDelay << uint(s.opts.MaxAttempts)
	b.MaxElapsedTime = 0

	attempt := 0
	var loaded Embedder
	op := func() error {
		attempt++
		e, err := s.load(ctx)
		if err != nil {
			return err
		}
		loaded = e
		return nil
	}
	notify := func(err error, next time.Duration) {
		s.log.Warn("embedding load failed, retrying", "attempt", attempt, "max", s.opts.MaxAttempts, "next", next, "err", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.opts.MaxAttempts-1)), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return loaded, nil
}
