// Package scheduler triggers the import on a fixed interval as a supervised service.
package scheduler

import (
	"context"
	"sync"
	"time"

	"eduadmin-sync/internal/logging"
)

// RunFunc performs one import.
type RunFunc func(ctx context.Context) error

// Service implements suture.Service. It runs once at start and then on every
// interval tick. A failed run is logged and does not stop the service.
type Service struct {
	name     string
	interval time.Duration
	run      RunFunc
	now      func() time.Time

	mu      sync.RWMutex
	nextRun time.Time
}

func New(interval time.Duration, run RunFunc) *Service {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &Service{
		name:     "import-scheduler",
		interval: interval,
		run:      run,
		now:      time.Now,
	}
}

func (s *Service) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.fire(ctx)
	for {
		select {
		case <-ctx.Done():
			s.setNext(time.Time{})
			return ctx.Err()
		case <-ticker.C:
			s.fire(ctx)
		}
	}
}

func (s *Service) fire(ctx context.Context) {
	started := s.now()
	s.setNext(started.Add(s.interval))

	if err := s.run(ctx); err != nil {
		logging.Error().Err(err).Str("service", s.name).Msg("scheduled import failed")
		return
	}
	logging.Info().Str("service", s.name).Dur("took", s.now().Sub(started)).Time("next_run", s.NextRun()).Msg("scheduled import done")
}

// NextRun returns the next planned fire time, or zero when not running.
func (s *Service) NextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextRun
}

func (s *Service) setNext(t time.Time) {
	s.mu.Lock()
	s.nextRun = t
	s.mu.Unlock()
}

func (s *Service) String() string {
	return s.name
}
