// Package scheduler runs periodic maintenance of the key-value store
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
)

//go:generate moq -out mocks/store.go -pkg mocks -skip-ensure -fmt goimports . Store

// Scheduler removes expired keys (rate limit counters) on a fixed interval
type Scheduler struct {
	store         Store
	sweepInterval time.Duration
	wg            sync.WaitGroup
	cancel        context.CancelFunc
	mu            sync.Mutex // serialize sweeps
}

// Store is the key-value storage with expiring keys
type Store interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Config for the scheduler
type Config struct {
	SweepInterval time.Duration
}

// NewScheduler creates a new scheduler instance
func NewScheduler(store Store, cfg Config) *Scheduler {
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Minute
	}
	return &Scheduler{store: store, sweepInterval: cfg.SweepInterval}
}

// Start begins the scheduler
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.sweepWorker(ctx)

	lgr.Printf("[INFO] scheduler started with sweep interval %v", s.sweepInterval)
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	lgr.Printf("[INFO] stopping scheduler...")
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	lgr.Printf("[INFO] scheduler stopped")
}

// SweepNow removes expired keys immediately and returns how many were removed
func (s *Scheduler) SweepNow(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.store.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("sweep expired keys: %w", err)
	}
	return n, nil
}

// sweepWorker periodically removes expired keys, errors are logged and the next tick retries
func (s *Scheduler) sweepWorker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepNow(ctx)
			if err != nil {
				if ctx.Err() == nil {
					lgr.Printf("[WARN] %v", err)
				}
				continue
			}
			if n > 0 {
				lgr.Printf("[DEBUG] removed %d expired keys", n)
			}
		}
	}
}
