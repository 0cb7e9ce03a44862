package usecase

import (
	"context"
	"log"
	"sync"
	"time"

	"WaveScan/internal/domain/models"
	pkgcache "WaveScan/pkg/cache"
)

var schedulerLockKey = pkgcache.GenerateKey("lock", "scan-scheduler")

// ScanScheduler reruns the universe scan on a fixed interval. A failed run
// doubles the wait before the next attempt, capped at four intervals, and a
// successful run restores the configured cadence.
type ScanScheduler struct {
	screener  *ScreenerUseCase
	interval  time.Duration
	days      int
	version   string
	afterScan func(context.Context, *models.ScanSummary)
	lock      pkgcache.Service

	mu       sync.Mutex
	started  bool
	stopCh   chan struct{}
	lastRun  time.Time
	lastErr  error
	lastScan string
}

func NewScanScheduler(screener *ScreenerUseCase, interval time.Duration, days int, version string) *ScanScheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &ScanScheduler{
		screener: screener,
		interval: interval,
		days:     days,
		version:  version,
		stopCh:   make(chan struct{}),
	}
}

// SetAfterScan registers a callback invoked after each successful scan, for
// refreshing watch lists and pushing dashboard notifications.
func (s *ScanScheduler) SetAfterScan(fn func(context.Context, *models.ScanSummary)) {
	s.afterScan = fn
}

// SetLock installs a shared lock so a tick is skipped while a scan is still
// running. With a redis-backed cache the lock also keeps replicated
// deployments from scanning the universe twice.
func (s *ScanScheduler) SetLock(c pkgcache.Service) { s.lock = c }

// Start launches the background loop. The first scan runs immediately.
func (s *ScanScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.loop(ctx)
}

func (s *ScanScheduler) loop(ctx context.Context) {
	wait := time.Duration(0)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-time.After(wait):
		}

		err := s.runOnce(ctx)
		if err != nil {
			log.Printf("scan scheduler: run failed: %v", err)
			if wait == 0 {
				wait = s.interval
			}
			wait *= 2
			if wait > 4*s.interval {
				wait = 4 * s.interval
			}
		} else {
			wait = s.interval
		}
	}
}

func (s *ScanScheduler) runOnce(ctx context.Context) error {
	if s.lock != nil {
		ok, err := s.lock.TryLock(ctx, schedulerLockKey, s.interval)
		if err != nil {
			// A dead lock backend should not stop scans.
			log.Printf("scan scheduler: lock: %v", err)
		} else if !ok {
			return nil
		} else {
			defer func() { _ = s.lock.Unlock(ctx, schedulerLockKey) }()
		}
	}

	summary, err := s.screener.Scan(ctx, models.ScanRequest{
		Days:        s.days,
		Version:     s.version,
		RequestedBy: "scheduler",
	})

	s.mu.Lock()
	s.lastRun = time.Now().UTC()
	s.lastErr = err
	if summary != nil {
		s.lastScan = summary.ScanID
	}
	s.mu.Unlock()

	if summary != nil {
		log.Printf("scan scheduler: scan %s finished total=%d ok=%d failed=%d",
			summary.ScanID, summary.Total, summary.Succeeded, summary.Failed)
	}
	if err == nil && summary != nil && s.afterScan != nil {
		s.afterScan(ctx, summary)
	}
	return err
}

// Stop terminates the loop. Safe to call more than once.
func (s *ScanScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	close(s.stopCh)
}

// Status reports the last run for health checks.
func (s *ScanScheduler) Status() (lastRun time.Time, lastScanID string, lastErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastScan, s.lastErr
}
