// Package work runs short-lived fire-and-forget jobs (blink and beep
// sequences) on a bounded pool so a burst of remote commands cannot spawn
// unbounded goroutines.
package work

import (
	"log/slog"

	"golang.org/x/sync/semaphore"
)

type Pool struct {
	sem    *semaphore.Weighted
	logger *slog.Logger
}

func NewPool(size int64, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = 8
	}
	return &Pool{sem: semaphore.NewWeighted(size), logger: logger}
}

// Submit runs fn on its own goroutine if a slot is free, otherwise drops the
// job and reports false. Callers treat a drop as a non-event: these jobs are
// cosmetic sequences, not security state.
func (p *Pool) Submit(fn func()) bool {
	if !p.sem.TryAcquire(1) {
		if p.logger != nil {
			p.logger.Warn("worker pool full, dropping job")
		}
		return false
	}
	go func() {
		defer p.sem.Release(1)
		fn()
	}()
	return true
}
