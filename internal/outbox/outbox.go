// Package outbox drains unsynced rows from the local buffer to the remote
// store. Marking is per row: a row flips to synced only after its own remote
// insert succeeded, so an interrupted batch leaves the remainder unsynced
// rather than lost or duplicated.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"boxguard/internal/storage"
)

type Local interface {
	FetchUnsyncedEvents(ctx context.Context, limit int) ([]storage.EventRow, error)
	FetchUnsyncedSamples(ctx context.Context, limit int) ([]storage.SampleRow, error)
	MarkEventsSynced(ctx context.Context, ids []int64) error
	MarkSamplesSynced(ctx context.Context, ids []int64) error
	Trim(ctx context.Context, retention time.Duration) error
}

type Remote interface {
	Ping(ctx context.Context) error
	InsertEvent(ctx context.Context, row storage.EventRow) error
	InsertSample(ctx context.Context, row storage.SampleRow) error
}

type Engine struct {
	local     Local
	remote    Remote
	interval  time.Duration
	batch     int
	retention time.Duration
	logger    *slog.Logger
}

func NewEngine(local Local, remote Remote, interval time.Duration, batch int, retention time.Duration, logger *slog.Logger) *Engine {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &Engine{
		local:     local,
		remote:    remote,
		interval:  interval,
		batch:     batch,
		retention: retention,
		logger:    logger,
	}
}

func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.Cycle(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Cycle performs one sync pass. A connection failure aborts the pass; the
// rows stay unsynced and the next tick retries.
func (e *Engine) Cycle(ctx context.Context) {
	if e.remote == nil {
		return
	}
	if err := e.remote.Ping(ctx); err != nil {
		if e.logger != nil {
			e.logger.Warn("outbox: remote unreachable, skipping cycle", "err", err)
		}
		return
	}
	e.syncEvents(ctx)
	e.syncSamples(ctx)
	if e.retention > 0 {
		if err := e.local.Trim(ctx, e.retention); err != nil && e.logger != nil {
			e.logger.Warn("outbox: retention trim failed", "err", err)
		}
	}
}

func (e *Engine) syncEvents(ctx context.Context) {
	rows, err := e.local.FetchUnsyncedEvents(ctx, e.batch)
	if err != nil {
		if e.logger != nil {
			e.logger.Error("outbox: fetch events failed", "err", err)
		}
		return
	}
	synced := 0
	for _, row := range rows {
		if err := e.remote.InsertEvent(ctx, row); err != nil {
			if e.logger != nil {
				e.logger.Warn("outbox: event insert failed, aborting cycle", "id", row.ID, "err", err)
			}
			break
		}
		if err := e.local.MarkEventsSynced(ctx, []int64{row.ID}); err != nil {
			if e.logger != nil {
				e.logger.Error("outbox: mark event synced failed", "id", row.ID, "err", err)
			}
			break
		}
		synced++
	}
	if synced > 0 && e.logger != nil {
		e.logger.Debug("outbox: events synced", "count", synced)
	}
}

func (e *Engine) syncSamples(ctx context.Context) {
	rows, err := e.local.FetchUnsyncedSamples(ctx, e.batch)
	if err != nil {
		if e.logger != nil {
			e.logger.Error("outbox: fetch samples failed", "err", err)
		}
		return
	}
	synced := 0
	for _, row := range rows {
		if err := e.remote.InsertSample(ctx, row); err != nil {
			if e.logger != nil {
				e.logger.Warn("outbox: sample insert failed, aborting cycle", "id", row.ID, "err", err)
			}
			break
		}
		if err := e.local.MarkSamplesSynced(ctx, []int64{row.ID}); err != nil {
			if e.logger != nil {
				e.logger.Error("outbox: mark sample synced failed", "id", row.ID, "err", err)
			}
			break
		}
		synced++
	}
	if synced > 0 && e.logger != nil {
		e.logger.Debug("outbox: samples synced", "count", synced)
	}
}
