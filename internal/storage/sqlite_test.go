package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"boxguard/internal/model"
)

func newTestBuffer(t *testing.T) *Buffer {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db")
	b, err := OpenBuffer(dsn)
	if err != nil {
		t.Fatalf("open buffer: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	if err := b.Init(context.Background()); err != nil {
		t.Fatalf("init buffer: %v", err)
	}
	return b
}

func TestAppendAndFetchEvents(t *testing.T) {
	b := newTestBuffer(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	id1, err := b.AppendEvent(ctx, model.SecurityEvent{Timestamp: now, Type: model.EventArm, Details: "Source: test", Mode: model.ModeArmed})
	if err != nil {
		t.Fatalf("append event: %v", err)
	}
	id2, err := b.AppendEvent(ctx, model.SecurityEvent{Timestamp: now.Add(time.Second), Type: model.EventDisarm, Mode: model.ModeDisarmed})
	if err != nil {
		t.Fatalf("append event: %v", err)
	}
	if id2 <= id1 {
		t.Fatalf("ids not increasing: %d then %d", id1, id2)
	}

	rows, err := b.FetchUnsyncedEvents(ctx, 10)
	if err != nil {
		t.Fatalf("fetch unsynced: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("unsynced = %d, want 2", len(rows))
	}
	if rows[0].ID != id1 || rows[1].ID != id2 {
		t.Fatalf("fetch order not by id: %d, %d", rows[0].ID, rows[1].ID)
	}
	if rows[0].Type != "ARM" || rows[0].Details != "Source: test" || rows[0].Mode != "armed" {
		t.Fatalf("row fields not round-tripped: %+v", rows[0])
	}
	if !rows[0].Timestamp.Equal(now) {
		t.Fatalf("timestamp = %v, want %v", rows[0].Timestamp, now)
	}
}

func TestMarkEventsSynced(t *testing.T) {
	b := newTestBuffer(t)
	ctx := context.Background()
	now := time.Now().UTC()

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := b.AppendEvent(ctx, model.SecurityEvent{Timestamp: now, Type: model.EventArm, Mode: model.ModeArmed})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		ids = append(ids, id)
	}

	if err := b.MarkEventsSynced(ctx, ids[:2]); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	rows, err := b.FetchUnsyncedEvents(ctx, 10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != ids[2] {
		t.Fatalf("expected only the unmarked row, got %+v", rows)
	}

	// Marked rows stay out of the unsynced set permanently.
	if err := b.MarkEventsSynced(ctx, ids[2:]); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	rows, err = b.FetchUnsyncedEvents(ctx, 10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("unsynced = %d, want 0", len(rows))
	}
}

func TestAppendAndFetchSamples(t *testing.T) {
	b := newTestBuffer(t)
	ctx := context.Background()
	now := time.Now().UTC()

	id, err := b.AppendSample(ctx, model.EnvironmentalSample{Timestamp: now, Temperature: 21.5, Humidity: 40})
	if err != nil {
		t.Fatalf("append sample: %v", err)
	}
	rows, err := b.FetchUnsyncedSamples(ctx, 10)
	if err != nil {
		t.Fatalf("fetch samples: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != id {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if rows[0].Temperature != 21.5 || rows[0].Humidity != 40 {
		t.Fatalf("sample fields not round-tripped: %+v", rows[0])
	}

	if err := b.MarkSamplesSynced(ctx, []int64{id}); err != nil {
		t.Fatalf("mark samples: %v", err)
	}
	rows, err = b.FetchUnsyncedSamples(ctx, 10)
	if err != nil {
		t.Fatalf("fetch samples: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("unsynced samples = %d, want 0", len(rows))
	}
}

func TestFetchLimit(t *testing.T) {
	b := newTestBuffer(t)
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		if _, err := b.AppendEvent(ctx, model.SecurityEvent{Timestamp: time.Now().UTC(), Type: model.EventArm, Mode: model.ModeArmed}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	rows, err := b.FetchUnsyncedEvents(ctx, 3)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
}

func TestRecentEventsNewestFirst(t *testing.T) {
	b := newTestBuffer(t)
	ctx := context.Background()
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		if _, err := b.AppendEvent(ctx, model.SecurityEvent{Timestamp: now.Add(time.Duration(i) * time.Second), Type: model.EventArm, Mode: model.ModeArmed}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	rows, err := b.RecentEvents(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].ID < rows[1].ID {
		t.Fatalf("recent events not newest first: %d before %d", rows[0].ID, rows[1].ID)
	}
}

func TestTrimKeepsUnsyncedRows(t *testing.T) {
	b := newTestBuffer(t)
	ctx := context.Background()
	old := time.Now().UTC().Add(-48 * time.Hour)

	syncedID, err := b.AppendEvent(ctx, model.SecurityEvent{Timestamp: old, Type: model.EventArm, Mode: model.ModeArmed})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	unsyncedID, err := b.AppendEvent(ctx, model.SecurityEvent{Timestamp: old, Type: model.EventDisarm, Mode: model.ModeDisarmed})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := b.MarkEventsSynced(ctx, []int64{syncedID}); err != nil {
		t.Fatalf("mark: %v", err)
	}

	if err := b.Trim(ctx, 24*time.Hour); err != nil {
		t.Fatalf("trim: %v", err)
	}
	rows, err := b.RecentEvents(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != unsyncedID {
		t.Fatalf("trim must delete only old synced rows, got %+v", rows)
	}
}
