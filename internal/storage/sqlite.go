package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"boxguard/internal/model"
)

// Buffer is the durable event buffer: an on-disk sqlite store that holds
// every security event and environmental sample until the outbox engine has
// confirmed its remote insert. Appends never touch the network.
type Buffer struct {
	baseStore
}

func OpenBuffer(dsn string) (*Buffer, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:boxguard.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &Buffer{baseStore{db: db}}, nil
}

func (b *Buffer) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS security_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			event_type TEXT NOT NULL,
			details TEXT,
			mode TEXT,
			synced INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_security_events_synced ON security_events(synced)`,
		`CREATE TABLE IF NOT EXISTS measurements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			temperature REAL,
			humidity REAL,
			synced INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_measurements_synced ON measurements(synced)`,
	}
	for _, stmt := range stmts {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (b *Buffer) AppendEvent(ctx context.Context, ev model.SecurityEvent) (int64, error) {
	res, err := b.db.ExecContext(ctx,
		`INSERT INTO security_events (ts, event_type, details, mode, synced) VALUES (?, ?, ?, ?, 0)`,
		ev.Timestamp.UTC().Format(time.RFC3339Nano),
		string(ev.Type),
		ev.Details,
		string(ev.Mode),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (b *Buffer) AppendSample(ctx context.Context, s model.EnvironmentalSample) (int64, error) {
	res, err := b.db.ExecContext(ctx,
		`INSERT INTO measurements (ts, temperature, humidity, synced) VALUES (?, ?, ?, 0)`,
		s.Timestamp.UTC().Format(time.RFC3339Nano),
		s.Temperature,
		s.Humidity,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (b *Buffer) FetchUnsyncedEvents(ctx context.Context, limit int) ([]EventRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, ts, event_type, details, mode FROM security_events WHERE synced = 0 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EventRow
	for rows.Next() {
		var r EventRow
		var ts string
		if err := rows.Scan(&r.ID, &ts, &r.Type, &r.Details, &r.Mode); err != nil {
			return nil, err
		}
		r.Timestamp = parseTimestamp(ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (b *Buffer) FetchUnsyncedSamples(ctx context.Context, limit int) ([]SampleRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, ts, temperature, humidity FROM measurements WHERE synced = 0 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SampleRow
	for rows.Next() {
		var r SampleRow
		var ts string
		if err := rows.Scan(&r.ID, &ts, &r.Temperature, &r.Humidity); err != nil {
			return nil, err
		}
		r.Timestamp = parseTimestamp(ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (b *Buffer) MarkEventsSynced(ctx context.Context, ids []int64) error {
	return b.markSynced(ctx, "security_events", ids)
}

func (b *Buffer) MarkSamplesSynced(ctx context.Context, ids []int64) error {
	return b.markSynced(ctx, "measurements", ids)
}

func (b *Buffer) markSynced(ctx context.Context, table string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := b.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET synced = 1 WHERE id IN (%s)`, table, placeholders), args...)
	return err
}

// RecentEvents returns the newest events first, for the local audit view.
func (b *Buffer) RecentEvents(ctx context.Context, limit int) ([]EventRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, ts, event_type, details, mode FROM security_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EventRow
	for rows.Next() {
		var r EventRow
		var ts string
		if err := rows.Scan(&r.ID, &ts, &r.Type, &r.Details, &r.Mode); err != nil {
			return nil, err
		}
		r.Timestamp = parseTimestamp(ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Trim deletes synced rows older than the retention window. Unsynced rows
// are never trimmed.
func (b *Buffer) Trim(ctx context.Context, retention time.Duration) error {
	if retention <= 0 {
		return nil
	}
	cutoff := nowUTC().Add(-retention).Format(time.RFC3339Nano)
	if _, err := b.db.ExecContext(ctx,
		`DELETE FROM security_events WHERE synced = 1 AND ts < ?`, cutoff); err != nil {
		return err
	}
	_, err := b.db.ExecContext(ctx,
		`DELETE FROM measurements WHERE synced = 1 AND ts < ?`, cutoff)
	return err
}

func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
