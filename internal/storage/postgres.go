package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Remote mirrors the buffer schema without the synced flag. It is written
// only by the outbox engine; unavailability is tolerated indefinitely.
type Remote struct {
	baseStore
}

func OpenRemote(dsn string) (*Remote, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/boxguard?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &Remote{baseStore{db: db}}, nil
}

func (r *Remote) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS security_events (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			event_type TEXT NOT NULL,
			details TEXT,
			mode TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_security_events_ts ON security_events(ts)`,
		`CREATE TABLE IF NOT EXISTS measurements (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			temperature DOUBLE PRECISION,
			humidity DOUBLE PRECISION
		)`,
		`CREATE INDEX IF NOT EXISTS idx_measurements_ts ON measurements(ts)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *Remote) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Remote) InsertEvent(ctx context.Context, row EventRow) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO security_events (ts, event_type, details, mode) VALUES ($1, $2, $3, $4)`,
		row.Timestamp.UTC(), row.Type, row.Details, row.Mode)
	return err
}

func (r *Remote) InsertSample(ctx context.Context, row SampleRow) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO measurements (ts, temperature, humidity) VALUES ($1, $2, $3)`,
		row.Timestamp.UTC(), row.Temperature, row.Humidity)
	return err
}
