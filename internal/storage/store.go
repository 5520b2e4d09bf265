package storage

import (
	"database/sql"
	"time"
)

// EventRow is a security event as stored in the local buffer. Synced is
// monotonic per row: it moves false->true after a confirmed remote insert
// and never reverts.
type EventRow struct {
	ID        int64
	Timestamp time.Time
	Type      string
	Details   string
	Mode      string
}

type SampleRow struct {
	ID          int64
	Timestamp   time.Time
	Temperature float64
	Humidity    float64
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
