package core

import (
	"sync"
	"time"

	"boxguard/internal/model"
)

// EventLog is the bounded in-memory ring of recent security events. Oldest
// entries are evicted; the durable record lives in the event buffer.
type EventLog struct {
	mu    sync.RWMutex
	buf   []model.SecurityEvent
	limit int
}

func NewEventLog(limit int) *EventLog {
	if limit <= 0 {
		limit = 1000
	}
	return &EventLog{limit: limit}
}

func (l *EventLog) Add(ev model.SecurityEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.buf) < l.limit {
		l.buf = append(l.buf, ev)
		return
	}
	copy(l.buf, l.buf[1:])
	l.buf[len(l.buf)-1] = ev
}

// List returns the newest events first.
func (l *EventLog) List(limit int) []model.SecurityEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if limit <= 0 || limit > len(l.buf) {
		limit = len(l.buf)
	}
	out := make([]model.SecurityEvent, 0, limit)
	for i := len(l.buf) - 1; i >= len(l.buf)-limit; i-- {
		out = append(out, l.buf[i])
	}
	return out
}

func (l *EventLog) Since(ts time.Time) []model.SecurityEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.SecurityEvent, 0)
	for _, ev := range l.buf {
		if !ev.Timestamp.Before(ts) {
			out = append(out, ev)
		}
	}
	return out
}

func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buf)
}
