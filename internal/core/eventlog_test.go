package core

import (
	"testing"
	"time"

	"boxguard/internal/model"
)

func TestEventLogNewestFirst(t *testing.T) {
	l := NewEventLog(10)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		l.Add(model.SecurityEvent{Timestamp: base.Add(time.Duration(i) * time.Second), Type: model.EventArm})
	}
	out := l.List(2)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if !out[0].Timestamp.After(out[1].Timestamp) {
		t.Fatalf("events not newest first")
	}
}

func TestEventLogEviction(t *testing.T) {
	l := NewEventLog(3)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		l.Add(model.SecurityEvent{Timestamp: base.Add(time.Duration(i) * time.Second), Type: model.EventArm})
	}
	if l.Len() != 3 {
		t.Fatalf("len = %d, want 3", l.Len())
	}
	out := l.List(0)
	if !out[len(out)-1].Timestamp.Equal(base.Add(2 * time.Second)) {
		t.Fatalf("oldest surviving event = %v, want +2s", out[len(out)-1].Timestamp)
	}
}

func TestEventLogSince(t *testing.T) {
	l := NewEventLog(10)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		l.Add(model.SecurityEvent{Timestamp: base.Add(time.Duration(i) * time.Second), Type: model.EventArm})
	}
	out := l.Since(base.Add(3 * time.Second))
	if len(out) != 2 {
		t.Fatalf("since = %d events, want 2", len(out))
	}
}
