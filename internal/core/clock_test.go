package core

import (
	"strings"
	"testing"
	"time"

	"boxguard/internal/config"
	"boxguard/internal/device"
	"boxguard/internal/model"
	"boxguard/internal/readings"
)

func TestSystemClockKeepsMonotonicReading(t *testing.T) {
	now := systemClock()
	// A reading with the monotonic component renders with an "m=" suffix;
	// timer comparisons must never run on stripped wall-clock values.
	if !strings.Contains(now.String(), " m=") {
		t.Fatalf("system clock lost the monotonic reading: %v", now)
	}
	if elapsed := systemClock().Sub(now); elapsed < 0 {
		t.Fatalf("system clock went backwards: %v", elapsed)
	}
}

func TestPersistedEventTimestampsAreUTC(t *testing.T) {
	queue := &taskRecorder{}
	sink := &sinkRecorder{}
	devices := Devices{
		Motion: &device.SimMotion{},
		Env:    device.NewSimEnv(),
		Badge:  &device.SimBadge{},
		LED:    &device.SimLED{},
		Siren:  &device.SimSiren{},
		Lock:   device.NewSimLock(90, 0),
	}
	ctrl := NewController(config.DefaultConfig(), devices, queue, sink, readings.NewStore(10), nil, nil)
	// Default clock: events must still be stamped in UTC without the
	// monotonic reading, which does not survive serialization.
	ctrl.Record(model.EventStealthMode, "Enabled via test")

	events := ctrl.Events(1)
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	ts := events[0].Timestamp
	if ts.Location() != time.UTC {
		t.Fatalf("timestamp location = %v, want UTC", ts.Location())
	}
	if strings.Contains(ts.String(), " m=") {
		t.Fatalf("persisted timestamp carries a monotonic reading: %v", ts)
	}
}
