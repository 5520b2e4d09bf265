// Package core owns the system mode. Every transition happens under one
// mutex, timers are compared against a clock sampled once per tick, and all
// slow side effects are handed to the task pipeline or the worker pool so
// nothing blocks while the lock is held.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"boxguard/internal/config"
	"boxguard/internal/device"
	"boxguard/internal/model"
	"boxguard/internal/readings"
	"boxguard/internal/work"
)

const warnBeepInterval = 5 * time.Second

type Devices struct {
	Motion device.MotionSensor
	Env    device.EnvSensor
	Badge  device.BadgeReader
	LED    device.LED
	Siren  device.Siren
	Lock   device.Lock
}

// TaskQueue accepts side-effect tasks without blocking.
type TaskQueue interface {
	Enqueue(task model.Task) bool
}

// EventSink is the durable buffer boundary. Appends are local-only and fail
// only on storage errors, which the controller logs and tolerates.
type EventSink interface {
	AppendEvent(ctx context.Context, ev model.SecurityEvent) (int64, error)
	AppendSample(ctx context.Context, s model.EnvironmentalSample) (int64, error)
}

type Controller struct {
	logger   *slog.Logger
	cfg      atomic.Value
	queue    TaskQueue
	sink     EventSink
	devices  Devices
	readings *readings.Store
	pool     *work.Pool
	clock    Clock
	events   *EventLog

	mu            sync.Mutex
	mode          model.Mode
	stealth       bool
	pattern       model.LEDPattern
	lastMotion    time.Time
	preAlarmStart time.Time
	alarmStart    time.Time
	lastPhoto     time.Time
	lastWarnBeep  time.Time

	suspendIndicator atomic.Bool
	wg               sync.WaitGroup
}

func NewController(cfg *config.Config, devices Devices, queue TaskQueue, sink EventSink,
	readingStore *readings.Store, pool *work.Pool, logger *slog.Logger) *Controller {
	c := &Controller{
		logger:   logger,
		queue:    queue,
		sink:     sink,
		devices:  devices,
		readings: readingStore,
		pool:     pool,
		clock:    systemClock,
		events:   NewEventLog(1000),
		mode:     model.ModeDisarmed,
		pattern:  model.PatternSlowBlink,
	}
	c.cfg.Store(cfg)
	return c
}

// SetClock replaces the time source. Call before Start.
func (c *Controller) SetClock(clock Clock) {
	if clock != nil {
		c.clock = clock
	}
}

func (c *Controller) UpdateConfig(cfg *config.Config) {
	if cfg != nil {
		c.cfg.Store(cfg)
	}
}

func (c *Controller) config() *config.Config {
	if v := c.cfg.Load(); v != nil {
		return v.(*config.Config)
	}
	return config.DefaultConfig()
}

func (c *Controller) Mode() model.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Controller) Snapshot() (model.Mode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode, c.stealth
}

func (c *Controller) Pattern() model.LEDPattern {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pattern
}

// Arm transitions DISARMED -> ARMED. Any other current mode rejects the
// request with no side effects.
func (c *Controller) Arm(source string) bool {
	c.mu.Lock()
	if c.mode != model.ModeDisarmed {
		mode := c.mode
		c.mu.Unlock()
		if c.logger != nil {
			c.logger.Warn("cannot arm", "mode", mode, "source", source)
		}
		return false
	}
	c.mode = model.ModeArmed
	c.pattern = c.armedPatternLocked()
	ev := c.makeEventLocked(model.EventArm, "Source: "+source)
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Info("system armed", "source", source)
	}
	if err := c.devices.Lock.Lock(); err != nil && c.logger != nil {
		c.logger.Error("lock actuator failed", "err", err)
	}
	if c.pool != nil {
		c.pool.Submit(func() { c.Blink(3, 150*time.Millisecond, 150*time.Millisecond) })
	}
	c.persist(ev)
	c.queue.Enqueue(model.PublishTask("mode", "armed"))
	return true
}

// Disarm always succeeds, from any mode.
func (c *Controller) Disarm(source string) bool {
	c.mu.Lock()
	prev := c.mode
	c.mode = model.ModeDisarmed
	c.pattern = model.PatternSlowBlink
	c.lastMotion = time.Time{}
	c.preAlarmStart = time.Time{}
	c.alarmStart = time.Time{}
	c.lastWarnBeep = time.Time{}
	ev := c.makeEventLocked(model.EventDisarm, fmt.Sprintf("Source: %s, previous: %s", source, prev))
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Info("system disarmed", "source", source, "previous", prev)
	}
	c.devices.Siren.Stop()
	if err := c.devices.Lock.Unlock(); err != nil && c.logger != nil {
		c.logger.Error("unlock actuator failed", "err", err)
	}
	c.persist(ev)
	c.queue.Enqueue(model.PublishTask("mode", "disarmed"))
	c.queue.Enqueue(model.PublishTask("alarm", 0))
	return true
}

// SetStealth flips the indicator-only stealth flag. Security logic is
// unaffected.
func (c *Controller) SetStealth(enabled bool, source string) {
	c.mu.Lock()
	c.stealth = enabled
	if c.mode == model.ModeArmed {
		c.pattern = c.armedPatternLocked()
	}
	state := "Disabled"
	if enabled {
		state = "Enabled"
	}
	ev := c.makeEventLocked(model.EventStealthMode, state+" via "+source)
	c.mu.Unlock()
	c.persist(ev)
}

// HandleMotion processes one debounced motion detection.
func (c *Controller) HandleMotion() {
	now := c.clock()
	var toPersist []model.SecurityEvent

	c.mu.Lock()
	c.lastMotion = now
	switch c.mode {
	case model.ModeDisarmed:
		c.mu.Unlock()
		if c.logger != nil {
			c.logger.Debug("motion detected while disarmed, ignoring")
		}
		return
	case model.ModeArmed:
		c.mode = model.ModePreAlarm
		c.preAlarmStart = now
		c.lastWarnBeep = time.Time{}
		c.pattern = model.PatternSolid
		c.queue.Enqueue(model.PhotoTask("Motion Trigger"))
		toPersist = append(toPersist, c.makeEventLocked(model.EventMotionDetected, "Entering pre-alarm state"))
	case model.ModeAlarm:
		cfg := c.config()
		if c.lastPhoto.IsZero() || now.Sub(c.lastPhoto) >= cfg.Logic.PhotoInterval {
			c.queue.Enqueue(model.PhotoTask("Alarm Interval"))
		}
	}
	c.mu.Unlock()

	if len(toPersist) > 0 && c.logger != nil {
		c.logger.Warn("motion detected, entering pre-alarm")
	}
	c.queue.Enqueue(model.PublishTask("motion", 1))
	for _, ev := range toPersist {
		c.persist(ev)
	}
}

// HandleBadge checks a scanned badge against the allow-list. Authorized
// badges toggle arm/disarm; unauthorized scans are logged security events.
func (c *Controller) HandleBadge(id string) {
	cfg := c.config()
	if !cfg.Credentials.IsAuthorized(id) {
		if c.logger != nil {
			c.logger.Warn("unauthorized badge scan", "badge", id)
		}
		c.Record(model.EventRFIDUnauthorized, "Badge ID: "+id)
		return
	}
	if c.logger != nil {
		c.logger.Info("authorized badge scan", "badge", id)
	}
	if c.Mode() == model.ModeDisarmed {
		c.Arm("badge:" + id)
	} else {
		c.Disarm("badge:" + id)
	}
}

// Tick runs one pass of the timed transitions. The loop calls it every
// configured tick; tests call it directly with a controlled clock.
func (c *Controller) Tick() {
	now := c.clock()
	cfg := c.config()
	var toPersist []model.SecurityEvent
	var sirenOn, sirenOff bool

	c.mu.Lock()
	switch c.mode {
	case model.ModePreAlarm:
		elapsed := now.Sub(c.preAlarmStart)
		if !c.stealth && (c.lastWarnBeep.IsZero() || now.Sub(c.lastWarnBeep) >= warnBeepInterval) {
			c.lastWarnBeep = now
			c.queue.Enqueue(model.BeepTask(100 * time.Millisecond))
		}
		if elapsed > cfg.Logic.PreAlarmDelay {
			c.mode = model.ModeAlarm
			c.alarmStart = now
			c.pattern = model.PatternFastBlink
			sirenOn = true
			toPersist = append(toPersist, c.makeEventLocked(model.EventAlarmTriggered, "Pre-alarm delay expired"))
			c.queue.Enqueue(model.EmailAlertTask())
			c.queue.Enqueue(model.PublishTask("alarm", 1))
		}
	case model.ModeAlarm:
		var reason string
		if now.Sub(c.alarmStart) > cfg.Logic.AlarmDuration {
			reason = "duration timeout"
		} else if now.Sub(c.lastMotion) > cfg.Logic.MotionTimeout {
			reason = "motion timeout"
		}
		if reason != "" {
			c.mode = model.ModeArmed
			c.pattern = c.armedPatternLocked()
			c.alarmStart = time.Time{}
			sirenOff = true
			toPersist = append(toPersist, c.makeEventLocked(model.EventAlarmReset, reason))
			c.queue.Enqueue(model.PublishTask("alarm", 0))
		}
	}
	c.mu.Unlock()

	if sirenOn {
		if c.logger != nil {
			c.logger.Warn("pre-alarm expired, alarm triggered")
		}
		c.devices.Siren.StartSiren()
	}
	if sirenOff {
		if c.logger != nil {
			c.logger.Info("alarm reset, returning to armed")
		}
		c.devices.Siren.Stop()
	}
	for _, ev := range toPersist {
		c.persist(ev)
	}
}

// Record logs a security event with the current mode: ring, durable buffer,
// and the event_log feed.
func (c *Controller) Record(t model.EventType, details string) {
	c.mu.Lock()
	ev := c.makeEventLocked(t, details)
	c.mu.Unlock()
	c.persist(ev)
}

// MarkPhoto notes a completed capture for the inter-photo interval check.
func (c *Controller) MarkPhoto(filename string) {
	c.mu.Lock()
	c.lastPhoto = c.clock()
	c.mu.Unlock()
}

// RecordSample stores an environmental reading durably and in the cache.
func (c *Controller) RecordSample(s model.EnvironmentalSample) {
	if c.readings != nil {
		c.readings.Update(s)
	}
	if c.sink != nil {
		if _, err := c.sink.AppendSample(context.Background(), s); err != nil && c.logger != nil {
			c.logger.Error("sample append failed, dropping sample", "err", err)
		}
	}
	c.queue.Enqueue(model.PublishTask("temperature", s.Temperature))
	c.queue.Enqueue(model.PublishTask("humidity", s.Humidity))
}

func (c *Controller) Events(limit int) []model.SecurityEvent {
	return c.events.List(limit)
}

// EventsSince returns the ring events stamped at or after ts, oldest first.
func (c *Controller) EventsSince(ts time.Time) []model.SecurityEvent {
	return c.events.Since(ts)
}

type Status struct {
	Mode        model.Mode       `json:"mode"`
	Stealth     bool             `json:"stealth_mode"`
	Pattern     model.LEDPattern `json:"led_pattern"`
	LockAngle   int              `json:"servo_position"`
	Temperature *float64         `json:"temperature,omitempty"`
	Humidity    *float64         `json:"humidity,omitempty"`
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	st := Status{Mode: c.mode, Stealth: c.stealth, Pattern: c.pattern}
	c.mu.Unlock()
	st.LockAngle = c.devices.Lock.Angle()
	if c.readings != nil {
		if sample, ok := c.readings.Latest(); ok {
			st.Temperature = &sample.Temperature
			st.Humidity = &sample.Humidity
		}
	}
	return st
}

// makeEventLocked builds the event and appends it to the ring. Caller holds
// the lock.
func (c *Controller) makeEventLocked(t model.EventType, details string) model.SecurityEvent {
	ev := model.SecurityEvent{
		Timestamp: c.clock().UTC(),
		Type:      t,
		Details:   details,
		Mode:      c.mode,
	}
	c.events.Add(ev)
	return ev
}

// persist writes the event to the durable buffer and publishes it to the
// event_log feed. Called without the lock: the buffer is local disk, but it
// still stays off the transition path.
func (c *Controller) persist(ev model.SecurityEvent) {
	if c.logger != nil {
		c.logger.Info("security event", "type", ev.Type, "details", ev.Details, "mode", ev.Mode)
	}
	if c.sink != nil {
		if _, err := c.sink.AppendEvent(context.Background(), ev); err != nil && c.logger != nil {
			c.logger.Error("event append failed, dropping event", "type", ev.Type, "err", err)
		}
	}
	if data, err := json.Marshal(ev); err == nil {
		c.queue.Enqueue(model.PublishTask("event_log", string(data)))
	}
}

func (c *Controller) armedPatternLocked() model.LEDPattern {
	if c.stealth {
		return model.PatternOff
	}
	return model.PatternSolid
}
