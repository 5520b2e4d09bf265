package model

import "time"

// Mode is the system's top-level arming state. Exactly one value is current
// at any instant; the core controller is its only writer.
type Mode string

const (
	ModeDisarmed Mode = "disarmed"
	ModeArmed    Mode = "armed"
	ModePreAlarm Mode = "pre_alarm"
	ModeAlarm    Mode = "alarm"
)

type EventType string

const (
	EventArm              EventType = "ARM"
	EventDisarm           EventType = "DISARM"
	EventMotionDetected   EventType = "MOTION_DETECTED"
	EventAlarmTriggered   EventType = "ALARM_TRIGGERED"
	EventAlarmReset       EventType = "ALARM_RESET"
	EventRFIDUnauthorized EventType = "RFID_UNAUTHORIZED"
	EventServoLock        EventType = "SERVO_LOCK"
	EventServoUnlock      EventType = "SERVO_UNLOCK"
	EventServoAngle       EventType = "SERVO_ANGLE"
	EventStealthMode      EventType = "STEALTH_MODE"
	EventPhoto            EventType = "PHOTO"
)

// SecurityEvent is immutable once created. It is appended to the in-memory
// ring and the durable buffer; the buffer row carries a synced flag the
// outbox engine flips after a confirmed remote insert.
type SecurityEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Details   string    `json:"details,omitempty"`
	Mode      Mode      `json:"mode"`
}

type EnvironmentalSample struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
}

// LEDPattern is the ambient indicator pattern driven by the indicator loop.
type LEDPattern string

const (
	PatternOff       LEDPattern = "off"
	PatternSolid     LEDPattern = "solid"
	PatternSlowBlink LEDPattern = "slow_blink"
	PatternFastBlink LEDPattern = "fast_blink"
)

type TaskKind string

const (
	TaskPublish      TaskKind = "publish"
	TaskCapturePhoto TaskKind = "capture_photo"
	TaskBeep         TaskKind = "beep"
	TaskEmailAlert   TaskKind = "send_email_alert"
)

// Task is a side effect requested by the core and executed by the pipeline
// consumer. Execution is at-most-once; failures are logged, not retried.
// Durability lives in the event buffer, not here.
type Task struct {
	Kind     TaskKind
	Feed     string
	Value    any
	Reason   string
	Duration time.Duration
}

func PublishTask(feed string, value any) Task {
	return Task{Kind: TaskPublish, Feed: feed, Value: value}
}

func PhotoTask(reason string) Task {
	return Task{Kind: TaskCapturePhoto, Reason: reason}
}

func BeepTask(d time.Duration) Task {
	return Task{Kind: TaskBeep, Duration: d}
}

func EmailAlertTask() Task {
	return Task{Kind: TaskEmailAlert}
}
