// Package device defines the boundary to the physical sensors and actuators.
// The real drivers live outside this repository; the interfaces here are what
// the core consumes, and the sim implementations let the controller run on a
// bench without hardware.
package device

import (
	"context"
	"time"
)

// MotionSensor reports debounced motion. Poll returns true at most once per
// debounce interval for a continuous presence.
type MotionSensor interface {
	MotionDetected() bool
}

// EnvSensor reads temperature (Celsius) and relative humidity. Transient
// checksum/timeout errors are expected and should be returned, not retried.
type EnvSensor interface {
	Read() (temperature, humidity float64, err error)
}

// BadgeReader polls for a badge in the field. ok is false when nothing was
// scanned; errors are transient read failures.
type BadgeReader interface {
	Read() (id string, ok bool, err error)
}

// Camera captures one frame to the image directory and returns the filename.
type Camera interface {
	Capture(ctx context.Context) (filename string, err error)
}

type LED interface {
	On()
	Off()
}

type Siren interface {
	StartSiren()
	Stop()
	Beep(d time.Duration)
	BeepTwice(d time.Duration)
}

// Lock is the servo latch. Angle is the last commanded position, -1 before
// the first command.
type Lock interface {
	Lock() error
	Unlock() error
	SetAngle(deg int) error
	Angle() int
}
