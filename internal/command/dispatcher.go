// Package command translates inbound remote-control messages into local
// actuator calls. The channel is untrusted: anything outside the fixed
// vocabulary is logged and discarded, never raised.
package command

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"boxguard/internal/core"
	"boxguard/internal/device"
	"boxguard/internal/model"
	"boxguard/internal/work"
)

type Dispatcher struct {
	ctrl   *core.Controller
	led    device.LED
	siren  device.Siren
	lock   device.Lock
	pool   *work.Pool
	logger *slog.Logger
}

func NewDispatcher(ctrl *core.Controller, led device.LED, siren device.Siren, lock device.Lock,
	pool *work.Pool, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{ctrl: ctrl, led: led, siren: siren, lock: lock, pool: pool, logger: logger}
}

func (d *Dispatcher) Handle(feed, raw string) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch feed {
	case "led_control":
		d.handleLED(value)
	case "buzzer_control":
		d.handleBuzzer(value)
	case "servo_control":
		d.handleServo(value)
	case "stealth_mode":
		d.handleStealth(value)
	default:
		if d.logger != nil {
			d.logger.Warn("unrecognized control feed", "feed", feed, "value", value)
		}
	}
}

func (d *Dispatcher) handleLED(value string) {
	switch value {
	case "1", "on", "true":
		d.led.On()
		d.logAction("led on")
	case "0", "off", "false":
		d.led.Off()
		d.logAction("led off")
	case "blink":
		d.submit(func() { d.ctrl.Blink(3, 500*time.Millisecond, 500*time.Millisecond) })
		d.logAction("led blink")
	case "blink-fast":
		d.submit(func() { d.ctrl.Blink(5, 100*time.Millisecond, 100*time.Millisecond) })
		d.logAction("led blink-fast")
	default:
		d.discard("led_control", value)
	}
}

func (d *Dispatcher) handleBuzzer(value string) {
	switch value {
	case "1", "on", "siren", "true":
		d.siren.StartSiren()
		d.logAction("siren started")
	case "0", "off", "stop", "false":
		d.siren.Stop()
		d.logAction("siren stopped")
	case "beep":
		d.submit(func() { d.siren.Beep(200 * time.Millisecond) })
		d.logAction("beep")
	case "beep-twice":
		d.submit(func() { d.siren.BeepTwice(100 * time.Millisecond) })
		d.logAction("beep-twice")
	default:
		d.discard("buzzer_control", value)
	}
}

func (d *Dispatcher) handleServo(value string) {
	switch value {
	case "lock", "locked", "1":
		if err := d.lock.Lock(); err != nil {
			d.actuatorErr("servo lock", err)
			return
		}
		d.ctrl.Record(model.EventServoLock, "Remote control")
	case "unlock", "unlocked", "0":
		if err := d.lock.Unlock(); err != nil {
			d.actuatorErr("servo unlock", err)
			return
		}
		d.ctrl.Record(model.EventServoUnlock, "Remote control")
	default:
		angle, err := parseAngle(value)
		if err != nil {
			d.discard("servo_control", value)
			return
		}
		if err := d.lock.SetAngle(angle); err != nil {
			d.actuatorErr("servo angle", err)
			return
		}
		d.ctrl.Record(model.EventServoAngle, fmt.Sprintf("Set to %d via remote control", angle))
	}
}

func (d *Dispatcher) handleStealth(value string) {
	switch value {
	case "1", "on", "true", "enabled":
		d.ctrl.SetStealth(true, "remote control")
	case "0", "off", "false", "disabled":
		d.ctrl.SetStealth(false, "remote control")
	default:
		d.discard("stealth_mode", value)
	}
}

// parseAngle accepts a servo angle in degrees, 0-180 inclusive.
func parseAngle(value string) (int, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	angle := int(f)
	if angle < 0 || angle > 180 {
		return 0, fmt.Errorf("angle out of range: %d", angle)
	}
	return angle, nil
}

func (d *Dispatcher) submit(fn func()) {
	if d.pool != nil {
		d.pool.Submit(fn)
		return
	}
	go fn()
}

func (d *Dispatcher) logAction(action string) {
	if d.logger != nil {
		d.logger.Info("remote control command", "action", action)
	}
}

func (d *Dispatcher) discard(feed, value string) {
	if d.logger != nil {
		d.logger.Warn("unrecognized control value, discarding", "feed", feed, "value", value)
	}
}

func (d *Dispatcher) actuatorErr(action string, err error) {
	if d.logger != nil {
		d.logger.Error("actuator call failed", "action", action, "err", err)
	}
}
