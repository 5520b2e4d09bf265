package core

import (
	"context"
	"time"

	"boxguard/internal/model"
)

// Blink runs a foreground blink sequence on the LED, suspending the ambient
// pattern loop so the sequence is not immediately overwritten.
func (c *Controller) Blink(count int, onTime, offTime time.Duration) {
	c.suspendIndicator.Store(true)
	defer c.suspendIndicator.Store(false)

	c.devices.LED.Off()
	time.Sleep(50 * time.Millisecond)
	for i := 0; i < count; i++ {
		c.devices.LED.On()
		time.Sleep(onTime)
		c.devices.LED.Off()
		time.Sleep(offTime)
	}
}

// indicatorLoop drives the LED according to the current pattern.
func (c *Controller) indicatorLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		if ctx.Err() != nil {
			c.devices.LED.Off()
			return
		}
		if c.suspendIndicator.Load() {
			if !sleepCtx(ctx, 100*time.Millisecond) {
				c.devices.LED.Off()
				return
			}
			continue
		}
		switch c.Pattern() {
		case model.PatternOff:
			c.devices.LED.Off()
			if !sleepCtx(ctx, 500*time.Millisecond) {
				return
			}
		case model.PatternSolid:
			c.devices.LED.On()
			if !sleepCtx(ctx, 500*time.Millisecond) {
				c.devices.LED.Off()
				return
			}
		case model.PatternSlowBlink:
			if !c.blinkOnce(ctx, time.Second) {
				return
			}
		case model.PatternFastBlink:
			if !c.blinkOnce(ctx, 100*time.Millisecond) {
				return
			}
		}
	}
}

func (c *Controller) blinkOnce(ctx context.Context, half time.Duration) bool {
	c.devices.LED.On()
	if !sleepCtx(ctx, half) {
		c.devices.LED.Off()
		return false
	}
	c.devices.LED.Off()
	return sleepCtx(ctx, half)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
