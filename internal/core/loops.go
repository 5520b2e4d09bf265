package core

import (
	"context"
	"time"

	"boxguard/internal/model"
)

// Start launches the polling and tick loops. They run until the context is
// cancelled; Wait bounds the join.
func (c *Controller) Start(ctx context.Context) {
	c.wg.Add(5)
	go c.tickLoop(ctx)
	go c.motionLoop(ctx)
	go c.badgeLoop(ctx)
	go c.envLoop(ctx)
	go c.indicatorLoop(ctx)

	// The box starts disarmed with the latch open.
	if err := c.devices.Lock.Unlock(); err != nil && c.logger != nil {
		c.logger.Error("startup unlock failed", "err", err)
	}
	if c.logger != nil {
		c.logger.Info("controller started")
	}
}

// Wait blocks until every loop has exited or the grace period elapses.
func (c *Controller) Wait(grace time.Duration) bool {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(grace):
		if c.logger != nil {
			c.logger.Warn("loops did not stop within grace period")
		}
		return false
	}
}

// Shutdown forces the actuators into a safe state. Called unconditionally
// after the loops have been asked to stop.
func (c *Controller) Shutdown() {
	c.devices.Siren.Stop()
	c.devices.LED.Off()
	if c.logger != nil {
		c.logger.Info("controller stopped")
	}
}

func (c *Controller) tickLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		tick := c.config().Logic.Tick
		if !sleepCtx(ctx, tick) {
			return
		}
		c.Tick()
	}
}

func (c *Controller) motionLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		interval := c.config().Logic.ReadInterval
		if !sleepCtx(ctx, interval) {
			return
		}
		if c.devices.Motion.MotionDetected() {
			c.HandleMotion()
		}
	}
}

func (c *Controller) badgeLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		if !sleepCtx(ctx, 300*time.Millisecond) {
			return
		}
		id, ok, err := c.devices.Badge.Read()
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("badge read error", "err", err)
			}
			if !sleepCtx(ctx, time.Second) {
				return
			}
			continue
		}
		if !ok {
			continue
		}
		c.HandleBadge(id)
		// Hold so one physical scan is not processed twice.
		if !sleepCtx(ctx, c.config().Logic.BadgeHold) {
			return
		}
	}
}

func (c *Controller) envLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		interval := c.config().Logic.EnvInterval
		if !sleepCtx(ctx, interval) {
			return
		}
		temp, humidity, err := c.devices.Env.Read()
		if err != nil {
			// Checksum and timeout errors are routine for these sensors.
			if c.logger != nil {
				c.logger.Debug("environmental read error", "err", err)
			}
			continue
		}
		c.RecordSample(model.EnvironmentalSample{
			Timestamp:   c.clock().UTC(),
			Temperature: temp,
			Humidity:    humidity,
		})
	}
}
