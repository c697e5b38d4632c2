// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// StartHeartbeat begins the Ping/Pong liveness loop. Zero durations
// select the channel's configured defaults. Starting an already running
// heartbeat is a no-op.
//
// A single periodic timer fires at min(interval, timeout); each tick
// either detects a missed Pong or sends the next Ping. At most one
// heartbeat is in flight at a time.
func (c *Channel) StartHeartbeat(interval, timeout time.Duration) {
	if interval == 0 {
		interval = c.options.HeartbeatInterval
	}
	if timeout == 0 {
		timeout = c.options.HeartbeatTimeout
	}

	// The ticker is created here, not in the loop goroutine, so the
	// loop is armed the moment this returns.
	period := interval
	if timeout < period {
		period = timeout
	}

	c.heartbeatMu.Lock()
	if c.heartbeatCancel != nil {
		c.heartbeatMu.Unlock()
		return
	}
	ticker := c.clock.Ticker(period)
	ctx, cancel := context.WithCancel(c.rootCtx)
	c.heartbeatCancel = cancel
	c.heartbeatPending = false
	c.heartbeatTimedOut = false
	c.heartbeatSentAt = c.clock.Now()
	c.heartbeatMu.Unlock()

	c.logger.Debug("heartbeat started", "interval", interval, "timeout", timeout)
	go c.heartbeatLoop(ctx, ticker, interval, timeout)
}

// StopHeartbeat cancels the loop and resets latency to the no-data
// sentinel. Idempotent.
func (c *Channel) StopHeartbeat() {
	c.heartbeatMu.Lock()
	cancel := c.heartbeatCancel
	c.heartbeatCancel = nil
	c.heartbeatPending = false
	c.heartbeatTimedOut = false
	c.latency = 0
	c.highLatency = false
	c.heartbeatMu.Unlock()

	if cancel != nil {
		cancel()
		c.logger.Debug("heartbeat stopped")
	}
}

func (c *Channel) heartbeatLoop(ctx context.Context, ticker *clock.Ticker, interval, timeout time.Duration) {
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.heartbeatTick(interval, timeout)
		}
	}
}

// heartbeatTick runs one round of the loop. State moves under the
// heartbeat monitor; sends and events happen after unlocking.
func (c *Channel) heartbeatTick(interval, timeout time.Duration) {
	if !c.IsStable() {
		return
	}
	now := c.clock.Now()

	c.heartbeatMu.Lock()
	if c.heartbeatPending {
		if now.Sub(c.heartbeatSentAt) > timeout && !c.heartbeatTimedOut {
			c.heartbeatTimedOut = true
			c.heartbeatPending = false
			c.heartbeatMu.Unlock()
			c.logger.Warn("heartbeat timed out", "timeout", timeout)
			c.events.fireTimeout()
			return
		}
		c.heartbeatMu.Unlock()
		return
	}

	if now.Sub(c.heartbeatSentAt) >= interval {
		c.heartbeatPending = true
		c.heartbeatTimedOut = false
		c.heartbeatSentAt = now
		c.heartbeatMu.Unlock()

		if err := c.sendCommand(TokenPing); err != nil {
			c.logger.Warn("sending heartbeat failed", "error", err)
			c.heartbeatMu.Lock()
			c.heartbeatPending = false
			c.heartbeatMu.Unlock()
		}
		return
	}
	c.heartbeatMu.Unlock()
}

// completeHeartbeat handles an inbound Pong: measure latency, notify on
// change, and track the high-latency transition.
func (c *Channel) completeHeartbeat() {
	now := c.clock.Now()

	c.heartbeatMu.Lock()
	if !c.heartbeatPending {
		c.heartbeatMu.Unlock()
		return
	}
	latency := now.Sub(c.heartbeatSentAt)
	c.heartbeatPending = false
	c.heartbeatTimedOut = false

	latencyChanged := latency != c.latency
	c.latency = latency

	wasHigh := c.highLatency
	isHigh := latency > c.options.MaxLatency
	c.highLatency = isHigh
	c.heartbeatMu.Unlock()

	if latencyChanged {
		c.events.fireLatency(latency)
	}
	if isHigh && !wasHigh {
		c.logger.Warn("latency above threshold", "latency", latency, "max", c.options.MaxLatency)
		c.events.fireHighLatency(latency)
	}
}
