// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"

	"github.com/benbjohnson/clock"
)

// auditAction is the decision of one audit tick.
type auditAction int

const (
	auditNone auditAction = iota
	auditStop
	auditClose
	auditDispose
)

// StartAuditor begins periodic transport supervision: both buffer
// auditors' cleanup tasks plus the audit loop that inspects transport
// health every audit interval. Starting a running auditor is a no-op.
func (c *Channel) StartAuditor() {
	c.auditMu.Lock()
	if c.auditCancel != nil {
		c.auditMu.Unlock()
		return
	}
	// Armed before the goroutine runs, like the heartbeat ticker.
	ticker := c.clock.Ticker(c.options.AuditInterval)
	ctx, cancel := context.WithCancel(c.rootCtx)
	c.auditCancel = cancel
	c.auditMu.Unlock()

	c.logger.Debug("auditor started", "interval", c.options.AuditInterval)
	go c.commandAuditor.Run(ctx)
	go c.dataAuditor.Run(ctx)
	go c.auditLoop(ctx, ticker)
}

// StopAuditor cancels the audit loop and cleanup tasks. Idempotent.
func (c *Channel) StopAuditor() {
	c.auditMu.Lock()
	cancel := c.auditCancel
	c.auditCancel = nil
	c.auditMu.Unlock()

	if cancel != nil {
		cancel()
		c.logger.Debug("auditor stopped")
	}
}

func (c *Channel) auditLoop(ctx context.Context, ticker *clock.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// The decision is computed under the channel lock; the
			// resulting close or dispose runs here, outside it.
			switch c.auditTick() {
			case auditStop:
				return
			case auditClose:
				c.logger.Warn("audit requested close: data transport unhealthy")
				c.close(true)
			case auditDispose:
				c.logger.Warn("audit requested dispose: command transport unhealthy")
				c.Dispose()
				return
			}
		}
	}
}

// auditTick inspects transport health in the order the contract fixes:
// command presence, data presence, command buffer, data buffer.
func (c *Channel) auditTick() auditAction {
	c.mu.Lock()
	state := c.state
	command := c.command
	data := c.data
	c.mu.Unlock()

	switch state {
	case StateDisposing, StateDisposed:
		return auditStop
	}

	// In every non-terminal state the command transport must be open
	// once the auditor runs; its loss is unrecoverable for the session.
	// This applies to Failed and Rejected too, so a dead channel still
	// releases its resources.
	if command == nil || !command.IsOpen() {
		return auditDispose
	}

	if state == StateOpen {
		if data == nil || !data.IsOpen() {
			return auditClose
		}
	}

	if !c.commandAuditor.Audit(command.BufferedAmount()) {
		return auditDispose
	}

	if state == StateOpen && data != nil {
		if !c.dataAuditor.Audit(data.BufferedAmount()) {
			return auditClose
		}
	}
	return auditNone
}
