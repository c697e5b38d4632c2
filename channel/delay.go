// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// CancellableDelay is a scoped one-shot timer. If the delay elapses
// without cancellation, the timeout callback fires exactly once. A loud
// cancellation before expiry fires the cancellation callback exactly
// once instead, and the timeout never fires.
//
// A cancellation issued while the caller holds the channel lock must be
// silent: the cancellation callback re-enters the channel, and a loud
// cancel from inside the lock would deadlock.
type CancellableDelay struct {
	clock    clock.Clock
	duration time.Duration

	onTimeout      func()
	onCancellation func()

	mu        sync.Mutex
	timer     *clock.Timer
	started   bool
	expired   bool
	cancelled bool
}

// NewCancellableDelay builds a delay. Callbacks may be nil. A nil clock
// selects the wall clock.
func NewCancellableDelay(clk clock.Clock, duration time.Duration, onTimeout, onCancellation func()) *CancellableDelay {
	if clk == nil {
		clk = clock.New()
	}
	return &CancellableDelay{
		clock:          clk,
		duration:       duration,
		onTimeout:      onTimeout,
		onCancellation: onCancellation,
	}
}

// Start arms the timer. A second Start fails with ErrDelayStarted.
func (d *CancellableDelay) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return ErrDelayStarted
	}
	d.started = true
	d.timer = d.clock.AfterFunc(d.duration, d.fire)
	return nil
}

func (d *CancellableDelay) fire() {
	d.mu.Lock()
	if d.cancelled || d.expired {
		d.mu.Unlock()
		return
	}
	d.expired = true
	callback := d.onTimeout
	d.mu.Unlock()

	if callback != nil {
		callback()
	}
}

// Cancel disarms the timer. A loud cancel (silent=false) before expiry
// fires the cancellation callback; a silent cancel fires nothing. Cancel
// after expiry or repeat cancels are no-ops.
func (d *CancellableDelay) Cancel(silent bool) {
	d.mu.Lock()
	if !d.started || d.expired || d.cancelled {
		d.mu.Unlock()
		return
	}
	d.cancelled = true
	if d.timer != nil {
		d.timer.Stop()
	}
	callback := d.onCancellation
	d.mu.Unlock()

	if !silent && callback != nil {
		callback()
	}
}

// IsStarted reports whether Start has run.
func (d *CancellableDelay) IsStarted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}

// IsExpired reports whether the timeout fired.
func (d *CancellableDelay) IsExpired() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.expired
}

// IsCancelled reports whether the delay was cancelled before expiry.
func (d *CancellableDelay) IsCancelled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelled
}
