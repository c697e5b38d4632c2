// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Buffer audit defaults.
const (
	// DefaultMaxBufferTime is how long a recorded send commitment counts
	// toward the allowed buffered amount.
	DefaultMaxBufferTime = 500 * time.Millisecond

	// DefaultCleanInterval is how often the background task drops
	// expired commitments.
	DefaultCleanInterval = 50 * time.Millisecond
)

// BufferAuditor tracks outbound byte commitments against a transport's
// buffered amount. Every send records its size with an expiration; if the
// transport still buffers more than the sum of unexpired commitments, the
// transport is not draining and is considered stalled.
type BufferAuditor struct {
	clock         clock.Clock
	maxBufferTime time.Duration
	cleanInterval time.Duration

	mu      sync.Mutex
	entries []auditEntry
}

type auditEntry struct {
	bytes     uint64
	expiresAt time.Time
}

// NewBufferAuditor builds an auditor with the default knobs. A nil clock
// selects the wall clock.
func NewBufferAuditor(clk clock.Clock) *BufferAuditor {
	return NewBufferAuditorWith(clk, DefaultMaxBufferTime, DefaultCleanInterval)
}

// NewBufferAuditorWith builds an auditor with explicit knobs.
func NewBufferAuditorWith(clk clock.Clock, maxBufferTime, cleanInterval time.Duration) *BufferAuditor {
	if clk == nil {
		clk = clock.New()
	}
	return &BufferAuditor{
		clock:         clk,
		maxBufferTime: maxBufferTime,
		cleanInterval: cleanInterval,
	}
}

// Record notes an outbound send of the given size. Safe for concurrent
// producers.
func (a *BufferAuditor) Record(bytes int) {
	if bytes < 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{
		bytes:     uint64(bytes),
		expiresAt: a.clock.Now().Add(a.maxBufferTime),
	})
}

// Audit decides whether the transport's current buffered amount is
// covered by recent commitments. Expired head entries are dropped first;
// the remaining commitments are summed into the allowed amount. Audit
// never panics: any internal inconsistency reads as a failed audit.
func (a *BufferAuditor) Audit(currentBufferedBytes uint64) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.dropExpiredLocked()

	var allowed uint64
	for _, entry := range a.entries {
		allowed += entry.bytes
	}
	return currentBufferedBytes <= allowed
}

// Run drops expired commitments on a fixed cadence until the context is
// cancelled. The auditor works without Run — Audit drops expired entries
// itself — but Run keeps the queue from growing between audits.
func (a *BufferAuditor) Run(ctx context.Context) {
	ticker := a.clock.Ticker(a.cleanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.mu.Lock()
			a.dropExpiredLocked()
			a.mu.Unlock()
		}
	}
}

func (a *BufferAuditor) dropExpiredLocked() {
	now := a.clock.Now()
	cut := 0
	for cut < len(a.entries) && !a.entries[cut].expiresAt.After(now) {
		cut++
	}
	if cut > 0 {
		a.entries = append([]auditEntry(nil), a.entries[cut:]...)
	}
}
