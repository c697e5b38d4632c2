// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestAuditor_AllowsCoveredBuffer(t *testing.T) {
	auditor := NewBufferAuditor(clock.NewMock())

	auditor.Record(1000)
	auditor.Record(500)

	if !auditor.Audit(1500) {
		t.Error("audit failed with buffer exactly covered")
	}
	if !auditor.Audit(0) {
		t.Error("audit failed with empty buffer")
	}
	if auditor.Audit(1501) {
		t.Error("audit passed with buffer above commitments")
	}
}

func TestAuditor_ExpiryShrinksAllowance(t *testing.T) {
	mockClock := clock.NewMock()
	auditor := NewBufferAuditor(mockClock)

	auditor.Record(1000)
	mockClock.Add(DefaultMaxBufferTime / 2)
	auditor.Record(500)

	// First entry expires; only the second still counts.
	mockClock.Add(DefaultMaxBufferTime / 2)
	if auditor.Audit(1000) {
		t.Error("audit passed against an expired commitment")
	}
	if !auditor.Audit(500) {
		t.Error("audit failed against a live commitment")
	}

	// Monotone: once expired, an entry never comes back.
	mockClock.Add(DefaultMaxBufferTime)
	if auditor.Audit(1) {
		t.Error("audit passed after all commitments expired")
	}
	if !auditor.Audit(0) {
		t.Error("audit failed with empty buffer and empty queue")
	}
}

func TestAuditor_ZeroBufferAlwaysPasses(t *testing.T) {
	auditor := NewBufferAuditor(clock.NewMock())
	if !auditor.Audit(0) {
		t.Error("audit failed with no commitments and no buffer")
	}
}

func TestAuditor_NegativeRecordIgnored(t *testing.T) {
	auditor := NewBufferAuditor(clock.NewMock())
	auditor.Record(-5)
	if auditor.Audit(1) {
		t.Error("negative record created allowance")
	}
}

func TestAuditor_CleanupTaskDropsExpired(t *testing.T) {
	mockClock := clock.NewMock()
	auditor := NewBufferAuditor(mockClock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go auditor.Run(ctx)

	auditor.Record(800)
	mockClock.Add(DefaultMaxBufferTime + DefaultCleanInterval)

	// Run arms its ticker on its own goroutine, possibly after the
	// advance above; keep the mock clock moving so a tick lands.
	eventually(t, func() bool {
		mockClock.Add(DefaultCleanInterval)
		auditor.mu.Lock()
		defer auditor.mu.Unlock()
		return len(auditor.entries) == 0
	}, "cleanup task never dropped the expired entry")
}

func TestAuditor_ConcurrentProducers(t *testing.T) {
	auditor := NewBufferAuditor(clock.New())

	done := make(chan struct{})
	for worker := 0; worker < 8; worker++ {
		go func() {
			for index := 0; index < 100; index++ {
				auditor.Record(10)
			}
			done <- struct{}{}
		}()
	}
	for worker := 0; worker < 8; worker++ {
		<-done
	}

	if !auditor.Audit(8000) {
		t.Error("audit failed with buffer equal to total commitments")
	}
	if auditor.Audit(8001) {
		t.Error("audit passed above total commitments")
	}
}

func TestState_Graph(t *testing.T) {
	allowed := []struct {
		from, to State
	}{
		{StateInitiating, StateConnecting},
		{StateConnecting, StateSignalling},
		{StateSignalling, StateOpen},
		{StateSignalling, StateRejected},
		{StateSignalling, StateFailed},
		{StateOpen, StateClosing},
		{StateOpen, StateFailed},
		{StateClosing, StateClosed},
		{StateClosed, StateConnecting},
		{StateClosed, StateOpen},
		{StateOpen, StateDisposing},
		{StateFailed, StateDisposing},
		{StateDisposing, StateDisposed},
	}
	for _, transition := range allowed {
		if !transition.from.CanTransition(transition.to) {
			t.Errorf("%s → %s refused, want allowed", transition.from, transition.to)
		}
	}

	denied := []struct {
		from, to State
	}{
		{StateInitiating, StateOpen},
		{StateOpen, StateOpen},
		{StateDisposed, StateConnecting},
		{StateDisposed, StateDisposing},
		{StateClosed, StateClosing},
		{StateRejected, StateOpen},
	}
	for _, transition := range denied {
		if transition.from.CanTransition(transition.to) {
			t.Errorf("%s → %s allowed, want refused", transition.from, transition.to)
		}
	}
}

func TestAuditor_AuditDropsExpiredEvenWithoutRun(t *testing.T) {
	mockClock := clock.NewMock()
	auditor := NewBufferAuditorWith(mockClock, 100*time.Millisecond, 10*time.Millisecond)

	auditor.Record(64)
	mockClock.Add(200 * time.Millisecond)
	if auditor.Audit(64) {
		t.Error("audit counted an expired commitment")
	}
}
