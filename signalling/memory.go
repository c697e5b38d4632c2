// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package signalling

import (
	"context"
	"sync"

	"github.com/meshnet-foundation/meshnet/lib/envelope"
)

// Compile-time interface check.
var _ Signaller = (*Memory)(nil)

// Memory is an in-process Signaller for tests. NewMemoryPair returns two
// linked endpoints: envelopes sent on one are delivered to the other's
// receive handler. Both endpoints honour the full contract — sends
// issued while closed are queued and flushed in order on Connect, and
// inbound envelopes buffer until a handler is registered.
type Memory struct {
	mu       sync.Mutex
	peer     *Memory
	open     bool
	outbound []*envelope.Envelope // queued while closed
	inbound  []*envelope.Envelope // buffered until a handler exists

	onOpen    func()
	onReceive func(*envelope.Envelope)

	// deliverMu serializes handler invocations so inbound order is
	// preserved even when producers race.
	deliverMu sync.Mutex
}

// NewMemoryPair returns two linked in-process signallers.
func NewMemoryPair() (*Memory, *Memory) {
	first := &Memory{}
	second := &Memory{}
	first.peer = second
	second.peer = first
	return first, second
}

// IsOpen reports whether Connect has been called (and Disconnect has not).
func (m *Memory) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Connect marks the endpoint open, fires the open callback, and flushes
// any queued sends in order.
func (m *Memory) Connect(_ context.Context) error {
	m.mu.Lock()
	if m.open {
		m.mu.Unlock()
		return nil
	}
	m.open = true
	queued := m.outbound
	m.outbound = nil
	opened := m.onOpen
	m.mu.Unlock()

	if opened != nil {
		opened()
	}
	for _, env := range queued {
		m.peer.receive(env)
	}
	return nil
}

// Disconnect marks the endpoint closed. Idempotent.
func (m *Memory) Disconnect() error {
	m.mu.Lock()
	m.open = false
	m.mu.Unlock()
	return nil
}

// Send delivers the envelope to the linked endpoint, or queues it while
// this endpoint is closed.
func (m *Memory) Send(env *envelope.Envelope) error {
	m.mu.Lock()
	if !m.open {
		m.outbound = append(m.outbound, env)
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	m.peer.receive(env)
	return nil
}

// OnOpen registers the open callback, firing it immediately when the
// endpoint is already open.
func (m *Memory) OnOpen(handler func()) {
	m.mu.Lock()
	m.onOpen = handler
	alreadyOpen := m.open
	m.mu.Unlock()

	if alreadyOpen && handler != nil {
		handler()
	}
}

// OnReceiveMessage registers the inbound handler and flushes buffered
// envelopes to it in arrival order.
func (m *Memory) OnReceiveMessage(handler func(*envelope.Envelope)) {
	m.mu.Lock()
	m.onReceive = handler
	buffered := m.inbound
	m.inbound = nil
	m.mu.Unlock()

	if handler == nil {
		return
	}
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()
	for _, env := range buffered {
		handler(env)
	}
}

// receive dispatches one inbound envelope, buffering when no handler is
// registered yet.
func (m *Memory) receive(env *envelope.Envelope) {
	m.mu.Lock()
	handler := m.onReceive
	if handler == nil {
		m.inbound = append(m.inbound, env)
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()
	handler(env)
}
