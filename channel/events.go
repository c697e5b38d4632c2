// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"time"

	"github.com/meshnet-foundation/meshnet/lib/envelope"
)

// Events is the channel's observable surface. All callbacks are optional
// and are invoked outside the channel's locks; a callback may call back
// into the channel freely.
//
// Callbacks are registered at construction and must not be changed once
// the channel is live.
type Events struct {
	// OnOpen fires when the channel transitions to Open.
	OnOpen func()

	// OnStable fires when the command channel is open and ICE is
	// connected, once per rising edge.
	OnStable func()

	// OnStateChange fires for every state transition, in temporal
	// order. Duplicate transitions are suppressed.
	OnStateChange func(state State)

	// OnMessage fires for every admitted application envelope, in data
	// arrival order. Never fires after close or dispose.
	OnMessage func(env *envelope.Envelope)

	// OnLatency fires when a heartbeat round trip measures a latency
	// different from the previous one.
	OnLatency func(latency time.Duration)

	// OnHighLatency fires on the transition into the high-latency
	// state (debounced: not on every high measurement).
	OnHighLatency func(latency time.Duration)

	// OnTimeout fires when signalling times out or fails to connect, when
	// the peer misses a heartbeat, and when a transport error fails the
	// channel, exactly once per episode.
	OnTimeout func()

	// OnDispose fires exactly once, after teardown completes.
	OnDispose func()
}

func (e *Events) fireOpen() {
	if e.OnOpen != nil {
		e.OnOpen()
	}
}

func (e *Events) fireStable() {
	if e.OnStable != nil {
		e.OnStable()
	}
}

func (e *Events) fireStateChange(state State) {
	if e.OnStateChange != nil {
		e.OnStateChange(state)
	}
}

func (e *Events) fireMessage(env *envelope.Envelope) {
	if e.OnMessage != nil {
		e.OnMessage(env)
	}
}

func (e *Events) fireLatency(latency time.Duration) {
	if e.OnLatency != nil {
		e.OnLatency(latency)
	}
}

func (e *Events) fireHighLatency(latency time.Duration) {
	if e.OnHighLatency != nil {
		e.OnHighLatency(latency)
	}
}

func (e *Events) fireTimeout() {
	if e.OnTimeout != nil {
		e.OnTimeout()
	}
}

func (e *Events) fireDispose() {
	if e.OnDispose != nil {
		e.OnDispose()
	}
}
