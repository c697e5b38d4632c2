// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package signalling

import (
	"context"

	"github.com/meshnet-foundation/meshnet/lib/envelope"
)

// Signaller is the transport contract the channel state machine consumes
// during negotiation.
//
// Implementations must queue Send calls issued while IsOpen is false and
// flush them in order when the transport opens, and must deliver inbound
// envelopes exactly once in arrival order. Everything else — framing,
// reconnection, authentication — is implementation business.
type Signaller interface {
	// IsOpen reports whether the transport is currently connected.
	IsOpen() bool

	// Connect opens the transport. The context bounds the connection
	// attempt only, not the transport's lifetime.
	Connect(ctx context.Context) error

	// Disconnect closes the transport. Idempotent.
	Disconnect() error

	// Send transmits one envelope, or queues it when the transport is
	// not yet open.
	Send(env *envelope.Envelope) error

	// OnOpen registers the open callback. If the transport is already
	// open at registration time, the callback fires immediately.
	OnOpen(handler func())

	// OnReceiveMessage registers the inbound envelope handler. Frames
	// that arrive before a handler is registered are buffered and
	// delivered, in order, at registration.
	OnReceiveMessage(handler func(env *envelope.Envelope))
}
