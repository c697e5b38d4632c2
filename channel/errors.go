// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import "errors"

// Caller-visible invariant violations. These are returned, not swallowed,
// and logged with full channel context at the point of refusal.
var (
	// ErrNotOpen is returned by Send when the channel is not Open.
	ErrNotOpen = errors.New("channel: not open")

	// ErrDisposed is returned by operations invoked after disposal.
	ErrDisposed = errors.New("channel: disposed")

	// ErrAlreadyInitialized is returned by StartPeerConnection when the
	// peer connection already exists.
	ErrAlreadyInitialized = errors.New("channel: peer connection already initialized")

	// ErrNotInitialized is returned by operations that need a peer
	// connection before StartPeerConnection has run.
	ErrNotInitialized = errors.New("channel: peer connection not initialized")

	// ErrBadState is returned when an operation is invoked in a state
	// where it is not permitted (accept outside Initiating, reopen of a
	// rejected polite channel, and so on).
	ErrBadState = errors.New("channel: operation not permitted in current state")

	// ErrDelayStarted is returned by CancellableDelay.Start after the
	// first call.
	ErrDelayStarted = errors.New("channel: delay already started")

	// ErrAdmissionRejected marks inbound envelopes whose addressing does
	// not match the channel.
	ErrAdmissionRejected = errors.New("channel: envelope admission rejected")
)
