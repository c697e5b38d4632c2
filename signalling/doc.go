// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package signalling carries negotiation envelopes between peers that do
// not yet have a direct connection. A channel holds its signaller open
// only from the start of negotiation until stability; once the data
// channels are up, signalling is disconnected and never consulted again
// for that session.
//
// Three implementations ship here: an in-process pair for tests, a
// WebSocket client for dialing a remote node's hub, and the hub itself —
// the WebSocket server side that wraps each accepted connection as a
// per-session signaller.
package signalling
