// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package channel implements the per-peer state machine that drives
// WebRTC negotiation and supervises the two data channels every peer
// session runs on: a command channel for liveness and control tokens,
// and a data channel for application envelopes.
//
// A channel negotiates over a signalling transport, declares stability
// once the command channel is open and ICE is connected, drops
// signalling, and from then on keeps itself honest with a heartbeat loop
// (Ping/Pong latency tracking) and a buffer audit loop (stalled
// transport detection). The Manager owns all channels and indexes them
// by peer identity.
//
// Locking follows a strict discipline: state is mutated while holding
// one of the channel's three monitors, and events are emitted only after
// unlocking. No lock is ever held across I/O.
package channel
