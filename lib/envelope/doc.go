// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package envelope implements the signalling wire format: a JSON envelope
// carrying timing, addressing, a signature, and a tagged polymorphic
// payload. One envelope per frame, UTF-8 text.
//
// Decoding is two-phase: the outer fields are read first, then the
// payload's "type" tag selects the concrete payload variant. Tags are
// case-sensitive and closed — unknown tags are rejected at this boundary,
// never passed through.
package envelope
