// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package console renders the node's operator views: the status line,
// the channel table, and the live stream view that refreshes the table
// while the node runs.
package console
