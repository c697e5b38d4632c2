// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/meshnet-foundation/meshnet/channel"
)

// Row is one channel's line in the operator views.
type Row struct {
	Kind        string // "node" or "account"
	Key         string
	State       channel.State
	Stable      bool
	Polite      bool
	Latency     time.Duration
	HighLatency bool
}

// Rows snapshots the manager's registries (plus any extra channels the
// host tracks, such as outbound dials) into sorted display rows.
func Rows(manager *channel.Manager, outbound []*channel.NodeChannel) []Row {
	var rows []Row

	for signer, ch := range manager.Nodes() {
		rows = append(rows, nodeRow(signer.Short(), ch))
	}
	for _, ch := range outbound {
		rows = append(rows, nodeRow(ch.Destination().Short()+" (dialed)", ch))
	}
	for account, signers := range manager.Accounts() {
		for signer, ch := range signers {
			rows = append(rows, Row{
				Kind:        "account",
				Key:         account.Short() + "/" + signer.Short(),
				State:       ch.State(),
				Stable:      ch.IsStable(),
				Polite:      ch.Polite(),
				Latency:     ch.Latency(),
				HighLatency: ch.Latency() > ch.MaxLatency(),
			})
		}
	}

	sort.Slice(rows, func(a, b int) bool {
		if rows[a].Kind != rows[b].Kind {
			return rows[a].Kind < rows[b].Kind
		}
		return rows[a].Key < rows[b].Key
	})
	return rows
}

func nodeRow(key string, ch *channel.NodeChannel) Row {
	return Row{
		Kind:        "node",
		Key:         key,
		State:       ch.State(),
		Stable:      ch.IsStable(),
		Polite:      ch.Polite(),
		Latency:     ch.Latency(),
		HighLatency: ch.Latency() > ch.MaxLatency(),
	}
}

// Status renders the one-line channel count summary.
func Status(rows []Row) string {
	nodes, accounts, open := 0, 0, 0
	for _, row := range rows {
		if row.Kind == "node" {
			nodes++
		} else {
			accounts++
		}
		if row.State == channel.StateOpen {
			open++
		}
	}
	return fmt.Sprintf("channels: %d node, %d account (%d open)", nodes, accounts, open)
}

// Table renders the channel table. Latency is coloured when it exceeds
// the channel's threshold; zero latency renders as "-" (no data).
func Table(theme Theme, rows []Row) string {
	var builder strings.Builder
	builder.WriteString(theme.Header.Render(fmt.Sprintf(
		"%-8s %-28s %-11s %-7s %-7s %s",
		"KIND", "KEY", "STATE", "STABLE", "POLITE", "LATENCY",
	)))
	builder.WriteByte('\n')

	if len(rows) == 0 {
		builder.WriteString(theme.Faint.Render("no channels"))
		builder.WriteByte('\n')
		return builder.String()
	}

	for _, row := range rows {
		// Pad before styling: ANSI escapes must not count toward the
		// column width.
		state := stateStyle(theme, row.State).Render(fmt.Sprintf("%-11s", row.State.String()))
		builder.WriteString(fmt.Sprintf("%-8s %-28s %s %-7t %-7t %s\n",
			row.Kind,
			row.Key,
			state,
			row.Stable,
			row.Polite,
			latencyCell(theme, row),
		))
	}
	return builder.String()
}

func stateStyle(theme Theme, state channel.State) lipgloss.Style {
	switch state {
	case channel.StateOpen:
		return theme.StateOpen
	case channel.StateFailed, channel.StateRejected:
		return theme.StateFailed
	case channel.StateClosed, channel.StateDisposed, channel.StateDisposing:
		return theme.StateTerminal
	default:
		return theme.StateNegotiating
	}
}

func latencyCell(theme Theme, row Row) string {
	if row.Latency == 0 {
		return theme.Faint.Render("-")
	}
	text := row.Latency.Round(time.Millisecond).String()
	if row.HighLatency {
		return theme.LatencyHigh.Render(text)
	}
	return theme.LatencyOK.Render(text)
}
