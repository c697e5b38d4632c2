// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme is the colour palette for the console views. All colours are
// ANSI 256 codes for broad terminal compatibility.
type Theme struct {
	Header lipgloss.Style
	Faint  lipgloss.Style

	StateOpen        lipgloss.Style
	StateNegotiating lipgloss.Style
	StateFailed      lipgloss.Style
	StateTerminal    lipgloss.Style

	LatencyOK   lipgloss.Style
	LatencyHigh lipgloss.Style
}

// DefaultTheme builds the stock palette. On terminals without colour
// support every style degrades to plain text.
func DefaultTheme() Theme {
	if termenv.ColorProfile() == termenv.Ascii {
		plain := lipgloss.NewStyle()
		return Theme{
			Header: plain, Faint: plain,
			StateOpen: plain, StateNegotiating: plain,
			StateFailed: plain, StateTerminal: plain,
			LatencyOK: plain, LatencyHigh: plain,
		}
	}
	return Theme{
		Header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Faint:  lipgloss.NewStyle().Foreground(lipgloss.Color("243")),

		StateOpen:        lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		StateNegotiating: lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		StateFailed:      lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		StateTerminal:    lipgloss.NewStyle().Foreground(lipgloss.Color("243")),

		LatencyOK:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		LatencyHigh: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}
