// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// streamRefresh is the live table refresh period.
const streamRefresh = 100 * time.Millisecond

type tickMsg time.Time

// streamModel is the bubbletea model behind the live stream view.
type streamModel struct {
	theme Theme
	rows  func() []Row
}

func (m streamModel) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(streamRefresh, func(at time.Time) tea.Msg {
		return tickMsg(at)
	})
}

func (m streamModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tickMsg:
		return m, tick()
	case tea.KeyMsg:
		switch message.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m streamModel) View() string {
	rows := m.rows()
	view := m.theme.Header.Render("meshnet — live channels") + "\n\n"
	view += Status(rows) + "\n\n"
	view += Table(m.theme, rows)
	view += "\n" + m.theme.Faint.Render("q to leave the stream")
	return view
}

// RunStream renders the live channel table until the operator quits.
// rows is polled on every refresh.
func RunStream(rows func() []Row) error {
	program := tea.NewProgram(streamModel{
		theme: DefaultTheme(),
		rows:  rows,
	}, tea.WithAltScreen())
	_, err := program.Run()
	return err
}
