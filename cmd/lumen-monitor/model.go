// Copyright 2026 The Lumen Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lumen-chat/lumen/lib/ref"
)

// maxFeedLines bounds the scrollback kept in memory.
const maxFeedLines = 500

type feedLineMsg struct {
	line string
}

type batchMsg struct {
	cursor string
	rooms  int
}

type syncFailedMsg struct {
	err error
}

var (
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("160")).
			Padding(0, 1)
	feedStyle = lipgloss.NewStyle().Padding(0, 1)
)

type model struct {
	userID  ref.UserID
	lines   []string
	cursor  string
	rooms   int
	batches int
	width   int
	height  int
	syncErr error
}

func newModel(userID ref.UserID) model {
	return model{userID: userID}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case feedLineMsg:
		m.lines = append(m.lines, msg.line)
		if len(m.lines) > maxFeedLines {
			m.lines = m.lines[len(m.lines)-maxFeedLines:]
		}
	case batchMsg:
		m.cursor = msg.cursor
		m.rooms = msg.rooms
		m.batches++
	case syncFailedMsg:
		m.syncErr = msg.err
	}
	return m, nil
}

func (m model) View() string {
	if m.height == 0 {
		return ""
	}

	feedHeight := m.height - 1
	start := 0
	if len(m.lines) > feedHeight {
		start = len(m.lines) - feedHeight
	}
	var feed strings.Builder
	for _, line := range m.lines[start:] {
		if m.width > 0 && len(line) > m.width-2 {
			line = line[:m.width-2]
		}
		feed.WriteString(line)
		feed.WriteByte('\n')
	}
	for i := len(m.lines[start:]); i < feedHeight; i++ {
		feed.WriteByte('\n')
	}

	return feedStyle.Render(strings.TrimRight(feed.String(), "\n")) + "\n" + m.statusBar()
}

func (m model) statusBar() string {
	if m.syncErr != nil {
		return errorStyle.Width(m.width).Render(fmt.Sprintf("sync failed: %v (q to quit)", m.syncErr))
	}
	cursor := m.cursor
	if cursor == "" {
		cursor = "(initial sync)"
	}
	status := fmt.Sprintf("%s  rooms:%d  batches:%d  cursor:%s  q:quit",
		m.userID, m.rooms, m.batches, cursor)
	return statusStyle.Width(m.width).Render(status)
}
