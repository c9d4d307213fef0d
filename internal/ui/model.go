// ABOUTME: Bubbletea model for player TUI
// ABOUTME: Shows connection status, latency and buffer statistics
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Resonate-Protocol/syncstream-go/pkg/syncstream"
	tea "github.com/charmbracelet/bubbletea"
)

// Model represents the TUI state
type Model struct {
	// Connection
	server     string
	state      syncstream.ConnectionState
	statusText string
	lastError  string

	// Stats
	sessionID    string
	rtt          time.Duration
	received     int64
	played       int64
	dropped      int64
	cleared      int64
	decodeErrors int64
	writeErrors  int64
	bufferDepth  int
	bufferCap    int

	showDebug bool

	control *Control

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString(m.renderStats())
	if m.showDebug {
		b.WriteString(m.renderDebug())
	}
	b.WriteString(m.renderHelp())
	return b.String()
}

// renderHeader renders connection status
func (m Model) renderHeader() string {
	icon := "✗"
	switch m.state {
	case syncstream.Connected:
		icon = "✓"
	case syncstream.Connecting:
		icon = "…"
	}

	latency := "-"
	if m.rtt > 0 {
		latency = fmt.Sprintf("%.1fms", float64(m.rtt)/float64(time.Millisecond))
	}

	return fmt.Sprintf(`┌─ SyncStream Player ──────────────────────────────────┐
│ Server:  %-43s │
│ Status:  %s %-41s │
│ Latency: %-43s │
├──────────────────────────────────────────────────────┤
`, truncate(m.server, 43), icon, truncate(m.statusText, 41), latency)
}

// renderStats renders buffer and playback statistics
func (m Model) renderStats() string {
	bar := renderBar(m.bufferDepth, m.bufferCap, 20)
	return fmt.Sprintf(`│ Buffer: [%s] %3d/%-3d%-16s │
│ Stats:  RX: %-8d Played: %-8d Dropped: %-6d│
│                                                      │
`, bar, m.bufferDepth, m.bufferCap, "", m.received, m.played, m.dropped)
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	lastErr := m.lastError
	if lastErr == "" {
		lastErr = "none"
	}
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Session:  %-40s │
│   Cleared: %-6d Decode errs: %-6d Write errs: %-4d│
│   Last error: %-38s │
`, truncate(m.sessionID, 40), m.cleared, m.decodeErrors, m.writeErrors, truncate(lastErr, 38))
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ r:Reconnect  d:Debug  q:Quit                         │
└──────────────────────────────────────────────────────┘
`
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.control != nil {
			m.control.signal(m.control.Quit)
		}
		return m, tea.Quit
	case "r":
		if m.control != nil {
			m.control.signal(m.control.Reconnect)
		}
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Server != "" {
		m.server = msg.Server
	}
	if msg.Status != nil {
		m.state = msg.Status.State
		m.statusText = msg.Status.Text
		if msg.Status.Err != nil {
			m.lastError = msg.Status.Err.Error()
		}
	}
	if msg.Stats != nil {
		s := msg.Stats
		m.sessionID = s.SessionID
		m.rtt = s.RTT
		m.received = s.Received
		m.played = s.Played
		m.dropped = s.Dropped
		m.cleared = s.Cleared
		m.decodeErrors = s.DecodeErrors
		m.writeErrors = s.WriteErrors
		m.bufferDepth = s.BufferDepth
	}
	if msg.BufferCap != 0 {
		m.bufferCap = msg.BufferCap
	}
}

// StatusMsg updates TUI state. Nil and zero fields are left unchanged.
type StatusMsg struct {
	Server    string
	Status    *syncstream.Status
	Stats     *syncstream.Stats
	BufferCap int
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := 0
	if max > 0 {
		filled = (value * width) / max
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len([]rune(s)) <= length {
		return s
	}
	return string([]rune(s)[:length-3]) + "..."
}
