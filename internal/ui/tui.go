// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program and the key-driven control channels
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Control carries user requests out of the TUI
type Control struct {
	Reconnect chan struct{}
	Quit      chan struct{}
}

// NewControl creates a control handler
func NewControl() *Control {
	return &Control{
		Reconnect: make(chan struct{}, 1),
		Quit:      make(chan struct{}, 1),
	}
}

// signal delivers a request without blocking the UI; duplicates coalesce
func (c *Control) signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(ctrl *Control, server string, bufferCap int) Model {
	return Model{
		server:     server,
		statusText: "Starting…",
		bufferCap:  bufferCap,
		control:    ctrl,
	}
}

// Run creates the TUI program; the caller runs it and feeds it StatusMsg
func Run(ctrl *Control, server string, bufferCap int) *tea.Program {
	return tea.NewProgram(NewModel(ctrl, server, bufferCap), tea.WithAltScreen())
}
