// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and relays key commands to the browser
package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Command is a user request from the TUI
type Command int

const (
	CommandRestart Command = iota
	CommandStop
)

// Control holds channels for TUI to browser communication
type Control struct {
	Commands chan Command
	Quit     chan struct{}

	quitOnce sync.Once
}

// NewControl creates a new control handler
func NewControl() *Control {
	return &Control{
		Commands: make(chan Command, 10),
		Quit:     make(chan struct{}),
	}
}

func (c *Control) send(cmd Command) {
	if c == nil {
		return
	}
	select {
	case c.Commands <- cmd:
	default:
	}
}

func (c *Control) quit() {
	if c == nil {
		return
	}
	c.quitOnce.Do(func() { close(c.Quit) })
}

// NewModel creates a new TUI model
func NewModel(serviceType string, ctrl *Control) Model {
	return Model{
		serviceType: serviceType,
		control:     ctrl,
	}
}

// Run creates the TUI program; the caller runs it
func Run(serviceType string, ctrl *Control) *tea.Program {
	return tea.NewProgram(NewModel(serviceType, ctrl), tea.WithAltScreen())
}
