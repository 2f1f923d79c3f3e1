// ABOUTME: Gateway TUI showing connected clients and their searches
// ABOUTME: Real-time gateway status display using bubbletea
package server

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ServerTUI manages the gateway TUI
type ServerTUI struct {
	program  *tea.Program
	updates  chan ServerStatus
	quitChan chan struct{}
	ready    chan struct{}
}

// ServerStatus holds gateway state for the TUI
type ServerStatus struct {
	Name    string
	Listen  string
	Cached  int
	Clients []ClientInfo
}

// ClientInfo holds client information for display
type ClientInfo struct {
	ID          string
	Remote      string
	ServiceType string
	Phase       string
	Found       int
}

type tuiModel struct {
	status    ServerStatus
	startTime time.Time
	quitting  bool
	quitChan  chan struct{}
}

type tickMsg time.Time
type statusMsg ServerStatus

func (m tuiModel) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}

	case tickMsg:
		return m, tickEvery()

	case statusMsg:
		m.status = ServerStatus(msg)
	}

	return m, nil
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	clientHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("220"))
)

func (m tuiModel) View() string {
	if m.quitting {
		return "Shutting down gateway...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Bonjour Gateway"))
	b.WriteString("\n\n")

	field := func(name, value string) {
		b.WriteString(headerStyle.Render(name + ": "))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	field("Gateway", m.status.Name)
	field("Listening", m.status.Listen)
	field("Uptime", time.Since(m.startTime).Round(time.Second).String())
	field("Cached services", fmt.Sprintf("%d", m.status.Cached))
	b.WriteString("\n")

	b.WriteString(clientHeaderStyle.Render(fmt.Sprintf("Connected Clients (%d)", len(m.status.Clients))))
	b.WriteString("\n\n")

	if len(m.status.Clients) == 0 {
		b.WriteString(valueStyle.Render("  No clients connected"))
		b.WriteString("\n")
	}
	for _, c := range m.status.Clients {
		b.WriteString(fmt.Sprintf("  • %s", c.Remote))
		detail := c.Phase
		if c.ServiceType != "" {
			detail = fmt.Sprintf("%s %s, %d found", c.ServiceType, c.Phase, c.Found)
		}
		b.WriteString(valueStyle.Render(" (" + detail + ")"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press 'q' or Ctrl+C to quit"))

	return b.String()
}

// NewServerTUI creates a new gateway TUI
func NewServerTUI() *ServerTUI {
	return &ServerTUI{
		updates:  make(chan ServerStatus, 10),
		quitChan: make(chan struct{}, 1),
		ready:    make(chan struct{}),
	}
}

// Start runs the TUI until it quits
func (t *ServerTUI) Start(name, listen string) error {
	m := tuiModel{
		status: ServerStatus{
			Name:   name,
			Listen: listen,
		},
		startTime: time.Now(),
		quitChan:  t.quitChan,
	}

	t.program = tea.NewProgram(m, tea.WithAltScreen())
	close(t.ready)

	go func() {
		for status := range t.updates {
			t.program.Send(statusMsg(status))
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status update to the TUI without blocking
func (t *ServerTUI) Update(status ServerStatus) {
	select {
	case t.updates <- status:
	default:
	}
}

// Stop stops the TUI
func (t *ServerTUI) Stop() {
	<-t.ready
	t.program.Quit()
	close(t.updates)
}

// QuitChan returns the channel that signals when user wants to quit
func (t *ServerTUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
