// ABOUTME: Bubbletea model for the discovery TUI
// ABOUTME: Defines display state, key handling and rendering
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Resonate-Protocol/bonjour-go/pkg/discovery"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const boxWidth = 54

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Model represents the TUI state
type Model struct {
	serviceType string

	// Status
	message     string
	showMessage bool
	loading     bool
	frame       int

	// Results
	services []discovery.ServiceRecord

	control *Control

	// Dimensions
	width  int
	height int
}

type tickMsg time.Time

// StatusMsg updates TUI state. Nil pointers leave the field unchanged.
type StatusMsg struct {
	Message       *string
	HideMessage   bool
	Loading       *bool
	Service       *discovery.ServiceRecord
	ClearServices bool
}

// Init starts the spinner ticker
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		if m.loading {
			m.frame = (m.frame + 1) % len(spinnerFrames)
		}
		return m, tick()
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString(m.renderServices())
	b.WriteString(m.renderHelp())
	return b.String()
}

// renderHeader renders the service type and status line
func (m Model) renderHeader() string {
	status := ""
	if m.loading {
		status = spinnerFrames[m.frame] + " "
	}
	if m.showMessage {
		status += messageStyle.Render(m.message)
	}

	return fmt.Sprintf("%s\n%s\n%s\n\n",
		titleStyle.Render("Bonjour Browser"),
		faintStyle.Render("Browsing "+m.serviceType),
		status)
}

// renderServices renders the resolved services
func (m Model) renderServices() string {
	if len(m.services) == 0 {
		return faintStyle.Render("  (no services resolved)") + "\n"
	}

	var b strings.Builder
	for _, svc := range m.services {
		address := svc.Address
		if !svc.HasAddress() {
			address = fmt.Sprintf("no IPv4 address, port %d", svc.Port)
		}
		b.WriteString(fmt.Sprintf("  • %-28s %s\n", truncate(svc.Name, 28), address))
	}
	return b.String()
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return "\n" + faintStyle.Render(strings.Repeat("─", boxWidth)) + "\n" +
		faintStyle.Render("r:Restart  s:Stop  q:Quit") + "\n"
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.control.quit()
		return m, tea.Quit
	case "r":
		m.control.send(CommandRestart)
	case "s":
		m.control.send(CommandStop)
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.ClearServices {
		m.services = nil
	}
	if msg.Message != nil {
		m.message = *msg.Message
		m.showMessage = true
	}
	if msg.HideMessage {
		m.message = ""
		m.showMessage = false
	}
	if msg.Loading != nil {
		m.loading = *msg.Loading
		m.frame = 0
	}
	if msg.Service != nil {
		m.services = append(m.services, *msg.Service)
	}
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
