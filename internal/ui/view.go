// ABOUTME: Discovery view abstraction and its two renderings
// ABOUTME: ProgramView feeds the bubbletea TUI, LogView streams to the logger
package ui

import (
	"github.com/Resonate-Protocol/bonjour-go/pkg/discovery"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// View displays discovery progress
type View interface {
	ShowMessage(value string)
	HideMessage()
	ShowLoading(loading bool)
	ShowService(rec discovery.ServiceRecord)
	ClearServices()
}

// Sender is the part of *tea.Program a ProgramView needs
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramView forwards view updates to a running bubbletea program
type ProgramView struct {
	program Sender
}

// NewProgramView creates a view rendering into program
func NewProgramView(program Sender) *ProgramView {
	return &ProgramView{program: program}
}

func (v *ProgramView) ShowMessage(value string) {
	v.program.Send(StatusMsg{Message: &value})
}

func (v *ProgramView) HideMessage() {
	v.program.Send(StatusMsg{HideMessage: true})
}

func (v *ProgramView) ShowLoading(loading bool) {
	v.program.Send(StatusMsg{Loading: &loading})
}

func (v *ProgramView) ShowService(rec discovery.ServiceRecord) {
	v.program.Send(StatusMsg{Service: &rec})
}

func (v *ProgramView) ClearServices() {
	v.program.Send(StatusMsg{ClearServices: true})
}

// LogView writes view updates as log lines, for running without a TUI
type LogView struct {
	logger *zap.Logger
}

// NewLogView creates a view logging through logger
func NewLogView(logger *zap.Logger) *LogView {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogView{logger: logger}
}

func (v *LogView) ShowMessage(value string) {
	v.logger.Info(value)
}

func (v *LogView) HideMessage() {}

func (v *LogView) ShowLoading(loading bool) {
	v.logger.Debug("loading", zap.Bool("loading", loading))
}

func (v *LogView) ShowService(rec discovery.ServiceRecord) {
	address := rec.Address
	if !rec.HasAddress() {
		address = "unresolved"
	}
	v.logger.Info("service",
		zap.String("name", rec.Name),
		zap.String("address", address),
		zap.Int("port", rec.Port))
}

func (v *LogView) ClearServices() {}
