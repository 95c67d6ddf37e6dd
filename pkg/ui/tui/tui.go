package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"visionlab/pkg/models"
	"visionlab/pkg/ui"
)

var _ ui.Monitor = (*TUI)(nil)

// TUI represents the terminal user interface
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates a new TUI instance
func NewTUI(opts ...tea.ProgramOption) *TUI {
	model := NewModel()
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}

	return &TUI{
		program: tea.NewProgram(model, opts...),
		model:   model,
	}
}

// Start runs the TUI until the user quits or Stop is called
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// Stop stops the TUI gracefully
func (t *TUI) Stop() {
	t.program.Quit()
}

// Model exposes the state behind the TUI
func (t *TUI) Model() *Model {
	return t.model
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

func (t *TUI) WatchJob(jobID string) {
	t.Send(JobWatchMsg{ID: jobID})
}

func (t *TUI) UpdateJob(jobID string, status models.TrainingStatus) {
	t.Send(JobStatusMsg{ID: jobID, Status: status})
}

func (t *TUI) FinishJob(jobID string, err error) {
	t.Send(JobDoneMsg{ID: jobID, Err: err})
}

// SetDatasets shows a dataset summary next to the jobs
func (t *TUI) SetDatasets(d models.Datasets) {
	t.Send(DatasetsMsg{Datasets: d})
}

// Log sends a log message to the TUI
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (t *TUI) LogInfo(format string, args ...interface{}) {
	t.Log("INFO", format, args...)
}

func (t *TUI) LogSuccess(format string, args ...interface{}) {
	t.Log("SUCCESS", format, args...)
}

func (t *TUI) LogWarning(format string, args ...interface{}) {
	t.Log("WARN", format, args...)
}

func (t *TUI) LogError(format string, args ...interface{}) {
	t.Log("ERROR", format, args...)
}
