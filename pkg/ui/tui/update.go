package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"visionlab/pkg/models"
)

// Message types for the TUI

// JobWatchMsg is sent when a job is added to the board
type JobWatchMsg struct {
	ID string
}

// JobStatusMsg carries a freshly polled status
type JobStatusMsg struct {
	ID     string
	Status models.TrainingStatus
}

// JobDoneMsg is sent when polling for a job has ended
type JobDoneMsg struct {
	ID  string
	Err error
}

// DatasetsMsg replaces the dataset summary
type DatasetsMsg struct {
	Datasets models.Datasets
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		// redraw so elapsed times and ETAs keep moving
		return m, tickCmd()

	case JobWatchMsg:
		m.WatchJob(msg.ID)
		m.AddLogMessage("INFO", "Watching job "+msg.ID)
		return m, nil

	case JobStatusMsg:
		m.UpdateJob(msg.ID, msg.Status)
		return m, nil

	case JobDoneMsg:
		m.FinishJob(msg.ID, msg.Err)
		job, _ := m.Job(msg.ID)
		switch {
		case job.State == JobCompleted:
			m.AddLogMessage("SUCCESS", "Completed: "+msg.ID)
		case msg.Err != nil:
			m.AddLogMessage("ERROR", "Stopped: "+msg.ID+" - "+msg.Err.Error())
		default:
			reason := job.Tracker.Last.Error
			if reason == "" {
				reason = string(job.Tracker.Last.Status)
			}
			m.AddLogMessage("ERROR", "Failed: "+msg.ID+" - "+reason)
		}
		return m, nil

	case DatasetsMsg:
		m.SetDatasets(msg.Datasets)
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.mu.Lock()
		m.logMessages = nil
		m.mu.Unlock()
		return m, nil
	}

	return m, nil
}

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
