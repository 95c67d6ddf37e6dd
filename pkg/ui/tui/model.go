package tui

import (
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"visionlab/pkg/models"
	"visionlab/pkg/ui"
)

// JobState represents where a watched job is in its lifecycle
type JobState int

const (
	JobWatching JobState = iota
	JobCompleted
	JobFailed
)

// JobItem represents a single watched training job
type JobItem struct {
	ID      string
	State   JobState
	Tracker ui.JobTracker
	Error   error
}

// Model represents the TUI model
type Model struct {
	// UI components
	spinner      spinner.Model
	progressBars map[string]progress.Model

	// Job state
	jobs     map[string]*JobItem
	jobOrder []string

	// Dataset summary
	datasets    models.Datasets
	hasDatasets bool

	sessionStartTime time.Time

	// UI state
	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int

	// Guards the job and log state for readers outside the program loop
	mu sync.RWMutex
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// JobStats summarizes the watched jobs
type JobStats struct {
	Watching  int
	Completed int
	Failed    int
}

// NewModel creates a new TUI model
func NewModel() *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accent)

	return &Model{
		spinner:          s,
		progressBars:     make(map[string]progress.Model),
		jobs:             make(map[string]*JobItem),
		sessionStartTime: time.Now(),
		maxLogMessages:   50,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// WatchJob adds a job to the board; watching the same job twice is a no-op
func (m *Model) WatchJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[id]; ok {
		return
	}
	m.jobs[id] = &JobItem{
		ID:      id,
		State:   JobWatching,
		Tracker: *ui.NewJobTracker(id),
	}
	m.jobOrder = append(m.jobOrder, id)

	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40
	m.progressBars[id] = p
}

// UpdateJob records a fetched status, adding the job if it is new
func (m *Model) UpdateJob(id string, status models.TrainingStatus) {
	m.WatchJob(id)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[id].Tracker.Observe(status)
}

// FinishJob marks a job as done. Without an error the last status decides
// whether it completed.
func (m *Model) FinishJob(id string, err error) {
	m.WatchJob(id)

	m.mu.Lock()
	defer m.mu.Unlock()

	job := m.jobs[id]
	switch {
	case err != nil:
		job.State = JobFailed
		job.Error = err
	case job.Tracker.Last.Status == models.StatusCompleted:
		job.State = JobCompleted
	default:
		job.State = JobFailed
	}
}

// SetDatasets replaces the dataset summary
func (m *Model) SetDatasets(d models.Datasets) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.datasets = d
	m.hasDatasets = true
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	color := dimWhite
	switch level {
	case "ERROR":
		color = danger
	case "WARN":
		color = warn
	case "SUCCESS":
		color = good
	case "INFO":
		color = accent
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	// Keep only the last N messages
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Job returns a copy of a watched job
func (m *Model) Job(id string) (JobItem, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return JobItem{}, false
	}
	return *job, true
}

// Jobs returns the watched jobs in the order they were added
func (m *Model) Jobs() []JobItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobsLocked()
}

func (m *Model) jobsLocked() []JobItem {
	out := make([]JobItem, 0, len(m.jobOrder))
	for _, id := range m.jobOrder {
		out = append(out, *m.jobs[id])
	}
	return out
}

// Stats counts the watched jobs per state
func (m *Model) Stats() JobStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statsLocked()
}

func (m *Model) statsLocked() JobStats {
	var s JobStats
	for _, job := range m.jobs {
		switch job.State {
		case JobWatching:
			s.Watching++
		case JobCompleted:
			s.Completed++
		case JobFailed:
			s.Failed++
		}
	}
	return s
}

// AllFinished reports whether every watched job is done
func (m *Model) AllFinished() bool {
	stats := m.Stats()
	return stats.Watching == 0 && stats.Completed+stats.Failed > 0
}
