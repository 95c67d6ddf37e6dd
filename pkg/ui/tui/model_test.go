package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visionlab/pkg/models"
)

func status(s models.Status, progress float64) models.TrainingStatus {
	return models.TrainingStatus{Status: s, Progress: models.Float64(progress)}
}

func TestModelJobLifecycle(t *testing.T) {
	model := NewModel()

	model.WatchJob("job-1")
	model.WatchJob("job-2")
	model.WatchJob("job-1")
	require.Len(t, model.Jobs(), 2)

	model.UpdateJob("job-1", status(models.StatusTraining, 40))
	job, ok := model.Job("job-1")
	require.True(t, ok)
	assert.Equal(t, JobWatching, job.State)
	assert.Equal(t, 40.0, job.Tracker.Progress())
	assert.Equal(t, 1, job.Tracker.Polls)

	model.UpdateJob("job-1", status(models.StatusCompleted, 100))
	model.FinishJob("job-1", nil)
	model.UpdateJob("job-2", models.TrainingStatus{Status: models.StatusFailed, Error: "diverged"})
	model.FinishJob("job-2", nil)

	stats := model.Stats()
	assert.Equal(t, JobStats{Completed: 1, Failed: 1}, stats)
	assert.True(t, model.AllFinished())
}

func TestModelFinishWithError(t *testing.T) {
	model := NewModel()

	model.FinishJob("job-3", errors.New("connection refused"))

	job, ok := model.Job("job-3")
	require.True(t, ok)
	assert.Equal(t, JobFailed, job.State)
	assert.EqualError(t, job.Error, "connection refused")
}

func TestModelAllFinishedNeedsJobs(t *testing.T) {
	model := NewModel()
	assert.False(t, model.AllFinished())

	model.WatchJob("job-1")
	assert.False(t, model.AllFinished())
}

func TestLogMessagesAreBounded(t *testing.T) {
	model := NewModel()
	for i := 0; i < model.maxLogMessages+10; i++ {
		model.AddLogMessage("INFO", "message")
	}
	assert.Len(t, model.logMessages, model.maxLogMessages)
	assert.Equal(t, accent, model.logMessages[0].Color)
}

func TestUpdateMessages(t *testing.T) {
	model := NewModel()

	model.Update(JobWatchMsg{ID: "job-1"})
	model.Update(JobStatusMsg{ID: "job-1", Status: status(models.StatusCompleted, 100)})
	model.Update(JobDoneMsg{ID: "job-1"})
	model.Update(DatasetsMsg{Datasets: models.Datasets{Train: &models.DatasetInfo{FileCount: 3, TotalSize: 2048}}})

	job, _ := model.Job("job-1")
	assert.Equal(t, JobCompleted, job.State)
	assert.True(t, model.hasDatasets)

	levels := make([]string, 0, len(model.logMessages))
	for _, msg := range model.logMessages {
		levels = append(levels, msg.Level)
	}
	assert.Equal(t, []string{"INFO", "SUCCESS"}, levels)
}

func TestKeyPresses(t *testing.T) {
	model := NewModel()
	model.AddLogMessage("INFO", "hello")

	model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	assert.True(t, model.showHelp)

	model.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.Empty(t, model.logMessages)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestView(t *testing.T) {
	model := NewModel()
	assert.Equal(t, "Initializing...", model.View())

	model.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	model.Update(JobStatusMsg{ID: "abcdef123456", Status: models.TrainingStatus{
		Status:   models.StatusTraining,
		Progress: models.Float64(30),
		Metrics:  &models.Metrics{Accuracy: 0.635, Loss: 0.73, Epoch: 3},
	}})
	model.Update(DatasetsMsg{Datasets: models.Datasets{Train: &models.DatasetInfo{FileCount: 3, TotalSize: 2048}}})

	view := model.View()
	assert.Contains(t, view, "TRAINING JOBS")
	assert.Contains(t, view, "abcdef12")
	assert.Contains(t, view, "30.0%")
	assert.Contains(t, view, "3 files, 2.0 KB")
	assert.True(t, strings.Contains(view, "empty"), "splits without data are shown as empty")
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "00:00", formatClock(-1))
	assert.Equal(t, "01:05", formatClock(65e9))
	assert.Equal(t, "01:00:00", formatClock(3600e9))
}
