package ui

import (
	"fmt"
	"strings"
	"time"

	"visionlab/pkg/models"
)

const (
	ProgressBar   = "━"
	ProgressEmpty = "─"
)

// JobTracker keeps track of one training job's observed statuses
type JobTracker struct {
	JobID     string
	StartTime time.Time
	Polls     int
	Last      models.TrainingStatus

	clock func() time.Time
}

// NewJobTracker creates a tracker that starts counting now
func NewJobTracker(jobID string) *JobTracker {
	return newJobTracker(jobID, time.Now)
}

func newJobTracker(jobID string, clock func() time.Time) *JobTracker {
	return &JobTracker{
		JobID:     jobID,
		StartTime: clock(),
		Last:      models.TrainingStatus{Status: models.StatusIdle},
		clock:     clock,
	}
}

// Observe records a fetched status
func (t *JobTracker) Observe(status models.TrainingStatus) {
	t.Polls++
	t.Last = status
}

// Progress returns the last reported progress
func (t *JobTracker) Progress() float64 {
	return t.Last.ProgressValue()
}

// Elapsed returns the time since tracking started
func (t *JobTracker) Elapsed() time.Duration {
	return t.clock().Sub(t.StartTime)
}

// ETA extrapolates the remaining time from the progress made so far. It
// reports false until there is progress to extrapolate from.
func (t *JobTracker) ETA() (time.Duration, bool) {
	p := t.Progress()
	if p <= 0 || t.Last.Status.IsTerminal() {
		return 0, false
	}
	elapsed := t.Elapsed()
	total := time.Duration(float64(elapsed) * 100 / p)
	return total - elapsed, true
}

// Bar renders the progress as a bar of the given width
func (t *JobTracker) Bar(width int) string {
	return RenderBar(t.Progress(), width)
}

// RenderBar renders a percentage in [0,100] as a fixed-width bar
func RenderBar(percent float64, width int) string {
	if width <= 0 {
		return ""
	}
	switch {
	case percent < 0:
		percent = 0
	case percent > 100:
		percent = 100
	}
	filled := int(percent / 100 * float64(width))
	return strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled)
}

// FormatMetrics renders the metrics of a status, or "" when there are none
func FormatMetrics(status models.TrainingStatus) string {
	if status.Metrics == nil {
		return ""
	}
	m := status.Metrics
	return fmt.Sprintf("epoch %d • acc %.3f • loss %.3f", m.Epoch, m.Accuracy, m.Loss)
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// FormatBytes formats bytes in a human-readable way
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// ShortID shortens a job id for display
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
