package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"visionlab/pkg/models"
)

// TrainingDisplay provides a clean, minimal progress display. Inline mode
// redraws a single line per job; otherwise every update gets its own line,
// which suits logs and pipes.
type TrainingDisplay struct {
	mu       sync.Mutex
	out      io.Writer
	inline   bool
	trackers map[string]*JobTracker
	failures int
}

// NewTrainingDisplay creates a display writing to out
func NewTrainingDisplay(out io.Writer, inline bool) *TrainingDisplay {
	return &TrainingDisplay{
		out:      out,
		inline:   inline,
		trackers: make(map[string]*JobTracker),
	}
}

// WatchJob starts tracking a job
func (d *TrainingDisplay) WatchJob(jobID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.trackers[jobID]; !ok {
		d.trackers[jobID] = NewJobTracker(jobID)
	}
	fmt.Fprintf(d.out, "%s Watching training job %s\n", Magenta("→"), jobID)
}

// UpdateJob records and prints a fetched status
func (d *TrainingDisplay) UpdateJob(jobID string, status models.TrainingStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t := d.tracker(jobID)
	t.Observe(status)

	line := d.progressLine(t)
	if d.inline {
		fmt.Fprintf(d.out, "\r%s\r%s", strings.Repeat(" ", 100), line)
	} else {
		fmt.Fprintln(d.out, line)
	}
}

// FinishJob prints the outcome of a job
func (d *TrainingDisplay) FinishJob(jobID string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t := d.tracker(jobID)
	if d.inline {
		fmt.Fprintln(d.out)
	}

	switch {
	case err != nil:
		d.failures++
		fmt.Fprintf(d.out, "%s %s stopped: %v\n", Red("✗"), ShortID(jobID), err)
	case t.Last.Status == models.StatusCompleted:
		fmt.Fprintf(d.out, "%s %s completed in %s", Green("✓"), ShortID(jobID), FormatDuration(t.Elapsed()))
		if metrics := FormatMetrics(t.Last); metrics != "" {
			fmt.Fprintf(d.out, " • %s", metrics)
		}
		fmt.Fprintln(d.out)
	default:
		d.failures++
		msg := t.Last.Error
		if msg == "" {
			msg = string(t.Last.Status)
		}
		fmt.Fprintf(d.out, "%s %s failed: %s\n", Red("✗"), ShortID(jobID), msg)
	}
}

// Failures returns how many watched jobs did not complete
func (d *TrainingDisplay) Failures() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failures
}

func (d *TrainingDisplay) LogInfo(format string, args ...interface{}) {
	d.log(Cyan("•"), format, args...)
}

func (d *TrainingDisplay) LogSuccess(format string, args ...interface{}) {
	d.log(Green("✓"), format, args...)
}

func (d *TrainingDisplay) LogWarning(format string, args ...interface{}) {
	d.log(Yellow("⚠"), format, args...)
}

func (d *TrainingDisplay) LogError(format string, args ...interface{}) {
	d.log(Red("✗"), format, args...)
}

func (d *TrainingDisplay) log(prefix, format string, args ...interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.inline {
		fmt.Fprintln(d.out)
	}
	fmt.Fprintf(d.out, "%s %s\n", prefix, fmt.Sprintf(format, args...))
}

// tracker must be called with mu held
func (d *TrainingDisplay) tracker(jobID string) *JobTracker {
	t, ok := d.trackers[jobID]
	if !ok {
		t = NewJobTracker(jobID)
		d.trackers[jobID] = t
	}
	return t
}

func (d *TrainingDisplay) progressLine(t *JobTracker) string {
	line := fmt.Sprintf("%s [%s] %5.1f%% • %s",
		Cyan(ShortID(t.JobID)),
		t.Bar(20),
		t.Progress(),
		t.Last.Status,
	)
	if metrics := FormatMetrics(t.Last); metrics != "" {
		line += " • " + metrics
	}
	if eta, ok := t.ETA(); ok {
		line += " • eta " + FormatDuration(eta)
	}
	return line
}
