package ui

import "visionlab/pkg/models"

// Monitor presents the progress of watched training jobs. Both the plain
// TrainingDisplay and the full-screen tui.TUI implement it.
type Monitor interface {
	WatchJob(jobID string)
	UpdateJob(jobID string, status models.TrainingStatus)
	FinishJob(jobID string, err error)
	LogInfo(format string, args ...interface{})
	LogSuccess(format string, args ...interface{})
	LogWarning(format string, args ...interface{})
	LogError(format string, args ...interface{})
}
