package models

import (
	"errors"
	"fmt"
	"math"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusTraining  Status = "training"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	// StatusFailed is only ever reported by the remote service.
	StatusFailed Status = "failed"
)

// IsTerminal reports whether no further transition can follow s
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusError:
		return true
	}
	return false
}

type Metrics struct {
	Accuracy float64 `json:"accuracy"`
	Loss     float64 `json:"loss"`
	Epoch    int     `json:"epoch"`
}

type TrainingStatus struct {
	Status   Status   `json:"status"`
	Progress *float64 `json:"progress,omitempty"`
	Error    string   `json:"error,omitempty"`
	Metrics  *Metrics `json:"metrics,omitempty"`
}

// Validate checks a status for storage in a checkpoint
func (s TrainingStatus) Validate() error {
	var errs []error
	switch s.Status {
	case StatusIdle, StatusTraining, StatusCompleted, StatusError:
	default:
		errs = append(errs, fmt.Errorf("unknown training status %q", s.Status))
	}
	if s.Progress != nil {
		p := *s.Progress
		if math.IsNaN(p) || p < 0 || p > 100 {
			errs = append(errs, fmt.Errorf("progress %v out of range [0,100]", p))
		}
	}
	if s.Metrics != nil && s.Metrics.Epoch < 0 {
		errs = append(errs, fmt.Errorf("metrics epoch %d cannot be negative", s.Metrics.Epoch))
	}
	return errors.Join(errs...)
}

// Normalized maps the remote-only "failed" onto the stored "error" status
func (s TrainingStatus) Normalized() TrainingStatus {
	if s.Status == StatusFailed {
		s.Status = StatusError
	}
	return s
}

// ProgressValue returns the progress or 0 when it is unset
func (s TrainingStatus) ProgressValue() float64 {
	if s.Progress == nil {
		return 0
	}
	return *s.Progress
}

// Float64 returns a pointer to v
func Float64(v float64) *float64 {
	return &v
}

type TrainingRequest struct {
	Architecture Architecture `json:"modelType,omitempty"`
	Epochs       int          `json:"epochs"`
	BatchSize    int          `json:"batchSize"`
	LearningRate float64      `json:"learningRate"`
}

// TrainingRequestFrom builds a start request out of a model configuration
func TrainingRequestFrom(cfg ModelConfig) TrainingRequest {
	return TrainingRequest{
		Architecture: cfg.Architecture,
		Epochs:       cfg.Epochs,
		BatchSize:    cfg.BatchSize,
		LearningRate: cfg.LearningRate,
	}
}

type TrainingJob struct {
	JobID string `json:"jobId"`
}
