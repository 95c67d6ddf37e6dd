package models

import "fmt"

type Task string

const (
	TaskDetection      Task = "detection"
	TaskClassification Task = "classification"
)

type PredictOptions struct {
	Task       Task    `json:"task"`
	Confidence float64 `json:"confidence"`
}

// Validate checks the task name and that confidence lies in [0,1]
func (o PredictOptions) Validate() error {
	switch o.Task {
	case TaskDetection, TaskClassification:
	default:
		return fmt.Errorf("unknown task %q", o.Task)
	}
	if o.Confidence < 0 || o.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0,1]", o.Confidence)
	}
	return nil
}

type PredictionResult struct {
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"`
	BBox       *[4]float64 `json:"bbox,omitempty"`
}

type PredictionResponse struct {
	Predictions []PredictionResult `json:"predictions"`
}
