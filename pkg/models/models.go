package models

import (
	"errors"
	"fmt"
)

type Architecture string

const (
	ArchitectureYOLOv8     Architecture = "yolov8"
	ArchitectureFasterRCNN Architecture = "fasterrcnn"
)

type Optimizer string

const (
	OptimizerAdam Optimizer = "adam"
	OptimizerSGD  Optimizer = "sgd"
)

// Bounds accepted by the configuration form.
const (
	MinEpochs       = 1
	MaxEpochs       = 1000
	MinBatchSize    = 1
	MaxBatchSize    = 128
	MinLearningRate = 0.0001
	MaxLearningRate = 0.1
)

type ModelConfig struct {
	Architecture Architecture `json:"architecture" yaml:"architecture"`
	Epochs       int          `json:"epochs" yaml:"epochs"`
	BatchSize    int          `json:"batchSize" yaml:"batch_size"`
	LearningRate float64      `json:"learningRate" yaml:"learning_rate"`
	Optimizer    Optimizer    `json:"optimizer" yaml:"optimizer"`
}

// DefaultModelConfig returns the hyperparameters a fresh session starts with
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Architecture: ArchitectureYOLOv8,
		Epochs:       100,
		BatchSize:    16,
		LearningRate: 0.001,
		Optimizer:    OptimizerAdam,
	}
}

// AutoModelConfig returns the recommended hyperparameters
func AutoModelConfig() ModelConfig {
	return ModelConfig{
		Architecture: ArchitectureYOLOv8,
		Epochs:       300,
		BatchSize:    32,
		LearningRate: 0.001,
		Optimizer:    OptimizerAdam,
	}
}

// Validate checks enum membership and positivity of every field
func (c ModelConfig) Validate() error {
	var errs []error

	switch c.Architecture {
	case ArchitectureYOLOv8, ArchitectureFasterRCNN:
	default:
		errs = append(errs, fmt.Errorf("unknown architecture %q", c.Architecture))
	}
	if c.Epochs <= 0 {
		errs = append(errs, errors.New("epochs must be positive"))
	}
	if c.BatchSize <= 0 {
		errs = append(errs, errors.New("batch size must be positive"))
	}
	if !(c.LearningRate > 0) {
		errs = append(errs, errors.New("learning rate must be positive"))
	}
	switch c.Optimizer {
	case OptimizerAdam, OptimizerSGD:
	default:
		errs = append(errs, fmt.Errorf("unknown optimizer %q", c.Optimizer))
	}

	return errors.Join(errs...)
}

// CheckBounds applies the tighter ranges used for interactive input
func (c ModelConfig) CheckBounds() error {
	var errs []error
	if c.Epochs < MinEpochs || c.Epochs > MaxEpochs {
		errs = append(errs, fmt.Errorf("epochs must be between %d and %d", MinEpochs, MaxEpochs))
	}
	if c.BatchSize < MinBatchSize || c.BatchSize > MaxBatchSize {
		errs = append(errs, fmt.Errorf("batch size must be between %d and %d", MinBatchSize, MaxBatchSize))
	}
	if c.LearningRate < MinLearningRate || c.LearningRate > MaxLearningRate {
		errs = append(errs, fmt.Errorf("learning rate must be between %g and %g", MinLearningRate, MaxLearningRate))
	}
	return errors.Join(errs...)
}

type DatasetSplit string

const (
	SplitTrain DatasetSplit = "train"
	SplitValid DatasetSplit = "valid"
	SplitTest  DatasetSplit = "test"
)

// Splits lists the dataset splits in display order
var Splits = []DatasetSplit{SplitTrain, SplitValid, SplitTest}

// ParseSplit converts a string into a DatasetSplit
func ParseSplit(s string) (DatasetSplit, error) {
	switch DatasetSplit(s) {
	case SplitTrain, SplitValid, SplitTest:
		return DatasetSplit(s), nil
	}
	return "", fmt.Errorf("invalid dataset type: %q", s)
}

type DatasetInfo struct {
	FileCount int   `json:"fileCount"`
	TotalSize int64 `json:"totalSize"`
}

// Datasets always carries the three fixed splits; a nil entry means no data.
type Datasets struct {
	Train *DatasetInfo `json:"train"`
	Valid *DatasetInfo `json:"valid"`
	Test  *DatasetInfo `json:"test"`
}

// Get returns the info for a split
func (d Datasets) Get(split DatasetSplit) *DatasetInfo {
	switch split {
	case SplitTrain:
		return d.Train
	case SplitValid:
		return d.Valid
	case SplitTest:
		return d.Test
	}
	return nil
}

// Set replaces the info for a split
func (d *Datasets) Set(split DatasetSplit, info *DatasetInfo) {
	switch split {
	case SplitTrain:
		d.Train = info
	case SplitValid:
		d.Valid = info
	case SplitTest:
		d.Test = info
	}
}

// Validate rejects negative counts or sizes
func (d Datasets) Validate() error {
	var errs []error
	for _, split := range Splits {
		info := d.Get(split)
		if info == nil {
			continue
		}
		if info.FileCount < 0 {
			errs = append(errs, fmt.Errorf("%s: file count cannot be negative", split))
		}
		if info.TotalSize < 0 {
			errs = append(errs, fmt.Errorf("%s: total size cannot be negative", split))
		}
	}
	return errors.Join(errs...)
}

// ZeroDatasets reports every split as present and empty
func ZeroDatasets() Datasets {
	return Datasets{
		Train: &DatasetInfo{},
		Valid: &DatasetInfo{},
		Test:  &DatasetInfo{},
	}
}

// UploadResult is returned after storing uploaded dataset files
type UploadResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Files   []string `json:"files"`
}
