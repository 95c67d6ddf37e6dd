package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// checkpointFields must all be present in a stored checkpoint
var checkpointFields = []string{"timestamp", "datasets", "modelConfig", "trainingStatus"}

// Checkpoint is the snapshot of a training session's workflow state
type Checkpoint struct {
	Timestamp      int64           `json:"timestamp"`
	Datasets       Datasets        `json:"datasets"`
	ModelConfig    ModelConfig     `json:"modelConfig"`
	TrainingStatus *TrainingStatus `json:"trainingStatus"`
}

// Validate checks every part of the checkpoint against the stored schema
func (c Checkpoint) Validate() error {
	var errs []error
	if c.Timestamp < 0 {
		errs = append(errs, errors.New("timestamp cannot be negative"))
	}
	if err := c.Datasets.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("datasets: %w", err))
	}
	if err := c.ModelConfig.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("modelConfig: %w", err))
	}
	if c.TrainingStatus != nil {
		if err := c.TrainingStatus.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("trainingStatus: %w", err))
		}
	}
	return errors.Join(errs...)
}

// CheckShape verifies the structure of an encoded checkpoint, which
// decoding alone cannot: every top-level field must be present and
// datasets must hold exactly the train, valid and test keys, each null or
// an object.
func CheckShape(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("checkpoint is not an object: %w", err)
	}
	if fields == nil {
		return errors.New("checkpoint is null")
	}

	var errs []error
	for _, name := range checkpointFields {
		if _, ok := fields[name]; !ok {
			errs = append(errs, fmt.Errorf("missing field %q", name))
		}
	}
	if raw, ok := fields["modelConfig"]; ok && !isObject(raw) {
		errs = append(errs, errors.New("modelConfig must be an object"))
	}
	if raw, ok := fields["trainingStatus"]; ok && !isObject(raw) && !isNull(raw) {
		errs = append(errs, errors.New("trainingStatus must be null or an object"))
	}
	if raw, ok := fields["datasets"]; ok {
		if err := checkDatasetsShape(raw); err != nil {
			errs = append(errs, fmt.Errorf("datasets: %w", err))
		}
	}
	return errors.Join(errs...)
}

func checkDatasetsShape(raw json.RawMessage) error {
	var splits map[string]json.RawMessage
	if !isObject(raw) {
		return errors.New("must be an object")
	}
	if err := json.Unmarshal(raw, &splits); err != nil {
		return err
	}

	var errs []error
	for _, split := range Splits {
		v, ok := splits[string(split)]
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("missing split %q", split))
		case !isNull(v) && !isObject(v):
			errs = append(errs, fmt.Errorf("%s must be null or an object", split))
		}
	}
	if len(splits) > len(Splits) {
		errs = append(errs, fmt.Errorf("expected %d splits, got %d", len(Splits), len(splits)))
	}
	return errors.Join(errs...)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
