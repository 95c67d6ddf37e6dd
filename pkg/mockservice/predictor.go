package mockservice

import (
	"context"
	"time"

	"visionlab/pkg/logger"
	"visionlab/pkg/models"
	"visionlab/pkg/retry"
)

// DefaultPredictDelay simulates inference latency
const DefaultPredictDelay = 1500 * time.Millisecond

var fixedPredictions = []models.PredictionResult{
	{Label: "Person", Confidence: 0.95},
	{Label: "Car", Confidence: 0.87},
	{Label: "Dog", Confidence: 0.76},
}

// Predictor returns a fixed set of detections after a delay
type Predictor struct {
	delay  time.Duration
	logger logger.Logger
}

// NewPredictor creates a predictor that answers after delay
func NewPredictor(delay time.Duration, log logger.Logger) *Predictor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Predictor{delay: delay, logger: log.WithField("component", "mock_predictor")}
}

// Predict waits for the configured delay and returns the fixed detections
// whose confidence is at least opts.Confidence. The image is not inspected.
func (p *Predictor) Predict(ctx context.Context, image []byte, opts models.PredictOptions) ([]models.PredictionResult, error) {
	if err := retry.Wait(ctx, p.delay); err != nil {
		return nil, err
	}

	results := make([]models.PredictionResult, 0, len(fixedPredictions))
	for _, pred := range fixedPredictions {
		if pred.Confidence >= opts.Confidence {
			results = append(results, pred)
		}
	}

	p.logger.DebugWithFields("Mock prediction served", map[string]interface{}{
		"task":        string(opts.Task),
		"threshold":   opts.Confidence,
		"image_bytes": len(image),
		"results":     len(results),
	})
	return results, nil
}
