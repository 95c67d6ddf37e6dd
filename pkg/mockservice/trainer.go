package mockservice

import (
	"errors"
	"math"
	"sync"

	"github.com/google/uuid"

	"visionlab/pkg/logger"
	"visionlab/pkg/models"
)

// ErrJobNotFound is returned for unknown job IDs
var ErrJobNotFound = errors.New("training job not found")

// DefaultProgressStep is the progress added by each status read
const DefaultProgressStep = 10.0

type job struct {
	id       string
	req      models.TrainingRequest
	progress float64
}

// Trainer fabricates training jobs whose progress advances each time
// their status is read
type Trainer struct {
	step   float64
	logger logger.Logger

	mu     sync.Mutex
	jobs   map[string]*job
	latest string
}

// NewTrainer creates a trainer advancing step percent per status read
func NewTrainer(step float64, log logger.Logger) *Trainer {
	if step <= 0 {
		step = DefaultProgressStep
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Trainer{
		step:   step,
		logger: log.WithField("component", "mock_trainer"),
		jobs:   make(map[string]*job),
	}
}

// Start registers a new job and returns its ID
func (t *Trainer) Start(req models.TrainingRequest) models.TrainingJob {
	id := uuid.NewString()

	t.mu.Lock()
	t.jobs[id] = &job{id: id, req: req}
	t.latest = id
	t.mu.Unlock()

	t.logger.InfoWithFields("Mock training job started", map[string]interface{}{
		"job_id":     id,
		"model_type": string(req.Architecture),
		"epochs":     req.Epochs,
	})
	return models.TrainingJob{JobID: id}
}

// Status advances and returns the job's status. An empty jobID selects the
// most recently started job; with no jobs at all the trainer is idle.
func (t *Trainer) Status(jobID string) (models.TrainingStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if jobID == "" {
		jobID = t.latest
		if jobID == "" {
			return models.TrainingStatus{Status: models.StatusIdle}, nil
		}
	}

	j, ok := t.jobs[jobID]
	if !ok {
		return models.TrainingStatus{}, ErrJobNotFound
	}

	j.progress = math.Min(100, j.progress+t.step)
	return j.status(), nil
}

func (j *job) status() models.TrainingStatus {
	epochs := j.req.Epochs
	if epochs <= 0 {
		epochs = 1
	}
	epoch := int(math.Round(j.progress / 100 * float64(epochs)))
	frac := j.progress / 100

	s := models.TrainingStatus{
		Status:   models.StatusTraining,
		Progress: models.Float64(j.progress),
		Metrics: &models.Metrics{
			Accuracy: math.Round((0.5+0.45*frac)*1000) / 1000,
			Loss:     math.Round((1.0-0.9*frac)*1000) / 1000,
			Epoch:    epoch,
		},
	}
	if j.progress >= 100 {
		s.Status = models.StatusCompleted
	}
	return s
}
