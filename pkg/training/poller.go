package training

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	errs "visionlab/pkg/errors"
	"visionlab/pkg/logger"
	"visionlab/pkg/models"
	"visionlab/pkg/retry"
)

// DefaultInterval is the pause between two status requests
const DefaultInterval = 5 * time.Second

var (
	// ErrStopped ends a poll that was stopped through its Handle
	ErrStopped = errors.New("polling stopped")
	// ErrMaxPolls ends a poll that reached Options.MaxPolls without a terminal status
	ErrMaxPolls = errors.New("maximum number of polls reached")
)

// StatusFetcher fetches the current status of a training job
type StatusFetcher interface {
	GetTrainingStatus(ctx context.Context, jobID string) (*models.TrainingStatus, error)
}

// Options controls a Poller
type Options struct {
	Interval time.Duration
	// RetryAttempts bounds the requests made within one tick
	RetryAttempts int
	RetryBackoff  retry.BackoffStrategy
	// MaxPolls ends polling after this many ticks; 0 polls until a terminal status
	MaxPolls int
	// OnUpdate receives every status fetched, from the polling goroutine
	OnUpdate func(jobID string, status models.TrainingStatus)
	Logger   logger.Logger
}

// DefaultOptions returns a 5 second interval with three attempts per tick
func DefaultOptions() Options {
	return Options{
		Interval:      DefaultInterval,
		RetryAttempts: 3,
		RetryBackoff:  retry.NewErrorTypeBackoff(time.Second),
	}
}

// Poller refreshes a job's status on a fixed interval until it is terminal
type Poller struct {
	fetcher StatusFetcher
	opts    Options
	logger  logger.Logger
}

// NewPoller creates a poller; zero-valued options fall back to DefaultOptions
func NewPoller(fetcher StatusFetcher, opts Options) *Poller {
	defaults := DefaultOptions()
	if opts.Interval <= 0 {
		opts.Interval = defaults.Interval
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = defaults.RetryAttempts
	}
	if opts.RetryBackoff == nil {
		opts.RetryBackoff = defaults.RetryBackoff
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	return &Poller{
		fetcher: fetcher,
		opts:    opts,
		logger:  log.WithField("component", "poller"),
	}
}

// Start begins polling jobID in a new goroutine. The first request is
// issued one interval after Start. The interval is measured from the end
// of the previous tick, so a slow or retried fetch delays the following
// one instead of causing requests to bunch up.
func (p *Poller) Start(ctx context.Context, jobID string) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		jobID:  jobID,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go p.run(ctx, h)
	return h
}

func (p *Poller) run(ctx context.Context, h *Handle) {
	log := p.logger.WithField("job_id", h.jobID)
	logger.LogComponentStart(log, "poller", map[string]interface{}{
		"interval":  p.opts.Interval,
		"max_polls": p.opts.MaxPolls,
	})

	timer := time.NewTimer(p.opts.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			h.finish(h.stopReason(ctx))
			logger.LogComponentStop(log, "poller", "stopped")
			return
		case <-timer.C:
		}

		polls := h.incPolls()
		status, err := p.fetch(ctx, h.jobID)
		if err != nil {
			if ctx.Err() != nil {
				h.finish(h.stopReason(ctx))
				logger.LogComponentStop(log, "poller", "stopped")
				return
			}
			log.WithError(err).Error("Giving up on training status")
			h.finish(fmt.Errorf("polling job %s: %w", h.jobID, err))
			return
		}

		h.record(status)
		logger.LogPoll(log, h.jobID, polls, string(status.Status), status.ProgressValue())
		if p.opts.OnUpdate != nil {
			p.opts.OnUpdate(h.jobID, status)
		}

		if status.Status.IsTerminal() {
			h.finish(nil)
			logger.LogComponentStop(log, "poller", string(status.Status))
			return
		}
		if p.opts.MaxPolls > 0 && polls >= p.opts.MaxPolls {
			h.finish(ErrMaxPolls)
			logger.LogComponentStop(log, "poller", "max polls reached")
			return
		}

		timer.Reset(p.opts.Interval)
	}
}

func (p *Poller) fetch(ctx context.Context, jobID string) (models.TrainingStatus, error) {
	cfg := &retry.Config{
		MaxAttempts: p.opts.RetryAttempts,
		Backoff:     p.opts.RetryBackoff,
		Logger:      p.logger.WithField("job_id", jobID),
	}

	return retry.DoWithResult(ctx, func(ctx context.Context) (models.TrainingStatus, error) {
		status, err := p.fetcher.GetTrainingStatus(ctx, jobID)
		if err != nil {
			return models.TrainingStatus{}, err
		}
		if status == nil {
			return models.TrainingStatus{}, errs.New(errs.ErrorTypeParsing, 0, "empty training status")
		}
		return *status, nil
	}, cfg)
}

// Handle controls one running poll
type Handle struct {
	jobID   string
	cancel  context.CancelFunc
	done    chan struct{}
	stopped atomic.Bool

	mu    sync.Mutex
	last  *models.TrainingStatus
	err   error
	polls int
}

// JobID returns the polled job
func (h *Handle) JobID() string { return h.jobID }

// Stop ends polling; no request is issued after Stop returns
// unless one is already in flight
func (h *Handle) Stop() {
	h.stopped.Store(true)
	h.cancel()
}

// Done is closed once polling has ended
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until polling ends and returns the last status and the reason
// polling ended (nil for a terminal status)
func (h *Handle) Wait() (*models.TrainingStatus, error) {
	<-h.done
	return h.Last(), h.Err()
}

// Last returns the most recent status, or nil before the first response
func (h *Handle) Last() *models.TrainingStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return nil
	}
	s := *h.last
	return &s
}

// Err returns why polling ended; nil while running or after a terminal status
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Polls returns the number of ticks that issued a request
func (h *Handle) Polls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.polls
}

func (h *Handle) incPolls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.polls++
	return h.polls
}

func (h *Handle) record(status models.TrainingStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = &status
}

func (h *Handle) stopReason(ctx context.Context) error {
	if h.stopped.Load() {
		return ErrStopped
	}
	return ctx.Err()
}

func (h *Handle) finish(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
	h.cancel()
	close(h.done)
}
