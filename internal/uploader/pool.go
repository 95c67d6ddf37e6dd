// Package uploader sends large datasets to the API in concurrent batches.
package uploader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"visionlab/pkg/logger"
	"visionlab/pkg/models"
	"visionlab/pkg/ratelimit"
	"visionlab/pkg/retry"
)

// BatchJob is one multipart upload of several files to a split
type BatchJob struct {
	Index int
	Split models.DatasetSplit
	Paths []string
}

// BatchResult represents the result of a batch upload
type BatchResult struct {
	Job      BatchJob
	Files    []string
	Error    error
	Duration time.Duration
}

// DatasetUploader uploads files to a dataset split
type DatasetUploader interface {
	UploadDataset(ctx context.Context, split models.DatasetSplit, paths []string) (*models.UploadResult, error)
}

// WorkerPool manages concurrent upload workers
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan BatchJob
	resultQueue chan BatchResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	client      DatasetUploader
	limiter     ratelimit.Limiter
	retry       *retry.Config
	logger      logger.Logger
}

// NewWorkerPool creates a new upload worker pool bound to ctx
func NewWorkerPool(ctx context.Context, numWorkers int, client DatasetUploader, log logger.Logger) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(ctx)

	retryCfg := retry.DefaultConfig()
	retryCfg.Logger = log

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan BatchJob, numWorkers*2),
		resultQueue: make(chan BatchResult, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		client:      client,
		retry:       retryCfg,
		logger:      log.WithField("component", "uploader"),
	}
}

// SetRetryConfig replaces the per-batch retry policy. Call before Start.
func (wp *WorkerPool) SetRetryConfig(cfg *retry.Config) {
	if cfg != nil {
		wp.retry = cfg
	}
}

// SetLimiter paces batches; nil disables pacing. Call before Start.
func (wp *WorkerPool) SetLimiter(l ratelimit.Limiter) {
	wp.limiter = l
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() {
	wp.logger.InfoWithFields("Starting upload workers", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue and waits for the workers to drain it. Submit must
// not be called after Stop.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("Upload workers stopped")
}

// Submit queues a batch, failing once the pool's context is done
func (wp *WorkerPool) Submit(job BatchJob) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("upload pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results returns the result channel; it is closed by Stop
func (wp *WorkerPool) Results() <-chan BatchResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		var result BatchResult
		if err := wp.ctx.Err(); err != nil {
			result = BatchResult{Job: job, Error: err}
		} else {
			result = wp.processJob(job, id)
		}

		// results are always delivered so the consumer sees every batch
		wp.resultQueue <- result
	}
}

func (wp *WorkerPool) processJob(job BatchJob, workerID int) BatchResult {
	result := BatchResult{Job: job}

	if wp.limiter != nil {
		if err := wp.limiter.Wait(wp.ctx); err != nil {
			result.Error = fmt.Errorf("batch %d: %w", job.Index, err)
			return result
		}
	}

	start := time.Now()

	res, err := retry.DoWithResult(wp.ctx, func(ctx context.Context) (*models.UploadResult, error) {
		return wp.client.UploadDataset(ctx, job.Split, job.Paths)
	}, wp.retry)
	result.Duration = time.Since(start)

	fields := map[string]interface{}{
		"worker_id": workerID,
		"batch":     job.Index,
		"split":     string(job.Split),
		"files":     len(job.Paths),
		"duration":  result.Duration.String(),
	}
	if err != nil {
		result.Error = fmt.Errorf("batch %d: %w", job.Index, err)
		wp.logger.WithError(err).ErrorWithFields("Batch upload failed", fields)
		return result
	}

	result.Files = res.Files
	wp.logger.DebugWithFields("Batch uploaded", fields)
	return result
}
