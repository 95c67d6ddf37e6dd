// Package retry provides backoff strategies and a retry loop for transient
// failures of calls against the training service.
//
//	cfg := &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.NewErrorTypeBackoff(time.Second),
//		Logger:      log,
//	}
//	status, err := retry.DoWithResult(ctx, func(ctx context.Context) (*models.TrainingStatus, error) {
//		return client.GetTrainingStatus(ctx, jobID)
//	}, cfg)
//
// Typed errors from pkg/errors decide retryability: network, rate limit and
// server errors are retried, everything else fails immediately.
package retry
