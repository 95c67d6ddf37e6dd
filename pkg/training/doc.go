// Package training watches asynchronous training jobs.
//
// A Poller asks a StatusFetcher (normally the API client) for a job's
// status once per interval until the job reaches a terminal status
// (completed, failed or error). Each tick makes one request, retried with
// backoff on transient failures; when retries run out the error is kept on
// the Handle and polling stops.
//
//	poller := training.NewPoller(client, training.Options{
//		Interval: 5 * time.Second,
//		OnUpdate: func(jobID string, s models.TrainingStatus) { ... },
//	})
//	final, err := poller.Start(ctx, jobID).Wait()
//
// Manager keeps at most one running poller per job.
package training
