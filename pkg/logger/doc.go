// Package logger provides the structured logging interface used across visionlab.
//
// It wraps zerolog behind a small Logger interface so that components can
// accept a logger, attach fields and be tested with NewTestLogger or
// NewNopLogger instead of the process-wide instance.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	logger.WithField("job_id", jobID).Info("Polling started")
//
// Console output is colorized. Setting logging.file additionally appends
// JSON lines to that file.
package logger
