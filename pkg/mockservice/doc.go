// Package mockservice provides the fabricated predictor and trainer behind
// the optional /api/train and /api/predict endpoints. Both are plain values
// built by the caller and handed to the server.
package mockservice
