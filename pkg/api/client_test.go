package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visionlab/pkg/config"
	errs "visionlab/pkg/errors"
	"visionlab/pkg/logger"
	"visionlab/pkg/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.ClientConfig{BaseURL: srv.URL + "/api/", Timeout: 5 * time.Second}, logger.NewNopLogger())
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func TestHealth(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	resp, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
}

func TestDatasetInfoWithNullSplits(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"train":{"fileCount":3,"totalSize":2048},"valid":null,"test":null}`)
	})

	info, err := client.DatasetInfo(context.Background())
	require.NoError(t, err)
	require.NotNil(t, info.Train)
	assert.Equal(t, 3, info.Train.FileCount)
	assert.Equal(t, int64(2048), info.Train.TotalSize)
	assert.Nil(t, info.Valid)
	assert.Nil(t, info.Test)
}

func TestStartTraining(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/train/start", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "yolov8", body["modelType"])
		assert.Equal(t, float64(100), body["epochs"])
		assert.Equal(t, float64(16), body["batchSize"])
		assert.Equal(t, 0.001, body["learningRate"])

		writeJSON(w, http.StatusAccepted, map[string]string{"jobId": "job-123"})
	})

	job, err := client.StartTraining(context.Background(), models.TrainingRequestFrom(models.DefaultModelConfig()))
	require.NoError(t, err)
	assert.Equal(t, "job-123", job.JobID)
}

func TestGetTrainingStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/train/status", r.URL.Path)
		assert.Equal(t, "job 1", r.URL.Query().Get("jobId"))
		writeJSON(w, http.StatusOK, models.TrainingStatus{
			Status:   models.StatusTraining,
			Progress: models.Float64(40),
			Metrics:  &models.Metrics{Accuracy: 0.7, Loss: 0.3, Epoch: 4},
		})
	})

	status, err := client.GetTrainingStatus(context.Background(), "job 1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusTraining, status.Status)
	assert.Equal(t, 40.0, status.ProgressValue())
	assert.Equal(t, 4, status.Metrics.Epoch)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		body     string
		wantType errs.ErrorType
		wantMsg  string
	}{
		{"routing failure", 404, `{"message":"Not Found"}`, errs.ErrorTypeNotFound, "Not Found"},
		{"server error with error field", 500, `{"error":"disk full"}`, errs.ErrorTypeServerError, "disk full"},
		{"bad request without body", 400, ``, errs.ErrorTypeBadRequest, MsgStatus},
		{"html error page", 502, `<html>bad gateway</html>`, errs.ErrorTypeServerError, MsgStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := client.GetTrainingStatus(context.Background(), "job")
			require.Error(t, err)

			var apiErr *errs.Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantType, apiErr.Type)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
		})
	}
}

func TestMalformedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":`)
	})

	_, err := client.GetTrainingStatus(context.Background(), "job")
	assert.Equal(t, errs.ErrorTypeParsing, errs.TypeOf(err))
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	client := NewClient(config.ClientConfig{BaseURL: baseURL, Timeout: time.Second}, logger.NewNopLogger())
	_, err := client.StartTraining(context.Background(), models.TrainingRequest{Epochs: 1, BatchSize: 1, LearningRate: 0.01})

	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.ErrorTypeNetwork, apiErr.Type)
	assert.Equal(t, MsgStartTraining, apiErr.Message)
	assert.True(t, errs.IsRetryableError(err))
}

func TestContextCancelledIsNotTyped(t *testing.T) {
	block := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-block
	})
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Health(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, errs.IsRetryableError(err))
}

func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	// PNG signature is enough for content sniffing
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n0000"), 0644))
	return path
}

func TestUploadDataset(t *testing.T) {
	dir := t.TempDir()
	a := writeImage(t, dir, "a.png")
	b := writeImage(t, dir, "b.unknownext")

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/dataset/valid", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		files := r.MultipartForm.File["files"]
		require.Len(t, files, 2)
		assert.Equal(t, "a.png", files[0].Filename)
		assert.Equal(t, "image/png", files[0].Header.Get("Content-Type"))
		assert.Equal(t, "image/png", files[1].Header.Get("Content-Type"))

		writeJSON(w, http.StatusOK, models.UploadResult{
			Success: true,
			Message: "Successfully uploaded 2 files",
			Files:   []string{"a.png", "b.unknownext"},
		})
	})

	result, err := client.UploadDataset(context.Background(), models.SplitValid, []string{a, b})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Len(t, result.Files, 2)
}

func TestUploadDatasetRequiresFiles(t *testing.T) {
	client := NewClient(config.ClientConfig{BaseURL: "http://unused", Timeout: time.Second}, logger.NewNopLogger())
	_, err := client.UploadDataset(context.Background(), models.SplitTrain, nil)
	assert.Equal(t, errs.ErrorTypeBadRequest, errs.TypeOf(err))
}

func TestPredict(t *testing.T) {
	img := writeImage(t, t.TempDir(), "street.png")

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "detection", r.FormValue("task"))
		assert.Equal(t, "0.8", r.FormValue("confidence"))

		_, header, err := r.FormFile("image")
		require.NoError(t, err)
		assert.Equal(t, "street.png", header.Filename)

		writeJSON(w, http.StatusOK, models.PredictionResponse{Predictions: []models.PredictionResult{
			{Label: "Person", Confidence: 0.95},
			{Label: "Car", Confidence: 0.87},
		}})
	})

	preds, err := client.Predict(context.Background(), img, models.PredictOptions{Task: models.TaskDetection, Confidence: 0.8})
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.Equal(t, "Person", preds[0].Label)
}

func TestPredictFallbackMessage(t *testing.T) {
	img := writeImage(t, t.TempDir(), "x.png")
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Predict(context.Background(), img, models.PredictOptions{Task: models.TaskClassification, Confidence: 0.5})
	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, MsgPredict, apiErr.Message)
}

func TestPredictRejectsInvalidOptions(t *testing.T) {
	client := NewClient(config.ClientConfig{BaseURL: "http://unused", Timeout: time.Second}, logger.NewNopLogger())
	_, err := client.Predict(context.Background(), "missing.png", models.PredictOptions{Task: "segmentation", Confidence: 0.5})
	assert.Equal(t, errs.ErrorTypeBadRequest, errs.TypeOf(err))
}

func TestRequestsPerMinuteLimit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
	}))
	defer srv.Close()

	client := NewClient(config.ClientConfig{
		BaseURL:           srv.URL + "/api",
		Timeout:           time.Second,
		RequestsPerMinute: 1,
	}, logger.NewNopLogger())

	_, err := client.Health(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = client.Health(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls, "the limited request never reaches the server")
}
