package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visionlab/pkg/config"
	"visionlab/pkg/logger"
	"visionlab/pkg/mockservice"
	"visionlab/pkg/models"
	"visionlab/pkg/storage"
)

func serverConfig(mock bool) *config.ServerConfig {
	cfg := config.DefaultConfig().Server
	cfg.MockEndpoints = mock
	return &cfg
}

func setupTestServer(t *testing.T, mock bool, datasets *storage.Manager) *Server {
	t.Helper()
	deps := Deps{Datasets: datasets, Logger: logger.NewNopLogger()}
	if mock {
		deps.Trainer = mockservice.NewTrainer(50, logger.NewNopLogger())
		deps.Predictor = mockservice.NewPredictor(0, logger.NewNopLogger())
	}
	s, err := NewServer(serverConfig(mock), deps)
	require.NoError(t, err)
	return s
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

type part struct {
	field, filename, contentType, body string
}

func multipartBody(t *testing.T, parts []part, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+p.field+`"; filename="`+p.filename+`"`)
		h.Set("Content-Type", p.contentType)
		pw, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write([]byte(p.body))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestNewServer(t *testing.T) {
	t.Run("uses defaults when config is nil", func(t *testing.T) {
		s, err := NewServer(nil, Deps{Logger: logger.NewNopLogger()})
		require.NoError(t, err)
		assert.Equal(t, 3001, s.config.Port)
		assert.False(t, s.config.MockEndpoints)
	})

	t.Run("mock endpoints need their services", func(t *testing.T) {
		_, err := NewServer(serverConfig(true), Deps{Logger: logger.NewNopLogger()})
		assert.Error(t, err)
	})
}

func TestHandleHealth(t *testing.T) {
	s := setupTestServer(t, false, nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestHandleDatasetInfoWithoutStorage(t *testing.T) {
	s := setupTestServer(t, false, nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/dataset/info", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"train": {"fileCount": 0, "totalSize": 0},
		"valid": {"fileCount": 0, "totalSize": 0},
		"test":  {"fileCount": 0, "totalSize": 0}
	}`, rec.Body.String())
}

func TestUnimplementedEndpointsAreNotRouted(t *testing.T) {
	s := setupTestServer(t, false, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/train/start"},
		{http.MethodGet, "/api/train/status"},
		{http.MethodPost, "/api/predict"},
		{http.MethodPost, "/api/dataset/train"},
	} {
		rec := serve(s, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestCORS(t *testing.T) {
	s := setupTestServer(t, false, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/dataset/info", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:5173")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodGet)

	rec := serve(s, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestUploadAndInfo(t *testing.T) {
	datasets, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)
	s := setupTestServer(t, false, datasets)

	body, contentType := multipartBody(t, []part{
		{"files", "a.jpg", "image/jpeg", "aaaa"},
		{"files", "../b.png", "image/png", "bb"},
		{"files", "notes.txt", "text/plain", "skip me"},
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/dataset/train", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result models.UploadResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, "Successfully uploaded 2 files", result.Message)
	assert.Equal(t, []string{"a.jpg", "b.png"}, result.Files)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/dataset/info", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"train":{"fileCount":2,"totalSize":6},"valid":null,"test":null}`, rec.Body.String())
}

func TestUploadErrors(t *testing.T) {
	datasets, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)
	s := setupTestServer(t, false, datasets)

	body, contentType := multipartBody(t, []part{{"files", "a.jpg", "image/jpeg", "a"}}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/dataset/holdout", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := serve(s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid dataset type")

	body, contentType = multipartBody(t, []part{{"other", "a.jpg", "image/jpeg", "a"}}, nil)
	req = httptest.NewRequest(http.MethodPost, "/api/dataset/test", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec = serve(s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No files provided")
}

func TestUploadTooLarge(t *testing.T) {
	datasets, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)
	cfg := serverConfig(true)
	cfg.MaxUploadSize = 64
	s, err := NewServer(cfg, Deps{
		Datasets:  datasets,
		Predictor: mockservice.NewPredictor(0, logger.NewNopLogger()),
		Trainer:   mockservice.NewTrainer(50, logger.NewNopLogger()),
		Logger:    logger.NewNopLogger(),
	})
	require.NoError(t, err)

	big := strings.Repeat("x", 1024)
	for _, target := range []struct{ path, field string }{
		{"/api/dataset/train", "files"},
		{"/api/predict", "image"},
	} {
		body, contentType := multipartBody(t, []part{{target.field, "a.jpg", "image/jpeg", big}}, nil)
		req := httptest.NewRequest(http.MethodPost, target.path, body)
		req.Header.Set(echo.HeaderContentType, contentType)
		rec := serve(s, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, target.path)
		assert.Contains(t, rec.Body.String(), "Upload exceeds size limit")
	}

	info, err := datasets.Info()
	require.NoError(t, err)
	assert.Nil(t, info.Train)
}

func TestUploadFailureRemovesEarlierFiles(t *testing.T) {
	datasets, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)
	s := setupTestServer(t, false, datasets)

	body, contentType := multipartBody(t, []part{
		{"files", "a.jpg", "image/jpeg", "aaaa"},
		{"files", "..", "image/jpeg", "bad name"},
	}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/dataset/valid", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := serve(s, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to store uploaded files")

	info, err := datasets.Info()
	require.NoError(t, err)
	assert.Nil(t, info.Valid)
}

func TestMockTraining(t *testing.T) {
	s := setupTestServer(t, true, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/train/start",
		strings.NewReader(`{"modelType":"yolov8","epochs":10,"batchSize":8,"learningRate":0.01}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var job models.TrainingJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	require.NotEmpty(t, job.JobID)

	var status models.TrainingStatus
	for _, want := range []models.Status{models.StatusTraining, models.StatusCompleted} {
		rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/train/status?jobId="+job.JobID, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, want, status.Status)
	}
	assert.Equal(t, 100.0, status.ProgressValue())

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/train/status?jobId=missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMockTrainingRejectsInvalidRequest(t *testing.T) {
	s := setupTestServer(t, true, nil)

	for _, body := range []string{
		`{"epochs":0,"batchSize":8,"learningRate":0.01}`,
		`{"modelType":"resnet","epochs":1,"batchSize":8,"learningRate":0.01}`,
		`not json`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/train/start", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := serve(s, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestMockPredict(t *testing.T) {
	s := setupTestServer(t, true, nil)

	body, contentType := multipartBody(t,
		[]part{{"image", "street.jpg", "image/jpeg", "jpegdata"}},
		map[string]string{"task": "detection", "confidence": "0.8"},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/predict", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.PredictionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Predictions, 2)
	assert.Equal(t, "Person", resp.Predictions[0].Label)
	assert.Equal(t, "Car", resp.Predictions[1].Label)
}

func TestMockPredictValidation(t *testing.T) {
	s := setupTestServer(t, true, nil)

	body, contentType := multipartBody(t, nil, map[string]string{"task": "detection"})
	req := httptest.NewRequest(http.MethodPost, "/api/predict", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	assert.Equal(t, http.StatusBadRequest, serve(s, req).Code)

	body, contentType = multipartBody(t,
		[]part{{"image", "x.jpg", "image/jpeg", "x"}},
		map[string]string{"confidence": "1.5"},
	)
	req = httptest.NewRequest(http.MethodPost, "/api/predict", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	assert.Equal(t, http.StatusBadRequest, serve(s, req).Code)
}

func TestRequestLogging(t *testing.T) {
	tl := logger.NewTestLogger()
	s, err := NewServer(serverConfig(false), Deps{Logger: tl})
	require.NoError(t, err)

	serve(s, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	serve(s, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	infos := tl.GetMessagesByLevel("INFO")
	require.NotEmpty(t, infos)
	assert.Equal(t, "/api/health", infos[0].Fields["path"])
	assert.NotEmpty(t, infos[0].Fields["request_id"])

	warns := tl.GetMessagesByLevel("WARN")
	require.Len(t, warns, 1)
	assert.Equal(t, http.StatusNotFound, warns[0].Fields["status_code"])
}

func TestRunShutsDownOnCancel(t *testing.T) {
	cfg := serverConfig(false)
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.ShutdownTimeout = time.Second

	s, err := NewServer(cfg, Deps{Logger: logger.NewNopLogger()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
