package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"visionlab/pkg/config"
	errs "visionlab/pkg/errors"
	"visionlab/pkg/logger"
	"visionlab/pkg/models"
	"visionlab/pkg/ratelimit"
)

// Fallback messages used when the server gives no reason of its own
const (
	MsgHealth        = "Failed to check server health"
	MsgDatasetInfo   = "Failed to fetch dataset info"
	MsgUpload        = "Failed to upload dataset"
	MsgStartTraining = "Failed to start training"
	MsgStatus        = "Failed to fetch training status"
	MsgPredict       = "Failed to process image"
)

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status string `json:"status"`
}

// Client talks to the training service API
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// NewClient creates a client for the API rooted at cfg.BaseURL
// (for example http://localhost:3001/api)
func NewClient(cfg config.ClientConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		limiter:    ratelimit.PerMinute(cfg.RequestsPerMinute),
		logger:     log.WithField("component", "api_client"),
	}
}

// Health checks that the service is up
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &out, MsgHealth); err != nil {
		return nil, err
	}
	return &out, nil
}

// DatasetInfo returns per-split dataset stats; a nil split has no data
func (c *Client) DatasetInfo(ctx context.Context) (models.Datasets, error) {
	var out models.Datasets
	err := c.doJSON(ctx, http.MethodGet, "/dataset/info", nil, &out, MsgDatasetInfo)
	return out, err
}

// UploadDataset sends image files into a dataset split
func (c *Client) UploadDataset(ctx context.Context, split models.DatasetSplit, paths []string) (*models.UploadResult, error) {
	if len(paths) == 0 {
		return nil, errs.New(errs.ErrorTypeBadRequest, 0, "no files to upload")
	}

	body, contentType, err := buildMultipart(func(w *multipart.Writer) error {
		for _, p := range paths {
			if err := addFile(w, "files", p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out models.UploadResult
	if err := c.do(ctx, http.MethodPost, "/dataset/"+url.PathEscape(string(split)), body, contentType, &out, MsgUpload); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartTraining submits a training job
func (c *Client) StartTraining(ctx context.Context, req models.TrainingRequest) (*models.TrainingJob, error) {
	var out models.TrainingJob
	if err := c.doJSON(ctx, http.MethodPost, "/train/start", req, &out, MsgStartTraining); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTrainingStatus fetches the status of jobID. An empty jobID asks for
// the most recent job.
func (c *Client) GetTrainingStatus(ctx context.Context, jobID string) (*models.TrainingStatus, error) {
	path := "/train/status"
	if jobID != "" {
		path += "?jobId=" + url.QueryEscape(jobID)
	}

	var out models.TrainingStatus
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out, MsgStatus); err != nil {
		return nil, err
	}
	return &out, nil
}

// Predict uploads an image and returns the predictions kept by opts.Confidence
func (c *Client) Predict(ctx context.Context, imagePath string, opts models.PredictOptions) ([]models.PredictionResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeBadRequest, err, err.Error())
	}

	body, contentType, err := buildMultipart(func(w *multipart.Writer) error {
		if err := addFile(w, "image", imagePath); err != nil {
			return err
		}
		if err := w.WriteField("task", string(opts.Task)); err != nil {
			return err
		}
		return w.WriteField("confidence", strconv.FormatFloat(opts.Confidence, 'f', -1, 64))
	})
	if err != nil {
		return nil, err
	}

	var out models.PredictionResponse
	if err := c.do(ctx, http.MethodPost, "/predict", body, contentType, &out, MsgPredict); err != nil {
		return nil, err
	}
	return out.Predictions, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}, fallback string) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errs.Wrap(errs.ErrorTypeParsing, err, "failed to encode request")
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, body, contentType, out, fallback)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}, fallback string) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeUnknown, err, fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.WithError(err).WarnWithFields("HTTP request failed", map[string]interface{}{
			"method": method,
			"path":   path,
		})
		return errs.Wrap(errs.ErrorTypeNetwork, err, fallback)
	}
	defer resp.Body.Close()

	logger.LogRequest(c.logger, method, path, resp.StatusCode, time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeNetwork, err, fallback)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errs.FromStatus(resp.StatusCode, messageFrom(data, fallback))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errs.Wrap(errs.ErrorTypeParsing, err, fallback)
	}
	return nil
}

// messageFrom extracts a user-facing reason from an error body
func messageFrom(body []byte, fallback string) string {
	var payload struct {
		Message interface{} `json:"message"`
		Error   interface{} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fallback
	}
	for _, v := range []interface{}{payload.Message, payload.Error} {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func buildMultipart(fill func(w *multipart.Writer) error) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := fill(w); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", errs.Wrap(errs.ErrorTypeUnknown, err, "failed to build upload")
	}
	return &buf, w.FormDataContentType(), nil
}

// addFile attaches path as a form file with a content type guessed from
// its extension or, failing that, its leading bytes
func addFile(w *multipart.Writer, field, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeBadRequest, err, fmt.Sprintf("cannot read %s", path))
	}

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filepath.Base(path)))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeUnknown, err, "failed to build upload")
	}
	_, err = part.Write(data)
	return err
}
