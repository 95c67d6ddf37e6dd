package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"visionlab/pkg/mockservice"
	"visionlab/pkg/models"
)

const defaultConfidence = 0.5

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) handleDatasetInfo(c echo.Context) error {
	if s.deps.Datasets == nil {
		return c.JSON(http.StatusOK, models.ZeroDatasets())
	}

	info, err := s.deps.Datasets.Info()
	if err != nil {
		s.logger.WithError(err).Error("Failed to read dataset info")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, info)
}

// handleUpload keeps every image part of the "files" field and silently
// skips anything else. A failed save removes the files already stored by
// the same request; a file that replaced an existing one is not restored.
func (s *Server) handleUpload(c echo.Context) error {
	split, err := models.ParseSplit(c.Param("split"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid dataset type")
	}

	s.limitBody(c)
	form, err := c.MultipartForm()
	if bodyTooLarge(err) {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Upload exceeds size limit")
	}
	if err != nil || len(form.File["files"]) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "No files provided")
	}

	saved := make([]string, 0, len(form.File["files"]))
	for _, fh := range form.File["files"] {
		if fh.Filename == "" || !isImage(fh) {
			continue
		}
		name, err := s.saveUpload(split, fh)
		if err != nil {
			s.logger.WithError(err).WarnWithFields("Failed to store uploaded file", map[string]interface{}{
				"split": string(split),
				"file":  fh.Filename,
			})
			s.discardUploads(split, saved)
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to store uploaded files")
		}
		saved = append(saved, name)
	}

	s.logger.InfoWithFields("Dataset upload stored", map[string]interface{}{
		"split": string(split),
		"files": len(saved),
	})
	return c.JSON(http.StatusOK, models.UploadResult{
		Success: true,
		Message: fmt.Sprintf("Successfully uploaded %d files", len(saved)),
		Files:   saved,
	})
}

func (s *Server) saveUpload(split models.DatasetSplit, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	return s.deps.Datasets.Save(split, fh.Filename, f)
}

func (s *Server) discardUploads(split models.DatasetSplit, names []string) {
	for _, name := range names {
		if err := s.deps.Datasets.Remove(split, name); err != nil {
			s.logger.WithError(err).WarnWithFields("Failed to remove partial upload", map[string]interface{}{
				"split": string(split),
				"file":  name,
			})
		}
	}
}

func bodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func (s *Server) handleTrainStart(c echo.Context) error {
	var req models.TrainingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validateTrainingRequest(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, s.deps.Trainer.Start(req))
}

func validateTrainingRequest(req models.TrainingRequest) error {
	switch req.Architecture {
	case "", models.ArchitectureYOLOv8, models.ArchitectureFasterRCNN:
	default:
		return fmt.Errorf("unknown model type %q", req.Architecture)
	}
	if req.Epochs <= 0 || req.BatchSize <= 0 || !(req.LearningRate > 0) {
		return errors.New("epochs, batchSize and learningRate must be positive")
	}
	return nil
}

func (s *Server) handleTrainStatus(c echo.Context) error {
	status, err := s.deps.Trainer.Status(c.QueryParam("jobId"))
	if err != nil {
		if errors.Is(err, mockservice.ErrJobNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "training job not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) handlePredict(c echo.Context) error {
	s.limitBody(c)

	fh, err := c.FormFile("image")
	if bodyTooLarge(err) {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Upload exceeds size limit")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "No image provided")
	}

	opts := models.PredictOptions{
		Task:       models.Task(c.FormValue("task")),
		Confidence: defaultConfidence,
	}
	if opts.Task == "" {
		opts.Task = models.TaskDetection
	}
	if raw := c.FormValue("confidence"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "confidence must be a number")
		}
		opts.Confidence = v
	}
	if err := opts.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "No image provided")
	}
	defer f.Close()
	image, err := io.ReadAll(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read image")
	}

	preds, err := s.deps.Predictor.Predict(c.Request().Context(), image, opts)
	if err != nil {
		s.logger.WithError(err).Error("Prediction failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to process image")
	}
	if preds == nil {
		preds = []models.PredictionResult{}
	}
	return c.JSON(http.StatusOK, models.PredictionResponse{Predictions: preds})
}

func (s *Server) limitBody(c echo.Context) {
	if s.config.MaxUploadSize > 0 {
		req := c.Request()
		req.Body = http.MaxBytesReader(c.Response(), req.Body, s.config.MaxUploadSize)
	}
}

func isImage(fh *multipart.FileHeader) bool {
	return strings.HasPrefix(fh.Header.Get("Content-Type"), "image/")
}
