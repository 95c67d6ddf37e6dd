// Package server provides the HTTP API of the training service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"visionlab/pkg/config"
	"visionlab/pkg/logger"
	"visionlab/pkg/models"
	"visionlab/pkg/storage"
)

// Trainer serves the training endpoints
type Trainer interface {
	Start(req models.TrainingRequest) models.TrainingJob
	Status(jobID string) (models.TrainingStatus, error)
}

// Predictor serves the prediction endpoint
type Predictor interface {
	Predict(ctx context.Context, image []byte, opts models.PredictOptions) ([]models.PredictionResult, error)
}

// Deps are the collaborators a Server routes to. Datasets may be nil, in
// which case dataset info is all zeros and uploads are not routed. Trainer
// and Predictor are required when mock endpoints are enabled.
type Deps struct {
	Datasets  *storage.Manager
	Trainer   Trainer
	Predictor Predictor
	Logger    logger.Logger
}

// Server provides HTTP endpoints under /api
type Server struct {
	echo   *echo.Echo
	config *config.ServerConfig
	deps   Deps
	logger logger.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.ServerConfig, deps Deps) (*Server, error) {
	if cfg == nil {
		defaults := config.DefaultConfig().Server
		cfg = &defaults
	}
	if cfg.MockEndpoints && (deps.Trainer == nil || deps.Predictor == nil) {
		return nil, errors.New("mock endpoints require a trainer and a predictor")
	}
	log := deps.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithField("component", "server")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	e.Use(requestLogger(log))

	s := &Server{
		echo:   e,
		config: cfg,
		deps:   deps,
		logger: log,
	}
	s.registerRoutes()

	return s, nil
}

func requestLogger(log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let the error handler write the status before we log it
				c.Error(err)
			}

			reqLog := log.WithField("request_id", c.Response().Header().Get(echo.HeaderXRequestID))
			logger.LogRequest(reqLog, c.Request().Method, c.Request().URL.Path, c.Response().Status, time.Since(start))
			return nil
		}
	}
}

func (s *Server) registerRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", s.handleHealth)
	api.GET("/dataset/info", s.handleDatasetInfo)
	if s.deps.Datasets != nil {
		api.POST("/dataset/:split", s.handleUpload)
	}

	if s.config.MockEndpoints {
		api.POST("/train/start", s.handleTrainStart)
		api.GET("/train/status", s.handleTrainStatus)
		api.POST("/predict", s.handlePredict)
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Start listens on the configured address until Shutdown
func (s *Server) Start() error {
	addr := s.Addr()
	logger.LogComponentStart(s.logger, "http_server", map[string]interface{}{
		"addr":           addr,
		"mock_endpoints": s.config.MockEndpoints,
		"dataset_upload": s.deps.Datasets != nil,
	})

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.LogComponentStop(s.logger, "http_server", "shutdown")
	return s.echo.Shutdown(ctx)
}

// Run serves until ctx is done, then shuts down within the configured timeout
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return <-errCh
}
