package main

import (
	"github.com/spf13/cobra"

	"visionlab/internal/server"
	"visionlab/pkg/logger"
	"visionlab/pkg/mockservice"
	"visionlab/pkg/storage"
	"visionlab/pkg/ui"
)

var (
	serveHost       string
	servePort       int
	serveDatasetDir string
	serveMock       bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the training API",
	Long: `Run the HTTP API the training front end talks to.

By default only /api/health and /api/dataset/info are served, and dataset
info reports every split as empty. With --dataset-dir uploads to
/api/dataset/{train,valid,test} are stored on disk and counted. With --mock
the training and prediction endpoints answer with simulated results.`,
	Example: `  # Stub API on the default port
  visionlab serve

  # Store uploads and enable the mock training endpoints
  visionlab serve --dataset-dir ./datasets --mock`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "address to listen on")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (default 3001)")
	serveCmd.Flags().StringVar(&serveDatasetDir, "dataset-dir", "", "directory for uploaded datasets")
	serveCmd.Flags().BoolVar(&serveMock, "mock", false, "enable the mock training and prediction endpoints")
}

func runServe(cmd *cobra.Command, args []string) error {
	flags := map[string]interface{}{
		"host":        serveHost,
		"port":        servePort,
		"dataset-dir": serveDatasetDir,
	}
	if cmd.Flags().Changed("mock") {
		flags["mock"] = serveMock
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	deps := server.Deps{Logger: log}
	if cfg.Server.DatasetDir != "" {
		deps.Datasets, err = storage.NewManager(cfg.Server.DatasetDir)
		if err != nil {
			return err
		}
	}
	if cfg.Server.MockEndpoints {
		deps.Trainer = mockservice.NewTrainer(cfg.Mock.ProgressStep, log)
		deps.Predictor = mockservice.NewPredictor(cfg.Mock.PredictDelay, log)
	}

	srv, err := server.NewServer(&cfg.Server, deps)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	if !quiet {
		ui.PrintInfo("Listening", srv.Addr())
		if cfg.Server.MockEndpoints {
			ui.PrintWarning("Mock training and prediction endpoints are enabled")
		}
	}
	return srv.Run(ctx)
}
