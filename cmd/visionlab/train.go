package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"visionlab/pkg/checkpoint"
	"visionlab/pkg/config"
	"visionlab/pkg/logger"
	"visionlab/pkg/models"
	"visionlab/pkg/training"
	"visionlab/pkg/ui"
	"visionlab/pkg/ui/tui"
)

var (
	trainWatch          bool
	trainFromCheckpoint bool
	useTUI              bool
	recordCheckpoint    bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Start and monitor training jobs",
}

var trainStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a training job",
	Long: `Start a training job on the API.

The model configuration comes from the config file, or from the saved
checkpoint with --from-checkpoint; --auto and the individual flags are
applied on top.`,
	Example: `  # Start with the recommended configuration and follow progress
  visionlab train start --auto --watch

  # Start from the saved checkpoint in the full-screen monitor
  visionlab train start --from-checkpoint --watch --tui`,
	Args: cobra.NoArgs,
	RunE: runTrainStart,
}

var trainWatchCmd = &cobra.Command{
	Use:   "watch [job-id...]",
	Short: "Poll training jobs until they finish",
	Long: `Poll the status of one or more training jobs until each one completes,
fails or polling gives up. Without a job id the most recent job is watched.`,
	Example: `  visionlab train watch 6f1c2a4e-8d1b-4c55-9a43-3f8f7b0d2e11
  visionlab train watch --tui --checkpoint`,
	RunE: runTrainWatch,
}

var trainStatusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Fetch the current status of a training job once",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTrainStatus,
}

func init() {
	rootCmd.AddCommand(trainCmd)
	trainCmd.AddCommand(trainStartCmd)
	trainCmd.AddCommand(trainWatchCmd)
	trainCmd.AddCommand(trainStatusCmd)

	// model flags share their variables with checkpoint save
	trainStartCmd.Flags().StringVar(&cpArchitecture, "architecture", "", "model architecture (yolov8, fasterrcnn)")
	trainStartCmd.Flags().IntVar(&cpEpochs, "epochs", 0, "training epochs")
	trainStartCmd.Flags().IntVar(&cpBatchSize, "batch-size", 0, "batch size")
	trainStartCmd.Flags().Float64Var(&cpLearningRate, "learning-rate", 0, "learning rate")
	trainStartCmd.Flags().StringVar(&cpOptimizer, "optimizer", "", "optimizer (adam, sgd)")
	trainStartCmd.Flags().BoolVar(&cpAuto, "auto", false, "use the recommended configuration")
	trainStartCmd.Flags().BoolVar(&trainFromCheckpoint, "from-checkpoint", false, "start from the saved checkpoint's model configuration")
	trainStartCmd.Flags().BoolVarP(&trainWatch, "watch", "w", false, "poll the job until it finishes")

	for _, cmd := range []*cobra.Command{trainStartCmd, trainWatchCmd} {
		cmd.Flags().BoolVar(&useTUI, "tui", false, "use the full-screen progress monitor")
		cmd.Flags().BoolVar(&recordCheckpoint, "checkpoint", false, "record every polled status in the checkpoint")
	}
}

func runTrainStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	base := cfg.Training.Model
	if trainFromCheckpoint {
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		cp := store.Load()
		store.Close()
		if cp == nil {
			return errNoCheckpoint
		}
		base = cp.ModelConfig
	}
	model := modelConfigFromFlags(cmd, base)
	if err := model.Validate(); err != nil {
		return fmt.Errorf("invalid model configuration: %w", err)
	}
	if err := model.CheckBounds(); err != nil {
		return fmt.Errorf("invalid model configuration: %w", err)
	}

	ctx, stop := signalContext()
	defer stop()

	job, err := newClient(cfg).StartTraining(ctx, models.TrainingRequestFrom(model))
	if err != nil {
		return err
	}
	logger.WithField("job_id", job.JobID).Info("Training job started")
	if !quiet {
		ui.PrintSuccess("Training started")
		ui.PrintInfo("Job", job.JobID)
	}

	if !trainWatch {
		return nil
	}
	return watchJobs(ctx, cfg, []string{job.JobID})
}

func runTrainWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	jobIDs := args
	if len(jobIDs) == 0 {
		jobIDs = []string{""}
	}

	ctx, stop := signalContext()
	defer stop()
	return watchJobs(ctx, cfg, jobIDs)
}

func runTrainStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	var jobID string
	if len(args) > 0 {
		jobID = args[0]
	}

	ctx, stop := signalContext()
	defer stop()

	status, err := newClient(cfg).GetTrainingStatus(ctx, jobID)
	if err != nil {
		return err
	}

	ui.PrintInfo("Status", string(status.Status))
	ui.PrintInfo("Progress", fmt.Sprintf("%.1f%%", status.ProgressValue()))
	if metrics := ui.FormatMetrics(*status); metrics != "" {
		ui.PrintInfo("Metrics", metrics)
	}
	if status.Error != "" {
		ui.PrintError("Error", status.Error)
	}
	return nil
}

type watchResult struct {
	jobID string
	last  *models.TrainingStatus
	err   error
}

// watchJobs polls every job until it finishes and reports the outcome
func watchJobs(ctx context.Context, cfg *config.Config, jobIDs []string) error {
	fullScreen := useTUI && isInteractive()
	if fullScreen && cfg.Logging.File == "" {
		// console logs would draw over the monitor
		logger.SetLogger(logger.NewNopLogger())
	}
	log := logger.GetLogger()
	client := newClient(cfg)

	var store *checkpoint.Store
	if recordCheckpoint {
		var err error
		if store, err = openStore(cfg); err != nil {
			return err
		}
		defer store.Close()
	}

	var monitor ui.Monitor
	var view *tui.TUI
	if fullScreen {
		view = tui.NewTUI()
		monitor = view
	} else if !quiet {
		monitor = ui.NewTrainingDisplay(os.Stdout, isInteractive())
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	poller := training.NewPoller(client, training.Options{
		Interval:      cfg.Training.PollInterval,
		RetryAttempts: cfg.Training.RetryAttempts,
		MaxPolls:      cfg.Training.MaxPolls,
		Logger:        log,
		OnUpdate: func(jobID string, status models.TrainingStatus) {
			if monitor != nil {
				monitor.UpdateJob(displayID(jobID), status)
			}
			if store != nil {
				recordStatus(store, cfg, status)
			}
		},
	})
	manager := training.NewManager(poller)
	defer manager.StopAll()

	tuiDone := make(chan error, 1)
	if view != nil {
		go func() {
			tuiDone <- view.Start()
			// quitting the monitor stops polling
			cancel()
		}()
		if datasets, err := client.DatasetInfo(ctx); err == nil {
			view.SetDatasets(datasets)
		}
	}

	var handles []*training.Handle
	for _, id := range jobIDs {
		h, started := manager.Watch(ctx, id)
		if !started {
			log.WarnWithFields("Job is already being watched", map[string]interface{}{
				"job_id": displayID(id),
				"active": manager.Active(),
			})
			continue
		}
		if monitor != nil {
			monitor.WatchJob(displayID(id))
		}
		handles = append(handles, h)
	}

	results := make([]watchResult, len(handles))
	var wg sync.WaitGroup
	for i, h := range handles {
		wg.Add(1)
		go func(i int, h *training.Handle) {
			defer wg.Done()
			last, err := h.Wait()
			results[i] = watchResult{jobID: h.JobID(), last: last, err: err}
			if monitor != nil {
				monitor.FinishJob(displayID(h.JobID()), err)
			}
		}(i, h)
	}
	wg.Wait()

	if view != nil {
		view.Stop()
		if err := <-tuiDone; err != nil {
			log.WithError(err).Error("Progress monitor failed")
		}
	}

	return reportResults(results)
}

// recordStatus stores status in the checkpoint, creating one from the
// configured defaults when none exists
func recordStatus(store *checkpoint.Store, cfg *config.Config, status models.TrainingStatus) {
	cp := baseCheckpoint(cfg, store.Load())
	cp.TrainingStatus = &status
	store.Save(cp)
}

func reportResults(results []watchResult) error {
	var notifier *ui.Notifier
	if notifications && !quiet {
		notifier = ui.NewNotifier(os.Stdout)
	}

	failed := 0
	for _, r := range results {
		last := models.TrainingStatus{Status: models.StatusIdle}
		if r.last != nil {
			last = *r.last
		}
		if r.err != nil || last.Status != models.StatusCompleted {
			failed++
		}
		if notifier != nil {
			notifier.NotifyJobFinished(displayID(r.jobID), last, r.err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d training jobs did not complete", failed, len(results))
	}
	return nil
}

func displayID(jobID string) string {
	if jobID == "" {
		return "latest"
	}
	return jobID
}
