package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"visionlab/pkg/checkpoint"
	"visionlab/pkg/config"
	"visionlab/pkg/models"
	"visionlab/pkg/ui"
)

var (
	cpArchitecture string
	cpEpochs       int
	cpBatchSize    int
	cpLearningRate float64
	cpOptimizer    string
	cpAuto         bool
	cpFromAPI      bool
	cpJobID        string
	cpRaw          bool
)

var (
	errNoCheckpoint      = errors.New("no checkpoint saved")
	errInvalidCheckpoint = errors.New("saved checkpoint is invalid, inspect it with restore --raw")
)

var checkpointCmd = &cobra.Command{
	Use:     "checkpoint",
	Aliases: []string{"cp"},
	Short:   "Save and restore the workflow checkpoint",
	Long: `Manage the single saved checkpoint of the training workflow.

A checkpoint holds the dataset summary, the model configuration and the last
known training status. It lives in one slot: a file in the data directory or
an entry in the system keychain, optionally encrypted.`,
}

var checkpointSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save the current workflow state",
	Long: `Save a checkpoint, replacing the previous one.

The model configuration starts from the saved checkpoint (or the configured
defaults), then --auto and the individual flags are applied on top. With
--from-api the dataset summary and training status are fetched from the API.`,
	Example: `  # Recommended hyperparameters
  visionlab checkpoint save --auto

  # Custom configuration plus live state from the API
  visionlab checkpoint save --architecture fasterrcnn --epochs 50 --from-api`,
	Args: cobra.NoArgs,
	RunE: runCheckpointSave,
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a summary of the saved checkpoint",
	Args:  cobra.NoArgs,
	RunE:  runCheckpointShow,
}

var checkpointRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Print the saved checkpoint as JSON",
	Long: `Print the saved checkpoint as JSON on stdout.

A stored value that is unreadable or fails validation counts as no
checkpoint unless --raw is given.`,
	Args: cobra.NoArgs,
	RunE: runCheckpointRestore,
}

var checkpointClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the saved checkpoint",
	Args:  cobra.NoArgs,
	RunE:  runCheckpointClear,
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(checkpointSaveCmd)
	checkpointCmd.AddCommand(checkpointShowCmd)
	checkpointCmd.AddCommand(checkpointRestoreCmd)
	checkpointCmd.AddCommand(checkpointClearCmd)

	checkpointSaveCmd.Flags().StringVar(&cpArchitecture, "architecture", "", "model architecture (yolov8, fasterrcnn)")
	checkpointSaveCmd.Flags().IntVar(&cpEpochs, "epochs", 0, fmt.Sprintf("training epochs (%d-%d)", models.MinEpochs, models.MaxEpochs))
	checkpointSaveCmd.Flags().IntVar(&cpBatchSize, "batch-size", 0, fmt.Sprintf("batch size (%d-%d)", models.MinBatchSize, models.MaxBatchSize))
	checkpointSaveCmd.Flags().Float64Var(&cpLearningRate, "learning-rate", 0, fmt.Sprintf("learning rate (%g-%g)", models.MinLearningRate, models.MaxLearningRate))
	checkpointSaveCmd.Flags().StringVar(&cpOptimizer, "optimizer", "", "optimizer (adam, sgd)")
	checkpointSaveCmd.Flags().BoolVar(&cpAuto, "auto", false, "use the recommended configuration")
	checkpointSaveCmd.Flags().BoolVar(&cpFromAPI, "from-api", false, "fetch dataset info and training status from the API")
	checkpointSaveCmd.Flags().StringVar(&cpJobID, "job-id", "", "training job to fetch the status of (default: latest)")

	checkpointRestoreCmd.Flags().BoolVar(&cpRaw, "raw", false, "skip validation of the stored value")
}

// modelConfigFromFlags applies --auto and the changed model flags to base
func modelConfigFromFlags(cmd *cobra.Command, base models.ModelConfig) models.ModelConfig {
	cfg := base
	if cpAuto {
		cfg = models.AutoModelConfig()
	}

	flags := cmd.Flags()
	if flags.Changed("architecture") {
		cfg.Architecture = models.Architecture(cpArchitecture)
	}
	if flags.Changed("epochs") {
		cfg.Epochs = cpEpochs
	}
	if flags.Changed("batch-size") {
		cfg.BatchSize = cpBatchSize
	}
	if flags.Changed("learning-rate") {
		cfg.LearningRate = cpLearningRate
	}
	if flags.Changed("optimizer") {
		cfg.Optimizer = models.Optimizer(cpOptimizer)
	}
	return cfg
}

// baseCheckpoint is the state a new checkpoint starts from
func baseCheckpoint(cfg *config.Config, prev *models.Checkpoint) models.Checkpoint {
	if prev != nil {
		return *prev
	}
	return models.Checkpoint{ModelConfig: cfg.Training.Model}
}

func runCheckpointSave(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	cp := baseCheckpoint(cfg, store.Load())
	cp.ModelConfig = modelConfigFromFlags(cmd, cp.ModelConfig)
	if err := cp.ModelConfig.Validate(); err != nil {
		return fmt.Errorf("invalid model configuration: %w", err)
	}
	if err := cp.ModelConfig.CheckBounds(); err != nil {
		return fmt.Errorf("invalid model configuration: %w", err)
	}

	if cpFromAPI {
		ctx, stop := signalContext()
		defer stop()
		client := newClient(cfg)

		datasets, err := client.DatasetInfo(ctx)
		if err != nil {
			return err
		}
		cp.Datasets = datasets

		status, err := client.GetTrainingStatus(ctx, cpJobID)
		if err != nil {
			return err
		}
		cp.TrainingStatus = status
	}

	if !store.Save(cp) {
		return errors.New("checkpoint was not saved, see the log for details")
	}
	if !quiet {
		ui.PrintSuccess("Checkpoint saved")
	}
	return nil
}

func runCheckpointShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	cp, err := loadSaved(store, false)
	if err != nil {
		return err
	}

	saved := time.UnixMilli(cp.Timestamp)
	ui.PrintHighlight("Saved Checkpoint")
	ui.PrintInfo("Saved", fmt.Sprintf("%s (%s ago)", saved.Format(time.RFC3339), ui.FormatDuration(time.Since(saved))))

	mc := cp.ModelConfig
	ui.PrintInfo("Model", fmt.Sprintf("%s, %d epochs, batch %d, lr %g, %s",
		mc.Architecture, mc.Epochs, mc.BatchSize, mc.LearningRate, mc.Optimizer))

	for _, split := range models.Splits {
		value := "no data"
		if info := cp.Datasets.Get(split); info != nil {
			value = fmt.Sprintf("%d files, %s", info.FileCount, ui.FormatBytes(info.TotalSize))
		}
		ui.PrintInfo("Dataset "+string(split), value)
	}

	if ts := cp.TrainingStatus; ts != nil {
		value := fmt.Sprintf("%s %.1f%%", ts.Status, ts.ProgressValue())
		if metrics := ui.FormatMetrics(*ts); metrics != "" {
			value += " • " + metrics
		}
		if ts.Error != "" {
			value += " • " + ts.Error
		}
		ui.PrintInfo("Training", value)
	} else {
		ui.PrintInfo("Training", "not started")
	}
	return nil
}

func runCheckpointRestore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	cp, err := loadSaved(store, cpRaw)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(cp)
}

func runCheckpointClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	removed, err := clearSaved(store)
	if err != nil {
		return err
	}
	if !quiet {
		if removed {
			ui.PrintSuccess("Checkpoint cleared")
		} else {
			ui.PrintWarning(errNoCheckpoint.Error())
		}
	}
	return nil
}

// loadSaved tells an empty slot apart from one holding a checkpoint that
// does not validate
func loadSaved(store *checkpoint.Store, raw bool) (*models.Checkpoint, error) {
	if !store.Exists() {
		return nil, errNoCheckpoint
	}
	if raw {
		return store.LoadUnvalidated(), nil
	}
	if cp := store.Load(); cp != nil {
		return cp, nil
	}
	return nil, errInvalidCheckpoint
}

// clearSaved removes the checkpoint and reports whether there was one
func clearSaved(store *checkpoint.Store) (bool, error) {
	existed := store.Exists()
	if !store.Clear() {
		return false, errors.New("checkpoint could not be removed, see the log for details")
	}
	return existed, nil
}
