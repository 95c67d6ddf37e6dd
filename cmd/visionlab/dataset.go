package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"visionlab/internal/uploader"
	"visionlab/pkg/logger"
	"visionlab/pkg/models"
	"visionlab/pkg/ratelimit"
	"visionlab/pkg/ui"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Upload and inspect datasets",
}

var datasetUploadCmd = &cobra.Command{
	Use:   "upload <train|valid|test> <image|dir>...",
	Short: "Upload images to a dataset split",
	Long: `Upload images to a dataset split. Directories are searched for image
files. Large uploads are split into batches sent by several workers.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runDatasetUpload,
}

var datasetInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show file counts and sizes per split",
	Args:  cobra.NoArgs,
	RunE:  runDatasetInfo,
}

var (
	uploadBatchSize   int
	uploadWorkers     int
	uploadBatchesPerM int
)

func init() {
	datasetUploadCmd.Flags().IntVar(&uploadBatchSize, "batch-size", uploader.DefaultBatchSize, "Files per upload request")
	datasetUploadCmd.Flags().IntVar(&uploadWorkers, "workers", 2, "Concurrent upload requests")
	datasetUploadCmd.Flags().IntVar(&uploadBatchesPerM, "batches-per-minute", 0, "Pace uploads to this many batches per minute (0 = unpaced)")

	rootCmd.AddCommand(datasetCmd)
	datasetCmd.AddCommand(datasetUploadCmd)
	datasetCmd.AddCommand(datasetInfoCmd)
}

func runDatasetUpload(cmd *cobra.Command, args []string) error {
	split, err := models.ParseSplit(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	paths, err := uploader.ExpandPaths(args[1:])
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no files found under %v", args[1:])
	}

	ctx, stop := signalContext()
	defer stop()

	var pace ratelimit.Limiter
	if uploadBatchesPerM > 0 {
		pace = ratelimit.NewSlidingWindow(uploadBatchesPerM, time.Minute)
	}

	summary, err := uploader.UploadAll(ctx, newClient(cfg), split, paths, uploader.Options{
		Workers:   uploadWorkers,
		BatchSize: uploadBatchSize,
		Limiter:   pace,
		Logger:    logger.GetLogger(),
		OnBatch: func(r uploader.BatchResult) {
			if r.Error == nil && !quiet {
				ui.PrintInfo(fmt.Sprintf("batch %d", r.Job.Index+1), fmt.Sprintf("%d files in %s", len(r.Files), ui.FormatDuration(r.Duration)))
			}
		},
	})
	if len(summary.Files) > 0 {
		ui.PrintSuccess(fmt.Sprintf("Successfully uploaded %d files to %s", len(summary.Files), split))
	}
	if err != nil {
		return err
	}

	if skipped := len(paths) - len(summary.Files); skipped > 0 {
		ui.PrintWarning(fmt.Sprintf("%d files were not images and were skipped", skipped))
	}
	return nil
}

func runDatasetInfo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	datasets, err := newClient(cfg).DatasetInfo(ctx)
	if err != nil {
		return err
	}

	for _, split := range models.Splits {
		value := "no data"
		if info := datasets.Get(split); info != nil {
			value = fmt.Sprintf("%d files, %s", info.FileCount, ui.FormatBytes(info.TotalSize))
		}
		ui.PrintInfo(string(split), value)
	}
	return nil
}
