package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"visionlab/pkg/models"
	"visionlab/pkg/ui"
)

var (
	predictTask       string
	predictConfidence float64
)

var predictCmd = &cobra.Command{
	Use:   "predict <image>",
	Short: "Run a prediction on an image",
	Long: `Send an image to the API and list the predictions whose confidence is at
least the threshold.`,
	Example: `  visionlab predict street.jpg
  visionlab predict cat.png --task classification --confidence 0.8`,
	Args: cobra.ExactArgs(1),
	RunE: runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)

	predictCmd.Flags().StringVar(&predictTask, "task", string(models.TaskDetection), "task (detection, classification)")
	predictCmd.Flags().Float64Var(&predictConfidence, "confidence", 0.5, "minimum confidence (0-1)")
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	opts := models.PredictOptions{
		Task:       models.Task(predictTask),
		Confidence: predictConfidence,
	}

	ctx, stop := signalContext()
	defer stop()

	preds, err := newClient(cfg).Predict(ctx, args[0], opts)
	if err != nil {
		return err
	}

	if len(preds) == 0 {
		ui.PrintWarning(fmt.Sprintf("No predictions at or above %.2f", opts.Confidence))
		return nil
	}

	ui.PrintHighlight(fmt.Sprintf("%d predictions", len(preds)))
	for _, p := range preds {
		line := fmt.Sprintf("%5.1f%%", p.Confidence*100)
		if p.BBox != nil {
			b := p.BBox
			line += fmt.Sprintf("  [%.0f, %.0f, %.0f, %.0f]", b[0], b[1], b[2], b[3])
		}
		ui.PrintInfo(p.Label, line)
	}
	return nil
}
