package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"visionlab/pkg/checkpoint"
	"visionlab/pkg/config"
	"visionlab/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage VisionLab configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (VISIONLAB_*, also read from .env files)
  - Configuration file
  - Default values (lowest priority)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as 'visionlab.yaml'
unless a different path is specified with the --config flag.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the configuration resulting from all sources. The checkpoint
passphrase is masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# VisionLab Configuration File
#
# Every option can also be set through VISIONLAB_* environment variables,
# for example VISIONLAB_PORT or VISIONLAB_API_URL.

# Training API server (visionlab serve)
server:
  host: "0.0.0.0"
  port: 3001
  # Directory for uploaded datasets; leave empty to disable uploads
  dataset_dir: ""
  # Maximum request body for uploads, in bytes
  max_upload_size: 33554432
  # Serve simulated /train and /predict endpoints
  mock_endpoints: false
  shutdown_timeout: 10s

# API client used by the other commands
client:
  base_url: "http://localhost:3001/api"
  timeout: 30s
  # Cap on outgoing requests; 0 disables it
  requests_per_minute: 120

# Where the workflow checkpoint is kept
checkpoint:
  # file, keyring, sqlite or memory
  backend: "file"
  # File path for the file and sqlite backends; empty uses the data directory
  path: ""
  # Encrypts the checkpoint when set; prefer VISIONLAB_CHECKPOINT_PASSPHRASE
  passphrase: ""

training:
  # Defaults for new training runs
  model:
    architecture: "yolov8"
    epochs: 100
    batch_size: 16
    learning_rate: 0.001
    optimizer: "adam"
  # Pause between two status requests
  poll_interval: 5s
  # Requests per poll before giving up
  retry_attempts: 3
  # Stop after this many polls; 0 polls until the job finishes
  max_polls: 0

# Behavior of the mock endpoints
mock:
  predict_delay: 1500ms
  # Progress added on every status request
  progress_step: 10

logging:
  # debug, info, warn, error
  level: "info"
  # Also write JSON logs to this file
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = "visionlab.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Fprintln(ui.Output, "\nNext steps:")
	fmt.Fprintln(ui.Output, "1. Edit the configuration file")
	fmt.Fprintln(ui.Output, "2. Run 'visionlab config validate' to check it")
	fmt.Fprintln(ui.Output, "3. Start the API with 'visionlab serve'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	display := *cfg
	if display.Checkpoint.Passphrase != "" {
		display.Checkpoint.Passphrase = "***"
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(ui.Output)
	fmt.Fprint(ui.Output, string(data))

	fmt.Fprintln(ui.Output, "\nConfiguration sources (in order of priority):")
	fmt.Fprintln(ui.Output, "1. Command line flags")
	fmt.Fprintln(ui.Output, "2. Environment variables (VISIONLAB_*)")
	if configFile != "" {
		fmt.Fprintf(ui.Output, "3. Configuration file: %s\n", configFile)
	} else {
		fmt.Fprintln(ui.Output, "3. Configuration file: (searched in standard locations)")
	}
	fmt.Fprintln(ui.Output, "4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	var warnings []string
	if cfg.Server.MockEndpoints {
		warnings = append(warnings, "mock endpoints are enabled; training and predictions are simulated")
	}
	if cfg.Checkpoint.Backend == config.BackendMemory {
		warnings = append(warnings, "memory checkpoint backend keeps nothing between runs")
	}
	if cfg.Checkpoint.Passphrase == "" {
		warnings = append(warnings, "checkpoint is stored unencrypted")
	}
	if err := cfg.Training.Model.CheckBounds(); err != nil {
		warnings = append(warnings, "training model: "+err.Error())
	}

	var problems []string
	if cfg.Server.DatasetDir != "" {
		if err := os.MkdirAll(cfg.Server.DatasetDir, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create dataset directory: %v", err))
		}
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}
	if cfg.Checkpoint.Backend == config.BackendFile && cfg.Checkpoint.Path == "" {
		if _, err := checkpoint.DefaultPath(); err != nil {
			problems = append(problems, fmt.Sprintf("cannot locate data directory: %v", err))
		}
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Fprintf(ui.Output, "  - %s\n", p)
		}
		return fmt.Errorf("%d configuration errors", len(problems))
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Fprintf(ui.Output, "  - %s\n", w)
		}
		fmt.Fprintln(ui.Output)
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Fprintln(ui.Output, "\nConfiguration summary:")
	fmt.Fprintf(ui.Output, "  API: %s\n", cfg.Client.BaseURL)
	fmt.Fprintf(ui.Output, "  Checkpoint backend: %s\n", cfg.Checkpoint.Backend)
	fmt.Fprintf(ui.Output, "  Poll interval: %s\n", cfg.Training.PollInterval)
	fmt.Fprintf(ui.Output, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}
