package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"visionlab/pkg/api"
	"visionlab/pkg/checkpoint"
	"visionlab/pkg/config"
	"visionlab/pkg/logger"
	"visionlab/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile        string
	logLevel          string
	apiURL            string
	checkpointBackend string
	askPassphrase     bool
	notifications     bool
	quiet             bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "visionlab",
	Short: "Training companion for computer-vision models",
	Long: `VisionLab drives a computer-vision training service from the terminal.

Features:
  - Stub training API with dataset uploads and optional mock endpoints
  - Checkpoint of the current workflow state, stored on disk or in the system keychain
  - Optional checkpoint encryption with PBKDF2 key derivation
  - Training status polling with retries and a live progress view
  - Desktop notifications when a watched job finishes`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			return
		}
		// Only the long-running commands get the logo
		if cmd.Name() == "serve" || cmd.Name() == "watch" {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./visionlab.yaml or $HOME/.config/visionlab/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "base URL of the training API")
	rootCmd.PersistentFlags().StringVar(&checkpointBackend, "checkpoint-backend", "", "checkpoint storage (file, keyring, sqlite, memory)")
	rootCmd.PersistentFlags().BoolVar(&askPassphrase, "ask-passphrase", false, "prompt for the checkpoint encryption passphrase")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", true, "enable desktop notifications")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`VisionLab {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig merges the global flags with extra command flags, loads the
// configuration and initializes the global logger from it
func loadConfig(extra map[string]interface{}) (*config.Config, error) {
	flags := map[string]interface{}{
		"log-level":          logLevel,
		"api-url":            apiURL,
		"checkpoint-backend": checkpointBackend,
	}
	for k, v := range extra {
		flags[k] = v
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if quiet {
		cfg.Logging.Level = "error"
	}

	logger.Initialize(&cfg.Logging)
	return cfg, nil
}

func newClient(cfg *config.Config) *api.Client {
	return api.NewClient(cfg.Client, logger.GetLogger())
}

// openStore opens the configured checkpoint slot, asking for the
// passphrase first when requested
func openStore(cfg *config.Config) (*checkpoint.Store, error) {
	if askPassphrase && cfg.Checkpoint.Passphrase == "" {
		passphrase, err := readSecret("Checkpoint passphrase: ")
		if err != nil {
			return nil, err
		}
		cfg.Checkpoint.Passphrase = passphrase
	}
	return checkpoint.Open(cfg.Checkpoint, logger.GetLogger())
}

func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("cannot prompt for a passphrase without a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	if len(secret) == 0 {
		return "", fmt.Errorf("passphrase cannot be empty")
	}
	return string(secret), nil
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
