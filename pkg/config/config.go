package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"visionlab/pkg/models"
)

// Config holds all configuration options for visionlab
type Config struct {
	// Stub API server
	Server ServerConfig `yaml:"server" json:"server"`

	// API client used by the CLI and the status poller
	Client ClientConfig `yaml:"client" json:"client"`

	// Checkpoint slot
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`

	// Training defaults and status polling
	Training TrainingConfig `yaml:"training" json:"training"`

	// Mock services behind the optional endpoints
	Mock MockConfig `yaml:"mock" json:"mock"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig holds the stub API server settings
type ServerConfig struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	DatasetDir      string        `yaml:"dataset_dir" json:"dataset_dir"`
	MaxUploadSize   int64         `yaml:"max_upload_size" json:"max_upload_size"`
	MockEndpoints   bool          `yaml:"mock_endpoints" json:"mock_endpoints"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// ClientConfig holds API client settings
type ClientConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// RequestsPerMinute caps outgoing requests; 0 disables the limit
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// CheckpointConfig selects where the checkpoint slot lives
type CheckpointConfig struct {
	Backend    string `yaml:"backend" json:"backend"`
	Path       string `yaml:"path" json:"path"`
	Passphrase string `yaml:"passphrase" json:"passphrase"`
}

// TrainingConfig holds model defaults and poller settings
type TrainingConfig struct {
	Model         models.ModelConfig `yaml:"model" json:"model"`
	PollInterval  time.Duration      `yaml:"poll_interval" json:"poll_interval"`
	RetryAttempts int                `yaml:"retry_attempts" json:"retry_attempts"`
	MaxPolls      int                `yaml:"max_polls" json:"max_polls"`
}

// MockConfig holds the behavior of the mock predictor and trainer
type MockConfig struct {
	PredictDelay time.Duration `yaml:"predict_delay" json:"predict_delay"`
	ProgressStep float64       `yaml:"progress_step" json:"progress_step"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Checkpoint backends
const (
	BackendFile    = "file"
	BackendKeyring = "keyring"
	BackendSQLite  = "sqlite"
	BackendMemory  = "memory"
)

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3001,
			DatasetDir:      "",
			MaxUploadSize:   32 << 20,
			MockEndpoints:   false,
			ShutdownTimeout: 10 * time.Second,
		},
		Client: ClientConfig{
			BaseURL:           "http://localhost:3001/api",
			Timeout:           30 * time.Second,
			RequestsPerMinute: 120,
		},
		Checkpoint: CheckpointConfig{
			Backend: BackendFile,
		},
		Training: TrainingConfig{
			Model:         models.DefaultModelConfig(),
			PollInterval:  5 * time.Second,
			RetryAttempts: 3,
			MaxPolls:      0, // 0 means unbounded
		},
		Mock: MockConfig{
			PredictDelay: 1500 * time.Millisecond,
			ProgressStep: 10,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if host := os.Getenv("VISIONLAB_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("VISIONLAB_PORT"); port != "" {
		val, err := strconv.Atoi(port)
		if err != nil {
			errs = append(errs, fmt.Errorf("VISIONLAB_PORT: %w", err))
		} else {
			c.Server.Port = val
		}
	}
	if dir := os.Getenv("VISIONLAB_DATASET_DIR"); dir != "" {
		c.Server.DatasetDir = dir
	}
	if mock := os.Getenv("VISIONLAB_MOCK_ENDPOINTS"); mock != "" {
		c.Server.MockEndpoints = strings.ToLower(mock) == "true"
	}

	if baseURL := os.Getenv("VISIONLAB_API_URL"); baseURL != "" {
		c.Client.BaseURL = baseURL
	}
	if rpm := os.Getenv("VISIONLAB_REQUESTS_PER_MINUTE"); rpm != "" {
		val, err := strconv.Atoi(rpm)
		if err != nil {
			errs = append(errs, fmt.Errorf("VISIONLAB_REQUESTS_PER_MINUTE: %w", err))
		} else {
			c.Client.RequestsPerMinute = val
		}
	}

	if backend := os.Getenv("VISIONLAB_CHECKPOINT_BACKEND"); backend != "" {
		c.Checkpoint.Backend = backend
	}
	if path := os.Getenv("VISIONLAB_CHECKPOINT_PATH"); path != "" {
		c.Checkpoint.Path = path
	}
	if passphrase := os.Getenv("VISIONLAB_CHECKPOINT_PASSPHRASE"); passphrase != "" {
		c.Checkpoint.Passphrase = passphrase
	}

	if interval := os.Getenv("VISIONLAB_POLL_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			errs = append(errs, fmt.Errorf("VISIONLAB_POLL_INTERVAL: %w", err))
		} else {
			c.Training.PollInterval = d
		}
	}

	if logLevel := os.Getenv("VISIONLAB_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("VISIONLAB_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"visionlab.yaml",
		".visionlab.yaml",
		".visionlab.yml",
		filepath.Join(home, ".config", "visionlab", "config.yaml"),
		filepath.Join(home, ".visionlab.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, errors.New("server port must be between 1 and 65535"))
	}
	if c.Server.MaxUploadSize <= 0 {
		errs = append(errs, errors.New("max upload size must be positive"))
	}

	if c.Client.BaseURL == "" {
		errs = append(errs, errors.New("client base URL is required"))
	}
	if c.Client.Timeout <= 0 {
		errs = append(errs, errors.New("client timeout must be positive"))
	}
	if c.Client.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	switch strings.ToLower(c.Checkpoint.Backend) {
	case BackendFile, BackendKeyring, BackendSQLite, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("invalid checkpoint backend %q", c.Checkpoint.Backend))
	}

	if err := c.Training.Model.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("training model: %w", err))
	}
	if c.Training.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.Training.RetryAttempts < 1 {
		errs = append(errs, errors.New("retry attempts must be at least 1"))
	}
	if c.Training.MaxPolls < 0 {
		errs = append(errs, errors.New("max polls cannot be negative"))
	}

	if c.Mock.PredictDelay < 0 {
		errs = append(errs, errors.New("predict delay cannot be negative"))
	}
	if c.Mock.ProgressStep <= 0 || c.Mock.ProgressStep > 100 {
		errs = append(errs, errors.New("progress step must be in (0,100]"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if host, ok := flags["host"].(string); ok && host != "" {
		c.Server.Host = host
	}
	if port, ok := flags["port"].(int); ok && port > 0 {
		c.Server.Port = port
	}
	if dir, ok := flags["dataset-dir"].(string); ok && dir != "" {
		c.Server.DatasetDir = dir
	}
	if mock, ok := flags["mock"].(bool); ok {
		c.Server.MockEndpoints = mock
	}
	if apiURL, ok := flags["api-url"].(string); ok && apiURL != "" {
		c.Client.BaseURL = apiURL
	}
	if backend, ok := flags["checkpoint-backend"].(string); ok && backend != "" {
		c.Checkpoint.Backend = backend
	}
	if interval, ok := flags["poll-interval"].(time.Duration); ok && interval > 0 {
		c.Training.PollInterval = interval
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".visionlab.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
