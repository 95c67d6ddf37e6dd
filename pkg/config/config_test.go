package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"visionlab/pkg/models"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Server.Port != 3001 {
		t.Errorf("Expected default port to be 3001, got %d", config.Server.Port)
	}

	if config.Training.PollInterval != 5*time.Second {
		t.Errorf("Expected default poll interval to be 5s, got %v", config.Training.PollInterval)
	}

	if config.Checkpoint.Backend != BackendFile {
		t.Errorf("Expected default checkpoint backend to be file, got %s", config.Checkpoint.Backend)
	}

	if config.Training.Model != models.DefaultModelConfig() {
		t.Errorf("Expected default model config, got %+v", config.Training.Model)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("VISIONLAB_PORT", "8080")
	t.Setenv("VISIONLAB_DATASET_DIR", "/tmp/datasets")
	t.Setenv("VISIONLAB_MOCK_ENDPOINTS", "TRUE")
	t.Setenv("VISIONLAB_API_URL", "http://api.test/api")
	t.Setenv("VISIONLAB_CHECKPOINT_BACKEND", "memory")
	t.Setenv("VISIONLAB_POLL_INTERVAL", "250ms")
	t.Setenv("VISIONLAB_LOG_LEVEL", "debug")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.Server.Port != 8080 {
		t.Errorf("Expected port to be 8080, got %d", config.Server.Port)
	}
	if config.Server.DatasetDir != "/tmp/datasets" {
		t.Errorf("Expected dataset dir to be /tmp/datasets, got %s", config.Server.DatasetDir)
	}
	if !config.Server.MockEndpoints {
		t.Error("Expected mock endpoints to be enabled")
	}
	if config.Client.BaseURL != "http://api.test/api" {
		t.Errorf("Expected base URL to be http://api.test/api, got %s", config.Client.BaseURL)
	}
	if config.Checkpoint.Backend != BackendMemory {
		t.Errorf("Expected checkpoint backend to be memory, got %s", config.Checkpoint.Backend)
	}
	if config.Training.PollInterval != 250*time.Millisecond {
		t.Errorf("Expected poll interval to be 250ms, got %v", config.Training.PollInterval)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level to be debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("VISIONLAB_PORT", "not-a-port")
	t.Setenv("VISIONLAB_POLL_INTERVAL", "soon")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err == nil {
		t.Error("Expected error for invalid environment values")
	}
	if config.Server.Port != 3001 {
		t.Errorf("Expected port to stay 3001, got %d", config.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantError bool
	}{
		{
			name:      "valid config",
			modify:    func(c *Config) {},
			wantError: false,
		},
		{
			name:      "invalid port",
			modify:    func(c *Config) { c.Server.Port = 0 },
			wantError: true,
		},
		{
			name:      "missing base URL",
			modify:    func(c *Config) { c.Client.BaseURL = "" },
			wantError: true,
		},
		{
			name:      "unlimited requests",
			modify:    func(c *Config) { c.Client.RequestsPerMinute = 0 },
			wantError: false,
		},
		{
			name:      "negative requests per minute",
			modify:    func(c *Config) { c.Client.RequestsPerMinute = -1 },
			wantError: true,
		},
		{
			name:      "sqlite checkpoint backend",
			modify:    func(c *Config) { c.Checkpoint.Backend = BackendSQLite },
			wantError: false,
		},
		{
			name:      "unknown checkpoint backend",
			modify:    func(c *Config) { c.Checkpoint.Backend = "cloud" },
			wantError: true,
		},
		{
			name:      "invalid architecture",
			modify:    func(c *Config) { c.Training.Model.Architecture = "resnet" },
			wantError: true,
		},
		{
			name:      "zero poll interval",
			modify:    func(c *Config) { c.Training.PollInterval = 0 },
			wantError: true,
		},
		{
			name:      "zero retry attempts",
			modify:    func(c *Config) { c.Training.RetryAttempts = 0 },
			wantError: true,
		},
		{
			name:      "progress step above 100",
			modify:    func(c *Config) { c.Mock.ProgressStep = 150 },
			wantError: true,
		},
		{
			name:      "invalid log level",
			modify:    func(c *Config) { c.Logging.Level = "verbose" },
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)
			err := config.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "visionlab.yaml")

	content := `server:
  port: 9000
  mock_endpoints: true
training:
  poll_interval: 2s
  model:
    architecture: fasterrcnn
    epochs: 50
    batch_size: 8
    learning_rate: 0.01
    optimizer: sgd
logging:
  level: warn
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	config := DefaultConfig()
	if err := config.LoadFromFile(configPath); err != nil {
		t.Fatalf("Failed to load config file: %v", err)
	}

	if config.Server.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", config.Server.Port)
	}
	if !config.Server.MockEndpoints {
		t.Error("Expected mock endpoints to be enabled")
	}
	if config.Training.PollInterval != 2*time.Second {
		t.Errorf("Expected poll interval 2s, got %v", config.Training.PollInterval)
	}
	if config.Training.Model.Architecture != models.ArchitectureFasterRCNN {
		t.Errorf("Expected fasterrcnn, got %s", config.Training.Model.Architecture)
	}
	if config.Training.Model.Optimizer != models.OptimizerSGD {
		t.Errorf("Expected sgd, got %s", config.Training.Model.Optimizer)
	}
	// Untouched values keep their defaults
	if config.Client.Timeout != 30*time.Second {
		t.Errorf("Expected default client timeout, got %v", config.Client.Timeout)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	config := DefaultConfig()
	if err := config.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing explicit config file")
	}
}
