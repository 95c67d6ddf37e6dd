package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"visionlab/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{name: "info level", cfg: &config.LoggingConfig{Level: "info"}},
		{name: "debug level", cfg: &config.LoggingConfig{Level: "debug"}},
		{name: "invalid log level", cfg: &config.LoggingConfig{Level: "loud"}, wantErr: true},
		{
			name: "file output",
			cfg: &config.LoggingConfig{
				Level: "info",
				File:  filepath.Join(t.TempDir(), "logs", "visionlab.log"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if l == nil {
				t.Fatal("New() returned nil logger")
			}
			if tt.cfg.File != "" {
				l.Info("written to file")
				data, err := os.ReadFile(tt.cfg.File)
				if err != nil {
					t.Fatalf("log file not created: %v", err)
				}
				if !strings.Contains(string(data), "written to file") {
					t.Errorf("log file missing message, got %q", data)
				}
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"fatal", zerolog.FatalLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"invalid", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.WarnLevel)

	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message")
	l.Error("error message")

	output := buf.String()
	if strings.Contains(output, "debug message") || strings.Contains(output, "info message") {
		t.Errorf("messages below warn should be dropped, got %q", output)
	}
	if !strings.Contains(output, "warn message") || !strings.Contains(output, "error message") {
		t.Errorf("warn and error messages missing, got %q", output)
	}
	if !strings.Contains(output, `"app":"visionlab"`) {
		t.Error("app field not found in output")
	}
}

func TestFieldChaining(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.DebugLevel)

	parent := l.WithField("component", "poller")
	parent.
		WithField("job_id", "job-1").
		WithFields(map[string]interface{}{
			"poll":     3,
			"progress": 42.5,
			"done":     false,
			"interval": 5 * time.Second,
		}).
		Info("chained fields")

	output := buf.String()
	for _, want := range []string{
		"chained fields",
		`"component":"poller"`,
		`"job_id":"job-1"`,
		`"poll":3`,
		`"progress":42.5`,
		`"done":false`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %s: %q", want, output)
		}
	}

	// The parent keeps only its own fields
	buf.Reset()
	parent.Info("parent only")
	if strings.Contains(buf.String(), "job_id") {
		t.Errorf("child fields leaked into parent: %q", buf.String())
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.InfoLevel)

	if l.WithError(nil) != l {
		t.Error("WithError(nil) should return the same logger")
	}

	l.WithError(errors.New("slot unavailable")).Error("save failed")
	output := buf.String()
	if !strings.Contains(output, "save failed") || !strings.Contains(output, "slot unavailable") {
		t.Errorf("error not found in output: %q", output)
	}
}

func TestStructuredLogging(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.InfoLevel)

	l.InfoWithFields("upload stored", map[string]interface{}{
		"split": "train",
		"files": 10,
		"err":   errors.New("partial"),
	})

	output := buf.String()
	for _, want := range []string{"upload stored", `"split":"train"`, `"files":10`, `"err":"partial"`} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %s: %q", want, output)
		}
	}
}

func TestLogRequest(t *testing.T) {
	tl := NewTestLogger()

	LogRequest(tl, "GET", "/api/health", 200, 3*time.Millisecond)
	LogRequest(tl, "POST", "/api/dataset/bad", 400, time.Millisecond)
	LogRequest(tl, "POST", "/api/train/start", 500, time.Millisecond)

	if got := len(tl.GetMessagesByLevel("INFO")); got != 1 {
		t.Errorf("expected 1 info message, got %d", got)
	}
	if got := len(tl.GetMessagesByLevel("WARN")); got != 1 {
		t.Errorf("expected 1 warn message, got %d", got)
	}
	if !tl.HasError() {
		t.Error("expected server error to be logged at error level")
	}
	msgs := tl.GetMessages()
	if msgs[0].Fields["path"] != "/api/health" {
		t.Errorf("unexpected path field: %v", msgs[0].Fields["path"])
	}
}

func TestTestLoggerSharesBuffer(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("job_id", "abc").WithError(errors.New("boom"))
	child.Warn("retrying")

	msgs := tl.GetMessages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Fields["job_id"] != "abc" || msgs[0].Error == nil {
		t.Errorf("child context not captured: %+v", msgs[0])
	}
	if !strings.Contains(tl.String(), "[WARN] retrying error=boom") {
		t.Errorf("unexpected rendering: %q", tl.String())
	}

	tl.Clear()
	if len(tl.GetMessages()) != 0 {
		t.Error("Clear() should drop all messages")
	}
}

func TestGlobalLogger(t *testing.T) {
	prev := GetLogger()
	defer SetLogger(prev)

	tl := NewTestLogger()
	SetLogger(tl)

	Info("info message")
	WithField("key", "value").Warn("with field")
	WithError(errors.New("test")).Error("with error")

	if !tl.HasMessage("info message") || !tl.HasMessage("with field") || !tl.HasError() {
		t.Errorf("global helpers did not reach the installed logger: %s", tl.String())
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.WithField("a", 1).WithError(errors.New("x")).Error("ignored")
	if l.GetZerolog() == nil {
		t.Error("nop logger should still expose a zerolog instance")
	}
}
