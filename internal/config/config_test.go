package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Listen.Port != 8000 {
		t.Errorf("Listen.Port = %d", cfg.Listen.Port)
	}
	if cfg.Agent.MaxSteps != 8 || cfg.Agent.MaxToolRepeats != 10 {
		t.Errorf("agent defaults = %+v", cfg.Agent)
	}
	if cfg.Agent.HistoryWindow != 6 || cfg.Agent.SummaryInterval != 20 {
		t.Errorf("agent defaults = %+v", cfg.Agent)
	}
	if cfg.MQTT.Topic != "quill/reminders" {
		t.Errorf("MQTT.Topic = %q", cfg.MQTT.Topic)
	}
}

func TestLoad_ExpandsEnvAndOverrides(t *testing.T) {
	t.Setenv("QUILL_TEST_KEY", "sk-test-123")

	path := filepath.Join(t.TempDir(), "quill.yaml")
	data := `
llm:
  api_key: ${QUILL_TEST_KEY}
  model: test-model
listen:
  port: 9999
agent:
  max_steps: 4
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.APIKey != "sk-test-123" {
		t.Errorf("APIKey = %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "test-model" {
		t.Errorf("Model = %q", cfg.LLM.Model)
	}
	if cfg.Listen.Port != 9999 {
		t.Errorf("Port = %d", cfg.Listen.Port)
	}
	if cfg.Agent.MaxSteps != 4 {
		t.Errorf("MaxSteps = %d", cfg.Agent.MaxSteps)
	}

	// Untouched fields keep their defaults.
	if cfg.LLM.BaseURL == "" {
		t.Error("BaseURL default lost")
	}
	if cfg.Agent.MaxToolRepeats != 10 {
		t.Errorf("MaxToolRepeats = %d, want default", cfg.Agent.MaxToolRepeats)
	}
}

func TestFindConfig_ExplicitMustExist(t *testing.T) {
	if _, err := FindConfig("/nonexistent/quill.yaml"); err == nil {
		t.Error("expected error for missing explicit path")
	}
}

func TestDatabasePath(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/var/lib/quill"
	if got := cfg.DatabasePath(); got != "/var/lib/quill/quill.db" {
		t.Errorf("DatabasePath = %q", got)
	}

	cfg.DataDir = ""
	if got := cfg.DatabasePath(); got != "quill.db" {
		t.Errorf("DatabasePath = %q", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{"trace", LevelTrace},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tc := range cases {
		got, err := ParseLogLevel(tc.in)
		if err != nil {
			t.Errorf("ParseLogLevel(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestLLMTimeout(t *testing.T) {
	cfg := Default()
	if cfg.LLMTimeout().Seconds() != 30 {
		t.Errorf("LLMTimeout = %v", cfg.LLMTimeout())
	}
	cfg.LLM.TimeoutSeconds = -1
	if cfg.LLMTimeout().Seconds() != 30 {
		t.Errorf("LLMTimeout with negative config = %v", cfg.LLMTimeout())
	}
}
