// Package config handles Quill configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./quill.yaml, ~/.config/quill/config.yaml, /etc/quill/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"quill.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "quill", "config.yaml"))
	}

	paths = append(paths, "/etc/quill/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Quill configuration.
type Config struct {
	Listen   ListenConfig `yaml:"listen"`
	LLM      LLMConfig    `yaml:"llm"`
	Agent    AgentConfig  `yaml:"agent"`
	Slack    SlackConfig  `yaml:"slack"`
	MQTT     MQTTConfig   `yaml:"mqtt"`
	DataDir  string       `yaml:"data_dir"`
	LogLevel string       `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// LLMConfig defines the chat-completions backend.
// The default base URL points at Groq's OpenAI-compatible endpoint;
// any compatible server (OpenAI, vLLM, LiteLLM) works.
type LLMConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// AgentConfig tunes the orchestration loop.
type AgentConfig struct {
	// MaxSteps caps generate/dispatch rounds per request.
	MaxSteps int `yaml:"max_steps"`
	// MaxToolRepeats caps how many times one tool may run in a request.
	MaxToolRepeats int `yaml:"max_tool_repeats"`
	// HistoryWindow is how many prior messages go into the prompt.
	HistoryWindow int `yaml:"history_window"`
	// SummaryInterval refreshes the rolling summary every N messages.
	SummaryInterval int `yaml:"summary_interval"`
}

// SlackConfig defines the Slack incoming-webhook notification channel.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// MQTTConfig defines the optional MQTT notification channel.
// When Broker is empty the MQTT notifier is disabled.
type MQTTConfig struct {
	Broker   string `yaml:"broker"` // e.g. mqtt://host:1883 or mqtts://host:8883
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"` // defaults to quill/reminders
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 8000},
		LLM: LLMConfig{
			BaseURL:        "https://api.groq.com/openai/v1",
			Model:          "llama-3.3-70b-versatile",
			TimeoutSeconds: 30,
		},
		Agent: AgentConfig{
			MaxSteps:        8,
			MaxToolRepeats:  10,
			HistoryWindow:   6,
			SummaryInterval: 20,
		},
		MQTT: MQTTConfig{
			Topic: "quill/reminders",
		},
		DataDir: ".",
	}
}

// LLMTimeout returns the configured request timeout as a duration.
func (c *Config) LLMTimeout() time.Duration {
	if c.LLM.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// DatabasePath returns the SQLite database location under DataDir.
func (c *Config) DatabasePath() string {
	dir := c.DataDir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "quill.db")
}
