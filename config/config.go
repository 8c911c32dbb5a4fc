// Package config loads the shared fitcoach configuration. Values layer in
// order: built-in defaults, then the YAML file, then FITCOACH_* environment
// variables, then command-line flags bound by the CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lexcodex/fitcoach/retry"
)

// Config captures every knob shared across the fitcoach entry points.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Model   ModelConfig   `yaml:"model"`
	Agent   AgentConfig   `yaml:"agent"`
	Logging LoggingConfig `yaml:"logging"`
	Stub    StubConfig    `yaml:"stub"`
}

// BackendConfig points the agent at one record service.
type BackendConfig struct {
	BaseURL              string `yaml:"base_url"`
	Token                string `yaml:"token,omitempty"`
	CommitMaxPolls       int    `yaml:"commit_max_polls"`
	CommitPollIntervalMS int    `yaml:"commit_poll_interval_ms"`
}

// ModelConfig selects the chat models and their retry budget.
type ModelConfig struct {
	Endpoint         string   `yaml:"endpoint"`
	APIKey           string   `yaml:"api_key,omitempty"`
	Primary          string   `yaml:"primary"`
	Fallbacks        []string `yaml:"fallbacks,omitempty"`
	AttemptsPerModel int      `yaml:"attempts_per_model"`
	BackoffMS        int      `yaml:"backoff_ms"`
	Temperature      float64  `yaml:"temperature"`
}

// AgentConfig carries the turn-level tunables.
type AgentConfig struct {
	MaxToolRounds int    `yaml:"max_tool_rounds"`
	SystemPrompt  string `yaml:"system_prompt,omitempty"`
}

// LoggingConfig controls debug output and the telemetry trace file.
type LoggingConfig struct {
	Debug         bool   `yaml:"debug"`
	TelemetryFile string `yaml:"telemetry_file,omitempty"`
}

// StubConfig configures the bundled stub record service.
type StubConfig struct {
	Addr      string `yaml:"addr"`
	DBPath    string `yaml:"db_path,omitempty"`
	HoldPolls int    `yaml:"hold_polls"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:              "http://localhost:8787",
			CommitMaxPolls:       20,
			CommitPollIntervalMS: 1000,
		},
		Model: ModelConfig{
			Endpoint:         "http://localhost:11434/v1",
			Primary:          "qwen2.5:14b",
			AttemptsPerModel: 3,
			BackoffMS:        600,
			Temperature:      0.1,
		},
		Agent: AgentConfig{
			MaxToolRounds: 6,
		},
		Stub: StubConfig{
			Addr:      ":8787",
			HoldPolls: 1,
		},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged; a missing file at an explicit path is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config as YAML, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv overlays FITCOACH_* environment variables on the current values.
func (c *Config) ApplyEnv() {
	c.Backend.BaseURL = envOrDefault("FITCOACH_BACKEND_URL", c.Backend.BaseURL)
	c.Backend.Token = envOrDefault("FITCOACH_BACKEND_TOKEN", c.Backend.Token)
	c.Model.Endpoint = envOrDefault("FITCOACH_MODEL_ENDPOINT", c.Model.Endpoint)
	c.Model.APIKey = envOrDefault("FITCOACH_MODEL_API_KEY", c.Model.APIKey)
	c.Model.Primary = envOrDefault("FITCOACH_MODEL", c.Model.Primary)
	if envBool("FITCOACH_DEBUG") {
		c.Logging.Debug = true
	}
}

// Normalize fills every knob the file and environment left empty and
// validates the few that have hard ranges.
func (c *Config) Normalize() error {
	def := Default()
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = def.Backend.BaseURL
	}
	if c.Backend.CommitMaxPolls <= 0 {
		c.Backend.CommitMaxPolls = def.Backend.CommitMaxPolls
	}
	if c.Backend.CommitPollIntervalMS <= 0 {
		c.Backend.CommitPollIntervalMS = def.Backend.CommitPollIntervalMS
	}
	if c.Model.Endpoint == "" {
		c.Model.Endpoint = def.Model.Endpoint
	}
	if c.Model.Primary == "" {
		c.Model.Primary = def.Model.Primary
	}
	if c.Model.AttemptsPerModel <= 0 {
		c.Model.AttemptsPerModel = def.Model.AttemptsPerModel
	}
	if c.Model.BackoffMS <= 0 {
		c.Model.BackoffMS = def.Model.BackoffMS
	}
	if c.Model.Temperature == 0 {
		c.Model.Temperature = def.Model.Temperature
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("model temperature %v out of range [0, 2]", c.Model.Temperature)
	}
	if c.Agent.MaxToolRounds <= 0 {
		c.Agent.MaxToolRounds = def.Agent.MaxToolRounds
	}
	if c.Stub.Addr == "" {
		c.Stub.Addr = def.Stub.Addr
	}
	// Zero is a valid setting (drafts commit on first submit), so only
	// negatives fall back to the default.
	if c.Stub.HoldPolls < 0 {
		c.Stub.HoldPolls = def.Stub.HoldPolls
	}
	return nil
}

// Models lists the candidate models in priority order.
func (m ModelConfig) Models() []string {
	out := make([]string, 0, 1+len(m.Fallbacks))
	if m.Primary != "" {
		out = append(out, m.Primary)
	}
	out = append(out, m.Fallbacks...)
	return out
}

// AttemptPolicy converts the per-model knobs into the gateway retry policy.
func (m ModelConfig) AttemptPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: m.AttemptsPerModel,
		Interval:    time.Duration(m.BackoffMS) * time.Millisecond,
	}
}

// PollPolicy converts the commit knobs into the backend poll policy.
func (b BackendConfig) PollPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: b.CommitMaxPolls,
		Interval:    time.Duration(b.CommitPollIntervalMS) * time.Millisecond,
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
