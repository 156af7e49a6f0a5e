// Package config loads the workspace configuration file and environment
// overrides for the agent runtime.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const ConfigFile = "deepseek-code.yaml"

// Config is the root workspace configuration. Environment variables win
// over file values; unset fields fall back to defaults at the consumer.
type Config struct {
	Version int `yaml:"version"`

	Model ModelConfig `yaml:"model"`
	Agent AgentConfig `yaml:"agent"`
	Cost  CostConfig  `yaml:"cost"`

	// Workspace is the directory file and shell tools are confined to.
	// Not persisted; set by the loader to the config file's directory.
	Workspace string `yaml:"-"`
}

type ModelConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	TimeoutMS int    `yaml:"timeout_ms"`

	apiKey string
}

// APIKey is resolved from the environment at load time, never stored in
// the file.
func (m ModelConfig) APIKey() string { return m.apiKey }

type AgentConfig struct {
	MaxSteps     int    `yaml:"max_steps"`
	MaxTurns     int    `yaml:"max_turns"`
	SystemPrompt string `yaml:"system_prompt"`
	// StuckWindow and StuckMinAssistant tune the repetition detector.
	StuckWindow       int `yaml:"stuck_window"`
	StuckMinAssistant int `yaml:"stuck_min_assistant"`
	ShellTimeoutMS    int `yaml:"shell_timeout_ms"`
}

type CostConfig struct {
	PromptPerMTokens     float64 `yaml:"prompt_per_mtokens"`
	CompletionPerMTokens float64 `yaml:"completion_per_mtokens"`
}

// Load reads deepseek-code.yaml from the workspace, merges a .env file and
// process environment, and validates the result. A missing config file is
// not an error: defaults plus environment apply.
func Load(workspace string) (*Config, error) {
	// .env never overrides variables already set in the process.
	_ = godotenv.Load(filepath.Join(workspace, ".env"))

	cfg := &Config{Version: 1, Workspace: workspace}
	path := filepath.Join(workspace, ConfigFile)
	b, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	cfg.Workspace = workspace

	applyEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	keyEnv := cfg.Model.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "DEEPSEEK_API_KEY"
	}
	cfg.Model.apiKey = strings.TrimSpace(os.Getenv(keyEnv))
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DEEPSEEK_BASE_URL"); v != "" {
		cfg.Model.BaseURL = v
	}
	if v := os.Getenv("DEEPSEEK_MODEL"); v != "" {
		cfg.Model.Model = v
	}
	if v := os.Getenv("DEEPSEEK_CODE_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Agent.MaxSteps = n
		}
	}
	if v := os.Getenv("DEEPSEEK_CODE_MAX_TURNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Agent.MaxTurns = n
		}
	}
}

func (c *Config) validate() error {
	if c.Version != 0 && c.Version != 1 {
		return fmt.Errorf("unsupported config version %d", c.Version)
	}
	if c.Agent.MaxSteps < 0 {
		return fmt.Errorf("agent.max_steps must not be negative")
	}
	if c.Agent.MaxTurns < 0 {
		return fmt.Errorf("agent.max_turns must not be negative")
	}
	if c.Cost.PromptPerMTokens < 0 || c.Cost.CompletionPerMTokens < 0 {
		return fmt.Errorf("cost rates must not be negative")
	}
	return nil
}

// DefaultYAML is the file written by `deepseek-code init`.
const DefaultYAML = `version: 1

model:
  base_url: https://api.deepseek.com
  model: deepseek-chat
  api_key_env: DEEPSEEK_API_KEY
  timeout_ms: 120000

agent:
  max_steps: 20
  max_turns: 50
  stuck_window: 4
  stuck_min_assistant: 2
  shell_timeout_ms: 30000

cost:
  prompt_per_mtokens: 0.27
  completion_per_mtokens: 1.10
`
