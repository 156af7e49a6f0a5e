package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Version != 1 {
		t.Fatalf("version %d, want 1", cfg.Version)
	}
	if cfg.Model.BaseURL != "" && cfg.Model.BaseURL != os.Getenv("DEEPSEEK_BASE_URL") {
		t.Fatalf("unexpected base url %q", cfg.Model.BaseURL)
	}
}

func TestLoadParsesFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
version: 1
model:
  model: deepseek-reasoner
  timeout_ms: 5000
agent:
  max_steps: 7
  stuck_window: 6
cost:
  prompt_per_mtokens: 0.5
  completion_per_mtokens: 2.0
`)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model.Model != "deepseek-reasoner" || cfg.Model.TimeoutMS != 5000 {
		t.Fatalf("model config %+v", cfg.Model)
	}
	if cfg.Agent.MaxSteps != 7 || cfg.Agent.StuckWindow != 6 {
		t.Fatalf("agent config %+v", cfg.Agent)
	}
	if cfg.Cost.CompletionPerMTokens != 2.0 {
		t.Fatalf("cost config %+v", cfg.Cost)
	}
	if cfg.Workspace != dir {
		t.Fatalf("workspace %q, want %q", cfg.Workspace, dir)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "model:\n  model: from-file\n")
	t.Setenv("DEEPSEEK_MODEL", "from-env")
	t.Setenv("DEEPSEEK_CODE_MAX_STEPS", "11")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model.Model != "from-env" {
		t.Fatalf("model %q, want env override", cfg.Model.Model)
	}
	if cfg.Agent.MaxSteps != 11 {
		t.Fatalf("max steps %d, want 11", cfg.Agent.MaxSteps)
	}
}

func TestDotEnvIsMerged(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("CUSTOM_KEY_ENV=sekret\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeConfig(t, dir, "model:\n  api_key_env: CUSTOM_KEY_ENV\n")
	t.Setenv("CUSTOM_KEY_ENV", "")
	os.Unsetenv("CUSTOM_KEY_ENV")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model.APIKey() != "sekret" {
		t.Fatalf("api key %q, want value from .env", cfg.Model.APIKey())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "agent:\n  max_steps: -1\n")
	if _, err := Load(dir); err == nil {
		t.Fatal("expected validation error for negative max_steps")
	}
	writeConfig(t, dir, "version: 9\n")
	if _, err := Load(dir); err == nil {
		t.Fatal("expected validation error for unknown version")
	}
}
