package internal

import (
	"os"
	"testing"
	"time"
)

func testScope(t *testing.T) Scope {
	t.Helper()
	return Scope{Type: ScopeCustom, Path: t.TempDir()}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Mode != ModeLLM {
		t.Errorf("expected mode %q, got %q", ModeLLM, cfg.Mode)
	}
	if cfg.Caption.MaxChars != 260 {
		t.Errorf("expected max chars 260, got %d", cfg.Caption.MaxChars)
	}
	if cfg.Caption.MaxAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", cfg.Caption.MaxAttempts)
	}
	if cfg.Providers == nil {
		t.Error("expected providers map to be initialized")
	}
	if cfg.News.Timeout != 10*time.Second {
		t.Errorf("expected 10s timeout, got %v", cfg.News.Timeout)
	}
}

func TestConfigSaveAndLoad(t *testing.T) {
	scope := testScope(t)

	cfg := DefaultConfig()
	cfg.DefaultProvider = "test-provider"
	cfg.Providers["myp"] = ProviderConfig{
		APIKey: "sk-test",
		Model:  "gpt-4",
	}
	cfg.History.Debounce = 5 * time.Second

	if err := SaveConfig(scope, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadConfig(scope)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.DefaultProvider != "test-provider" {
		t.Errorf("default provider = %q, want %q", loaded.DefaultProvider, "test-provider")
	}
	if p, ok := loaded.Providers["myp"]; !ok {
		t.Error("expected provider 'myp' to exist")
	} else if p.APIKey != "sk-test" || p.Model != "gpt-4" {
		t.Errorf("provider = %+v", p)
	}
	if loaded.History.Debounce != 5*time.Second {
		t.Errorf("debounce = %v, want 5s", loaded.History.Debounce)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	cfg, err := LoadConfig(testScope(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeLLM {
		t.Errorf("expected default mode, got %q", cfg.Mode)
	}
}

func TestLoadConfigPartialKeepsDefaults(t *testing.T) {
	scope := testScope(t)
	if err := os.WriteFile(scope.ConfigPath(), []byte("mode: bank\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfig(scope)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeBank {
		t.Errorf("mode = %q, want bank", cfg.Mode)
	}
	if cfg.Caption.MaxSentences != 2 {
		t.Errorf("expected default max sentences, got %d", cfg.Caption.MaxSentences)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	scope := testScope(t)
	if err := os.WriteFile(scope.ConfigPath(), []byte("{{invalid yaml:::"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := LoadConfig(scope); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"TWITTER_API_KEY": "key",
		"OPENAI_API_KEY":  "sk-openai",
		"DRY_RUN":         "true",
		"TIMEZONE":        "UTC",
	}

	cfg := DefaultConfig()
	cfg.Twitter.APISecret = "from-file"
	ApplyEnv(cfg, func(k string) string { return env[k] })

	if cfg.Twitter.APIKey != "key" {
		t.Errorf("api key = %q", cfg.Twitter.APIKey)
	}
	if cfg.Twitter.APISecret != "from-file" {
		t.Errorf("unset env var overwrote file value: %q", cfg.Twitter.APISecret)
	}
	if cfg.Images.OpenAIAPIKey != "sk-openai" {
		t.Errorf("openai key = %q", cfg.Images.OpenAIAPIKey)
	}
	if !cfg.DryRun {
		t.Error("expected dry run from env")
	}
	if cfg.Location() != time.UTC {
		t.Errorf("location = %v", cfg.Location())
	}
}

func TestConfigLocationFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Not/AZone"
	if cfg.Location() != time.UTC {
		t.Errorf("expected UTC fallback, got %v", cfg.Location())
	}
}
