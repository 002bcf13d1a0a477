package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/4thel00z/barwatch/internal"
)

// runCLI executes the root command with args and returns its stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd("test", &app{})
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// setupState initializes a state directory through the CLI and returns it.
func setupState(t *testing.T) string {
	t.Helper()
	clearEnv(t)
	dir := filepath.Join(t.TempDir(), internal.StateDirName)
	if _, err := runCLI(t, "init", "--state", dir); err != nil {
		t.Fatalf("init: %v", err)
	}
	return dir
}

// clearEnv blanks the environment overrides so the host cannot leak
// credentials or modes into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TWITTER_API_KEY", "TWITTER_API_SECRET", "TWITTER_ACCESS_TOKEN", "TWITTER_ACCESS_TOKEN_SECRET",
		"OPENAI_API_KEY", "GEMINI_API_KEY", "BARWATCH_MODE", "DRY_RUN",
	} {
		t.Setenv(key, "")
	}
}

// editConfig loads the state's config, applies mutate and saves it.
func editConfig(t *testing.T, dir string, mutate func(*internal.Config)) {
	t.Helper()
	scope := internal.Scope{Type: internal.ScopeCustom, Path: dir}
	cfg, err := internal.LoadConfig(scope)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	mutate(cfg)
	if err := internal.SaveConfig(scope, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}
}

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd("1.0.0", nil)

	if cmd == nil {
		t.Fatal("NewRootCmd returned nil")
	}

	if cmd.Use != "barwatch" {
		t.Errorf("expected Use='barwatch', got %q", cmd.Use)
	}

	if cmd.Version != "1.0.0" {
		t.Errorf("expected Version='1.0.0', got %q", cmd.Version)
	}
}

func TestRootCmdHasFlags(t *testing.T) {
	cmd := NewRootCmd("1.0.0", nil)

	for _, name := range []string{"state", "json", "verbose"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected persistent flag %q to exist", name)
		}
	}
}

func TestRootCmdSubcommands(t *testing.T) {
	cmd := NewRootCmd("1.0.0", &app{})

	want := []string{
		"init", "run", "validate", "memory", "log", "commit", "revert", "watch",
		"status", "bank", "news", "posts", "provider", "health",
	}
	for _, name := range want {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub.Name() != name {
			t.Errorf("expected subcommand %q", name)
		}
	}
}
