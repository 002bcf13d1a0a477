package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitCmd(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".barwatch")

	out, err := runCLI(t, "init", "--state", dir)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, dir) {
		t.Errorf("output should name the state dir, got %q", out)
	}

	for _, name := range []string{"config.yaml", "memory.json", "memes", ".history"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestInitCmdAlreadyInitialized(t *testing.T) {
	dir := setupState(t)

	if _, err := runCLI(t, "init", "--state", dir); err == nil {
		t.Error("expected error for already initialized")
	}

	if err := os.Remove(filepath.Join(dir, "config.yaml")); err != nil {
		t.Fatalf("remove config: %v", err)
	}
	if _, err := runCLI(t, "init", "--state", dir, "--force"); err != nil {
		t.Fatalf("force init: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("config not restored: %v", err)
	}
}

func TestInitCmdGlobal(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if _, err := runCLI(t, "init", "--global"); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if _, err := os.Stat(filepath.Join(home, ".barwatch", "memory.json")); err != nil {
		t.Errorf("global state not created: %v", err)
	}
}
