package main

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/4thel00z/barwatch/internal"
)

func TestFindExternal(t *testing.T) {
	tmp := t.TempDir()
	script := filepath.Join(tmp, "barwatch-report")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho ok"), 0755); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PATH", tmp+string(os.PathListSeparator)+os.Getenv("PATH"))

	path, err := findExternal("report")
	if err != nil {
		t.Fatalf("expected to find barwatch-report, got error: %v", err)
	}
	if path != script {
		t.Errorf("expected %s, got %s", script, path)
	}

	if _, err := findExternal("nonexistent-command-12345"); err == nil {
		t.Error("expected error for nonexistent command")
	}
}

func TestListExternalCommands(t *testing.T) {
	tmp := t.TempDir()

	for _, name := range []string{"barwatch-foo", "barwatch-bar"} {
		if err := os.WriteFile(filepath.Join(tmp, name), []byte("#!/bin/sh"), 0755); err != nil {
			t.Fatal(err)
		}
	}
	// not executable
	if err := os.WriteFile(filepath.Join(tmp, "barwatch-notes"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmp, "other-script"), []byte("#!/bin/sh"), 0755); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PATH", tmp)

	got := listExternalCommands()
	if !slices.Equal(got, []string{"bar", "foo"}) {
		t.Errorf("listExternalCommands() = %v", got)
	}
}

func TestExternalEnv(t *testing.T) {
	env := externalEnv("1.2.3", internal.Scope{Type: internal.ScopeCustom, Path: "/state/.barwatch"})

	for _, want := range []string{"BARWATCH_VERSION=1.2.3", "BARWATCH_STATE=/state/.barwatch"} {
		if !slices.Contains(env, want) {
			t.Errorf("env missing %q", want)
		}
	}
	if !slices.ContainsFunc(env, func(kv string) bool { return strings.HasPrefix(kv, "BARWATCH_BIN=") }) {
		t.Error("env missing BARWATCH_BIN")
	}
}
