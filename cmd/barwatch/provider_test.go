package main

import (
	"strings"
	"testing"
)

func TestProviderListEmpty(t *testing.T) {
	dir := setupState(t)

	out, err := runCLI(t, "provider", "list", "--state", dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "No providers configured.") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestProviderLifecycle(t *testing.T) {
	dir := setupState(t)

	if _, err := runCLI(t, "provider", "add", "openai", "--state", dir, "--model", "gpt-4o-mini"); err != nil {
		t.Fatalf("add openai: %v", err)
	}
	if _, err := runCLI(t, "provider", "add", "openrouter", "--state", dir, "--model", "meta-llama/llama-3-8b"); err != nil {
		t.Fatalf("add openrouter: %v", err)
	}
	if _, err := runCLI(t, "provider", "add", "carrier-pigeon", "--state", dir); err == nil {
		t.Error("expected error for unsupported provider")
	}

	out, err := runCLI(t, "provider", "list", "--state", dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "* openai\tgpt-4o-mini") || !strings.Contains(out, "  openrouter") {
		t.Errorf("unexpected list:\n%s", out)
	}

	if _, err := runCLI(t, "provider", "default", "openrouter", "--state", dir); err != nil {
		t.Fatalf("default: %v", err)
	}
	out, err = runCLI(t, "provider", "list", "--state", dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "* openrouter") {
		t.Errorf("default not switched:\n%s", out)
	}

	if _, err := runCLI(t, "provider", "remove", "openrouter", "--state", dir); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := runCLI(t, "provider", "remove", "openrouter", "--state", dir); err == nil {
		t.Error("expected error removing a missing provider")
	}
}
