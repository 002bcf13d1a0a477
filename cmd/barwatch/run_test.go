package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/4thel00z/barwatch/internal"
)

func offline(cfg *internal.Config) {
	cfg.News.Queries = nil
	cfg.News.Sources = nil
	cfg.Images.Enabled = false
}

func TestRunCmdBankDryRun(t *testing.T) {
	dir := setupState(t)
	editConfig(t, dir, offline)

	out, err := runCLI(t, "run", "--state", dir, "--dry-run", "--mode", "bank", "--phase", "exam_day")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "phase exam_day") {
		t.Errorf("missing phase in output:\n%s", out)
	}
	if !strings.Contains(out, "Dry run, nothing posted.") {
		t.Errorf("missing dry run notice:\n%s", out)
	}
	if !strings.Contains(out, "Memory changes:") {
		t.Errorf("missing memory diff:\n%s", out)
	}

	posts, err := runCLI(t, "posts", "--state", dir)
	if err != nil {
		t.Fatalf("posts: %v", err)
	}
	if !strings.Contains(posts, "dry-run") || !strings.Contains(posts, "exam_day") {
		t.Errorf("ledger listing:\n%s", posts)
	}
}

func TestRunCmdJSON(t *testing.T) {
	dir := setupState(t)
	editConfig(t, dir, func(cfg *internal.Config) {
		offline(cfg)
		cfg.Mode = internal.ModeBank
		cfg.DryRun = true
	})

	out, err := runCLI(t, "run", "--state", dir, "--json")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var report internal.RunReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if report.Mode != internal.ModeBank || report.Post == nil || !report.Post.DryRun {
		t.Errorf("report = %+v", report)
	}
	if report.Text == "" {
		t.Error("empty tweet text")
	}
}

func TestRunCmdRejectsBadFlags(t *testing.T) {
	dir := setupState(t)

	if _, err := runCLI(t, "run", "--state", dir, "--mode", "poetry"); err == nil {
		t.Error("expected error for unknown mode")
	}
	if _, err := runCLI(t, "run", "--state", dir, "--phase", "someday"); err == nil {
		t.Error("expected error for unknown phase")
	}
}

func TestRunCmdMissingCredentials(t *testing.T) {
	dir := setupState(t)
	editConfig(t, dir, offline)

	_, err := runCLI(t, "run", "--state", dir)
	if err == nil || !strings.Contains(err.Error(), internal.ErrMissingCredentials.Error()) {
		t.Fatalf("expected missing credentials, got %v", err)
	}
}
