package main

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"winnow/internal/ipc"
	"winnow/internal/testsupport"
)

func TestDaemonStartAndStatus(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"start"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	requireContains(t, out, "Daemon started")

	out, _, err = runCLI(t, []string{"start"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	requireContains(t, out, "Daemon already running")

	root := env.cfg.Library.Roots[0]
	testsupport.WriteFile(t, filepath.Join(root, "Heat (1995)", "Heat.mkv"), 2048)
	if _, _, err := runCLI(t, []string{"scan"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("scan: %v", err)
	}

	out, _, err = runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "Running (pid")
	requireContains(t, out, "== Storage ==")
	requireContains(t, out, "Library root:")
	requireContains(t, out, "== Reconciler ==")
	requireContains(t, out, "No cycle completed yet")
	requireContains(t, out, "== Library ==")
	requireContains(t, out, "Active")
	requireContains(t, out, "Users:")
}

func TestDaemonStatusWhenNotRunning(t *testing.T) {
	env := setupCLITestEnv(t)

	missing := filepath.Join(env.baseDir, "missing.sock")
	out, _, err := runCLI(t, []string{"status"}, missing, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Not running")
	requireContains(t, out, "== Library ==")
	if strings.Contains(out, "== Reconciler ==") {
		t.Fatalf("reconciler section should be hidden while stopped, got:\n%s", out)
	}
}

func TestDaemonStatusJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}

	var resp ipc.StatusResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("unmarshal status: %v\noutput:\n%s", err, out)
	}
	if resp.Running {
		t.Fatal("daemon should not report running before start")
	}
	if resp.DatabasePath != env.cfg.Database.Path {
		t.Fatalf("database path = %q, want %q", resp.DatabasePath, env.cfg.Database.Path)
	}
}

func TestDaemonStopWhenNotRunning(t *testing.T) {
	env := setupCLITestEnv(t)

	missing := filepath.Join(env.baseDir, "missing.sock")
	out, _, err := runCLI(t, []string{"stop"}, missing, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestCLITestNotifyUnconfigured(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"test-notify"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "ntfy topic not configured")
}
