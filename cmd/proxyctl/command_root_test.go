package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"status", "start", "run", "stop", "tunnel"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == root {
			t.Errorf("subcommand %q not found: %v", name, err)
		}
	}
	if cmd, _, _ := root.Find([]string{"run"}); cmd.Name() != "start" {
		t.Errorf("run should alias start, got %s", cmd.Name())
	}
}

func TestTunnelCmd_RejectsInvalidPort(t *testing.T) {
	for _, arg := range []string{"abc", "0", "70000"} {
		root := NewRootCmd()
		root.SetArgs([]string{"tunnel", arg})
		if err := root.Execute(); err == nil {
			t.Errorf("tunnel %s should fail", arg)
		}
	}
}

func TestStartCmd_RejectsExtraArgs(t *testing.T) {
	root := NewRootCmd()
	root.SetArgs([]string{"start", "http://a", "http://b"})
	if err := root.Execute(); err == nil {
		t.Fatalf("start with two URLs should fail")
	}
}

func TestStatusCmd_FreshDataDir(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")

	root := NewRootCmd()
	root.SetArgs([]string{
		"--config", filepath.Join(dir, "absent.ini"),
		"--data-dir", dataDir,
		"--log-level", "error",
		"status",
	})
	if err := root.Execute(); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dataDir, ".gitignore")); err != nil {
		t.Fatalf("data dir not prepared: %v", err)
	}
}

func TestStopCmd_NothingRunning(t *testing.T) {
	dir := t.TempDir()
	root := NewRootCmd()
	root.SetArgs([]string{"--config", filepath.Join(dir, "absent.ini"), "--data-dir", dir, "--log-level", "error", "stop"})
	if err := root.Execute(); err != nil {
		t.Fatalf("stop with nothing running should succeed: %v", err)
	}
}

func TestParsePort(t *testing.T) {
	if p, err := parsePort("9090"); err != nil || p != 9090 {
		t.Fatalf("parsePort(9090) = %d, %v", p, err)
	}
}

func TestTunnelContext_IgnoresInterruptCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := tunnelContext(parent)
	defer stop()

	// main cancels its context on Ctrl-C; the tunnel sequence must keep going.
	cancel()
	if err := ctx.Err(); err != nil {
		t.Fatalf("tunnel context cancelled with its parent: %v", err)
	}

	stop()
	if ctx.Err() == nil {
		t.Fatalf("stop should release the tunnel context")
	}
}
