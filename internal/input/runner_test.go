package input

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func writeTool(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "tool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecRunner_ReturnsWhileChildKeepsRunning(t *testing.T) {
	tool := writeTool(t, "sleep 10 &\nexit 0\n")

	start := time.Now()
	err := ExecRunner{WaitDelay: 100 * time.Millisecond}.Run(context.Background(), tool, "https://example.com")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Run took %v, should not wait for the background child", elapsed)
	}
}

func TestExecRunner_ReportsFailureOutput(t *testing.T) {
	tool := writeTool(t, "echo boom >&2\nexit 3\n")

	err := ExecRunner{}.Run(context.Background(), tool, "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error %q does not carry the tool output", err)
	}
}
