package tools

import (
	"context"
	"strings"
	"testing"
)

func TestRunShellCapturesCombinedOutput(t *testing.T) {
	sh := RunShellTool{Workspace: t.TempDir()}
	res := sh.Execute(context.Background(), map[string]any{"command": "echo out; echo err 1>&2"})
	if res.Failed() {
		t.Fatalf("unexpected failure: %s", res.Err)
	}
	if !strings.Contains(res.Output, "out") || !strings.Contains(res.Output, "err") {
		t.Fatalf("combined output missing streams: %q", res.Output)
	}
}

func TestRunShellReportsExitFailure(t *testing.T) {
	sh := RunShellTool{Workspace: t.TempDir()}
	res := sh.Execute(context.Background(), map[string]any{"command": "echo partial; exit 3"})
	if !res.Failed() {
		t.Fatal("expected failure for nonzero exit")
	}
	if !strings.Contains(res.Err, "partial") {
		t.Fatalf("output before failure should be preserved: %q", res.Err)
	}
}

func TestRunShellTimesOut(t *testing.T) {
	sh := RunShellTool{Workspace: t.TempDir(), TimeoutMS: 100}
	res := sh.Execute(context.Background(), map[string]any{"command": "sleep 5"})
	if !res.Failed() || !strings.Contains(res.Err, "timed out") {
		t.Fatalf("expected timeout failure, got %+v", res)
	}
}

func TestRunShellRequiresCommand(t *testing.T) {
	sh := RunShellTool{Workspace: t.TempDir()}
	res := sh.Execute(context.Background(), map[string]any{})
	if !res.Failed() {
		t.Fatal("expected failure for missing command")
	}
}
