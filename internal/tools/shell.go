package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

type RunShellTool struct {
	Workspace string
	// TimeoutMS bounds one command; a timeout becomes a failed result,
	// never a process crash.
	TimeoutMS int
}

func (RunShellTool) Name() string { return "run_shell" }
func (RunShellTool) Description() string {
	return "Runs a shell command in the workspace and returns combined stdout/stderr."
}
func (RunShellTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"command": map[string]any{"type": "string", "description": "shell command line"},
	}, "command")
}

func (t RunShellTool) Execute(ctx context.Context, args map[string]any) Result {
	command := strings.TrimSpace(stringArg(args, "command"))
	if command == "" {
		return errResult("run_shell requires args.command (string)")
	}
	timeout := time.Duration(t.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, "sh", "-c", command)
	cmd.Dir = t.Workspace
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	out := clipOutput(buf.String(), 32768)
	if cctx.Err() == context.DeadlineExceeded {
		return errResult("command timed out after %s: %s", timeout, clipOutput(out, 500))
	}
	if err != nil {
		return errResult("command failed: %v\n%s", err, out)
	}
	if strings.TrimSpace(out) == "" {
		return Result{Output: "(command produced no output)"}
	}
	return Result{Output: out}
}

func clipOutput(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + fmt.Sprintf("\n... [clipped %d bytes]", len(s)-max)
}
