package tools

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File tools are confined to a workspace root: absolute paths and paths that
// escape the root are rejected before any I/O happens.

type ReadFileTool struct {
	Workspace string
}

func (ReadFileTool) Name() string { return "read_file" }
func (ReadFileTool) Description() string {
	return "Reads a text file from the workspace. Returns at most max_bytes of content."
}
func (ReadFileTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"path":      map[string]any{"type": "string", "description": "workspace-relative path"},
		"max_bytes": map[string]any{"type": "integer", "description": "content cap, default 32768"},
	}, "path")
}
func (ReadFileTool) Cacheable() bool { return true }

func (t ReadFileTool) Execute(_ context.Context, args map[string]any) Result {
	pathVal := strings.TrimSpace(stringArg(args, "path"))
	if pathVal == "" {
		return errResult("read_file requires args.path (string)")
	}
	clean, full, err := resolveWorkspacePath(t.Workspace, pathVal)
	if err != nil {
		return errResult("%v", err)
	}
	maxBytes := 32768
	if v, ok := intArg(args, "max_bytes"); ok && v > 0 {
		maxBytes = v
	}
	f, err := os.Open(full)
	if err != nil {
		return errResult("%v", err)
	}
	defer f.Close()
	b, err := io.ReadAll(io.LimitReader(f, int64(maxBytes)))
	if err != nil {
		return errResult("%v", err)
	}
	return Result{Output: fmt.Sprintf("%s (%d bytes)\n%s", clean, len(b), string(b))}
}

type WriteFileTool struct {
	Workspace string
}

func (WriteFileTool) Name() string { return "write_file" }
func (WriteFileTool) Description() string {
	return "Writes a text file inside the workspace. Refuses to overwrite unless overwrite=true."
}
func (WriteFileTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"path":      map[string]any{"type": "string", "description": "workspace-relative path"},
		"content":   map[string]any{"type": "string"},
		"overwrite": map[string]any{"type": "boolean", "description": "replace an existing file"},
	}, "path", "content")
}

func (t WriteFileTool) Execute(_ context.Context, args map[string]any) Result {
	pathVal := strings.TrimSpace(stringArg(args, "path"))
	if pathVal == "" {
		return errResult("write_file requires args.path (string)")
	}
	if _, ok := args["content"]; !ok {
		return errResult("write_file requires args.content (string)")
	}
	content := stringArg(args, "content")
	maxBytes := 128 * 1024
	if len(content) > maxBytes {
		return errResult("content exceeds max_bytes (%d)", maxBytes)
	}
	clean, full, err := resolveWorkspacePath(t.Workspace, pathVal)
	if err != nil {
		return errResult("%v", err)
	}
	overwrite, _ := boolArg(args, "overwrite")
	if st, err := os.Stat(full); err == nil {
		if st.IsDir() {
			return errResult("target path is a directory")
		}
		if !overwrite {
			return errResult("target file exists; set overwrite=true to replace it")
		}
	} else if !os.IsNotExist(err) {
		return errResult("%v", err)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return errResult("%v", err)
	}
	if err := writeFileAtomic(full, []byte(content), 0o644); err != nil {
		return errResult("%v", err)
	}
	return Result{Output: fmt.Sprintf("wrote %s (%d bytes)", clean, len(content))}
}

type ListDirTool struct {
	Workspace string
}

func (ListDirTool) Name() string { return "list_dir" }
func (ListDirTool) Description() string {
	return "Lists entries of a workspace directory (non-recursive)."
}
func (ListDirTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"path": map[string]any{"type": "string", "description": "workspace-relative directory, default ."},
	})
}
func (ListDirTool) Cacheable() bool { return true }

func (t ListDirTool) Execute(_ context.Context, args map[string]any) Result {
	pathVal := strings.TrimSpace(stringArg(args, "path"))
	if pathVal == "" {
		pathVal = "."
	}
	clean, full, err := resolveWorkspacePath(t.Workspace, pathVal)
	if err != nil {
		return errResult("%v", err)
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return errResult("%v", err)
	}
	lines := make([]string, 0, len(entries)+1)
	lines = append(lines, clean+"/")
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		lines = append(lines, "  "+name)
	}
	sort.Strings(lines[1:])
	return Result{Output: strings.Join(lines, "\n")}
}

func resolveWorkspacePath(workspace, pathVal string) (clean string, fullClean string, err error) {
	clean = filepath.Clean(pathVal)
	if filepath.IsAbs(clean) {
		return "", "", fmt.Errorf("absolute paths are not allowed")
	}
	workspaceClean := filepath.Clean(workspace)
	fullClean = filepath.Clean(filepath.Join(workspaceClean, clean))
	if !strings.HasPrefix(fullClean, workspaceClean+string(os.PathSeparator)) && fullClean != workspaceClean {
		return "", "", fmt.Errorf("path escapes workspace")
	}
	return clean, fullClean, nil
}

func writeFileAtomic(path string, b []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".dsc-write-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
