package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/johunsang/deepseek-code/internal/config"
)

const envExample = `# Copy to .env or export in your shell.
DEEPSEEK_API_KEY=
# DEEPSEEK_BASE_URL=https://api.deepseek.com
# DEEPSEEK_MODEL=deepseek-chat
`

func cmdInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	workspace := fs.String("workspace", "", "workspace directory (default: current)")
	force := fs.Bool("force", false, "overwrite existing files")
	if _, err := parseFlagsLoose(fs, args); err != nil {
		return err
	}
	ws, err := resolveWorkspace(*workspace)
	if err != nil {
		return err
	}

	files := []struct {
		name string
		body string
	}{
		{config.ConfigFile, config.DefaultYAML},
		{".env.example", envExample},
	}
	for _, f := range files {
		path := filepath.Join(ws, f.name)
		if _, err := os.Stat(path); err == nil && !*force {
			fmt.Printf("skip %s (exists; use --force to overwrite)\n", f.name)
			continue
		}
		if err := os.WriteFile(path, []byte(f.body), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Printf("wrote %s\n", f.name)
	}
	if err := os.MkdirAll(filepath.Join(ws, "sessions"), 0o755); err != nil {
		return err
	}
	fmt.Println("workspace initialized; set DEEPSEEK_API_KEY and try: deepseek-code run \"list the files here\"")
	return nil
}
