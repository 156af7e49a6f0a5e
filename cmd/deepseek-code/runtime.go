package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/johunsang/deepseek-code/internal/agent"
	"github.com/johunsang/deepseek-code/internal/config"
	"github.com/johunsang/deepseek-code/internal/eventlog"
	"github.com/johunsang/deepseek-code/internal/llm"
	"github.com/johunsang/deepseek-code/internal/tools"
)

// runtimeParts bundles everything a command needs to run agent loops.
type runtimeParts struct {
	cfg      *config.Config
	client   llm.Client
	registry *tools.Registry
	log      *eventlog.Log
}

func buildRuntime(workspace string) (*runtimeParts, error) {
	ws, err := resolveWorkspace(workspace)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(ws)
	if err != nil {
		return nil, err
	}
	if cfg.Model.APIKey() == "" {
		keyEnv := cfg.Model.APIKeyEnv
		if keyEnv == "" {
			keyEnv = "DEEPSEEK_API_KEY"
		}
		return nil, fmt.Errorf("no API key: set %s in the environment or a workspace .env file", keyEnv)
	}

	client := llm.NewDeepSeek(llm.DeepSeekConfig{
		BaseURL:   cfg.Model.BaseURL,
		APIKey:    cfg.Model.APIKey(),
		Model:     cfg.Model.Model,
		TimeoutMS: cfg.Model.TimeoutMS,
	})
	registry := tools.NewRegistry(
		tools.ReadFileTool{Workspace: cfg.Workspace},
		tools.WriteFileTool{Workspace: cfg.Workspace},
		tools.ListDirTool{Workspace: cfg.Workspace},
		tools.RunShellTool{Workspace: cfg.Workspace, TimeoutMS: cfg.Agent.ShellTimeoutMS},
		tools.HTTPFetchTool{},
		tools.ThinkTool{},
		tools.AskHumanTool{},
		tools.TaskCompleteTool{},
		tools.TaskFailTool{},
	)
	return &runtimeParts{
		cfg:      cfg,
		client:   client,
		registry: registry,
		log:      eventlog.New(),
	}, nil
}

func (p *runtimeParts) loopConfig(source string, maxSteps int) agent.Config {
	if maxSteps <= 0 {
		maxSteps = p.cfg.Agent.MaxSteps
	}
	return agent.Config{
		Client:       p.client,
		Tools:        p.registry,
		Log:          p.log,
		SystemPrompt: p.cfg.Agent.SystemPrompt,
		MaxSteps:     maxSteps,
		MaxTurns:     p.cfg.Agent.MaxTurns,
		Detector: agent.Detector{
			Window:       p.cfg.Agent.StuckWindow,
			MinAssistant: p.cfg.Agent.StuckMinAssistant,
		},
		Source: source,
	}
}

func resolveWorkspace(workspace string) (string, error) {
	ws := workspace
	if ws == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		ws = cwd
	}
	abs, err := filepath.Abs(ws)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("workspace %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("workspace %s is not a directory", abs)
	}
	return abs, nil
}

// printEvents renders the shared log to stdout, optionally filtered to one
// source.
func printEvents(log *eventlog.Log, source string, verbose bool) {
	for _, e := range log.Events() {
		if source != "" && e.Source != source {
			continue
		}
		if !verbose && e.Level == eventlog.LevelDebug {
			continue
		}
		fmt.Println(e.String())
	}
}
