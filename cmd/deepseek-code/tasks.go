package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/johunsang/deepseek-code/internal/agent"
	"github.com/johunsang/deepseek-code/internal/pool"
)

func cmdTasks(args []string) error {
	fs := flag.NewFlagSet("tasks", flag.ContinueOnError)
	workspace := fs.String("workspace", "", "workspace directory (default: current)")
	maxSteps := fs.Int("max-steps", 0, "step budget per task")
	verbose := fs.Bool("verbose", false, "include debug events in the log output")
	rest, err := parseFlagsLoose(fs, args)
	if err != nil {
		return err
	}
	prompts := make([]string, 0, len(rest))
	for _, r := range rest {
		if s := strings.TrimSpace(r); s != "" {
			prompts = append(prompts, s)
		}
	}
	if len(prompts) == 0 {
		return fmt.Errorf("tasks requires at least one task argument")
	}

	parts, err := buildRuntime(*workspace)
	if err != nil {
		return err
	}
	sup := pool.NewSupervisor(func(taskID, _ string) (*agent.Loop, error) {
		return agent.NewLoop(parts.loopConfig(taskID, *maxSteps))
	}, parts.log, pool.CostRates{
		PromptPerMTokens:     parts.cfg.Cost.PromptPerMTokens,
		CompletionPerMTokens: parts.cfg.Cost.CompletionPerMTokens,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("running %d tasks in parallel\n", len(prompts))
	for _, p := range prompts {
		sup.Submit(ctx, p)
	}
	sup.Wait()

	printEvents(parts.log, "", *verbose)
	fmt.Println()
	for i, task := range sup.Snapshot() {
		status := string(task.Status)
		if task.Status == pool.StatusCompleted && !task.Result.Success {
			status = "unsuccessful"
		}
		fmt.Printf("[%d] %s  %s\n", i+1, status, task.Prompt)
		if task.Err != "" {
			fmt.Printf("    error: %s\n", task.Err)
		} else if task.Result.Message != "" {
			fmt.Printf("    %s\n", task.Result.Message)
		}
	}

	sum := sup.Summary()
	fmt.Printf("\n%d/%d succeeded  tokens: %d  cost: $%.4f\n",
		sum.Succeeded, sum.Total, sum.Usage.TotalTokens, sum.Cost)
	return nil
}
