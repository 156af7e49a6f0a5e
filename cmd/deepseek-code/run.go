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
)

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	workspace := fs.String("workspace", "", "workspace directory (default: current)")
	maxSteps := fs.Int("max-steps", 0, "step budget override")
	verbose := fs.Bool("verbose", false, "include debug events in the log output")
	rest, err := parseFlagsLoose(fs, args)
	if err != nil {
		return err
	}
	task := strings.TrimSpace(strings.Join(rest, " "))
	if task == "" {
		return fmt.Errorf("run requires a task, e.g. deepseek-code run \"fix the failing test\"")
	}

	parts, err := buildRuntime(*workspace)
	if err != nil {
		return err
	}
	loop, err := agent.NewLoop(parts.loopConfig("run", *maxSteps))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := loop.Run(ctx, task)
	printEvents(parts.log, "", *verbose)
	if err != nil {
		return err
	}

	fmt.Println()
	switch {
	case res.AwaitHuman:
		fmt.Println("agent is blocked on a question:")
	case res.BudgetExhausted:
		fmt.Println("stopped at the step budget:")
	case res.Success:
		fmt.Println("task completed:")
	default:
		fmt.Println("task failed:")
	}
	fmt.Println("  " + res.Message)
	fmt.Printf("steps: %d  tokens: %d (prompt %d, completion %d)\n",
		res.Steps, res.Usage.TotalTokens, res.Usage.PromptTokens, res.Usage.CompletionTokens)
	return nil
}
