package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/johunsang/deepseek-code/internal/pipeline"
)

func cmdPipeline(args []string) error {
	fs := flag.NewFlagSet("pipeline", flag.ContinueOnError)
	workspace := fs.String("workspace", "", "workspace directory (default: current)")
	stageSteps := fs.Int("stage-steps", 10, "step budget per stage")
	verbose := fs.Bool("verbose", false, "include debug events in the log output")
	rest, err := parseFlagsLoose(fs, args)
	if err != nil {
		return err
	}
	task := strings.TrimSpace(strings.Join(rest, " "))
	if task == "" {
		return fmt.Errorf("pipeline requires a task")
	}

	parts, err := buildRuntime(*workspace)
	if err != nil {
		return err
	}
	p := &pipeline.Pipeline{
		Client: parts.client,
		Tools:  parts.registry,
		Log:    parts.log,
		Stages: pipeline.DefaultStages(*stageSteps),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := p.Run(ctx, task)
	printEvents(parts.log, "", *verbose)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Print(out.Describe())
	if out.Success {
		fmt.Println("\nfinal result:")
		fmt.Println("  " + out.Final)
	}
	return nil
}
