package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/johunsang/deepseek-code/internal/agent"
	"github.com/johunsang/deepseek-code/internal/pool"
)

// cmdChat is the long-lived interactive queue: each input line becomes a
// background task, completions are reported as they settle, and new input
// is accepted while earlier tasks still run.
func cmdChat(args []string) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	workspace := fs.String("workspace", "", "workspace directory (default: current)")
	sessionID := fs.String("session", "", "session id to create or resume")
	maxSteps := fs.Int("max-steps", 0, "step budget per task")
	if _, err := parseFlagsLoose(fs, args); err != nil {
		return err
	}

	parts, err := buildRuntime(*workspace)
	if err != nil {
		return err
	}
	meta, created, err := openOrCreateSession(parts.cfg.Workspace, *sessionID)
	if err != nil {
		return err
	}
	if created {
		fmt.Printf("started session %s\n", meta.ID)
	} else {
		fmt.Printf("resumed session %s (%d past tasks)\n", meta.ID, meta.Tasks)
	}

	sup := pool.NewSupervisor(func(taskID, _ string) (*agent.Loop, error) {
		return agent.NewLoop(parts.loopConfig(taskID, *maxSteps))
	}, parts.log, pool.CostRates{
		PromptPerMTokens:     parts.cfg.Cost.PromptPerMTokens,
		CompletionPerMTokens: parts.cfg.Cost.CompletionPerMTokens,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	prompts := map[string]string{}
	seq := meta.Tasks

	// record prints a settled task and persists it to the session.
	record := func(task pool.Task) {
		mu.Lock()
		seq++
		entrySeq := seq
		prompt := prompts[task.ID]
		mu.Unlock()

		reportTask(task, prompt)
		entry := sessionEntry{
			Seq:     entrySeq,
			Prompt:  prompt,
			Status:  string(task.Status),
			Message: task.Result.Message,
			Error:   task.Err,
			Tokens:  task.Usage.TotalTokens,
		}
		if err := appendSessionEntry(parts.cfg.Workspace, meta.ID, entry); err != nil {
			fmt.Fprintln(os.Stderr, "warning: could not persist session entry:", err)
		}
		meta.Tasks = entrySeq
		meta.UpdatedAt = time.Now()
		_ = saveSessionMeta(parts.cfg.Workspace, meta)
	}

	// Completion reporter: settles tasks without blocking input.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case task := <-sup.Completions():
				record(task)
			}
		}
	}()

	fmt.Println("enter a task per line; /status shows tasks, /quit exits")
	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

input:
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			break
		}
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit" || line == "quit" || line == "exit":
			break input
		case line == "/status":
			printStatus(sup)
			continue
		case line == "/summary":
			sum := sup.Summary()
			fmt.Printf("%d/%d succeeded  tokens: %d  cost: $%.4f\n",
				sum.Succeeded, sum.Total, sum.Usage.TotalTokens, sum.Cost)
			continue
		}
		id := sup.Submit(ctx, line)
		mu.Lock()
		prompts[id] = line
		mu.Unlock()
		fmt.Printf("queued %s\n", shortID(id))
	}

	if n := sup.Running(); n > 0 {
		fmt.Printf("waiting for %d running task(s)...\n", n)
	}
	sup.Wait()
	cancel()
	wg.Wait()
	// Settle any reports still buffered after the reporter stopped.
	for {
		select {
		case task := <-sup.Completions():
			record(task)
		default:
			sum := sup.Summary()
			fmt.Printf("session %s: %d/%d succeeded  tokens: %d  cost: $%.4f\n",
				meta.ID, sum.Succeeded, sum.Total, sum.Usage.TotalTokens, sum.Cost)
			return sc.Err()
		}
	}
}

func reportTask(task pool.Task, prompt string) {
	fmt.Println()
	switch {
	case task.Status == pool.StatusFailed:
		fmt.Printf("task %s failed: %s\n", shortID(task.ID), task.Err)
	case task.Result.AwaitHuman:
		fmt.Printf("task %s is asking: %s\n", shortID(task.ID), task.Result.Message)
	case !task.Result.Success:
		fmt.Printf("task %s gave up: %s\n", shortID(task.ID), task.Result.Message)
	default:
		fmt.Printf("task %s done (%d steps): %s\n", shortID(task.ID), task.Result.Steps, task.Result.Message)
	}
	if prompt != "" {
		fmt.Printf("  task was: %s\n", prompt)
	}
	fmt.Print("> ")
}

func printStatus(sup *pool.Supervisor) {
	snap := sup.Snapshot()
	if len(snap) == 0 {
		fmt.Println("no tasks yet")
		return
	}
	for _, t := range snap {
		fmt.Printf("%s  %-9s  %s\n", shortID(t.ID), t.Status, t.Prompt)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
