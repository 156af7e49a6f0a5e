package pool

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/johunsang/deepseek-code/internal/agent"
	"github.com/johunsang/deepseek-code/internal/eventlog"
	"github.com/johunsang/deepseek-code/internal/llm"
	"github.com/johunsang/deepseek-code/internal/tools"
)

// stubClient completes on the first request unless fail is set, in which
// case it returns a transport fault.
type stubClient struct {
	fail  bool
	calls int64
}

func (c *stubClient) Name() string { return "stub" }

func (c *stubClient) Chat(_ context.Context, _ llm.Request) (llm.Response, error) {
	atomic.AddInt64(&c.calls, 1)
	if c.fail {
		return llm.Response{}, &llm.APIError{StatusCode: 502, Message: "bad gateway"}
	}
	return llm.Response{
		ToolCalls: []llm.ToolCall{{ID: "c1", Name: "task_complete", Arguments: `{"message":"done"}`}},
		Usage:     llm.Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
	}, nil
}

func factoryFor(log *eventlog.Log, clientFor func(prompt string) llm.Client) LoopFactory {
	return func(taskID, prompt string) (*agent.Loop, error) {
		return agent.NewLoop(agent.Config{
			Client:   clientFor(prompt),
			Tools:    tools.NewRegistry(tools.TaskCompleteTool{}, tools.TaskFailTool{}),
			Log:      log,
			MaxSteps: 3,
			Source:   taskID,
		})
	}
}

func TestParallelTasksWithOneFailure(t *testing.T) {
	log := eventlog.New()
	sup := NewSupervisor(factoryFor(log, func(prompt string) llm.Client {
		return &stubClient{fail: prompt == "task 2"}
	}), log, CostRates{PromptPerMTokens: 0.27, CompletionPerMTokens: 1.10})

	ctx := context.Background()
	var submitted []string
	var failing string
	for i := 0; i < 3; i++ {
		id := sup.Submit(ctx, fmt.Sprintf("task %d", i+1))
		if i == 1 {
			failing = id
		} else {
			submitted = append(submitted, id)
		}
	}
	sup.Wait()

	sum := sup.Summary()
	if sum.Total != 3 || sum.Succeeded != 2 || sum.Failed != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	for _, id := range submitted {
		task, ok := sup.Task(id)
		if !ok || !task.Succeeded() {
			t.Fatalf("task %s should have succeeded: %+v", id, task)
		}
		if task.Usage.TotalTokens == 0 {
			t.Fatalf("task %s reported zero tokens", id)
		}
	}
	failed, _ := sup.Task(failing)
	if failed.Status != StatusFailed || !strings.Contains(failed.Err, "bad gateway") {
		t.Fatalf("failing task %+v", failed)
	}
	if sum.Cost <= 0 {
		t.Fatalf("expected nonzero aggregate cost, got %f", sum.Cost)
	}
}

func TestPanicInFactoryIsContained(t *testing.T) {
	log := eventlog.New()
	sup := NewSupervisor(func(taskID, prompt string) (*agent.Loop, error) {
		if prompt == "panics" {
			panic("factory exploded")
		}
		return agent.NewLoop(agent.Config{
			Client:   &stubClient{},
			Tools:    tools.NewRegistry(tools.TaskCompleteTool{}),
			Log:      log,
			MaxSteps: 2,
			Source:   taskID,
		})
	}, log, CostRates{})

	ctx := context.Background()
	first := sup.Submit(ctx, "panics")
	sup.Wait()
	second := sup.Submit(ctx, "survives")
	sup.Wait()

	a, _ := sup.Task(first)
	if a.Status != StatusFailed || !strings.Contains(a.Err, "panicked") {
		t.Fatalf("panicking task %+v", a)
	}
	b, _ := sup.Task(second)
	if !b.Succeeded() {
		t.Fatalf("second task should be unaffected: %+v", b)
	}
}

func TestCompletionsDeliverSettledTasks(t *testing.T) {
	log := eventlog.New()
	sup := NewSupervisor(factoryFor(log, func(string) llm.Client {
		return &stubClient{}
	}), log, CostRates{})

	id := sup.Submit(context.Background(), "queued work")
	select {
	case task := <-sup.Completions():
		if task.ID != id || task.Status != StatusCompleted {
			t.Fatalf("unexpected completion %+v", task)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no completion report delivered")
	}
}

func TestSnapshotKeepsSubmissionOrder(t *testing.T) {
	log := eventlog.New()
	sup := NewSupervisor(factoryFor(log, func(string) llm.Client {
		return &stubClient{}
	}), log, CostRates{})

	ctx := context.Background()
	ids := []string{sup.Submit(ctx, "a"), sup.Submit(ctx, "b"), sup.Submit(ctx, "c")}
	sup.Wait()

	snap := sup.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(snap))
	}
	for i, task := range snap {
		if task.ID != ids[i] {
			t.Fatalf("snapshot order diverged at %d", i)
		}
	}
}
