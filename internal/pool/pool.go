// Package pool supervises concurrent agent loops: one isolated loop per
// submitted task, per-task fault containment, and aggregate usage/cost
// accounting across completions.
package pool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/johunsang/deepseek-code/internal/agent"
	"github.com/johunsang/deepseek-code/internal/eventlog"
	"github.com/johunsang/deepseek-code/internal/llm"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Task is the supervisor's view of one submission. Mutated only by the
// owning worker goroutine; read through Snapshot copies.
type Task struct {
	ID          string
	Prompt      string
	Status      Status
	StartedAt   time.Time
	CompletedAt time.Time
	Result      agent.Result
	Err         string
	Usage       llm.Usage

	seq int
}

// Succeeded reports whether the task completed with a successful result.
func (t Task) Succeeded() bool {
	return t.Status == StatusCompleted && t.Result.Success
}

// CostRates prices token usage in dollars per million tokens.
type CostRates struct {
	PromptPerMTokens     float64
	CompletionPerMTokens float64
}

func (r CostRates) Cost(u llm.Usage) float64 {
	return float64(u.PromptTokens)/1e6*r.PromptPerMTokens +
		float64(u.CompletionTokens)/1e6*r.CompletionPerMTokens
}

// Summary aggregates all settled tasks.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Usage     llm.Usage
	Cost      float64
}

// LoopFactory builds a fresh loop for one task. Each task gets its own loop
// so no conversation state is shared between workers.
type LoopFactory func(taskID, prompt string) (*agent.Loop, error)

// Supervisor runs submitted prompts on independent agent loops. A panic or
// fault in one task marks that task failed and leaves the others untouched.
type Supervisor struct {
	factory LoopFactory
	log     *eventlog.Log
	rates   CostRates

	mu    sync.Mutex
	tasks map[string]*Task
	seq   int
	wg    sync.WaitGroup

	doneCh chan Task
}

func NewSupervisor(factory LoopFactory, log *eventlog.Log, rates CostRates) *Supervisor {
	if log == nil {
		log = eventlog.New()
	}
	return &Supervisor{
		factory: factory,
		log:     log,
		rates:   rates,
		tasks:   map[string]*Task{},
		doneCh:  make(chan Task, 64),
	}
}

func (s *Supervisor) Log() *eventlog.Log { return s.log }

// Submit registers a task and starts its worker. It never blocks on the
// task itself.
func (s *Supervisor) Submit(ctx context.Context, prompt string) string {
	s.mu.Lock()
	s.seq++
	task := &Task{
		ID:     uuid.NewString(),
		Prompt: prompt,
		Status: StatusPending,
		seq:    s.seq,
	}
	s.tasks[task.ID] = task
	s.mu.Unlock()

	s.log.Infof(task.ID, "task submitted")
	s.wg.Add(1)
	go s.runTask(ctx, task.ID, prompt)
	return task.ID
}

func (s *Supervisor) runTask(ctx context.Context, id, prompt string) {
	defer s.wg.Done()
	defer func() {
		if rec := recover(); rec != nil {
			s.settle(id, agent.Result{}, fmt.Errorf("task panicked: %v", rec))
		}
	}()

	s.mu.Lock()
	task := s.tasks[id]
	task.Status = StatusRunning
	task.StartedAt = time.Now()
	s.mu.Unlock()

	loop, err := s.factory(id, prompt)
	if err != nil {
		s.settle(id, agent.Result{}, fmt.Errorf("build loop: %w", err))
		return
	}
	res, err := loop.Run(ctx, prompt)
	s.settle(id, res, err)
}

func (s *Supervisor) settle(id string, res agent.Result, err error) {
	s.mu.Lock()
	task := s.tasks[id]
	task.CompletedAt = time.Now()
	task.Result = res
	task.Usage = res.Usage
	if err != nil {
		task.Status = StatusFailed
		task.Err = err.Error()
	} else {
		task.Status = StatusCompleted
	}
	snapshot := *task
	s.mu.Unlock()

	if err != nil {
		s.log.Errorf(id, "task failed: %v", err)
	} else if !res.Success {
		s.log.Warnf(id, "task ended unsuccessfully: %s", res.Message)
	} else {
		s.log.Infof(id, "task completed in %d steps", res.Steps)
	}
	// Completion reports are best-effort: Snapshot stays authoritative when
	// nobody drains the channel.
	select {
	case s.doneCh <- snapshot:
	default:
	}
}

// Completions delivers settled tasks as they finish, for the interactive
// queue front end. Slow or absent consumers drop reports, never block
// workers.
func (s *Supervisor) Completions() <-chan Task {
	return s.doneCh
}

// Wait blocks until every submitted task has settled.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// Snapshot returns copies of all tasks in submission order.
func (s *Supervisor) Snapshot() []Task {
	s.mu.Lock()
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Task returns a copy of one task by id.
func (s *Supervisor) Task(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Running reports how many tasks have not settled yet.
func (s *Supervisor) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if t.Status == StatusPending || t.Status == StatusRunning {
			n++
		}
	}
	return n
}

// Summary aggregates usage and cost across settled tasks.
func (s *Supervisor) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum Summary
	for _, t := range s.tasks {
		if t.Status != StatusCompleted && t.Status != StatusFailed {
			continue
		}
		sum.Total++
		if t.Succeeded() {
			sum.Succeeded++
		} else {
			sum.Failed++
		}
		sum.Usage.Add(t.Usage)
	}
	sum.Cost = s.rates.Cost(sum.Usage)
	return sum
}
