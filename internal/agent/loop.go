package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/johunsang/deepseek-code/internal/eventlog"
	"github.com/johunsang/deepseek-code/internal/llm"
	"github.com/johunsang/deepseek-code/internal/tools"
)

// ErrAlreadyRunning is returned by Run when the loop is not idle. A loop
// that finished or errored needs an explicit Reset before it can run again.
var ErrAlreadyRunning = errors.New("agent loop is not idle")

const defaultMaxSteps = 20

const defaultSystemPrompt = "You are an autonomous coding agent. Work on the task step by step " +
	"using the available tools. When the task is done call task_complete with a summary; " +
	"if it cannot be done call task_fail with the reason."

// Config carries a loop's collaborators and budgets. Client and Tools are
// required; everything else has a working default.
type Config struct {
	Client llm.Client
	Tools  *tools.Registry
	Log    *eventlog.Log

	// SystemPrompt seeds the conversation; empty selects the default
	// coding-agent prompt.
	SystemPrompt string
	// MaxSteps bounds model round-trips per Run (default 20).
	MaxSteps int
	// MaxTurns bounds conversation memory (default 50).
	MaxTurns int
	Detector Detector
	// Source labels this loop's log events (a task id or stage name).
	Source string
}

// Result is the terminal outcome of a Run that did not fault. Budget
// exhaustion is a Result, not an error.
type Result struct {
	Success bool
	Message string
	Steps   int
	Usage   llm.Usage
	// BudgetExhausted marks a run that hit MaxSteps without a
	// termination signal.
	BudgetExhausted bool
	// AwaitHuman marks a run that stopped to ask the operator a
	// question; Message carries the question.
	AwaitHuman bool
}

// Loop drives one task: repeated model requests with tool dispatch until a
// termination signal, a fault, or the step budget. One Run at a time; state
// guards re-entrancy.
type Loop struct {
	cfg    Config
	broker *tools.Broker

	mu     sync.Mutex
	state  State
	steps  int
	memory *Memory
	usage  llm.Usage
}

func NewLoop(cfg Config) (*Loop, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("agent loop requires a model client")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("agent loop requires a tool registry")
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = defaultMaxSteps
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.Source == "" {
		cfg.Source = "agent"
	}
	return &Loop{
		cfg:    cfg,
		broker: tools.NewBroker(cfg.Tools),
		memory: NewMemory(cfg.MaxTurns),
	}, nil
}

func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loop) Steps() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.steps
}

// Reset returns a terminal loop to idle with fresh memory and counters.
func (l *Loop) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateRunning {
		return
	}
	l.state = StateIdle
	l.steps = 0
	l.usage = llm.Usage{}
	l.memory = NewMemory(l.cfg.MaxTurns)
	l.broker = tools.NewBroker(l.cfg.Tools)
}

// Run executes the step loop for one request. It returns a Result unless a
// transport or logic fault interrupts the loop, in which case the loop ends
// in the error state and the fault is returned.
func (l *Loop) Run(ctx context.Context, request string) (Result, error) {
	l.mu.Lock()
	if l.state != StateIdle {
		state := l.state
		l.mu.Unlock()
		return Result{}, fmt.Errorf("%w (state %s)", ErrAlreadyRunning, state)
	}
	l.state = StateRunning
	l.mu.Unlock()

	log := l.cfg.Log
	log.Infof(l.cfg.Source, "run started (max %d steps)", l.cfg.MaxSteps)
	l.memory.Append(llm.ChatMessage{Role: llm.RoleSystem, Content: l.cfg.SystemPrompt})
	l.memory.Append(llm.ChatMessage{Role: llm.RoleUser, Content: request})

	defs := l.cfg.Tools.Definitions()
	for l.steps < l.cfg.MaxSteps {
		if err := ctx.Err(); err != nil {
			return Result{}, l.fault(fmt.Errorf("run cancelled: %w", err))
		}
		l.mu.Lock()
		l.steps++
		step := l.steps
		l.mu.Unlock()
		log.Infof(l.cfg.Source, "step %d/%d", step, l.cfg.MaxSteps)

		if l.cfg.Detector.Stuck(l.memory.Recent(l.cfg.Detector.window())) {
			log.Warnf(l.cfg.Source, "repetition detected, injecting corrective instruction")
			l.memory.Append(llm.ChatMessage{Role: llm.RoleSystem, Content: nudge})
		}

		resp, err := l.cfg.Client.Chat(ctx, llm.Request{
			Messages:   l.memory.All(),
			Tools:      defs,
			ToolChoice: llm.ToolChoiceAuto,
		})
		if err != nil {
			return Result{}, l.fault(fmt.Errorf("model request failed: %w", err))
		}
		l.mu.Lock()
		l.usage.Add(resp.Usage)
		l.mu.Unlock()

		l.memory.Append(llm.ChatMessage{
			Role:      llm.RoleAssistant,
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		})
		if len(resp.ToolCalls) == 0 {
			// No tool calls and no termination signal: keep looping and
			// let the model converge on a termination tool.
			continue
		}

		// Every requested call gets exactly one tool-result turn before
		// the next model request, in the order the model emitted them.
		var terminal *tools.Result
		for _, call := range resp.ToolCalls {
			res, cached := l.broker.Resolve(ctx, call.Name, call.Arguments)
			if cached {
				log.Debugf(l.cfg.Source, "tool %s served from cache", call.Name)
			} else if res.Failed() {
				log.Warnf(l.cfg.Source, "tool %s failed: %s", call.Name, res.Err)
			} else {
				log.Infof(l.cfg.Source, "tool %s ok", call.Name)
			}
			l.memory.Append(llm.ChatMessage{
				Role:       llm.RoleTool,
				Content:    res.Text(),
				ToolCallID: call.ID,
			})
			if res.Signal.Terminal() && terminal == nil {
				r := res
				terminal = &r
			}
		}
		if terminal != nil {
			return l.finish(*terminal), nil
		}
	}

	log.Warnf(l.cfg.Source, "step budget exhausted after %d steps", l.cfg.MaxSteps)
	l.mu.Lock()
	l.state = StateFinished
	res := Result{
		Success:         true,
		Message:         fmt.Sprintf("reached the maximum of %d steps without completing the task", l.cfg.MaxSteps),
		Steps:           l.steps,
		Usage:           l.usage,
		BudgetExhausted: true,
	}
	l.mu.Unlock()
	return res, nil
}

// Memory exposes the conversation for inspection after Run returns.
func (l *Loop) Memory() []llm.ChatMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.memory.All()
}

func (l *Loop) Usage() llm.Usage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.usage
}

func (l *Loop) finish(res tools.Result) Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateFinished
	out := Result{
		Message: res.Output,
		Steps:   l.steps,
		Usage:   l.usage,
	}
	switch res.Signal {
	case tools.SignalTaskComplete:
		out.Success = true
		l.cfg.Log.Infof(l.cfg.Source, "task completed after %d steps", l.steps)
	case tools.SignalTaskFailed:
		l.cfg.Log.Errorf(l.cfg.Source, "task failed after %d steps: %s", l.steps, res.Output)
	case tools.SignalAwaitHuman:
		out.Success = true
		out.AwaitHuman = true
		l.cfg.Log.Infof(l.cfg.Source, "awaiting human input: %s", res.Output)
	}
	return out
}

func (l *Loop) fault(err error) error {
	l.mu.Lock()
	l.state = StateError
	l.mu.Unlock()
	l.cfg.Log.Errorf(l.cfg.Source, "%v", err)
	return err
}
