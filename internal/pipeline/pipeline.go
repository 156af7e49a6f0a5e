// Package pipeline runs a fixed ordered sequence of agent loops where each
// stage's output feeds the next stage's prompt. Stages fail fast: the first
// failed stage aborts the rest, keeping partial results retrievable.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/johunsang/deepseek-code/internal/agent"
	"github.com/johunsang/deepseek-code/internal/eventlog"
	"github.com/johunsang/deepseek-code/internal/llm"
	"github.com/johunsang/deepseek-code/internal/tools"
)

// Stage is immutable configuration for one pipeline phase. Prompt builds
// the stage's task text from the original request and the previous stage's
// output (empty for the first stage).
type Stage struct {
	Name     string
	MaxSteps int
	Prompt   func(request, previous string) string
}

// StageResult is the settled outcome of one stage.
type StageResult struct {
	Stage  string
	Result agent.Result
	Err    string
}

func (r StageResult) Failed() bool {
	return r.Err != "" || !r.Result.Success
}

// Outcome is the pipeline's aggregate report. Final carries the last
// stage's message only when every stage succeeded.
type Outcome struct {
	Success bool
	Stages  []StageResult
	Final   string
	Usage   llm.Usage
}

// Pipeline threads one request through its stages on fresh loops built
// from the shared client and registry.
type Pipeline struct {
	Client llm.Client
	Tools  *tools.Registry
	Log    *eventlog.Log
	Stages []Stage
}

// Run executes the stages in order. Errors inside a stage settle as a
// failed StageResult; Run itself only fails on configuration problems.
func (p *Pipeline) Run(ctx context.Context, request string) (Outcome, error) {
	if len(p.Stages) == 0 {
		return Outcome{}, fmt.Errorf("pipeline has no stages")
	}
	log := p.Log
	if log == nil {
		log = eventlog.New()
	}

	out := Outcome{}
	previous := ""
	for i, stage := range p.Stages {
		log.Infof(stage.Name, "stage %d/%d starting", i+1, len(p.Stages))
		loop, err := agent.NewLoop(agent.Config{
			Client:   p.Client,
			Tools:    p.Tools,
			Log:      log,
			MaxSteps: stage.MaxSteps,
			Source:   stage.Name,
		})
		if err != nil {
			return out, fmt.Errorf("stage %q: %w", stage.Name, err)
		}

		prompt := request
		if stage.Prompt != nil {
			prompt = stage.Prompt(request, previous)
		} else if previous != "" {
			prompt = request + "\n\nPrevious stage output:\n" + previous
		}

		res, runErr := loop.Run(ctx, prompt)
		sr := StageResult{Stage: stage.Name, Result: res}
		if runErr != nil {
			sr.Err = runErr.Error()
		}
		out.Stages = append(out.Stages, sr)
		out.Usage.Add(res.Usage)

		if sr.Failed() {
			log.Errorf(stage.Name, "stage failed, aborting pipeline")
			return out, nil
		}
		previous = res.Message
	}

	out.Success = true
	out.Final = previous
	return out, nil
}

// DefaultStages is the stock plan / implement / review sequence.
func DefaultStages(stepsPerStage int) []Stage {
	if stepsPerStage <= 0 {
		stepsPerStage = 10
	}
	return []Stage{
		{
			Name:     "plan",
			MaxSteps: stepsPerStage,
			Prompt: func(request, _ string) string {
				return "Produce a concrete step-by-step plan for this task, then call task_complete with the plan:\n" + request
			},
		},
		{
			Name:     "implement",
			MaxSteps: stepsPerStage,
			Prompt: func(request, previous string) string {
				return "Carry out this task following the plan below. Call task_complete with a summary of what was done.\n\nTask:\n" +
					request + "\n\nPlan:\n" + previous
			},
		},
		{
			Name:     "review",
			MaxSteps: stepsPerStage,
			Prompt: func(request, previous string) string {
				return "Review the work described below against the original task. Call task_complete with your verdict and any fixes applied.\n\nTask:\n" +
					request + "\n\nWork summary:\n" + previous
			},
		},
	}
}

// Describe renders a short textual summary of an outcome for the CLI.
func (o Outcome) Describe() string {
	var b strings.Builder
	for i, s := range o.Stages {
		status := "ok"
		if s.Failed() {
			status = "failed"
		}
		fmt.Fprintf(&b, "stage %d (%s): %s, %d steps\n", i+1, s.Stage, status, s.Result.Steps)
	}
	if o.Success {
		fmt.Fprintf(&b, "pipeline succeeded, %d tokens\n", o.Usage.TotalTokens)
	} else if n := len(o.Stages); n > 0 {
		fmt.Fprintf(&b, "pipeline failed at stage %d (%s)\n", n, o.Stages[n-1].Stage)
	}
	return b.String()
}
