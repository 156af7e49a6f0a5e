package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/johunsang/deepseek-code/internal/llm"
)

// Signal is an optional terminal marker a tool can attach to its result.
// The step loop stops on TaskComplete, TaskFailed and AwaitHuman.
type Signal int

const (
	SignalNone Signal = iota
	SignalTaskComplete
	SignalTaskFailed
	SignalAwaitHuman
)

func (s Signal) Terminal() bool { return s != SignalNone }

func (s Signal) String() string {
	switch s {
	case SignalTaskComplete:
		return "task_complete"
	case SignalTaskFailed:
		return "task_failed"
	case SignalAwaitHuman:
		return "await_human"
	default:
		return "none"
	}
}

// Result is the structured outcome of one tool invocation. Exactly one of
// Output or Err is meaningful; Signal may accompany either.
type Result struct {
	Output string
	Err    string
	Signal Signal
}

func (r Result) Failed() bool { return r.Err != "" }

// Text is the content appended to the conversation as the tool-result turn.
func (r Result) Text() string {
	if r.Err != "" {
		return "error: " + r.Err
	}
	if strings.TrimSpace(r.Output) == "" {
		return "(no output)"
	}
	return r.Output
}

func errResult(format string, args ...any) Result {
	return Result{Err: fmt.Sprintf(format, args...)}
}

// Tool is the single capability all variants implement: given a validated
// argument map, produce output text or fail with a human-readable reason.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) Result
}

// Cacheable marks tools whose results may be reused for identical arguments
// within one execution (read-only tools).
type Cacheable interface {
	Cacheable() bool
}

// Registry maps tool names to implementations. It is populated once at
// construction and read-only afterwards, so it is safe to share across
// concurrently running loops without locking.
type Registry struct {
	tools map[string]Tool
	order []string
}

func NewRegistry(list ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(list))}
	for _, t := range list {
		r.Register(t)
	}
	return r
}

// Register adds a tool, replacing any previous tool with the same name.
func (r *Registry) Register(t Tool) {
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return
	}
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

func (r *Registry) Names() []string {
	out := append([]string(nil), r.order...)
	sort.Strings(out)
	return out
}

// Definitions returns the schema set advertised to the model.
func (r *Registry) Definitions() []llm.ToolDefinition {
	out := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, llm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return out
}

// Resolve executes the named tool with the raw JSON arguments blob. Every
// failure mode (unknown name, malformed arguments, a panicking tool) is
// converted into a failed Result; Resolve never returns an error to callers.
func (r *Registry) Resolve(ctx context.Context, name, argumentsBlob string) (res Result) {
	t, ok := r.tools[strings.TrimSpace(name)]
	if !ok {
		return errResult("tool %q not found", name)
	}

	args := map[string]any{}
	if strings.TrimSpace(argumentsBlob) != "" {
		var decoded any
		if err := json.Unmarshal([]byte(argumentsBlob), &decoded); err != nil {
			return errResult("invalid tool arguments JSON: %v", err)
		}
		obj, ok := decoded.(map[string]any)
		if !ok {
			return errResult("tool arguments must be a JSON object")
		}
		args = obj
	}

	defer func() {
		if rec := recover(); rec != nil {
			res = errResult("tool %q panicked: %v", name, rec)
		}
	}()
	return t.Execute(ctx, args)
}

func stringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	if s, ok := args[key].(string); ok {
		return s
	}
	return ""
}

func intArg(args map[string]any, key string) (int, bool) {
	if args == nil {
		return 0, false
	}
	switch n := args[key].(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func boolArg(args map[string]any, key string) (bool, bool) {
	if args == nil {
		return false, false
	}
	switch b := args[key].(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes", "on":
			return true, true
		case "false", "0", "no", "off":
			return false, true
		}
	}
	return false, false
}
