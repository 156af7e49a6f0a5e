package tools

import (
	"context"
	"strings"
)

// Control tools carry no business logic; they let the model terminate the
// loop, surrender to a human, or record intermediate reasoning as a step.

type TaskCompleteTool struct{}

func (TaskCompleteTool) Name() string { return "task_complete" }
func (TaskCompleteTool) Description() string {
	return "Signals that the task is finished. Call with a final summary of what was done."
}
func (TaskCompleteTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"message": map[string]any{"type": "string", "description": "final summary for the user"},
	}, "message")
}
func (TaskCompleteTool) Execute(_ context.Context, args map[string]any) Result {
	msg := strings.TrimSpace(stringArg(args, "message"))
	if msg == "" {
		msg = "task completed"
	}
	return Result{Output: msg, Signal: SignalTaskComplete}
}

type TaskFailTool struct{}

func (TaskFailTool) Name() string { return "task_fail" }
func (TaskFailTool) Description() string {
	return "Signals that the task cannot be completed. Call with the reason."
}
func (TaskFailTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"reason": map[string]any{"type": "string", "description": "why the task failed"},
	}, "reason")
}
func (TaskFailTool) Execute(_ context.Context, args map[string]any) Result {
	reason := strings.TrimSpace(stringArg(args, "reason"))
	if reason == "" {
		reason = "task failed"
	}
	return Result{Output: reason, Signal: SignalTaskFailed}
}

type AskHumanTool struct{}

func (AskHumanTool) Name() string { return "ask_human" }
func (AskHumanTool) Description() string {
	return "Pauses the task and asks the human operator a question. Use only when blocked."
}
func (AskHumanTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"question": map[string]any{"type": "string", "description": "question for the operator"},
	}, "question")
}
func (AskHumanTool) Execute(_ context.Context, args map[string]any) Result {
	q := strings.TrimSpace(stringArg(args, "question"))
	if q == "" {
		return errResult("ask_human requires args.question (string)")
	}
	return Result{Output: q, Signal: SignalAwaitHuman}
}

type ThinkTool struct{}

func (ThinkTool) Name() string { return "think" }
func (ThinkTool) Description() string {
	return "Records a thought or plan without taking any external action."
}
func (ThinkTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"thought": map[string]any{"type": "string"},
	}, "thought")
}
func (ThinkTool) Execute(_ context.Context, args map[string]any) Result {
	t := strings.TrimSpace(stringArg(args, "thought"))
	if t == "" {
		return errResult("think requires args.thought (string)")
	}
	return Result{Output: "noted"}
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
