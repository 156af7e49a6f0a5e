package agent

import (
	"strings"

	"github.com/johunsang/deepseek-code/internal/llm"
)

// Detector spots a non-progressing loop by exact duplicate assistant
// content inside a short window of recent turns. It is a heuristic:
// paraphrased repetition and patterns longer than the window slip through.
type Detector struct {
	// Window is how many recent turns to inspect (default 4).
	Window int
	// MinAssistant is the minimum number of assistant turns inside the
	// window before a verdict is attempted (default 2).
	MinAssistant int
}

func (d Detector) window() int {
	if d.Window <= 0 {
		return 4
	}
	return d.Window
}

func (d Detector) minAssistant() int {
	if d.MinAssistant <= 0 {
		return 2
	}
	return d.MinAssistant
}

// Stuck reports whether the tail of the conversation shows duplicated
// assistant turns. A turn is identified by its text content, or by its
// tool-call signature (name plus arguments) when it carries only tool
// calls, so distinct tool invocations never count as repetition.
func (d Detector) Stuck(recent []llm.ChatMessage) bool {
	if n := d.window(); len(recent) > n {
		recent = recent[len(recent)-n:]
	}
	seen := map[string]bool{}
	assistant := 0
	for _, t := range recent {
		if t.Role != llm.RoleAssistant {
			continue
		}
		key := assistantTurnKey(t)
		if key == "" {
			continue
		}
		assistant++
		seen[key] = true
	}
	if assistant < d.minAssistant() {
		return false
	}
	return len(seen) < assistant
}

func assistantTurnKey(t llm.ChatMessage) string {
	if c := strings.TrimSpace(t.Content); c != "" {
		return c
	}
	if len(t.ToolCalls) == 0 {
		return ""
	}
	var b strings.Builder
	for _, tc := range t.ToolCalls {
		b.WriteString(tc.Name)
		b.WriteString("(")
		b.WriteString(strings.TrimSpace(tc.Arguments))
		b.WriteString(");")
	}
	return b.String()
}

// nudge is the corrective system turn injected when Stuck fires.
const nudge = "You appear to be repeating yourself without making progress. " +
	"Change your approach, or call task_complete / task_fail to end the task."
