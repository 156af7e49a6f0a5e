package llm

import "context"

// Role values for chat messages. The tool role carries a result for exactly
// one tool call from the immediately preceding assistant message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Tool choice policies accepted by the chat-completions endpoint.
const (
	ToolChoiceNone     = "none"
	ToolChoiceAuto     = "auto"
	ToolChoiceRequired = "required"
)

type ChatMessage struct {
	Role       string
	Content    string
	ToolCallID string
	ToolCalls  []ToolCall
	// Images holds optional base64 payloads attached to user messages.
	Images []string
}

type ToolCall struct {
	ID        string
	Type      string
	Name      string
	Arguments string
}

type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Add accumulates another usage count into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

type Request struct {
	Model      string
	Messages   []ChatMessage
	Tools      []ToolDefinition
	ToolChoice string
}

type Response struct {
	Text         string
	Model        string
	FinishReason string
	ToolCalls    []ToolCall
	Usage        Usage
}

// Client is the single call style the step loop consumes: ordered messages
// in, optional tool calls out. Implementations translate transport and
// protocol errors into typed failures.
type Client interface {
	Name() string
	Chat(ctx context.Context, req Request) (Response, error)
}
