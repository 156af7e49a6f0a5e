package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.deepseek.com"
	defaultModel   = "deepseek-chat"
)

// APIError is the typed failure for a non-success response from the remote
// endpoint. It carries the remote error message when one was returned.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("deepseek status %d", e.StatusCode)
	}
	return fmt.Sprintf("deepseek status %d: %s", e.StatusCode, e.Message)
}

type DeepSeekClient struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

type DeepSeekConfig struct {
	Name      string
	BaseURL   string
	APIKey    string
	Model     string
	TimeoutMS int
}

func NewDeepSeek(cfg DeepSeekConfig) *DeepSeekClient {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &DeepSeekClient{
		name:    coalesce(cfg.Name, "deepseek"),
		baseURL: coalesce(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"), defaultBaseURL),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		model:   coalesce(cfg.Model, defaultModel),
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *DeepSeekClient) Name() string { return c.name }

func (c *DeepSeekClient) Chat(ctx context.Context, req Request) (Response, error) {
	if c.apiKey == "" {
		return Response{}, fmt.Errorf("deepseek client requires an API key (set DEEPSEEK_API_KEY)")
	}
	model := coalesce(req.Model, c.model)
	body, err := json.Marshal(c.payload(req, model))
	if err != nil {
		return Response{}, fmt.Errorf("marshal deepseek payload: %w", err)
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create deepseek request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "application/json")
	hreq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(hreq)
	if err != nil {
		return Response{}, fmt.Errorf("deepseek http call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return Response{}, fmt.Errorf("read deepseek response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return Response{}, &APIError{StatusCode: resp.StatusCode, Message: remoteErrorMessage(respBody)}
	}

	var out chatCompletionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return Response{}, fmt.Errorf("parse deepseek response: %w", err)
	}
	if len(out.Choices) == 0 {
		return Response{}, fmt.Errorf("deepseek response had no choices")
	}
	choice := out.Choices[0]

	toolCalls := make([]ToolCall, 0, len(choice.Message.ToolCalls))
	for _, tc := range choice.Message.ToolCalls {
		toolCalls = append(toolCalls, ToolCall{
			ID:        tc.ID,
			Type:      tc.Type,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return Response{
		Text:         messageContentString(choice.Message.Content),
		Model:        coalesce(out.Model, model),
		FinishReason: choice.FinishReason,
		ToolCalls:    toolCalls,
		Usage: Usage{
			PromptTokens:     out.Usage.PromptTokens,
			CompletionTokens: out.Usage.CompletionTokens,
			TotalTokens:      out.Usage.TotalTokens,
		},
	}, nil
}

func (c *DeepSeekClient) payload(req Request, model string) map[string]any {
	messages := make([]map[string]any, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := strings.TrimSpace(m.Role)
		if role == "" {
			continue
		}
		msg := map[string]any{"role": role}
		if len(m.ToolCalls) > 0 {
			toolCalls := make([]map[string]any, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				toolCalls = append(toolCalls, map[string]any{
					"id":   tc.ID,
					"type": coalesce(tc.Type, "function"),
					"function": map[string]any{
						"name":      tc.Name,
						"arguments": tc.Arguments,
					},
				})
			}
			msg["tool_calls"] = toolCalls
			if m.Content == "" {
				msg["content"] = nil
			} else {
				msg["content"] = m.Content
			}
		} else {
			msg["content"] = m.Content
		}
		if strings.TrimSpace(m.ToolCallID) != "" {
			msg["tool_call_id"] = m.ToolCallID
		}
		messages = append(messages, msg)
	}

	payload := map[string]any{
		"model":    model,
		"messages": messages,
		"stream":   false,
	}
	if len(req.Tools) > 0 {
		tools := make([]map[string]any, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  t.Parameters,
				},
			})
		}
		payload["tools"] = tools
		payload["tool_choice"] = coalesce(strings.TrimSpace(req.ToolChoice), ToolChoiceAuto)
	}
	return payload
}

type chatCompletionResponse struct {
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   usageBody    `json:"usage"`
}

type chatChoice struct {
	FinishReason string          `json:"finish_reason"`
	Message      responseMessage `json:"message"`
}

type responseMessage struct {
	Role      string             `json:"role"`
	Content   any                `json:"content"`
	ToolCalls []responseToolCall `json:"tool_calls,omitempty"`
}

type responseToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type usageBody struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type errorResponseBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

func remoteErrorMessage(body []byte) string {
	var e errorResponseBody
	if json.Unmarshal(body, &e) == nil {
		if m := strings.TrimSpace(e.Error.Message); m != "" {
			return m
		}
		if m := strings.TrimSpace(e.Message); m != "" {
			return m
		}
	}
	return trim(string(body), 300)
}

func messageContentString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func coalesce(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func trim(s string, max int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
