package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDeepSeekChatParsesToolCallsAndUsage(t *testing.T) {
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		resp := map[string]any{
			"model": "deepseek-chat",
			"choices": []map[string]any{{
				"finish_reason": "tool_calls",
				"message": map[string]any{
					"role":    "assistant",
					"content": nil,
					"tool_calls": []map[string]any{{
						"id":   "call_1",
						"type": "function",
						"function": map[string]any{
							"name":      "read_file",
							"arguments": `{"path":"main.go"}`,
						},
					}},
				},
			}},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewDeepSeek(DeepSeekConfig{BaseURL: srv.URL, APIKey: "sk-test"})
	resp, err := c.Chat(context.Background(), Request{
		Messages: []ChatMessage{
			{Role: RoleSystem, Content: "you are a coding agent"},
			{Role: RoleUser, Content: "read main.go"},
		},
		Tools: []ToolDefinition{{
			Name:        "read_file",
			Description: "Reads a file",
			Parameters:  map[string]any{"type": "object"},
		}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "read_file" || resp.ToolCalls[0].ID != "call_1" {
		t.Fatalf("unexpected tool calls %+v", resp.ToolCalls)
	}
	if resp.Usage.TotalTokens != 19 || resp.Usage.PromptTokens != 12 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
	if resp.FinishReason != "tool_calls" {
		t.Fatalf("unexpected finish reason %q", resp.FinishReason)
	}
	if gotPayload["tool_choice"] != "auto" {
		t.Fatalf("expected tool_choice auto, got %v", gotPayload["tool_choice"])
	}
	msgs, ok := gotPayload["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("expected 2 messages in payload, got %v", gotPayload["messages"])
	}
}

func TestDeepSeekChatToolResultMessageShape(t *testing.T) {
	var gotPayload struct {
		Messages []map[string]any `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": "done"},
			}},
		})
	}))
	defer srv.Close()

	c := NewDeepSeek(DeepSeekConfig{BaseURL: srv.URL, APIKey: "sk-test"})
	_, err := c.Chat(context.Background(), Request{
		Messages: []ChatMessage{
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_1", Name: "run_shell", Arguments: `{"command":"ls"}`}}},
			{Role: RoleTool, Content: "main.go", ToolCallID: "call_1"},
		},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(gotPayload.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(gotPayload.Messages))
	}
	assistant := gotPayload.Messages[0]
	if assistant["content"] != nil {
		t.Errorf("assistant content should be null when empty with tool calls, got %v", assistant["content"])
	}
	if _, ok := assistant["tool_calls"]; !ok {
		t.Errorf("assistant message missing tool_calls")
	}
	toolMsg := gotPayload.Messages[1]
	if toolMsg["tool_call_id"] != "call_1" {
		t.Errorf("tool message missing tool_call_id, got %v", toolMsg["tool_call_id"])
	}
}

func TestDeepSeekChatTypedAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid api key"},
		})
	}))
	defer srv.Close()

	c := NewDeepSeek(DeepSeekConfig{BaseURL: srv.URL, APIKey: "sk-bad"})
	_, err := c.Chat(context.Background(), Request{Messages: []ChatMessage{{Role: RoleUser, Content: "x"}}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Message != "invalid api key" {
		t.Fatalf("unexpected APIError %+v", apiErr)
	}
}

func TestDeepSeekChatRequiresAPIKey(t *testing.T) {
	c := NewDeepSeek(DeepSeekConfig{})
	if _, err := c.Chat(context.Background(), Request{}); err == nil {
		t.Fatal("expected error without API key")
	}
}
