package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestConvertToAnthropic(t *testing.T) {
	messages := []Message{
		{Role: RoleSystem, Content: "You are Marcus."},
		{Role: RoleUser, Content: "Hello!"},
		{Role: RoleAssistant, Content: "Welcome in."},
		{Role: RoleUser, Content: "Is boucle still in?"},
	}

	result, system := convertToAnthropic(messages)

	if system != "You are Marcus." {
		t.Errorf("expected system prompt extracted, got %q", system)
	}
	if len(result) != 3 {
		t.Fatalf("expected 3 messages (no system), got %d", len(result))
	}
	if result[0].Role != RoleUser {
		t.Errorf("expected first message to be user, got %s", result[0].Role)
	}
}

func TestConvertToAnthropicWithToolCalls(t *testing.T) {
	messages := []Message{
		{Role: RoleUser, Content: "What's trending in kitchens?"},
		{
			Role: RoleAssistant,
			ToolCalls: []ToolCall{
				{ID: "toolu_1", Function: ToolFunction{Name: "research_trends", Arguments: map[string]any{"topic": "kitchen cabinets"}}},
				{ID: "toolu_2", Function: ToolFunction{Name: "research_trends", Arguments: map[string]any{"topic": "backsplash tile"}}},
			},
		},
		{Role: RoleTool, Content: "Warm wood tones.", ToolCallID: "toolu_1"},
		{Role: RoleTool, Content: "Zellige.", ToolCallID: "toolu_2"},
	}

	result, _ := convertToAnthropic(messages)

	// user, assistant with tool_use, single user turn with both tool_results
	if len(result) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(result))
	}

	blocks, ok := result[1].Content.([]anthropicContent)
	if !ok || len(blocks) != 2 || blocks[0].Type != "tool_use" || blocks[0].ID != "toolu_1" {
		t.Fatalf("unexpected assistant blocks: %#v", result[1].Content)
	}

	results, ok := result[2].Content.([]anthropicContent)
	if !ok {
		t.Fatal("expected tool result content to be []anthropicContent")
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 tool_result blocks merged, got %d", len(results))
	}
	if results[1].ToolUseID != "toolu_2" || results[1].Content != "Zellige." {
		t.Errorf("unexpected second tool_result: %+v", results[1])
	}
}

func TestConvertToolsToAnthropic(t *testing.T) {
	tools := []map[string]any{
		ToolDefinition("research_trends", "Look things up.", map[string]any{
			"type":       "object",
			"properties": map[string]any{"topic": map[string]any{"type": "string"}},
			"required":   []string{"topic"},
		}),
		{"type": "function"}, // malformed, skipped
	}

	got := convertToolsToAnthropic(tools)
	if len(got) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(got))
	}
	if got[0].Name != "research_trends" || got[0].Description != "Look things up." {
		t.Errorf("unexpected tool: %+v", got[0])
	}
}

func TestAnthropicChat_RoundTrip(t *testing.T) {
	var gotReq anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotReq)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "msg_1",
			"role": "assistant",
			"model": "claude-test",
			"stop_reason": "tool_use",
			"content": [
				{"type": "text", "text": "Let me check."},
				{"type": "tool_use", "id": "toolu_9", "name": "research_trends", "input": {"topic": "rattan"}}
			],
			"usage": {"input_tokens": 12, "output_tokens": 7}
		}`)
	}))
	defer srv.Close()

	c := NewAnthropicClient("test-key", nil, WithAnthropicBaseURL(srv.URL), WithAnthropicMaxTokens(321))
	resp, err := c.Chat(context.Background(), "claude-test", []Message{
		{Role: RoleSystem, Content: "persona"},
		{Role: RoleUser, Content: "rattan?"},
	}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if gotReq.MaxTokens != 321 || gotReq.System != "persona" {
		t.Errorf("request max_tokens=%d system=%q", gotReq.MaxTokens, gotReq.System)
	}
	if resp.Message.Content != "Let me check." {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if len(resp.Message.ToolCalls) != 1 || resp.Message.ToolCalls[0].ID != "toolu_9" {
		t.Fatalf("tool calls = %+v", resp.Message.ToolCalls)
	}
	if resp.Message.ToolCalls[0].Function.Arguments["topic"] != "rattan" {
		t.Errorf("arguments = %v", resp.Message.ToolCalls[0].Function.Arguments)
	}
	if resp.StopReason != "tool_use" || resp.InputTokens != 12 || resp.OutputTokens != 7 {
		t.Errorf("metadata = %+v", resp)
	}
}

func TestAnthropicChat_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"type":"rate_limit_error"}}`)
	}))
	defer srv.Close()

	c := NewAnthropicClient("k", nil, WithAnthropicBaseURL(srv.URL))
	_, err := c.Chat(context.Background(), "m", []Message{{Role: RoleUser, Content: "hi"}}, nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || !strings.Contains(apiErr.Body, "rate_limit") {
		t.Errorf("unexpected APIError: %+v", apiErr)
	}
}

func TestAnthropicChat_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewAnthropicClient("k", nil, WithAnthropicBaseURL(url))
	_, err := c.Chat(context.Background(), "m", []Message{{Role: RoleUser, Content: "hi"}}, nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
