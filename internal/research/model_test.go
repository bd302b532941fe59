package research

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nugget/marcus/internal/llm"
	"github.com/nugget/marcus/internal/prompts"
)

// stubSynth records its last call and returns a canned answer.
type stubSynth struct {
	text  string
	err   error
	delay time.Duration

	system    string
	prompt    string
	maxTokens int
	calls     int
}

func (s *stubSynth) Synthesize(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	s.calls++
	s.system, s.prompt, s.maxTokens = system, prompt, maxTokens
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.text, s.err
}

func TestModelInvoker_Research(t *testing.T) {
	synth := &stubSynth{text: "  Boucle is fading. \n"}
	inv := NewModelInvoker(synth, "Gemini", 1024, 2048, nil)

	got := inv.Research(context.Background(), "boucle chairs", time.Second)
	if !got.OK() || got.Text != "Boucle is fading." {
		t.Fatalf("outcome = %+v", got)
	}
	if synth.system != prompts.AnalystSystemPrompt {
		t.Error("expected analyst system prompt")
	}
	if !strings.Contains(synth.prompt, "boucle chairs") {
		t.Errorf("prompt missing topic: %q", synth.prompt)
	}
	if synth.maxTokens != 1024 {
		t.Errorf("maxTokens = %d, want 1024", synth.maxTokens)
	}
}

func TestModelInvoker_ReportUsesReportCap(t *testing.T) {
	synth := &stubSynth{text: "report"}
	inv := NewModelInvoker(synth, "Gemini", 1024, 2048, nil)

	got := inv.Report(context.Background(), time.Second)
	if !got.OK() || got.Topic != "" {
		t.Fatalf("outcome = %+v", got)
	}
	if synth.maxTokens != 2048 {
		t.Errorf("maxTokens = %d, want 2048", synth.maxTokens)
	}
	if synth.prompt != prompts.TrendReportPrompt {
		t.Error("expected trend report prompt")
	}
}

func TestModelInvoker_Failures(t *testing.T) {
	tests := []struct {
		name       string
		synth      *stubSynth
		wantStatus Status
	}{
		{"empty text", &stubSynth{text: "   "}, StatusEmpty},
		{"empty response", &stubSynth{err: llm.ErrEmptyResponse}, StatusEmpty},
		{"unreachable", &stubSynth{err: llm.ErrUnavailable}, StatusUnavailable},
		{"api error", &stubSynth{err: &llm.APIError{Provider: "gemini", StatusCode: 500, Body: "boom"}}, StatusDiagnostic},
		{"slow", &stubSynth{text: "late", delay: time.Second}, StatusTimedOut},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := NewModelInvoker(tt.synth, "Gemini", 0, 0, nil)
			got := inv.Research(context.Background(), "lamps", 50*time.Millisecond)
			if got.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s (%q)", got.Status, tt.wantStatus, got.Text)
			}
			if got.Text == "" {
				t.Error("text must never be empty")
			}
		})
	}
}

// fakeClient is a minimal llm.Client.
type fakeClient struct {
	reply string
	err   error
	msgs  []llm.Message
	tools []map[string]any
}

func (f *fakeClient) Chat(_ context.Context, model string, msgs []llm.Message, tools []map[string]any) (*llm.ChatResponse, error) {
	f.msgs, f.tools = msgs, tools
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Model: model, Message: llm.Message{Role: llm.RoleAssistant, Content: f.reply}}, nil
}

func (f *fakeClient) Ping(context.Context) error { return nil }

func TestLLMSynthesizer(t *testing.T) {
	client := &fakeClient{reply: strings.Repeat("a", 100)}
	s := &LLMSynthesizer{Client: client, Model: "llama3"}

	got, err := s.Synthesize(context.Background(), "be brief", "trends?", 10)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(got) != 40 {
		t.Errorf("len = %d, want 40 (10 tokens at 4 chars)", len(got))
	}
	if len(client.msgs) != 2 || client.msgs[0].Role != llm.RoleSystem || client.msgs[0].Content != "be brief" {
		t.Errorf("messages = %+v", client.msgs)
	}
	if client.tools != nil {
		t.Error("synthesis must not offer tools")
	}

	client.err = errors.New("down")
	if _, err := s.Synthesize(context.Background(), "", "x", 0); err == nil {
		t.Error("expected error to propagate")
	}
}

func TestCapText(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 0, "hello"},
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"café au lait", 4, "caf"}, // é is two bytes; do not split it
		{"café", 5, "café"},
	}
	for _, tt := range tests {
		if got := capText(tt.in, tt.n); got != tt.want {
			t.Errorf("capText(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
