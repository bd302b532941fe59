package research

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/nugget/marcus/internal/llm"
	"github.com/nugget/marcus/internal/prompts"
)

// Synthesizer is a single-shot model call with a system instruction and
// an output token cap.
type Synthesizer interface {
	Synthesize(ctx context.Context, system, prompt string, maxTokens int) (string, error)
}

// ModelInvoker asks a hosted model directly. Paired with a grounded
// [GeminiSynthesizer] this is hosted research with live search; with
// any other synthesizer it answers from the model's own knowledge.
type ModelInvoker struct {
	synth           Synthesizer
	name            string
	maxTokens       int
	reportMaxTokens int
	logger          *slog.Logger
}

// NewModelInvoker creates a model-backed research capability. name
// labels the backend in sentinels and logs.
func NewModelInvoker(synth Synthesizer, name string, maxTokens, reportMaxTokens int, logger *slog.Logger) *ModelInvoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelInvoker{
		synth:           synth,
		name:            name,
		maxTokens:       maxTokens,
		reportMaxTokens: reportMaxTokens,
		logger:          logger,
	}
}

// Research asks the model about one topic.
func (m *ModelInvoker) Research(ctx context.Context, topic string, timeout time.Duration) Outcome {
	return m.ask(ctx, topic, prompts.ResearchTopicPrompt(topic), m.maxTokens, timeout)
}

// Report asks the model for the broad trend report.
func (m *ModelInvoker) Report(ctx context.Context, timeout time.Duration) Outcome {
	return m.ask(ctx, "", prompts.TrendReportPrompt, m.reportMaxTokens, timeout)
}

func (m *ModelInvoker) ask(ctx context.Context, topic, prompt string, maxTokens int, timeout time.Duration) Outcome {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	text, err := m.synth.Synthesize(ctx, prompts.AnalystSystemPrompt, prompt, maxTokens)
	elapsed := time.Since(start)
	if err != nil {
		m.logger.Warn("model research failed", "backend", m.name, "error", err, "elapsed", elapsed)
		return errorOutcome(topic, m.name, err, timeout, elapsed)
	}
	return textOutcome(topic, text, "", elapsed)
}

// approxCharsPerToken converts a token cap to a character cap for
// providers whose request size is fixed at construction.
const approxCharsPerToken = 4

// LLMSynthesizer adapts an llm.Client to Synthesizer. The client's own
// max_tokens setting bounds the request; maxTokens is additionally
// enforced on the returned text as an approximate character cap.
type LLMSynthesizer struct {
	Client llm.Client
	Model  string
}

// Synthesize sends one system and one user message with no tools.
func (s *LLMSynthesizer) Synthesize(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	c := &llm.ClientCompleter{Client: s.Client, Model: s.Model, System: system}
	text, err := c.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return capText(text, maxTokens*approxCharsPerToken), nil
}

// capText truncates s to at most n bytes on a rune boundary. n <= 0
// means no cap.
func capText(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
