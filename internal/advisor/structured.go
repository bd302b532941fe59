package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nugget/marcus/internal/llm"
	"github.com/nugget/marcus/internal/prompts"
	"github.com/nugget/marcus/internal/research"
)

// DefaultMaxRounds bounds model calls per turn in structured mode.
const DefaultMaxRounds = 5

// Options configures either advisor loop.
type Options struct {
	Persona         string        // Empty selects prompts.DefaultPersona
	MaxRounds       int           // Structured only; <= 0 selects DefaultMaxRounds
	Timeout         time.Duration // Per primary-model call; 0 means none
	ResearchTimeout time.Duration
}

func (o Options) persona() string {
	if strings.TrimSpace(o.Persona) == "" {
		return prompts.DefaultPersona
	}
	return o.Persona
}

// Structured offers research as a native capability to a chat model and
// executes its requests until it answers in text or the round bound is
// reached.
type Structured struct {
	client   llm.Client
	model    string
	research research.Invoker
	opts     Options
	tools    []map[string]any
	logger   *slog.Logger
}

// NewStructured creates a structured-delegation advisor.
func NewStructured(client llm.Client, model string, inv research.Invoker, opts Options, logger *slog.Logger) *Structured {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = DefaultMaxRounds
	}
	return &Structured{
		client:   client,
		model:    model,
		research: inv,
		opts:     opts,
		tools: []map[string]any{
			llm.ToolDefinition(prompts.ResearchToolName, prompts.ResearchToolDescription, prompts.ResearchToolParameters()),
		},
		logger: logger.With("mode", "structured", "model", model),
	}
}

// Reply runs one turn.
func (s *Structured) Reply(ctx context.Context, history []Message) string {
	if err := validate(history); err != nil {
		s.logger.Warn("advisor turn rejected", "error", err)
		return degraded(err)
	}

	turnID, _ := uuid.NewV7()
	tid := turnID.String()
	start := time.Now()

	messages := toLLM(prompts.StructuredPersona(s.opts.persona()), history)
	researchCalls := 0

	for round := range s.opts.MaxRounds {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("advisor turn cancelled", "turn_id", tid, "round", round, "error", err)
			return degraded(err)
		}

		resp, err := s.chat(ctx, messages, s.tools)
		if err != nil {
			s.logger.Error("advisor llm call failed", "turn_id", tid, "round", round, "error", err)
			return degraded(err)
		}

		s.logger.Info("advisor llm response",
			"turn_id", tid,
			"round", round,
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
			"tool_calls", len(resp.Message.ToolCalls),
		)

		if len(resp.Message.ToolCalls) == 0 {
			if strings.TrimSpace(resp.Message.Content) == "" {
				return DegradedEmpty
			}
			s.logger.Info("advisor turn complete",
				"turn_id", tid,
				"rounds", round+1,
				"research_calls", researchCalls,
				"elapsed", time.Since(start).Round(time.Millisecond),
			)
			return resp.Message.Content
		}

		messages = append(messages, resp.Message)
		for _, tc := range resp.Message.ToolCalls {
			result := s.execute(ctx, tid, tc, &researchCalls)
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: tc.ID,
			})
		}
	}

	s.logger.Warn("advisor max rounds reached",
		"turn_id", tid,
		"max_rounds", s.opts.MaxRounds,
		"research_calls", researchCalls,
	)
	return s.forceText(ctx, tid, messages)
}

// execute runs one capability request and returns its result text.
// Research calls beyond the round bound are refused so a model that
// batches requests cannot exceed it.
func (s *Structured) execute(ctx context.Context, tid string, tc llm.ToolCall, calls *int) string {
	if tc.Function.Name != prompts.ResearchToolName {
		s.logger.Warn("advisor requested unknown capability", "turn_id", tid, "tool", tc.Function.Name)
		return fmt.Sprintf("Error: unknown capability %q", tc.Function.Name)
	}
	topic, _ := tc.Function.Arguments["topic"].(string)
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "Error: topic is required"
	}
	if *calls >= s.opts.MaxRounds {
		return "Error: research limit reached for this turn; answer with what you have"
	}
	*calls++

	s.logger.Info("advisor delegating research", "turn_id", tid, "topic", topic)
	out := s.research.Research(ctx, topic, s.opts.ResearchTimeout)
	s.logger.Debug("advisor research returned",
		"turn_id", tid,
		"topic", topic,
		"status", out.Status,
		"result_len", len(out.Text),
	)
	return out.Text
}

// forceText makes a final call with no capabilities offered. If the
// model still does not answer in text the turn ends degraded.
func (s *Structured) forceText(ctx context.Context, tid string, messages []llm.Message) string {
	resp, err := s.chat(ctx, messages, nil)
	if err != nil {
		s.logger.Error("advisor forced text call failed", "turn_id", tid, "error", err)
		return DegradedRounds
	}
	if len(resp.Message.ToolCalls) > 0 || strings.TrimSpace(resp.Message.Content) == "" {
		return DegradedRounds
	}
	return resp.Message.Content
}

func (s *Structured) chat(ctx context.Context, messages []llm.Message, tools []map[string]any) (*llm.ChatResponse, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	return s.client.Chat(ctx, s.model, messages, tools)
}
