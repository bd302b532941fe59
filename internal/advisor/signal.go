package advisor

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nugget/marcus/internal/llm"
	"github.com/nugget/marcus/internal/prompts"
	"github.com/nugget/marcus/internal/research"
)

// Signal drives a text-only model. The persona tells the model to write
// a research marker when it wants live data; Signal runs that research
// once and asks for a final answer.
type Signal struct {
	completer llm.Completer
	research  research.Invoker
	opts      Options
	logger    *slog.Logger
}

// NewSignal creates a signal-token advisor.
func NewSignal(completer llm.Completer, inv research.Invoker, opts Options, logger *slog.Logger) *Signal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Signal{
		completer: completer,
		research:  inv,
		opts:      opts,
		logger:    logger.With("mode", "signal"),
	}
}

// Reply runs one turn. A draft with no marker is returned unmodified.
// Otherwise the second response is returned without further recursion;
// any marker it still carries is stripped.
func (s *Signal) Reply(ctx context.Context, history []Message) string {
	if err := validate(history); err != nil {
		s.logger.Warn("advisor turn rejected", "error", err)
		return degraded(err)
	}

	turnID, _ := uuid.NewV7()
	tid := turnID.String()
	start := time.Now()
	transcript := Transcript(history)

	draft, err := s.complete(ctx, prompts.TranscriptPrompt(prompts.SignalPersona(s.opts.persona()), transcript))
	if err != nil {
		s.logger.Error("advisor draft failed", "turn_id", tid, "error", err)
		return degraded(err)
	}
	if strings.TrimSpace(draft) == "" {
		return DegradedEmpty
	}

	topic, ok := ParseResearchMarker(draft)
	if !ok {
		s.logger.Info("advisor turn complete",
			"turn_id", tid,
			"research", false,
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
		return draft
	}

	s.logger.Info("advisor delegating research", "turn_id", tid, "topic", topic)
	out := s.research.Research(ctx, topic, s.opts.ResearchTimeout)
	s.logger.Debug("advisor research returned",
		"turn_id", tid,
		"topic", topic,
		"status", out.Status,
		"result_len", len(out.Text),
	)

	base := strings.TrimSpace(s.opts.persona()) + "\n\n" + transcript
	final, err := s.complete(ctx, prompts.SignalFinalizePrompt(base, draft, topic, out.Text))
	if err != nil {
		s.logger.Error("advisor finalize failed", "turn_id", tid, "error", err)
	}

	reply := StripMarkers(final)
	if reply == "" {
		reply = StripMarkers(draft)
	}
	if reply == "" {
		if err != nil {
			return degraded(err)
		}
		return DegradedEmpty
	}

	s.logger.Info("advisor turn complete",
		"turn_id", tid,
		"research", true,
		"research_status", out.Status,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return reply
}

func (s *Signal) complete(ctx context.Context, prompt string) (string, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	return s.completer.Complete(ctx, prompt)
}
