package research

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Recorder persists research invocations. *Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// Logged wraps an Invoker with a per-call correlation id, structured
// logging, and an optional audit record. Recording failures are logged
// and never change the outcome.
type Logged struct {
	next     Invoker
	strategy string
	recorder Recorder
	logger   *slog.Logger
}

// NewLogged wraps next. recorder may be nil.
func NewLogged(next Invoker, strategy string, recorder Recorder, logger *slog.Logger) *Logged {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logged{next: next, strategy: strategy, recorder: recorder, logger: logger}
}

// Research delegates to the wrapped invoker.
func (l *Logged) Research(ctx context.Context, topic string, timeout time.Duration) Outcome {
	return l.observe(ctx, KindTopic, topic, timeout, func() Outcome {
		return l.next.Research(ctx, topic, timeout)
	})
}

// Report delegates to the wrapped invoker.
func (l *Logged) Report(ctx context.Context, timeout time.Duration) Outcome {
	return l.observe(ctx, KindReport, "", timeout, func() Outcome {
		return l.next.Report(ctx, timeout)
	})
}

func (l *Logged) observe(ctx context.Context, kind, topic string, timeout time.Duration, call func() Outcome) Outcome {
	id, _ := uuid.NewV7()
	rid := id.String()
	start := time.Now()

	l.logger.Info("research started",
		"research_id", rid,
		"kind", kind,
		"topic", topic,
		"strategy", l.strategy,
		"timeout", timeout,
	)

	out := call()
	if out.Text == "" {
		// Backends guarantee text; keep the contract even if one slips.
		out.Status = StatusEmpty
		out.Text = EmptySentinel
	}
	elapsed := time.Since(start)

	level := slog.LevelInfo
	if !out.OK() {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, "research finished",
		"research_id", rid,
		"kind", kind,
		"topic", topic,
		"status", out.Status,
		"output_len", len(out.Text),
		"elapsed", elapsed.Round(time.Millisecond),
	)

	if l.recorder != nil {
		// Record even if the turn's context was canceled.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		err := l.recorder.Record(rctx, Record{
			ID:         rid,
			Kind:       kind,
			Topic:      topic,
			Strategy:   l.strategy,
			Status:     out.Status,
			OutputLen:  len(out.Text),
			StartedAt:  start,
			DurationMs: elapsed.Milliseconds(),
		})
		if err != nil {
			l.logger.Error("research record failed", "research_id", rid, "error", err)
		}
	}
	return out
}
