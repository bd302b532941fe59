// Package session hosts conversations: per-session history, the latest
// report reference, and turn serialization.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nugget/marcus/internal/advisor"
	"github.com/nugget/marcus/internal/notify"
	"github.com/nugget/marcus/internal/prompts"
	"github.com/nugget/marcus/internal/report"
)

var (
	// ErrEmptyMessage means the user sent nothing.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrReportFailed means report generation did not produce a report;
	// the wrapped text is the research sentinel.
	ErrReportFailed = errors.New("report generation failed")
)

// Host owns one conversation. History is append-only and alternates
// user and advisor messages. Turns are serialized; reads never wait for
// a turn in progress.
type Host struct {
	id       string
	created  time.Time
	advisor  advisor.Advisor
	composer *report.Composer
	notifier notify.Notifier
	logger   *slog.Logger

	turnMu   sync.Mutex // one turn at a time
	reportMu sync.Mutex // one report generation at a time

	mu      sync.RWMutex
	history []advisor.Message
	latest  *report.Report
}

// NewHost creates a session. composer may be nil when reports are not
// available; notifier may be nil.
func NewHost(id string, adv advisor.Advisor, composer *report.Composer, notifier notify.Notifier, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Host{
		id:       id,
		created:  time.Now(),
		advisor:  adv,
		composer: composer,
		notifier: notifier,
		logger:   logger.With("session_id", id),
	}
}

// ID returns the session id.
func (h *Host) ID() string { return h.id }

// Created returns when the session was created.
func (h *Host) Created() time.Time { return h.created }

// Send appends a user message, asks the advisor for a reply, appends
// the reply, and returns it.
func (h *Host) Send(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyMessage
	}

	h.turnMu.Lock()
	defer h.turnMu.Unlock()

	h.mu.Lock()
	h.history = append(h.history, advisor.Message{Role: advisor.RoleUser, Content: text})
	h.mu.Unlock()

	start := time.Now()
	reply := h.advisor.Reply(ctx, h.snapshot())

	h.mu.Lock()
	h.history = append(h.history, advisor.Message{Role: advisor.RoleAdvisor, Content: reply})
	turns := len(h.history) / 2
	h.mu.Unlock()

	h.logger.Info("turn complete",
		"turns", turns,
		"reply_len", len(reply),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return reply, nil
}

// snapshot returns the history sent to the advisor: the stored history,
// preceded by a report context pair when a latest report exists. The
// pair is built per call and never stored.
func (h *Host) snapshot() []advisor.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]advisor.Message, 0, len(h.history)+2)
	if h.latest != nil {
		out = append(out,
			advisor.Message{Role: advisor.RoleUser, Content: prompts.ReportContextMessage(h.latest.Text)},
			advisor.Message{Role: advisor.RoleAdvisor, Content: prompts.ReportAcknowledgment},
		)
	}
	return append(out, h.history...)
}

// History returns a copy of the stored history.
func (h *Host) History() []advisor.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]advisor.Message, len(h.history))
	copy(out, h.history)
	return out
}

// LatestReport returns a copy of the latest report, or nil.
func (h *Host) LatestReport() *report.Report {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.latest == nil {
		return nil
	}
	r := *h.latest
	return &r
}

// SetLatestReport makes r the report injected into subsequent turns.
func (h *Host) SetLatestReport(r *report.Report) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r == nil {
		h.latest = nil
		return
	}
	cp := *r
	h.latest = &cp
}

// GenerateReport generates and persists a trend report. Only a
// persisted report becomes the latest; a failed generation or write
// leaves the previous one in place and returns an error.
func (h *Host) GenerateReport(ctx context.Context) (*report.Report, error) {
	if h.composer == nil {
		return nil, fmt.Errorf("%w: reports are not configured", ErrReportFailed)
	}

	h.reportMu.Lock()
	defer h.reportMu.Unlock()

	out := h.composer.Generate(ctx)
	if !out.OK() {
		h.logger.Warn("report generation failed", "status", out.Status, "elapsed", out.Elapsed)
		return nil, fmt.Errorf("%w: %s", ErrReportFailed, out.Text)
	}

	r, err := h.composer.Persist(out.Text)
	if err != nil {
		h.logger.Error("report persist failed", "error", err)
		return nil, fmt.Errorf("persist report: %w", err)
	}

	h.SetLatestReport(r)
	h.notifier.ReportPersisted(ctx, notify.ReportEvent{
		Path:        r.Path,
		GeneratedAt: r.GeneratedAt,
		Bytes:       r.Bytes,
	})
	return h.LatestReport(), nil
}
