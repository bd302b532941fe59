package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/nugget/marcus/internal/research"
)

// DefaultTimeout bounds report generation.
const DefaultTimeout = 180 * time.Second

// Composer generates reports through the research capability and
// persists them to a Store.
type Composer struct {
	research research.Invoker
	store    *Store
	timeout  time.Duration
	logger   *slog.Logger
}

// NewComposer creates a report composer.
func NewComposer(inv research.Invoker, store *Store, timeout time.Duration, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Composer{research: inv, store: store, timeout: timeout, logger: logger}
}

// Generate asks the research capability for the broad trend report.
// Failures come back as an outcome with sentinel text.
func (c *Composer) Generate(ctx context.Context) research.Outcome {
	c.logger.Info("generating trend report", "timeout", c.timeout)
	return c.research.Report(ctx, c.timeout)
}

// Persist writes text as a new report.
func (c *Composer) Persist(text string) (*Report, error) {
	return c.store.Persist(text)
}

// Store returns the underlying report store.
func (c *Composer) Store() *Store { return c.store }
