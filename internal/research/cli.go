package research

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nugget/marcus/internal/llm"
	"github.com/nugget/marcus/internal/prompts"
)

// CLIInvoker delegates the whole search-and-synthesize task to a
// research-capable command-line agent run as a subprocess.
type CLIInvoker struct {
	client *llm.CLIClient
	logger *slog.Logger
}

// NewCLIInvoker wraps a CLI client as a research capability.
func NewCLIInvoker(client *llm.CLIClient, logger *slog.Logger) *CLIInvoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIInvoker{client: client, logger: logger}
}

// Research runs the topic prompt through the CLI.
func (c *CLIInvoker) Research(ctx context.Context, topic string, timeout time.Duration) Outcome {
	return c.run(ctx, topic, prompts.ResearchTopicPrompt(topic), timeout)
}

// Report runs the broad trend report prompt through the CLI.
func (c *CLIInvoker) Report(ctx context.Context, timeout time.Duration) Outcome {
	return c.run(ctx, "", prompts.TrendReportPrompt, timeout)
}

func (c *CLIInvoker) run(ctx context.Context, topic, prompt string, timeout time.Duration) Outcome {
	start := time.Now()
	res, err := c.client.Run(ctx, prompt, timeout)
	elapsed := time.Since(start)

	switch {
	case errors.Is(err, llm.ErrUnavailable):
		c.logger.Warn("research tool unavailable", "binary", c.client.Binary(), "error", err)
		return Outcome{Topic: topic, Status: StatusUnavailable, Text: NotFoundSentinel(c.client.Binary()), Elapsed: elapsed}
	case err != nil:
		return errorOutcome(topic, c.client.Binary(), err, timeout, elapsed)
	case res.TimedOut:
		return Outcome{Topic: topic, Status: StatusTimedOut, Text: TimeoutSentinel(topic, timeout), Elapsed: elapsed}
	}

	if res.ExitCode != 0 {
		c.logger.Debug("research tool exited non-zero", "exit_code", res.ExitCode, "stderr_len", len(res.Stderr))
	}
	return textOutcome(topic, res.Stdout, res.Stderr, elapsed)
}
