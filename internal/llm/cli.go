package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// PromptPlaceholder is replaced by the prompt in CLI argument templates.
const PromptPlaceholder = "{prompt}"

// maxCLIOutput caps captured stdout and stderr.
const maxCLIOutput = 1 << 20

// CLIClient drives a headless command-line model tool (gemini, claude)
// as a subprocess: the prompt goes in as an argument and the answer is
// read from stdout.
type CLIClient struct {
	binary  string
	args    []string
	dir     string
	timeout time.Duration
	logger  *slog.Logger
}

// CLIResult captures one subprocess run.
type CLIResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Elapsed  time.Duration
}

// NewCLIClient creates a client for binary. args may contain
// PromptPlaceholder; if none does, the prompt is appended. dir is the
// fixed working directory for every run (empty means inherit).
// timeout is the default used by Complete.
func NewCLIClient(binary string, args []string, dir string, timeout time.Duration, logger *slog.Logger) *CLIClient {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &CLIClient{
		binary:  binary,
		args:    append([]string(nil), args...),
		dir:     dir,
		timeout: timeout,
		logger:  logger.With("provider", "cli", "binary", binary),
	}
}

// Binary returns the executable name.
func (c *CLIClient) Binary() string { return c.binary }

func (c *CLIClient) argv(prompt string) []string {
	out := make([]string, 0, len(c.args)+1)
	substituted := false
	for _, a := range c.args {
		if strings.Contains(a, PromptPlaceholder) {
			a = strings.ReplaceAll(a, PromptPlaceholder, prompt)
			substituted = true
		}
		out = append(out, a)
	}
	if !substituted {
		out = append(out, prompt)
	}
	return out
}

// Run executes the tool once with the given timeout. A timeout is
// reported through CLIResult.TimedOut with a nil error. A missing
// executable or working directory returns an error wrapping
// ErrUnavailable. Cancellation of ctx itself returns ctx.Err().
func (c *CLIClient) Run(ctx context.Context, prompt string, timeout time.Duration) (*CLIResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.binary, c.argv(prompt)...)
	cmd.Dir = c.dir
	// Children that inherit the pipes must not keep Wait blocked after
	// the process is killed.
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Debug("running command", "dir", c.dir, "timeout", timeout, "prompt_len", len(prompt))
	c.logger.Log(ctx, levelTrace, "command prompt", "prompt", prompt)

	start := time.Now()
	err := cmd.Run()
	result := &CLIResult{
		Stdout:  truncate(stdout.String(), maxCLIOutput),
		Stderr:  truncate(stderr.String(), maxCLIOutput),
		Elapsed: time.Since(start),
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		result.ExitCode = -1
		c.logger.Warn("command timed out", "elapsed", result.Elapsed)
		return result, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		var pathErr *fs.PathError
		switch {
		case errors.As(err, &exitErr):
			result.ExitCode = exitErr.ExitCode()
		case errors.Is(err, exec.ErrNotFound), errors.As(err, &pathErr):
			return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, c.binary, err)
		default:
			return nil, fmt.Errorf("run %s: %w", c.binary, err)
		}
	}

	c.logger.Debug("command finished",
		"exit_code", result.ExitCode,
		"stdout_len", len(result.Stdout),
		"stderr_len", len(result.Stderr),
		"elapsed", result.Elapsed,
	)
	return result, nil
}

// Complete runs the tool with the client's default timeout and returns
// trimmed stdout. A timeout returns context.DeadlineExceeded; blank
// stdout returns ErrEmptyResponse, or the stderr text when the process
// exited non-zero.
func (c *CLIClient) Complete(ctx context.Context, prompt string) (string, error) {
	res, err := c.Run(ctx, prompt, c.timeout)
	if err != nil {
		return "", err
	}
	if res.TimedOut {
		return "", fmt.Errorf("%s: %w", c.binary, context.DeadlineExceeded)
	}
	out := strings.TrimSpace(res.Stdout)
	if out != "" {
		return out, nil
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("%s exited %d: %s", c.binary, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return "", ErrEmptyResponse
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n\n[... output truncated ...]"
}
