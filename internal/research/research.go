// Package research implements the delegated research capability: one
// bounded request to an external research process that always comes
// back as text.
//
// Three backends share the [Invoker] interface. [CLIInvoker] drives a
// headless command-line research agent as a subprocess. [ModelInvoker]
// asks a hosted model (optionally with live search grounding).
// [SearchInvoker] runs explicit web searches and has a model synthesize
// the results, falling back to the model's own knowledge when search
// comes back empty. [Logged] wraps any of them with correlation ids and
// an optional SQLite audit trail.
package research

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/nugget/marcus/internal/httpkit"
	"github.com/nugget/marcus/internal/llm"
)

// Status classifies how a research call ended.
type Status string

const (
	// StatusOK means the capability produced substantive output.
	StatusOK Status = "ok"
	// StatusDiagnostic means normal output was empty but the capability
	// explained itself on a side channel (stderr, an error message).
	StatusDiagnostic Status = "diagnostic"
	// StatusEmpty means nothing at all came back.
	StatusEmpty Status = "empty"
	// StatusTimedOut means the call exceeded its timeout.
	StatusTimedOut Status = "timed_out"
	// StatusUnavailable means the capability could not be reached.
	StatusUnavailable Status = "unavailable"
)

// EmptySentinel is the text returned when research produced nothing.
const EmptySentinel = "no output produced."

// Outcome is the result of one research call. Text is never empty: on
// failure it holds a sentinel suitable for folding straight back into a
// conversation, so callers that do not care about Status can ignore it.
type Outcome struct {
	Topic   string        `json:"topic,omitempty"` // Empty for reports
	Status  Status        `json:"status"`
	Text    string        `json:"text"`
	Elapsed time.Duration `json:"elapsed"`
}

// OK reports whether the outcome carries substantive findings.
func (o Outcome) OK() bool { return o.Status == StatusOK }

// Invoker is the research capability. Implementations never retry and
// never return errors; every failure becomes an Outcome with a sentinel.
type Invoker interface {
	// Research looks up one topic within timeout.
	Research(ctx context.Context, topic string, timeout time.Duration) Outcome

	// Report produces a broad, topic-free trend report within timeout.
	Report(ctx context.Context, timeout time.Duration) Outcome
}

// subject names what a call was doing, for sentinel text.
func subject(topic string) string {
	if topic == "" {
		return "generating trend report"
	}
	return fmt.Sprintf("researching %q", topic)
}

// TimeoutSentinel names the subject and the bound that was exceeded.
func TimeoutSentinel(topic string, timeout time.Duration) string {
	return fmt.Sprintf("Research timed out after %s %s.", timeout, subject(topic))
}

// NotFoundSentinel describes a research executable missing from PATH.
func NotFoundSentinel(binary string) string {
	return fmt.Sprintf("%s not found. Install it or check your PATH.", binary)
}

// UnreachableSentinel describes a hosted capability that could not be
// reached.
func UnreachableSentinel(name string) string {
	return fmt.Sprintf("%s is unreachable right now; research is unavailable.", name)
}

// textOutcome builds an outcome from primary and side-channel text:
// trimmed primary output if any, else the diagnostic, else the empty
// sentinel.
func textOutcome(topic, out, diag string, elapsed time.Duration) Outcome {
	if s := strings.TrimSpace(out); s != "" {
		return Outcome{Topic: topic, Status: StatusOK, Text: s, Elapsed: elapsed}
	}
	if s := strings.TrimSpace(diag); s != "" {
		return Outcome{Topic: topic, Status: StatusDiagnostic, Text: s, Elapsed: elapsed}
	}
	return Outcome{Topic: topic, Status: StatusEmpty, Text: EmptySentinel, Elapsed: elapsed}
}

// errorOutcome classifies a failed model or network call. name labels
// the capability in the unavailable sentinel.
func errorOutcome(topic, name string, err error, timeout, elapsed time.Duration) Outcome {
	o := Outcome{Topic: topic, Elapsed: elapsed}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		o.Status = StatusTimedOut
		o.Text = TimeoutSentinel(topic, timeout)
	case errors.Is(err, llm.ErrUnavailable), httpkit.IsDialError(err):
		o.Status = StatusUnavailable
		o.Text = UnreachableSentinel(name)
	case errors.Is(err, llm.ErrEmptyResponse):
		o.Status = StatusEmpty
		o.Text = EmptySentinel
	case errors.Is(err, context.Canceled):
		o.Status = StatusDiagnostic
		o.Text = fmt.Sprintf("Research was canceled while %s.", subject(topic))
	default:
		o.Status = StatusDiagnostic
		o.Text = fmt.Sprintf("%s failed: %v", name, err)
	}
	return o
}
