package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nugget/marcus/internal/llm"
)

func TestTextOutcome(t *testing.T) {
	tests := []struct {
		name       string
		out, diag  string
		wantStatus Status
		wantText   string
	}{
		{"stdout wins", "  findings \n", "warning", StatusOK, "findings"},
		{"diagnostic fallback", "   ", " quota exceeded \n", StatusDiagnostic, "quota exceeded"},
		{"nothing", "", "\n", StatusEmpty, EmptySentinel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := textOutcome("rugs", tt.out, tt.diag, time.Second)
			if got.Status != tt.wantStatus || got.Text != tt.wantText {
				t.Errorf("got %s %q, want %s %q", got.Status, got.Text, tt.wantStatus, tt.wantText)
			}
			if got.Topic != "rugs" {
				t.Errorf("topic = %q", got.Topic)
			}
		})
	}
}

func TestErrorOutcome(t *testing.T) {
	timeout := 90 * time.Second
	tests := []struct {
		name       string
		err        error
		wantStatus Status
		wantSubstr string
	}{
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), StatusTimedOut, `timed out after 1m30s researching "sconces"`},
		{"unavailable", fmt.Errorf("%w: dial", llm.ErrUnavailable), StatusUnavailable, "unreachable"},
		{"empty", llm.ErrEmptyResponse, StatusEmpty, EmptySentinel},
		{"canceled", context.Canceled, StatusDiagnostic, "canceled"},
		{"other", errors.New("HTTP 500"), StatusDiagnostic, "Gemini failed: HTTP 500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errorOutcome("sconces", "Gemini", tt.err, timeout, time.Second)
			if got.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", got.Status, tt.wantStatus)
			}
			if !strings.Contains(got.Text, tt.wantSubstr) {
				t.Errorf("text = %q, want substring %q", got.Text, tt.wantSubstr)
			}
		})
	}
}

func TestTimeoutSentinel_Report(t *testing.T) {
	got := TimeoutSentinel("", 3*time.Minute)
	if got != "Research timed out after 3m0s generating trend report." {
		t.Errorf("TimeoutSentinel = %q", got)
	}
}
