package llm

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestCLIClient_Argv(t *testing.T) {
	c := NewCLIClient("gemini", []string{"-p", PromptPlaceholder, "-o", "text"}, "", 0, nil)
	got := c.argv("sisal rugs")
	want := []string{"-p", "sisal rugs", "-o", "text"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("argv = %q, want %q", got, want)
	}

	c = NewCLIClient("tool", []string{"--quiet"}, "", 0, nil)
	got = c.argv("hello")
	if len(got) != 2 || got[1] != "hello" {
		t.Errorf("argv without placeholder = %q, want prompt appended", got)
	}
}

func TestCLIClient_RunStdout(t *testing.T) {
	requireSh(t)
	dir := t.TempDir()
	c := NewCLIClient("sh", []string{"-c", `printf '%s in %s' "$0" "$(pwd)"`, PromptPlaceholder}, dir, 0, nil)

	res, err := c.Run(context.Background(), "curved sofas", 5*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(res.Stdout, "curved sofas in ") {
		t.Errorf("stdout = %q", res.Stdout)
	}
	if !strings.HasSuffix(res.Stdout, dir) {
		t.Errorf("stdout = %q, want working dir %q", res.Stdout, dir)
	}
	if res.ExitCode != 0 || res.TimedOut {
		t.Errorf("result = %+v", res)
	}
}

func TestCLIClient_RunTimeout(t *testing.T) {
	requireSh(t)
	c := NewCLIClient("sh", []string{"-c", "sleep 5", PromptPlaceholder}, "", 0, nil)

	start := time.Now()
	res, err := c.Run(context.Background(), "x", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.TimedOut {
		t.Errorf("expected TimedOut, got %+v", res)
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Errorf("Run took %v, expected prompt kill", elapsed)
	}
}

func TestCLIClient_NotFound(t *testing.T) {
	c := NewCLIClient("marcus-no-such-binary-xyz", nil, "", 0, nil)
	_, err := c.Run(context.Background(), "x", time.Second)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestCLIClient_Complete(t *testing.T) {
	requireSh(t)

	tests := []struct {
		name    string
		script  string
		want    string
		wantErr error
	}{
		{name: "stdout", script: `echo "  warm minimalism  "`, want: "warm minimalism"},
		{name: "blank", script: `echo "   "`, wantErr: ErrEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCLIClient("sh", []string{"-c", tt.script}, "", 5*time.Second, nil)
			got, err := c.Complete(context.Background(), "ignored")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Complete: %v", err)
			}
			if got != tt.want {
				t.Errorf("Complete = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCLIClient_CompleteNonZeroExit(t *testing.T) {
	requireSh(t)
	c := NewCLIClient("sh", []string{"-c", `echo "quota exceeded" >&2; exit 3`}, "", 5*time.Second, nil)
	_, err := c.Complete(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("err = %v, want stderr text", err)
	}
}
