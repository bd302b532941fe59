package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// writeScript writes an executable shell script and returns its path.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

// writeConfig writes a config file into dir and returns its path.
func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// fakeOllama answers /api/chat from a script of responses and records
// each request body.
type fakeOllama struct {
	mu        sync.Mutex
	responses []map[string]any
	requests  []map[string]any
}

func (f *fakeOllama) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/tags" {
		w.Write([]byte(`{"models":[]}`))
		return
	}
	var req map[string]any
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.responses) == 0 {
		http.Error(w, "script exhausted", http.StatusInternalServerError)
		return
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	json.NewEncoder(w).Encode(resp)
}

func ollamaText(text string) map[string]any {
	return map[string]any{
		"model":   "test",
		"done":    true,
		"message": map[string]any{"role": "assistant", "content": text},
	}
}

func ollamaResearch(topic string) map[string]any {
	return map[string]any{
		"model": "test",
		"done":  true,
		"message": map[string]any{
			"role":    "assistant",
			"content": "",
			"tool_calls": []map[string]any{{
				"function": map[string]any{
					"name":      "research_trends",
					"arguments": map[string]any{"topic": topic},
				},
			}},
		},
	}
}

func TestRun_Usage(t *testing.T) {
	for _, args := range [][]string{nil, {"-h"}, {"--help"}} {
		var out bytes.Buffer
		if err := run(context.Background(), nil, &out, &out, args); err != nil {
			t.Fatalf("run(%v): %v", args, err)
		}
		if !strings.Contains(out.String(), "Usage: marcus") {
			t.Errorf("run(%v) output = %q", args, out.String())
		}
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown command", []string{"frobnicate"}, "unknown command: frobnicate"},
		{"unknown flag", []string{"-x"}, "unknown flag: -x"},
		{"bad output", []string{"-o", "xml", "version"}, "unknown output format"},
		{"ask without question", []string{"ask"}, "usage: marcus ask"},
		{"missing config", []string{"-config", "/nonexistent/config.yaml", "ask", "hi"}, "config file not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(context.Background(), nil, &out, &out, tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), nil, &out, &out, []string{"version"}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "Marcus ") || !strings.Contains(out.String(), "go_version:") {
		t.Errorf("version output = %q", out.String())
	}

	out.Reset()
	if err := run(context.Background(), nil, &out, &out, []string{"-o", "json", "version"}); err != nil {
		t.Fatal(err)
	}
	var info map[string]string
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("json version: %v\n%s", err, out.String())
	}
	if info["version"] == "" || info["go_version"] == "" {
		t.Errorf("info = %v", info)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "advisor:\n  mode: telepathy\n")

	var out, logs bytes.Buffer
	err := run(context.Background(), nil, &out, &logs, []string{"-config", cfg, "ask", "hi"})
	if err == nil || !strings.Contains(err.Error(), "advisor.mode") {
		t.Errorf("err = %v", err)
	}
}

// TestRun_AskStructured drives a full turn: the model requests research,
// the research tool runs as a subprocess, and the model answers with
// the findings in context.
func TestRun_AskStructured(t *testing.T) {
	dir := t.TempDir()
	tool := writeScript(t, dir, "research", `echo "Cognac leather sofas are up 40% this season."`)

	model := &fakeOllama{responses: []map[string]any{
		ollamaResearch("leather sofas"),
		ollamaText("Go with a cognac leather sofa."),
	}}
	srv := httptest.NewServer(model)
	defer srv.Close()

	cfg := writeConfig(t, dir, `
advisor:
  mode: structured
  provider: ollama
  model: test
ollama:
  url: `+srv.URL+`
cli:
  research:
    binary: `+tool+`
    working_dir: `+dir+`
research:
  strategy: cli
reports:
  dir: `+filepath.Join(dir, "trends")+`
research_log:
  path: `+filepath.Join(dir, "research.db")+`
log_level: debug
`)

	var out, logs bytes.Buffer
	err := run(context.Background(), nil, &out, &logs, []string{"-config", cfg, "ask", "which", "sofa?"})
	if err != nil {
		t.Fatalf("ask: %v\nlogs:\n%s", err, logs.String())
	}
	if got := strings.TrimSpace(out.String()); got != "Go with a cognac leather sofa." {
		t.Errorf("reply = %q", got)
	}

	model.mu.Lock()
	defer model.mu.Unlock()
	if len(model.requests) != 2 {
		t.Fatalf("model saw %d requests, want 2", len(model.requests))
	}
	second, _ := json.Marshal(model.requests[1])
	if !strings.Contains(string(second), "Cognac leather sofas are up 40%") {
		t.Errorf("research result not sent back to the model: %s", second)
	}
	if !strings.Contains(logs.String(), "research_id") {
		t.Error("expected research correlation id in logs")
	}
}

func TestRun_AskSignalCLI(t *testing.T) {
	dir := t.TempDir()
	tool := writeScript(t, dir, "research", `echo "Walnut desks are trending."`)
	// The advisor tool drafts a marker the first time and answers the
	// second time, when the prompt carries the research.
	adv := writeScript(t, dir, "advisor", `case "$2" in
  *"Walnut desks are trending."*) echo "Walnut desks and brass task lamps lead this year." ;;
  *) echo "Let me check. [RESEARCH: home office trends]" ;;
esac`)

	cfg := writeConfig(t, dir, `
advisor:
  mode: signal
  provider: cli
cli:
  advisor:
    binary: `+adv+`
    working_dir: `+dir+`
  research:
    binary: `+tool+`
    working_dir: `+dir+`
reports:
  dir: `+filepath.Join(dir, "trends")+`
`)

	var out, logs bytes.Buffer
	args := []string{"-config", cfg, "ask", "What's", "trending", "in", "home", "offices?"}
	if err := run(context.Background(), nil, &out, &logs, args); err != nil {
		t.Fatalf("ask: %v\nlogs:\n%s", err, logs.String())
	}
	got := strings.TrimSpace(out.String())
	if got != "Walnut desks and brass task lamps lead this year." {
		t.Errorf("reply = %q", got)
	}
	if strings.Contains(got, "[RESEARCH:") {
		t.Errorf("marker leaked into reply: %q", got)
	}
}

func TestRun_Report(t *testing.T) {
	dir := t.TempDir()
	tool := writeScript(t, dir, "research", `printf '## Living room\nBoucle is fading.\n'`)
	trends := filepath.Join(dir, "trends")

	cfg := writeConfig(t, dir, `
advisor:
  mode: signal
  provider: cli
cli:
  research:
    binary: `+tool+`
    working_dir: `+dir+`
reports:
  dir: `+trends+`
`)

	var out, logs bytes.Buffer
	if err := run(context.Background(), nil, &out, &logs, []string{"-config", cfg, "report"}); err != nil {
		t.Fatalf("report: %v\nlogs:\n%s", err, logs.String())
	}
	if !strings.Contains(out.String(), "Boucle is fading.") || !strings.Contains(out.String(), "Saved to "+trends) {
		t.Errorf("output = %q", out.String())
	}

	entries, err := os.ReadDir(trends)
	if err != nil || len(entries) != 1 {
		t.Fatalf("reports on disk = %v, %v", entries, err)
	}
	if !strings.HasPrefix(entries[0].Name(), "trend_report_") {
		t.Errorf("report name = %s", entries[0].Name())
	}
}

func TestRun_ReportFailureNotSaved(t *testing.T) {
	dir := t.TempDir()
	trends := filepath.Join(dir, "trends")
	cfg := writeConfig(t, dir, `
advisor:
  mode: signal
  provider: cli
cli:
  research:
    binary: marcus-missing-research-tool
    working_dir: `+dir+`
reports:
  dir: `+trends+`
`)

	var out, logs bytes.Buffer
	err := run(context.Background(), nil, &out, &logs, []string{"-config", cfg, "report"})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v", err)
	}
	if entries, _ := os.ReadDir(trends); len(entries) != 0 {
		t.Errorf("failed report should not be persisted: %v", entries)
	}
}

func TestRun_Chat(t *testing.T) {
	dir := t.TempDir()
	adv := writeScript(t, dir, "advisor", `echo "Try charcoal walls."`)
	cfg := writeConfig(t, dir, `
advisor:
  mode: signal
  provider: cli
cli:
  advisor:
    binary: `+adv+`
    working_dir: `+dir+`
reports:
  dir: `+filepath.Join(dir, "trends")+`
`)

	in := strings.NewReader("what color?\n/quit\nnever read\n")
	var out, logs bytes.Buffer
	if err := run(context.Background(), in, &out, &logs, []string{"-config", cfg, "chat"}); err != nil {
		t.Fatalf("chat: %v\nlogs:\n%s", err, logs.String())
	}
	if !strings.Contains(out.String(), "marcus> Try charcoal walls.") {
		t.Errorf("output = %q", out.String())
	}
	if strings.Count(out.String(), "marcus> ") != 1 {
		t.Errorf("expected exactly one reply before /quit: %q", out.String())
	}
}
