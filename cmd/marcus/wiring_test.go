package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/nugget/marcus/internal/advisor"
	"github.com/nugget/marcus/internal/config"
	"github.com/nugget/marcus/internal/notify"
	"github.com/nugget/marcus/internal/research"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Anthropic.APIKey = "sk-test"
	cfg.Reports.Dir = filepath.Join(t.TempDir(), "trends")
	return cfg
}

func TestNewApp_Advisors(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*config.Config)
		structured bool
		client     bool
	}{
		{"anthropic structured", func(c *config.Config) {}, true, true},
		{"anthropic signal", func(c *config.Config) { c.Advisor.Mode = config.ModeSignal }, false, true},
		{"ollama structured", func(c *config.Config) { c.Advisor.Provider = config.ProviderOllama }, true, true},
		{"cli signal", func(c *config.Config) {
			c.Advisor.Provider = config.ProviderCLI
			c.Advisor.Mode = config.ModeSignal
		}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)

			a, err := newApp(context.Background(), cfg, quietLogger())
			if err != nil {
				t.Fatalf("newApp: %v", err)
			}
			defer a.Close(context.Background())

			_, isStructured := a.advisor.(*advisor.Structured)
			_, isSignal := a.advisor.(*advisor.Signal)
			if isStructured != tt.structured || isSignal == tt.structured {
				t.Errorf("advisor = %T", a.advisor)
			}
			if (a.client != nil) != tt.client {
				t.Errorf("client = %v", a.client)
			}
			if _, ok := a.notifier.(notify.Nop); !ok {
				t.Errorf("notifier = %T, want Nop without a broker", a.notifier)
			}
			if a.sessions == nil || a.composer == nil {
				t.Error("sessions and composer must be wired")
			}
		})
	}
}

func TestNewApp_Invalid(t *testing.T) {
	cfg := testConfig(t)
	cfg.Advisor.Provider = config.ProviderCLI // structured + cli is rejected
	if _, err := newApp(context.Background(), cfg, quietLogger()); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestNewApp_ResearchLogAndMQTT(t *testing.T) {
	cfg := testConfig(t)
	cfg.ResearchLog.Path = filepath.Join(t.TempDir(), "db", "research.db")
	cfg.MQTT.Broker = "mqtt://127.0.0.1:1"

	a, err := newApp(context.Background(), cfg, quietLogger())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close(context.Background())

	if a.log == nil {
		t.Error("research log not opened")
	}
	if _, err := os.Stat(cfg.ResearchLog.Path); err != nil {
		t.Errorf("research db not created: %v", err)
	}
	if a.mqtt == nil || a.notifier != notify.Notifier(a.mqtt) {
		t.Errorf("notifier = %T, want MQTT publisher", a.notifier)
	}
}

func TestNewResearchInvoker(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		check  func(research.Invoker) bool
	}{
		{"cli", func(c *config.Config) {}, func(i research.Invoker) bool {
			_, ok := i.(*research.CLIInvoker)
			return ok
		}},
		{"gemini", func(c *config.Config) {
			c.Research.Strategy = config.StrategyGemini
			c.Gemini.APIKey = "g-test"
		}, func(i research.Invoker) bool {
			_, ok := i.(*research.ModelInvoker)
			return ok
		}},
		{"search with primary model synthesis", func(c *config.Config) {
			c.Research.Strategy = config.StrategySearch
		}, func(i research.Invoker) bool {
			_, ok := i.(*research.SearchInvoker)
			return ok
		}},
		{"search with gemini synthesis", func(c *config.Config) {
			c.Research.Strategy = config.StrategySearch
			c.Gemini.APIKey = "g-test"
		}, func(i research.Invoker) bool {
			_, ok := i.(*research.SearchInvoker)
			return ok
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			client := newPrimaryClient(cfg, quietLogger())

			inv, err := newResearchInvoker(context.Background(), cfg, client, quietLogger())
			if err != nil {
				t.Fatalf("newResearchInvoker: %v", err)
			}
			if !tt.check(inv) {
				t.Errorf("invoker = %T", inv)
			}
		})
	}

	t.Run("search without any model", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Research.Strategy = config.StrategySearch
		if _, err := newResearchInvoker(context.Background(), cfg, nil, quietLogger()); err == nil {
			t.Error("expected error without a synthesis model")
		}
	})
}

func TestNewSearchManager(t *testing.T) {
	cfg := testConfig(t)
	cfg.Search.Primary = "brave"
	cfg.Search.Brave.APIKey = "b-test"
	cfg.Search.SearXNG.URL = "http://localhost:8888"
	cfg.Search.DuckDuckGo.Enabled = false

	m := newSearchManager(cfg)
	got := m.Providers()
	want := map[string]bool{"brave": true, "searxng": true}
	if len(got) != len(want) {
		t.Fatalf("providers = %v", got)
	}
	for _, p := range got {
		if !want[p] {
			t.Errorf("unexpected provider %s", p)
		}
	}
	if m.Primary() != "brave" {
		t.Errorf("primary = %s", m.Primary())
	}
}

func TestLoadPersona(t *testing.T) {
	if p, err := loadPersona(""); err != nil || p != "" {
		t.Errorf("empty path: %q, %v", p, err)
	}

	path := filepath.Join(t.TempDir(), "persona.md")
	if err := os.WriteFile(path, []byte("\nYou are Marcus.\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if p, err := loadPersona(path); err != nil || p != "You are Marcus." {
		t.Errorf("loadPersona = %q, %v", p, err)
	}

	if _, err := loadPersona(filepath.Join(t.TempDir(), "missing.md")); err == nil {
		t.Error("expected error for missing persona file")
	}
}
