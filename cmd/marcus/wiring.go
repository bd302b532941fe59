package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/nugget/marcus/internal/advisor"
	"github.com/nugget/marcus/internal/config"
	"github.com/nugget/marcus/internal/llm"
	"github.com/nugget/marcus/internal/notify"
	"github.com/nugget/marcus/internal/report"
	"github.com/nugget/marcus/internal/research"
	"github.com/nugget/marcus/internal/search"
	"github.com/nugget/marcus/internal/session"
)

// app holds the components shared by every command. It is built once
// from the configuration by [newApp] and torn down with [app.Close].
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	// client is the primary chat model. Nil for the cli provider.
	client   llm.Client
	advisor  advisor.Advisor
	research research.Invoker
	log      *research.Store // Nil unless research_log is configured
	reports  *report.Store
	composer *report.Composer
	notifier notify.Notifier
	mqtt     *notify.MQTTPublisher
	sessions *session.Manager
}

// newApp wires the advisor, research capability, report store, and
// session manager from cfg. The MQTT publisher is created but not
// started; serve starts it.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, notifier: notify.Nop{}}

	persona, err := loadPersona(cfg.Advisor.PersonaFile)
	if err != nil {
		return nil, err
	}

	a.client = newPrimaryClient(cfg, logger)

	inv, err := newResearchInvoker(ctx, cfg, a.client, logger)
	if err != nil {
		return nil, err
	}

	if cfg.ResearchLog.Configured() {
		path := config.ExpandHome(cfg.ResearchLog.Path)
		store, err := research.OpenStore(path)
		if err != nil {
			return nil, fmt.Errorf("open research log: %w", err)
		}
		a.log = store
		logger.Info("research log opened", "path", path)
	}
	var recorder research.Recorder
	if a.log != nil {
		recorder = a.log
	}
	a.research = research.NewLogged(inv, cfg.Research.Strategy, recorder, logger)

	a.advisor = newAdvisor(cfg, a.client, a.research, persona, logger)

	a.reports = report.NewStore(config.ExpandHome(cfg.Reports.Dir), logger)
	a.composer = report.NewComposer(a.research, a.reports, cfg.Research.ReportTimeout, logger)

	if cfg.MQTT.Configured() {
		a.mqtt = notify.NewMQTTPublisher(cfg.MQTT, logger)
		a.notifier = a.mqtt
	}

	a.sessions = session.NewManager(a.advisor, a.composer, a.notifier, cfg.Reports.SeedSessions, logger)

	logger.Info("marcus configured",
		"mode", cfg.Advisor.Mode,
		"provider", cfg.Advisor.Provider,
		"model", cfg.Advisor.Model,
		"research", cfg.Research.Strategy,
		"reports", a.reports.Dir(),
	)
	return a, nil
}

// Close releases the research log and disconnects from MQTT.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.mqtt != nil {
		errs = append(errs, a.mqtt.Stop(ctx))
	}
	if a.log != nil {
		errs = append(errs, a.log.Close())
	}
	return errors.Join(errs...)
}

// loadPersona reads the persona file. An empty path selects the
// built-in persona.
func loadPersona(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(config.ExpandHome(path))
	if err != nil {
		return "", fmt.Errorf("read persona: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// newPrimaryClient builds the chat client for API providers. The cli
// provider has no chat client and returns nil.
func newPrimaryClient(cfg *config.Config, logger *slog.Logger) llm.Client {
	switch cfg.Advisor.Provider {
	case config.ProviderAnthropic:
		opts := []llm.AnthropicOption{
			llm.WithAnthropicMaxTokens(cfg.Advisor.MaxTokens),
			llm.WithAnthropicPingModel(cfg.Advisor.Model),
		}
		if cfg.Anthropic.BaseURL != "" {
			opts = append(opts, llm.WithAnthropicBaseURL(cfg.Anthropic.BaseURL))
		}
		return llm.NewAnthropicClient(cfg.Anthropic.APIKey, logger, opts...)
	case config.ProviderOllama:
		return llm.NewOllamaClient(cfg.Ollama.URL, cfg.Advisor.MaxTokens, logger)
	default:
		return nil
	}
}

// newAdvisor selects the delegation mode. The cli provider is always
// driven in signal mode; Validate rejects the other combination.
func newAdvisor(cfg *config.Config, client llm.Client, inv research.Invoker, persona string, logger *slog.Logger) advisor.Advisor {
	opts := advisor.Options{
		Persona:         persona,
		MaxRounds:       cfg.Advisor.MaxRounds,
		Timeout:         cfg.Advisor.Timeout,
		ResearchTimeout: cfg.Research.Timeout,
	}

	if cfg.Advisor.Mode == config.ModeStructured && client != nil {
		return advisor.NewStructured(client, cfg.Advisor.Model, inv, opts, logger)
	}

	var completer llm.Completer
	if client != nil {
		completer = &llm.ClientCompleter{Client: client, Model: cfg.Advisor.Model}
	} else {
		c := cfg.CLI.Advisor
		completer = llm.NewCLIClient(c.Binary, c.Args, config.ExpandHome(c.WorkingDir), cfg.Advisor.Timeout, logger)
	}
	return advisor.NewSignal(completer, inv, opts, logger)
}

// newResearchInvoker builds the configured research strategy. client
// is the primary chat model, used to synthesize search results when no
// Gemini key is configured.
func newResearchInvoker(ctx context.Context, cfg *config.Config, client llm.Client, logger *slog.Logger) (research.Invoker, error) {
	switch cfg.Research.Strategy {
	case config.StrategyGemini:
		synth, err := newGemini(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return research.NewModelInvoker(synth, "Gemini", cfg.Research.MaxTokens, cfg.Research.ReportMaxTokens, logger), nil

	case config.StrategySearch:
		var synth research.Synthesizer
		if cfg.Gemini.Configured() {
			g, err := newGemini(ctx, cfg, logger)
			if err != nil {
				return nil, err
			}
			synth = g
		} else if client != nil {
			synth = &research.LLMSynthesizer{Client: client, Model: cfg.Advisor.Model}
		} else {
			return nil, errors.New("research.strategy search: no synthesis model available")
		}
		return research.NewSearchInvoker(newSearchManager(cfg), synth, research.SearchInvokerConfig{
			Name:            searchName(cfg.Search.Primary),
			ResultsPerQuery: cfg.Research.ResultsPerQuery,
			Concurrency:     cfg.Research.Concurrency,
			MaxTokens:       cfg.Research.MaxTokens,
			ReportMaxTokens: cfg.Research.ReportMaxTokens,
		}, logger), nil

	default:
		c := cfg.CLI.Research
		cli := llm.NewCLIClient(c.Binary, c.Args, config.ExpandHome(c.WorkingDir), cfg.Research.Timeout, logger)
		return research.NewCLIInvoker(cli, logger), nil
	}
}

func newGemini(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*research.GeminiSynthesizer, error) {
	// Search results are already gathered for the search strategy, so
	// grounding only applies to hosted research.
	grounding := cfg.Gemini.Grounding && cfg.Research.Strategy == config.StrategyGemini
	return research.NewGeminiSynthesizer(ctx, research.GeminiConfig{
		APIKey:    cfg.Gemini.APIKey,
		Model:     cfg.Gemini.Model,
		Grounding: grounding,
		BaseURL:   cfg.Gemini.BaseURL,
	}, logger)
}

// newSearchManager registers every configured provider.
func newSearchManager(cfg *config.Config) *search.Manager {
	m := search.NewManager(cfg.Search.Primary)
	if cfg.Search.Brave.Configured() {
		m.Register(search.NewBrave(cfg.Search.Brave.APIKey, ""))
	}
	if cfg.Search.SearXNG.Configured() {
		m.Register(search.NewSearXNG(cfg.Search.SearXNG.URL))
	}
	if cfg.Search.DuckDuckGo.Configured() || cfg.Search.Primary == "duckduckgo" {
		m.Register(search.NewDuckDuckGo(cfg.Search.DuckDuckGo.URL))
	}
	return m
}

func searchName(primary string) string {
	switch primary {
	case "brave":
		return "Brave"
	case "searxng":
		return "SearXNG"
	case "duckduckgo":
		return "DuckDuckGo"
	default:
		return "Search research"
	}
}
