package research

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nugget/marcus/internal/prompts"
	"github.com/nugget/marcus/internal/search"
)

// Searcher runs one web search. *search.Manager satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error)
}

// SearchInvoker performs explicit multi-query web search, concatenates
// the results with source attribution, and has a model synthesize them.
// When every query fails or returns nothing it asks the model to answer
// from its own knowledge under the same token cap.
type SearchInvoker struct {
	searcher        Searcher
	synth           Synthesizer
	name            string
	resultsPerQuery int
	concurrency     int
	maxTokens       int
	reportMaxTokens int
	logger          *slog.Logger
}

// SearchInvokerConfig configures a SearchInvoker.
type SearchInvokerConfig struct {
	Name            string // Labels the backend in sentinels and logs
	ResultsPerQuery int
	Concurrency     int
	MaxTokens       int
	ReportMaxTokens int
}

// NewSearchInvoker creates a search-backed research capability.
func NewSearchInvoker(searcher Searcher, synth Synthesizer, cfg SearchInvokerConfig, logger *slog.Logger) *SearchInvoker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = "Search research"
	}
	if cfg.ResultsPerQuery <= 0 {
		cfg.ResultsPerQuery = 5
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	return &SearchInvoker{
		searcher:        searcher,
		synth:           synth,
		name:            cfg.Name,
		resultsPerQuery: cfg.ResultsPerQuery,
		concurrency:     cfg.Concurrency,
		maxTokens:       cfg.MaxTokens,
		reportMaxTokens: cfg.ReportMaxTokens,
		logger:          logger,
	}
}

// Research searches for one topic and synthesizes the findings.
func (s *SearchInvoker) Research(ctx context.Context, topic string, timeout time.Duration) Outcome {
	return s.run(ctx, topic, prompts.TopicSearchQueries(topic), timeout, s.maxTokens,
		func(results string) string { return prompts.SearchSynthesisPrompt(topic, results) },
		prompts.KnowledgeFallbackPrompt(topic),
	)
}

// Report runs the fixed report queries and synthesizes a full report.
func (s *SearchInvoker) Report(ctx context.Context, timeout time.Duration) Outcome {
	return s.run(ctx, "", prompts.ReportSearchQueries, timeout, s.reportMaxTokens,
		prompts.ReportSynthesisPrompt,
		prompts.ReportKnowledgeFallbackPrompt,
	)
}

func (s *SearchInvoker) run(ctx context.Context, topic string, queries []string, timeout time.Duration, maxTokens int, synthesisPrompt func(string) string, fallbackPrompt string) Outcome {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Search gets half the budget so synthesis always has time left.
	results := s.gather(ctx, queries, timeout/2)

	prompt := fallbackPrompt
	if len(results) > 0 {
		prompt = synthesisPrompt(search.FormatResults(results))
	} else {
		s.logger.Info("search returned nothing, answering from model knowledge",
			"topic", topic,
			"queries", len(queries),
		)
	}

	text, err := s.synth.Synthesize(ctx, prompts.AnalystSystemPrompt, prompt, maxTokens)
	elapsed := time.Since(start)
	if err != nil {
		s.logger.Warn("research synthesis failed", "topic", topic, "error", err, "elapsed", elapsed)
		return errorOutcome(topic, s.name, err, timeout, elapsed)
	}
	return textOutcome(topic, text, "", elapsed)
}

// gather runs queries in parallel within budget. Failed queries are
// logged and skipped; results are deduplicated by URL in query order.
func (s *SearchInvoker) gather(ctx context.Context, queries []string, budget time.Duration) []search.Result {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	perQuery := make([][]search.Result, len(queries))
	var mu sync.Mutex
	failures := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, q := range queries {
		g.Go(func() error {
			res, err := s.searcher.Search(gctx, q, search.Options{Count: s.resultsPerQuery})
			if err != nil {
				mu.Lock()
				failures++
				mu.Unlock()
				s.logger.Debug("search query failed", "query", q, "error", err)
				return nil // one bad query must not cancel the others
			}
			perQuery[i] = res
			return nil
		})
	}
	_ = g.Wait()

	var all []search.Result
	for _, res := range perQuery {
		all = append(all, res...)
	}
	all = search.Dedupe(all)

	s.logger.Debug("search gathered",
		"queries", len(queries),
		"failed", failures,
		"results", len(all),
	)
	return all
}
