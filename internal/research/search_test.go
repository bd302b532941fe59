package research

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nugget/marcus/internal/prompts"
	"github.com/nugget/marcus/internal/search"
)

// stubSearcher answers per query; queries missing from results fail.
type stubSearcher struct {
	mu      sync.Mutex
	results map[string][]search.Result
	seen    []string
	counts  []int
}

func (s *stubSearcher) Search(_ context.Context, query string, opts search.Options) ([]search.Result, error) {
	s.mu.Lock()
	s.seen = append(s.seen, query)
	s.counts = append(s.counts, opts.Count)
	s.mu.Unlock()
	res, ok := s.results[query]
	if !ok {
		return nil, errors.New("search backend down")
	}
	return res, nil
}

func TestSearchInvoker_SynthesizesResults(t *testing.T) {
	queries := prompts.TopicSearchQueries("terrazzo")
	searcher := &stubSearcher{results: map[string][]search.Result{
		queries[0]: {
			{Title: "Terrazzo returns", URL: "https://a.example/1", Snippet: "Big chips."},
			{Title: "Dup", URL: "https://a.example/2"},
		},
		queries[1]: {
			{Title: "Dup again", URL: "https://a.example/2"},
		},
	}}
	synth := &stubSynth{text: "Terrazzo is back."}

	inv := NewSearchInvoker(searcher, synth, SearchInvokerConfig{Name: "DuckDuckGo", ResultsPerQuery: 4, MaxTokens: 512}, nil)
	got := inv.Research(context.Background(), "terrazzo", 5*time.Second)

	if !got.OK() || got.Text != "Terrazzo is back." {
		t.Fatalf("outcome = %+v", got)
	}
	if !strings.Contains(synth.prompt, "Source: https://a.example/1") {
		t.Errorf("synthesis prompt missing attribution: %q", synth.prompt)
	}
	if strings.Count(synth.prompt, "https://a.example/2") != 1 {
		t.Error("duplicate URL should appear once")
	}
	if synth.maxTokens != 512 {
		t.Errorf("maxTokens = %d", synth.maxTokens)
	}
	for _, c := range searcher.counts {
		if c != 4 {
			t.Errorf("result count = %d, want 4", c)
		}
	}
}

func TestSearchInvoker_FallsBackToKnowledge(t *testing.T) {
	tests := []struct {
		name    string
		results map[string][]search.Result
	}{
		{"all queries fail", nil},
		{"no results", map[string][]search.Result{
			prompts.TopicSearchQueries("macrame")[0]: {},
			prompts.TopicSearchQueries("macrame")[1]: {},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			synth := &stubSynth{text: "From memory."}
			inv := NewSearchInvoker(&stubSearcher{results: tt.results}, synth, SearchInvokerConfig{MaxTokens: 256}, nil)

			got := inv.Research(context.Background(), "macrame", 5*time.Second)
			if !got.OK() || got.Text != "From memory." {
				t.Fatalf("outcome = %+v", got)
			}
			if synth.prompt != prompts.KnowledgeFallbackPrompt("macrame") {
				t.Errorf("expected fallback prompt, got %q", synth.prompt)
			}
			if synth.maxTokens != 256 {
				t.Errorf("fallback must keep the token cap, got %d", synth.maxTokens)
			}
		})
	}
}

func TestSearchInvoker_Report(t *testing.T) {
	results := map[string][]search.Result{}
	for i, q := range prompts.ReportSearchQueries {
		results[q] = []search.Result{{Title: q, URL: "https://r.example/" + string(rune('a'+i))}}
	}
	searcher := &stubSearcher{results: results}
	synth := &stubSynth{text: "# Report"}

	inv := NewSearchInvoker(searcher, synth, SearchInvokerConfig{Concurrency: 2, ReportMaxTokens: 2048}, nil)
	got := inv.Report(context.Background(), 5*time.Second)

	if !got.OK() || got.Topic != "" {
		t.Fatalf("outcome = %+v", got)
	}
	if len(searcher.seen) != len(prompts.ReportSearchQueries) {
		t.Errorf("ran %d queries, want %d", len(searcher.seen), len(prompts.ReportSearchQueries))
	}
	if synth.maxTokens != 2048 {
		t.Errorf("maxTokens = %d", synth.maxTokens)
	}
}

func TestSearchInvoker_SynthesisFailure(t *testing.T) {
	synth := &stubSynth{err: errors.New("quota exceeded")}
	inv := NewSearchInvoker(&stubSearcher{}, synth, SearchInvokerConfig{Name: "Brave"}, nil)

	got := inv.Research(context.Background(), "rattan", time.Second)
	if got.Status != StatusDiagnostic || !strings.Contains(got.Text, "Brave failed: quota exceeded") {
		t.Errorf("outcome = %+v", got)
	}
}
