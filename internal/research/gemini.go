package research

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/genai"
)

// GeminiSynthesizer calls the Gemini API through the genai SDK. With
// grounding enabled the model may run Google searches before answering.
type GeminiSynthesizer struct {
	client    *genai.Client
	model     string
	grounding bool
	logger    *slog.Logger
}

// GeminiConfig configures a GeminiSynthesizer.
type GeminiConfig struct {
	APIKey    string
	Model     string
	Grounding bool
	BaseURL   string       // Empty for the public endpoint
	HTTP      *http.Client // Nil for the SDK default
}

// NewGeminiSynthesizer creates a Gemini-backed synthesizer.
func NewGeminiSynthesizer(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*GeminiSynthesizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTP,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &GeminiSynthesizer{
		client:    client,
		model:     cfg.Model,
		grounding: cfg.Grounding,
		logger:    logger.With("provider", "gemini", "model", cfg.Model),
	}, nil
}

// Synthesize sends prompt with the given system instruction and output
// cap and returns the response text.
func (g *GeminiSynthesizer) Synthesize(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}
	if g.grounding {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	g.logger.Debug("generate content", "grounding", g.grounding, "max_tokens", maxTokens, "prompt_len", len(prompt))

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()

	if resp.UsageMetadata != nil {
		g.logger.Debug("generate content done",
			"input_tokens", resp.UsageMetadata.PromptTokenCount,
			"output_tokens", resp.UsageMetadata.CandidatesTokenCount,
			"text_len", len(text),
		)
	}
	return text, nil
}
