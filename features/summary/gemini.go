package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"pulsewire/internal/config"
)

// GeminiSummarizer is the hosted "gemini" provider. Same credential
// contract as the OpenAI provider: no key means a deterministic fallback.
type GeminiSummarizer struct {
	apiKey string
	model  string
}

func NewGeminiSummarizer(cfg *config.Config) *GeminiSummarizer {
	return &GeminiSummarizer{apiKey: cfg.GeminiAPIKey, model: cfg.GeminiModel}
}

func (s *GeminiSummarizer) Provider() string { return "gemini" }

func (s *GeminiSummarizer) Summarize(ctx context.Context, headline string, evidence []string) (*Draft, error) {
	if s.apiKey == "" {
		return &Draft{
			Provider:       s.Provider(),
			Model:          s.model,
			ShortSummary:   fmt.Sprintf("%s: summarized from %d curated source item(s).", headline, len(evidence)),
			LongSummary:    "Gemini API key not configured; generated deterministic fallback summary.",
			ChangesBullets: capBullets(evidence),
			WhyItMatters:   "Story importance is inferred from repeated mentions across curated sources.",
		}, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(s.apiKey))
	if err != nil {
		return nil, err
	}
	defer client.Close()

	model := client.GenerativeModel(s.model)
	resp, err := model.GenerateContent(ctx, genai.Text(summaryPrompt(headline, evidence)))
	if err != nil {
		return nil, err
	}

	var parts []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				parts = append(parts, string(text))
			}
		}
	}
	text := strings.TrimSpace(strings.Join(parts, "\n"))
	if text == "" {
		text = headline
	}

	return &Draft{
		Provider:       s.Provider(),
		Model:          s.model,
		ShortSummary:   firstLine(text, 220),
		LongSummary:    text,
		ChangesBullets: capBullets(evidence),
		WhyItMatters:   "The update reflects corroboration from independent curated feeds.",
	}, nil
}
