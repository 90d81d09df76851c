package summary

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"pulsewire/internal/config"
)

// OpenAISummarizer is the hosted "openai" provider. A missing API key is
// a configuration gap, not a failure: it yields a labeled deterministic
// fallback so a run never stalls on credentials.
type OpenAISummarizer struct {
	apiKey string
	model  string
}

func NewOpenAISummarizer(cfg *config.Config) *OpenAISummarizer {
	return &OpenAISummarizer{apiKey: cfg.OpenAIAPIKey, model: cfg.OpenAIModel}
}

func (s *OpenAISummarizer) Provider() string { return "openai" }

func (s *OpenAISummarizer) Summarize(ctx context.Context, headline string, evidence []string) (*Draft, error) {
	if s.apiKey == "" {
		return &Draft{
			Provider:       s.Provider(),
			Model:          s.model,
			ShortSummary:   fmt.Sprintf("%s: summarized from %d curated source item(s).", headline, len(evidence)),
			LongSummary:    "OpenAI API key not configured; generated deterministic fallback summary.",
			ChangesBullets: capBullets(evidence),
			WhyItMatters:   "Multiple curated sources are converging on this story.",
		}, nil
	}

	client := openai.NewClient(s.apiKey)
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: summaryPrompt(headline, evidence),
			},
		},
	})
	if err != nil {
		return nil, err
	}

	text := headline
	if len(resp.Choices) > 0 && strings.TrimSpace(resp.Choices[0].Message.Content) != "" {
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
	}

	return &Draft{
		Provider:       s.Provider(),
		Model:          s.model,
		ShortSummary:   firstLine(text, 220),
		LongSummary:    text,
		ChangesBullets: capBullets(evidence),
		WhyItMatters:   "This cluster includes corroboration from manually curated feeds.",
	}, nil
}

func summaryPrompt(headline string, evidence []string) string {
	upper := len(evidence)
	if upper > 8 {
		upper = 8
	}
	var b strings.Builder
	b.WriteString("Summarize this story cluster with a short and long summary, with factual grounding only.\n")
	b.WriteString("Headline: " + headline + "\nEvidence:\n")
	for _, line := range evidence[:upper] {
		b.WriteString("- " + line + "\n")
	}
	return b.String()
}

func firstLine(text string, max int) string {
	line := text
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		line = text[:idx]
	}
	runes := []rune(line)
	if len(runes) > max {
		return string(runes[:max])
	}
	return line
}
