package summary

import (
	"context"
	"fmt"
	"strings"

	"pulsewire/internal/config"
)

// NewSummarizer resolves the configured provider once at startup.
func NewSummarizer(cfg *config.Config) Summarizer {
	switch cfg.SummarizerProvider {
	case config.ProviderOpenAI:
		return NewOpenAISummarizer(cfg)
	case config.ProviderGemini:
		return NewGeminiSummarizer(cfg)
	default:
		return &StubSummarizer{}
	}
}

// StubSummarizer is the deterministic no-credential provider.
type StubSummarizer struct{}

func (s *StubSummarizer) Provider() string { return "stub" }

func (s *StubSummarizer) Summarize(_ context.Context, headline string, evidence []string) (*Draft, error) {
	long := headline
	if len(evidence) > 0 {
		upper := len(evidence)
		if upper > 4 {
			upper = 4
		}
		long = strings.Join(evidence[:upper], " ")
	}

	return &Draft{
		Provider:       "stub",
		Model:          "deterministic-v1",
		ShortSummary:   fmt.Sprintf("%s: %d curated updates in this cluster.", headline, len(evidence)),
		LongSummary:    long,
		ChangesBullets: capBullets(evidence),
		WhyItMatters:   "Signals from multiple manually curated sources indicate this story is evolving.",
	}, nil
}
