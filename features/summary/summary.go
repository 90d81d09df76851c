package summary

import (
	"context"
	"fmt"
	"time"

	"pulsewire/features/cluster"
	"pulsewire/internal/config"
	"pulsewire/internal/ident"
	"pulsewire/internal/metrics"
)

// Draft is what a summarizer capability returns for one aggregate.
type Draft struct {
	Provider       string
	Model          string
	ShortSummary   string
	LongSummary    string
	ChangesBullets []string
	WhyItMatters   string
}

// Summarizer produces a draft from a headline and evidence lines. It must
// be safely repeatable, and when a required credential is absent it must
// return a labeled deterministic fallback instead of an error.
type Summarizer interface {
	Provider() string
	Summarize(ctx context.Context, headline string, evidence []string) (*Draft, error)
}

// Summary is one versioned narrative for an aggregate. At most one per
// aggregate is active (nil InvalidatedAt); versions increase by 1.
type Summary struct {
	ID              string     `json:"id"`
	AggregateID     string     `json:"cluster_id"`
	Provider        string     `json:"provider"`
	Model           string     `json:"model"`
	ShortSummary    string     `json:"short_summary"`
	LongSummary     string     `json:"long_summary"`
	ChangesBullets  []string   `json:"changes_bullets"`
	WhyItMatters    string     `json:"why_it_matters,omitempty"`
	SnapshotItemIDs []string   `json:"snapshot_item_ids"`
	Version         int        `json:"summary_version"`
	GeneratedAt     time.Time  `json:"generated_at"`
	InvalidatedAt   *time.Time `json:"invalidated_at,omitempty"`
}

// EvidenceItem is one member item rendered into the summarizer's input.
type EvidenceItem struct {
	ItemID      string
	Title       string
	URL         string
	PublishedAt time.Time
}

type Repository interface {
	MemberEvidence(ctx context.Context, aggregateID string) ([]EvidenceItem, error)
	ActiveSummary(ctx context.Context, aggregateID string) (*Summary, error)
	Invalidate(ctx context.Context, summaryID string, at time.Time) error
	Insert(ctx context.Context, s *Summary) error
	Count(ctx context.Context) (int, error)
}

// Service is the summarization orchestrator: called once per touched
// aggregate per run, it supersedes the active summary and appends the
// next version with an exact snapshot of the evidence used.
type Service struct {
	repo       Repository
	summarizer Summarizer
	timeout    time.Duration
}

func NewService(repo Repository, summarizer Summarizer, cfg *config.Config) *Service {
	return &Service{
		repo:       repo,
		summarizer: summarizer,
		timeout:    time.Duration(cfg.SummarizerTimeoutSeconds) * time.Second,
	}
}

func (s *Service) Summarize(ctx context.Context, agg *cluster.StoryAggregate) (*Summary, error) {
	items, err := s.repo.MemberEvidence(ctx, agg.ID)
	if err != nil {
		return nil, fmt.Errorf("load evidence: %w", err)
	}

	evidence := make([]string, 0, len(items))
	itemIDs := make([]string, 0, len(items))
	for _, it := range items {
		evidence = append(evidence, fmt.Sprintf("%s (%s)", it.Title, it.URL))
		itemIDs = append(itemIDs, it.ItemID)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	draft, err := s.summarizer.Summarize(callCtx, agg.Headline, evidence)
	if err != nil {
		return nil, fmt.Errorf("summarizer %s: %w", s.summarizer.Provider(), err)
	}

	active, err := s.repo.ActiveSummary(ctx, agg.ID)
	if err != nil {
		return nil, fmt.Errorf("load active summary: %w", err)
	}

	version := 1
	if active != nil {
		// Invalidation is stamped with the aggregate's causal update
		// time, not wall-clock now.
		if err := s.repo.Invalidate(ctx, active.ID, agg.LastUpdatedAt); err != nil {
			return nil, fmt.Errorf("invalidate summary %s: %w", active.ID, err)
		}
		version = active.Version + 1
	}

	next := &Summary{
		ID:              ident.New("sum"),
		AggregateID:     agg.ID,
		Provider:        draft.Provider,
		Model:           draft.Model,
		ShortSummary:    draft.ShortSummary,
		LongSummary:     draft.LongSummary,
		ChangesBullets:  draft.ChangesBullets,
		WhyItMatters:    draft.WhyItMatters,
		SnapshotItemIDs: itemIDs,
		Version:         version,
	}
	if err := s.repo.Insert(ctx, next); err != nil {
		return nil, fmt.Errorf("insert summary: %w", err)
	}

	metrics.SummariesGenerated.WithLabelValues(draft.Provider).Inc()
	return next, nil
}

func capBullets(evidence []string) []string {
	if len(evidence) > 3 {
		return evidence[:3]
	}
	return evidence
}
