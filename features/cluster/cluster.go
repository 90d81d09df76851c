package cluster

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pulsewire/features/item"
	"pulsewire/internal/config"
	"pulsewire/internal/ident"
	"pulsewire/internal/metrics"
)

const (
	StatusBreaking   = "breaking"
	StatusDeveloping = "developing"
)

// StoryAggregate is an evolving group of canonical items believed to
// describe the same news event. item_count and source_count always equal
// the live membership; ranking_score is a pure function of the counts
// and the aggregate's age.
type StoryAggregate struct {
	ID                   string    `json:"id"`
	Slug                 string    `json:"slug"`
	Headline             string    `json:"headline"`
	ShortHeadline        string    `json:"short_headline"`
	Status               string    `json:"status"`
	RepresentativeItemID string    `json:"representative_item_id,omitempty"`
	PrimaryCategoryID    string    `json:"primary_category_id,omitempty"`
	FirstSeenAt          time.Time `json:"first_seen_at"`
	LastUpdatedAt        time.Time `json:"last_updated_at"`
	ItemCount            int       `json:"item_count"`
	SourceCount          int       `json:"source_count"`
	RankingScore         float64   `json:"ranking_score"`
}

// Membership links one item into one aggregate; unique per pair.
type Membership struct {
	ID             string
	AggregateID    string
	ItemID         string
	RelevanceScore float64
	IsPrimary      bool
}

// Member is the membership view the stat recompute needs.
type Member struct {
	ItemID      string
	SourceID    string
	PublishedAt time.Time
}

type Repository interface {
	CandidatesSince(ctx context.Context, cutoff time.Time, limit int) ([]StoryAggregate, error)
	Insert(ctx context.Context, agg *StoryAggregate) error
	Link(ctx context.Context, m *Membership) error
	Members(ctx context.Context, aggregateID string) ([]Member, error)
	UpdateStats(ctx context.Context, agg *StoryAggregate) error
	Get(ctx context.Context, id string) (*StoryAggregate, error)
	CategoryIDBySlug(ctx context.Context, slug string) (string, error)
	Count(ctx context.Context) (int, error)
}

// Engine performs greedy single-pass assignment: one item joins the best
// candidate above threshold or seeds a new aggregate, and the decision is
// never revisited.
type Engine struct {
	repo           Repository
	threshold      float64
	window         time.Duration
	candidateLimit int
	now            func() time.Time
}

func NewEngine(repo Repository, cfg *config.Config) *Engine {
	return &Engine{
		repo:           repo,
		threshold:      cfg.ClusterSimilarityThreshold,
		window:         time.Duration(cfg.ClusterWindowHours) * time.Hour,
		candidateLimit: cfg.ClusterCandidateLimit,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Assign links one canonical item to a story aggregate, creating one when
// no candidate qualifies, and recomputes the aggregate's statistics from
// its complete membership. A freshly seeded aggregate takes its primary
// category from the first hint that resolves to a known category slug.
// Errors here indicate structural invariant violations and are not
// absorbed.
func (e *Engine) Assign(ctx context.Context, it *item.CanonicalItem, categoryHints []string) (*StoryAggregate, error) {
	cutoff := e.now().Add(-e.window)
	candidates, err := e.repo.CandidatesSince(ctx, cutoff, e.candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("load candidate aggregates: %w", err)
	}

	itemText := it.Title + " " + it.Body

	var chosen *StoryAggregate
	chosenScore := 0.0
	for i := range candidates {
		cand := &candidates[i]
		score := Similarity(itemText, cand.Headline, it.PublishedAt, cand.LastUpdatedAt)
		// Strict > keeps ties on the earliest-scanned (most recently
		// updated) candidate.
		if score > chosenScore && score >= e.threshold {
			chosen = cand
			chosenScore = score
		}
	}

	if chosen == nil {
		categoryID, err := e.resolveCategory(ctx, categoryHints)
		if err != nil {
			return nil, fmt.Errorf("resolve category: %w", err)
		}
		chosen = &StoryAggregate{
			ID:                   ident.New("story"),
			Slug:                 slugify(it.Title),
			Headline:             it.Title,
			ShortHeadline:        truncate(it.Title, 120),
			Status:               StatusBreaking,
			RepresentativeItemID: it.ID,
			PrimaryCategoryID:    categoryID,
			FirstSeenAt:          it.PublishedAt,
			LastUpdatedAt:        it.PublishedAt,
		}
		if err := e.repo.Insert(ctx, chosen); err != nil {
			return nil, fmt.Errorf("create aggregate: %w", err)
		}
		metrics.AggregatesCreated.Inc()
	}

	relevance := chosenScore
	if relevance == 0 {
		relevance = 1.0
	}
	link := &Membership{
		ID:             ident.New("ci"),
		AggregateID:    chosen.ID,
		ItemID:         it.ID,
		RelevanceScore: relevance,
		IsPrimary:      chosen.RepresentativeItemID == it.ID,
	}
	if err := e.repo.Link(ctx, link); err != nil {
		return nil, fmt.Errorf("link item to aggregate: %w", err)
	}

	if err := e.recomputeStats(ctx, chosen, it.PublishedAt); err != nil {
		return nil, err
	}
	return chosen, nil
}

// resolveCategory returns the id of the first hint matching a known
// category slug; unknown hints are skipped, no match leaves the
// aggregate uncategorized.
func (e *Engine) resolveCategory(ctx context.Context, hints []string) (string, error) {
	for _, slug := range hints {
		id, err := e.repo.CategoryIDBySlug(ctx, slug)
		if err != nil {
			return "", err
		}
		if id != "" {
			return id, nil
		}
	}
	return "", nil
}

// recomputeStats derives every aggregate statistic from the full current
// membership rather than incrementally.
func (e *Engine) recomputeStats(ctx context.Context, agg *StoryAggregate, newItemPublished time.Time) error {
	members, err := e.repo.Members(ctx, agg.ID)
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}

	sources := map[string]struct{}{}
	lastUpdated := newItemPublished
	for _, m := range members {
		sources[m.SourceID] = struct{}{}
		if m.PublishedAt.After(lastUpdated) {
			lastUpdated = m.PublishedAt
		}
	}

	agg.ItemCount = len(members)
	agg.SourceCount = len(sources)
	agg.LastUpdatedAt = lastUpdated
	if agg.ItemCount <= 3 {
		agg.Status = StatusBreaking
	} else {
		agg.Status = StatusDeveloping
	}
	agg.RankingScore = e.rankingScore(agg)

	if err := e.repo.UpdateStats(ctx, agg); err != nil {
		return fmt.Errorf("update aggregate stats: %w", err)
	}
	return nil
}

// rankingScore rewards corroboration and decays with age; the one-hour
// floor keeps very fresh aggregates from diverging.
func (e *Engine) rankingScore(agg *StoryAggregate) float64 {
	ageHours := e.now().Sub(agg.LastUpdatedAt).Hours()
	if ageHours < 1 {
		ageHours = 1
	}
	return (float64(agg.ItemCount)*1.7 + float64(agg.SourceCount)*2.2) / ageHours
}

func slugify(title string) string {
	base := strings.Join(strings.Fields(strings.ToLower(title)), "-")
	base = truncate(base, 60)
	if base == "" {
		base = "story"
	}
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return base + "-" + suffix
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
