package story

import (
	"context"
	"time"
)

// StoryCard is the list-view projection of a story cluster joined with
// its active summary.
type StoryCard struct {
	ID            string    `json:"id"`
	Slug          string    `json:"slug"`
	Headline      string    `json:"headline"`
	ShortHeadline string    `json:"short_headline,omitempty"`
	Status        string    `json:"status"`
	ItemCount     int       `json:"item_count"`
	SourceCount   int       `json:"source_count"`
	RankingScore  float64   `json:"ranking_score"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	ShortSummary  string    `json:"short_summary,omitempty"`
}

// StorySource is one evidence row on the detail view.
type StorySource struct {
	SourceName  string    `json:"source_name"`
	SourceType  string    `json:"source_type"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}

type StoryDetail struct {
	StoryCard
	LongSummary    string        `json:"long_summary,omitempty"`
	WhyItMatters   string        `json:"why_it_matters,omitempty"`
	ChangesBullets []string      `json:"changes_bullets,omitempty"`
	SummaryVersion int           `json:"summary_version,omitempty"`
	Sources        []StorySource `json:"sources"`
}

type Category struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type Repository interface {
	Cards(ctx context.Context, limit int, status, category string) ([]StoryCard, error)
	Detail(ctx context.Context, id string) (*StoryDetail, error)
	Categories(ctx context.Context) ([]Category, error)
}
