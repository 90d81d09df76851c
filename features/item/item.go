package item

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"pulsewire/features/connector"
	"pulsewire/internal/ident"
)

// CanonicalItem is the persisted, deduplicated form of one ingested piece
// of content, unique per (source id, external id).
type CanonicalItem struct {
	ID          string         `json:"id"`
	SourceID    string         `json:"source_id"`
	RawItemID   string         `json:"raw_item_id,omitempty"`
	ExternalID  string         `json:"external_id"`
	Author      string         `json:"author,omitempty"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	CanonicalURL string        `json:"canonical_url"`
	PublishedAt time.Time      `json:"published_at"`
	FetchedAt   time.Time      `json:"fetched_at"`
	Language    string         `json:"language"`
	Engagement  map[string]int `json:"engagement"`
	ContentHash string         `json:"content_hash"`
	DedupeKey   string         `json:"dedupe_key"`
	CreatedAt   time.Time      `json:"created_at"`
}

type Repository interface {
	UpsertRaw(ctx context.Context, sourceID, externalID string, payload connector.RawItem) (string, error)
	GetByExternalID(ctx context.Context, sourceID, externalID string) (*CanonicalItem, error)
	Insert(ctx context.Context, it *CanonicalItem) error
	Update(ctx context.Context, it *CanonicalItem) error
	Count(ctx context.Context) (int, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Ingest persists one normalized item: the raw payload is retained per
// (source, external id), then the canonical item is upserted by the same
// key. A hit overwrites every mutable field rather than appending a new
// row. The bool result reports whether the item was newly
// created, which is what the pipeline's "normalized" counter tracks.
func (s *Service) Ingest(ctx context.Context, n *connector.NormalizedItem) (*CanonicalItem, bool, error) {
	rawID, err := s.repo.UpsertRaw(ctx, n.SourceID, n.ExternalID, n.RawPayload)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.repo.GetByExternalID(ctx, n.SourceID, n.ExternalID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	if existing != nil {
		existing.RawItemID = rawID
		existing.Author = n.Author
		existing.Title = n.Title
		existing.Body = n.Body
		existing.CanonicalURL = n.URL
		existing.PublishedAt = n.PublishedAt
		existing.FetchedAt = n.FetchedAt
		existing.Language = n.Language
		existing.Engagement = n.Engagement
		existing.ContentHash = n.ContentHash
		existing.DedupeKey = n.DedupeKey
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	created := &CanonicalItem{
		ID:           ident.New("item"),
		SourceID:     n.SourceID,
		RawItemID:    rawID,
		ExternalID:   n.ExternalID,
		Author:       n.Author,
		Title:        n.Title,
		Body:         n.Body,
		CanonicalURL: n.URL,
		PublishedAt:  n.PublishedAt,
		FetchedAt:    n.FetchedAt,
		Language:     n.Language,
		Engagement:   n.Engagement,
		ContentHash:  n.ContentHash,
		DedupeKey:    n.DedupeKey,
	}
	if err := s.repo.Insert(ctx, created); err != nil {
		return nil, false, err
	}
	return created, true, nil
}
