package source

import (
	"context"
	"fmt"
	"time"

	"pulsewire/internal/ident"
)

// Source is one configured external feed. The pipeline treats it as
// immutable during a run; only the admin surface mutates it.
type Source struct {
	ID              string    `json:"id"`
	SourceType      string    `json:"source_type"`
	Name            string    `json:"name"`
	ExternalRef     string    `json:"external_ref"`
	URL             string    `json:"url"`
	Enabled         bool      `json:"enabled"`
	PollingInterval int       `json:"polling_interval_seconds"`
	CategoryHints   []string  `json:"category_hints"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Repository interface {
	Save(ctx context.Context, src *Source) error
	Get(ctx context.Context, id string) (*Source, error)
	List(ctx context.Context) ([]Source, error)
	ListEnabled(ctx context.Context, sourceTypes []string) ([]Source, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
	Count(ctx context.Context) (int, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, src *Source) error {
	if src.SourceType == "" {
		return fmt.Errorf("source type is required")
	}
	if src.ExternalRef == "" {
		return fmt.Errorf("external ref is required")
	}
	if src.URL == "" {
		src.URL = src.ExternalRef
	}
	if src.PollingInterval == 0 {
		src.PollingInterval = 300
	}
	src.ID = ident.New("src")
	src.Enabled = true
	return s.repo.Save(ctx, src)
}

func (s *Service) Get(ctx context.Context, id string) (*Source, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Source, error) {
	return s.repo.List(ctx)
}

func (s *Service) SetEnabled(ctx context.Context, id string, enabled bool) error {
	return s.repo.SetEnabled(ctx, id, enabled)
}
