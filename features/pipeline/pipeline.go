package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"pulsewire/features/cluster"
	"pulsewire/features/connector"
	"pulsewire/features/item"
	"pulsewire/features/source"
	"pulsewire/features/summary"
	"pulsewire/internal/config"
	"pulsewire/internal/metrics"
)

// Result is the counter set every run reports, even when individual
// sources or items failed.
type Result struct {
	FetchedCount    int `json:"fetched_count"`
	NormalizedCount int `json:"normalized_count"`
	ClusteredCount  int `json:"clustered_count"`
}

type Service struct {
	sources    source.Repository
	registry   *connector.Registry
	items      *item.Service
	engine     *cluster.Engine
	aggregates cluster.Repository
	summaries  *summary.Service
	runs       RunRepository
	fetchLimit int
}

func NewService(
	sources source.Repository,
	registry *connector.Registry,
	items *item.Service,
	engine *cluster.Engine,
	aggregates cluster.Repository,
	summaries *summary.Service,
	runs RunRepository,
	cfg *config.Config,
) *Service {
	return &Service{
		sources:    sources,
		registry:   registry,
		items:      items,
		engine:     engine,
		aggregates: aggregates,
		summaries:  summaries,
		runs:       runs,
		fetchLimit: cfg.IngestionDefaultLimit,
	}
}

// Run drives one ingestion pass over the enabled sources, optionally
// filtered by type. Fetch and normalization failures are isolated to
// their source or item; clustering and storage failures indicate broken
// invariants and fail the run.
func (s *Service) Run(ctx context.Context, sourceTypes []string) (*Result, error) {
	run := &Run{SourceFilter: sourceTypes}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, err
	}

	result, runErr := s.process(ctx, run)

	if runErr != nil {
		run.Status = RunStatusFailed
	} else {
		run.Status = RunStatusCompleted
	}
	run.FetchedCount = result.FetchedCount
	run.NormalizedCount = result.NormalizedCount
	run.ClusteredCount = result.ClusteredCount
	if err := s.runs.Finalize(ctx, run); err != nil {
		slog.ErrorContext(ctx, "failed to finalize run", "run_id", run.ID, "error", err)
		if runErr == nil {
			runErr = err
		}
	}
	metrics.RunsCompleted.WithLabelValues(run.Status).Inc()

	if runErr != nil {
		return nil, runErr
	}
	return result, nil
}

func (s *Service) process(ctx context.Context, run *Run) (*Result, error) {
	result := &Result{}

	sources, err := s.sources.ListEnabled(ctx, run.SourceFilter)
	if err != nil {
		return result, err
	}

	touched := map[string]struct{}{}

	for _, src := range sources {
		conn, ok := s.registry.Lookup(src.SourceType)
		if !ok {
			slog.WarnContext(ctx, "no connector for source type, skipping", "source_id", src.ID, "source_type", src.SourceType)
			continue
		}

		raws, err := conn.FetchLatest(ctx, src, s.fetchLimit)
		if err != nil {
			// A failing source contributes zero items this run.
			slog.WarnContext(ctx, "fetch failed, source skipped", "source_id", src.ID, "error", err)
			run.SourceErrors = append(run.SourceErrors, SourceError{
				SourceID: src.ID, Stage: "fetch", Message: err.Error(),
			})
			continue
		}

		result.FetchedCount += len(raws)
		metrics.ItemsFetched.WithLabelValues(src.SourceType).Add(float64(len(raws)))

		for _, raw := range raws {
			if !conn.Validate(raw) {
				continue
			}

			normalized, err := conn.Normalize(src, raw)
			if err != nil {
				var normErr *connector.NormalizationError
				if errors.As(err, &normErr) {
					slog.DebugContext(ctx, "item skipped", "source_id", src.ID, "reason", normErr.Reason)
					run.SourceErrors = append(run.SourceErrors, SourceError{
						SourceID: src.ID, Stage: "normalize", Message: err.Error(),
					})
					continue
				}
				return result, err
			}

			canonical, created, err := s.items.Ingest(ctx, normalized)
			if err != nil {
				return result, err
			}
			if created {
				result.NormalizedCount++
				metrics.ItemsNormalized.WithLabelValues("created").Inc()
			} else {
				metrics.ItemsNormalized.WithLabelValues("updated").Inc()
			}

			agg, err := s.engine.Assign(ctx, canonical, normalized.CategoryCandidates)
			if err != nil {
				return result, err
			}
			touched[agg.ID] = struct{}{}
			result.ClusteredCount++
			metrics.ItemsClustered.Inc()
		}
	}

	// Summarize each touched aggregate once, reading its final stats.
	for aggregateID := range touched {
		agg, err := s.aggregates.Get(ctx, aggregateID)
		if err != nil {
			return result, err
		}
		if _, err := s.summaries.Summarize(ctx, agg); err != nil {
			return result, err
		}
	}

	return result, nil
}
