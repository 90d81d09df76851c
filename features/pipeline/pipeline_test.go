package pipeline_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pulsewire/features/cluster"
	"pulsewire/features/connector"
	"pulsewire/features/item"
	"pulsewire/features/pipeline"
	"pulsewire/features/source"
	"pulsewire/features/summary"
	"pulsewire/internal/config"
)

// fakeConnector drives the pipeline without any network.
type fakeConnector struct {
	sourceType string
	raws       map[string][]connector.RawItem
	fetchErr   map[string]error
	failNorm   bool
}

func (f *fakeConnector) SourceType() string { return f.sourceType }

func (f *fakeConnector) FetchLatest(_ context.Context, src source.Source, _ int) ([]connector.RawItem, error) {
	if err := f.fetchErr[src.ID]; err != nil {
		return nil, &connector.FetchError{SourceID: src.ID, Err: err}
	}
	return f.raws[src.ID], nil
}

func (f *fakeConnector) Validate(raw connector.RawItem) bool { return len(raw) > 0 }

func (f *fakeConnector) Normalize(src source.Source, raw connector.RawItem) (*connector.NormalizedItem, error) {
	if f.failNorm {
		return nil, &connector.NormalizationError{SourceType: f.sourceType, Reason: "connector is a placeholder"}
	}
	title, _ := raw["title"].(string)
	if title == "" {
		return nil, &connector.NormalizationError{SourceType: f.sourceType, Reason: "missing title"}
	}
	url, _ := raw["link"].(string)
	return connector.NewNormalizedItem(connector.NormalizedItem{
		SourceID:           src.ID,
		SourceType:         src.SourceType,
		ExternalID:         title,
		Title:              title,
		URL:                url,
		PublishedAt:        time.Now().UTC().Add(-time.Hour),
		CategoryCandidates: src.CategoryHints,
		RawPayload:         raw,
	}), nil
}

type MockSourceRepo struct{ mock.Mock }

func (m *MockSourceRepo) Save(ctx context.Context, src *source.Source) error {
	return m.Called(ctx, src).Error(0)
}

func (m *MockSourceRepo) Get(ctx context.Context, id string) (*source.Source, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*source.Source), args.Error(1)
}

func (m *MockSourceRepo) List(ctx context.Context) ([]source.Source, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]source.Source), args.Error(1)
}

func (m *MockSourceRepo) ListEnabled(ctx context.Context, types []string) ([]source.Source, error) {
	args := m.Called(ctx, types)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]source.Source), args.Error(1)
}

func (m *MockSourceRepo) SetEnabled(ctx context.Context, id string, enabled bool) error {
	return m.Called(ctx, id, enabled).Error(0)
}

func (m *MockSourceRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockRunRepo struct{ mock.Mock }

func (m *MockRunRepo) Create(ctx context.Context, run *pipeline.Run) error {
	run.ID = "run_test"
	run.Status = pipeline.RunStatusRunning
	run.StartedAt = time.Now().UTC()
	return m.Called(ctx, run).Error(0)
}

func (m *MockRunRepo) Finalize(ctx context.Context, run *pipeline.Run) error {
	now := time.Now().UTC()
	run.CompletedAt = &now
	return m.Called(ctx, run).Error(0)
}

func (m *MockRunRepo) List(ctx context.Context, limit int) ([]pipeline.Run, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]pipeline.Run), args.Error(1)
}

// memoryItemRepo keeps canonical items keyed by (source, external id).
type memoryItemRepo struct {
	items map[string]*item.CanonicalItem
}

func newMemoryItemRepo() *memoryItemRepo {
	return &memoryItemRepo{items: map[string]*item.CanonicalItem{}}
}

func (r *memoryItemRepo) UpsertRaw(_ context.Context, sourceID, externalID string, _ connector.RawItem) (string, error) {
	return "raw_" + sourceID + "_" + externalID, nil
}

func (r *memoryItemRepo) GetByExternalID(_ context.Context, sourceID, externalID string) (*item.CanonicalItem, error) {
	if it, ok := r.items[sourceID+"/"+externalID]; ok {
		return it, nil
	}
	return nil, sql.ErrNoRows
}

func (r *memoryItemRepo) Insert(_ context.Context, it *item.CanonicalItem) error {
	r.items[it.SourceID+"/"+it.ExternalID] = it
	return nil
}

func (r *memoryItemRepo) Update(_ context.Context, it *item.CanonicalItem) error {
	r.items[it.SourceID+"/"+it.ExternalID] = it
	return nil
}

func (r *memoryItemRepo) Count(context.Context) (int, error) { return len(r.items), nil }

// memoryClusterRepo implements cluster.Repository in memory.
type memoryClusterRepo struct {
	aggregates map[string]*cluster.StoryAggregate
	links      map[string][]cluster.Member
}

func newMemoryClusterRepo() *memoryClusterRepo {
	return &memoryClusterRepo{
		aggregates: map[string]*cluster.StoryAggregate{},
		links:      map[string][]cluster.Member{},
	}
}

func (r *memoryClusterRepo) CandidatesSince(_ context.Context, cutoff time.Time, limit int) ([]cluster.StoryAggregate, error) {
	out := []cluster.StoryAggregate{}
	for _, agg := range r.aggregates {
		if !agg.LastUpdatedAt.Before(cutoff) && len(out) < limit {
			out = append(out, *agg)
		}
	}
	return out, nil
}

func (r *memoryClusterRepo) Insert(_ context.Context, agg *cluster.StoryAggregate) error {
	copied := *agg
	r.aggregates[agg.ID] = &copied
	return nil
}

func (r *memoryClusterRepo) Link(_ context.Context, m *cluster.Membership) error {
	for _, existing := range r.links[m.AggregateID] {
		if existing.ItemID == m.ItemID {
			return nil
		}
	}
	r.links[m.AggregateID] = append(r.links[m.AggregateID], cluster.Member{ItemID: m.ItemID})
	return nil
}

func (r *memoryClusterRepo) Members(_ context.Context, aggregateID string) ([]cluster.Member, error) {
	return r.links[aggregateID], nil
}

func (r *memoryClusterRepo) UpdateStats(_ context.Context, agg *cluster.StoryAggregate) error {
	copied := *agg
	r.aggregates[agg.ID] = &copied
	return nil
}

func (r *memoryClusterRepo) Get(_ context.Context, id string) (*cluster.StoryAggregate, error) {
	if agg, ok := r.aggregates[id]; ok {
		return agg, nil
	}
	return nil, sql.ErrNoRows
}

func (r *memoryClusterRepo) CategoryIDBySlug(_ context.Context, slug string) (string, error) {
	if slug == "world" {
		return "cat_world", nil
	}
	return "", nil
}

func (r *memoryClusterRepo) Count(context.Context) (int, error) { return len(r.aggregates), nil }

// memorySummaryRepo implements summary.Repository in memory.
type memorySummaryRepo struct {
	summaries []*summary.Summary
}

func (r *memorySummaryRepo) MemberEvidence(context.Context, string) ([]summary.EvidenceItem, error) {
	return []summary.EvidenceItem{{ItemID: "item_1", Title: "t", URL: "u"}}, nil
}

func (r *memorySummaryRepo) ActiveSummary(_ context.Context, aggregateID string) (*summary.Summary, error) {
	for i := len(r.summaries) - 1; i >= 0; i-- {
		s := r.summaries[i]
		if s.AggregateID == aggregateID && s.InvalidatedAt == nil {
			return s, nil
		}
	}
	return nil, nil
}

func (r *memorySummaryRepo) Invalidate(_ context.Context, summaryID string, at time.Time) error {
	for _, s := range r.summaries {
		if s.ID == summaryID {
			stamped := at
			s.InvalidatedAt = &stamped
		}
	}
	return nil
}

func (r *memorySummaryRepo) Insert(_ context.Context, s *summary.Summary) error {
	s.GeneratedAt = time.Now().UTC()
	r.summaries = append(r.summaries, s)
	return nil
}

func (r *memorySummaryRepo) Count(context.Context) (int, error) { return len(r.summaries), nil }

func testConfig() *config.Config {
	return &config.Config{
		IngestionDefaultLimit:      25,
		ClusterSimilarityThreshold: 0.28,
		ClusterWindowHours:         72,
		ClusterCandidateLimit:      100,
		SummarizerTimeoutSeconds:   5,
		SummarizerProvider:         config.ProviderStub,
	}
}

type fixture struct {
	service     *pipeline.Service
	sourceRepo  *MockSourceRepo
	runRepo     *MockRunRepo
	clusterRepo *memoryClusterRepo
	summaryRepo *memorySummaryRepo
}

func newFixture(t *testing.T, conn connector.Connector, sources []source.Source) *fixture {
	t.Helper()
	cfg := testConfig()

	sourceRepo := new(MockSourceRepo)
	sourceRepo.On("ListEnabled", mock.Anything, mock.Anything).Return(sources, nil)

	runRepo := new(MockRunRepo)
	runRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	runRepo.On("Finalize", mock.Anything, mock.Anything).Return(nil)

	registry := connector.NewRegistry(cfg)
	registry.Register(conn)

	clusterRepo := newMemoryClusterRepo()
	summaryRepo := &memorySummaryRepo{}

	svc := pipeline.NewService(
		sourceRepo,
		registry,
		item.NewService(newMemoryItemRepo()),
		cluster.NewEngine(clusterRepo, cfg),
		clusterRepo,
		summary.NewService(summaryRepo, &summary.StubSummarizer{}, cfg),
		runRepo,
		cfg,
	)

	return &fixture{
		service:     svc,
		sourceRepo:  sourceRepo,
		runRepo:     runRepo,
		clusterRepo: clusterRepo,
		summaryRepo: summaryRepo,
	}
}

func TestService_Run(t *testing.T) {
	srcA := source.Source{ID: "src_a", SourceType: "fake", Name: "A", Enabled: true}
	srcB := source.Source{ID: "src_b", SourceType: "fake", Name: "B", Enabled: true}

	t.Run("Counts fetched, normalized and clustered", func(t *testing.T) {
		conn := &fakeConnector{
			sourceType: "fake",
			raws: map[string][]connector.RawItem{
				"src_a": {
					{"title": "Cloud outage reports trigger alerts", "link": "https://example.com/a"},
					{"title": "Championship final penalty shootout", "link": "https://example.com/b"},
				},
			},
		}

		f := newFixture(t, conn, []source.Source{srcA})
		result, err := f.service.Run(context.Background(), nil)
		require.NoError(t, err)

		assert.Equal(t, 2, result.FetchedCount)
		assert.Equal(t, 2, result.NormalizedCount)
		assert.Equal(t, 2, result.ClusteredCount)

		run := f.runRepo.Calls[1].Arguments.Get(1).(*pipeline.Run)
		assert.Equal(t, pipeline.RunStatusCompleted, run.Status)
		assert.NotNil(t, run.CompletedAt)
		assert.Empty(t, run.SourceErrors)
	})

	t.Run("Unrelated items land in separate aggregates", func(t *testing.T) {
		conn := &fakeConnector{
			sourceType: "fake",
			raws: map[string][]connector.RawItem{
				"src_a": {
					{"title": "Cloud outage reports trigger alerts", "link": "https://example.com/a"},
					{"title": "Championship final penalty shootout", "link": "https://example.com/b"},
				},
			},
		}

		f := newFixture(t, conn, []source.Source{srcA})
		_, err := f.service.Run(context.Background(), nil)
		require.NoError(t, err)

		count, _ := f.clusterRepo.Count(context.Background())
		assert.Equal(t, 2, count)
	})

	t.Run("Source category hints categorize new aggregates", func(t *testing.T) {
		hinted := source.Source{
			ID: "src_a", SourceType: "fake", Name: "A", Enabled: true,
			CategoryHints: []string{"world"},
		}
		conn := &fakeConnector{
			sourceType: "fake",
			raws: map[string][]connector.RawItem{
				"src_a": {
					{"title": "Cloud outage reports trigger alerts", "link": "https://example.com/a"},
				},
			},
		}

		f := newFixture(t, conn, []source.Source{hinted})
		_, err := f.service.Run(context.Background(), nil)
		require.NoError(t, err)

		for _, agg := range f.clusterRepo.aggregates {
			assert.Equal(t, "cat_world", agg.PrimaryCategoryID)
		}
	})

	t.Run("One summary per touched aggregate", func(t *testing.T) {
		conn := &fakeConnector{
			sourceType: "fake",
			raws: map[string][]connector.RawItem{
				"src_a": {{"title": "Cloud outage reports trigger alerts", "link": "https://example.com/a"}},
				"src_b": {{"title": "Cloud outage reports trigger major alerts", "link": "https://example.com/b"}},
			},
		}

		f := newFixture(t, conn, []source.Source{srcA, srcB})
		_, err := f.service.Run(context.Background(), nil)
		require.NoError(t, err)

		aggCount, _ := f.clusterRepo.Count(context.Background())
		require.Equal(t, 1, aggCount)
		assert.Len(t, f.summaryRepo.summaries, 1)
		assert.Equal(t, 1, f.summaryRepo.summaries[0].Version)
	})

	t.Run("Failing source is isolated", func(t *testing.T) {
		conn := &fakeConnector{
			sourceType: "fake",
			raws: map[string][]connector.RawItem{
				"src_b": {{"title": "Cloud outage reports trigger alerts", "link": "https://example.com/a"}},
			},
			fetchErr: map[string]error{"src_a": errors.New("connection refused")},
		}

		f := newFixture(t, conn, []source.Source{srcA, srcB})
		result, err := f.service.Run(context.Background(), nil)
		require.NoError(t, err)

		assert.Equal(t, 1, result.FetchedCount)
		assert.Equal(t, 1, result.NormalizedCount)

		run := f.runRepo.Calls[1].Arguments.Get(1).(*pipeline.Run)
		assert.Equal(t, pipeline.RunStatusCompleted, run.Status)
		require.Len(t, run.SourceErrors, 1)
		assert.Equal(t, "src_a", run.SourceErrors[0].SourceID)
		assert.Equal(t, "fetch", run.SourceErrors[0].Stage)
	})

	t.Run("Normalization failure skips the item only", func(t *testing.T) {
		conn := &fakeConnector{
			sourceType: "fake",
			raws: map[string][]connector.RawItem{
				"src_a": {
					{"title": "Cloud outage reports trigger alerts", "link": "https://example.com/a"},
					{"nottitle": "malformed"},
				},
			},
		}

		f := newFixture(t, conn, []source.Source{srcA})
		result, err := f.service.Run(context.Background(), nil)
		require.NoError(t, err)

		assert.Equal(t, 2, result.FetchedCount)
		assert.Equal(t, 1, result.NormalizedCount)
		assert.Equal(t, 1, result.ClusteredCount)

		run := f.runRepo.Calls[1].Arguments.Get(1).(*pipeline.Run)
		require.Len(t, run.SourceErrors, 1)
		assert.Equal(t, "normalize", run.SourceErrors[0].Stage)
	})

	t.Run("Placeholder connector contributes nothing but completes", func(t *testing.T) {
		conn := &fakeConnector{
			sourceType: "fake",
			raws: map[string][]connector.RawItem{
				"src_a": {{"title": "anything", "link": "https://example.com/a"}},
			},
			failNorm: true,
		}

		f := newFixture(t, conn, []source.Source{srcA})
		result, err := f.service.Run(context.Background(), nil)
		require.NoError(t, err)

		assert.Equal(t, 1, result.FetchedCount)
		assert.Equal(t, 0, result.NormalizedCount)
		assert.Equal(t, 0, result.ClusteredCount)
		assert.Empty(t, f.summaryRepo.summaries)
	})

	t.Run("Unknown source type is skipped", func(t *testing.T) {
		conn := &fakeConnector{sourceType: "fake"}
		telegram := source.Source{ID: "src_t", SourceType: "telegram", Enabled: true}

		f := newFixture(t, conn, []source.Source{telegram})
		result, err := f.service.Run(context.Background(), nil)
		require.NoError(t, err)

		assert.Zero(t, result.FetchedCount)
	})

	t.Run("Re-running re-summarizes with the next version", func(t *testing.T) {
		conn := &fakeConnector{
			sourceType: "fake",
			raws: map[string][]connector.RawItem{
				"src_a": {{"title": "Cloud outage reports trigger alerts", "link": "https://example.com/a"}},
			},
		}

		f := newFixture(t, conn, []source.Source{srcA})
		_, err := f.service.Run(context.Background(), nil)
		require.NoError(t, err)
		result, err := f.service.Run(context.Background(), nil)
		require.NoError(t, err)

		// Same item again: refreshed, not re-created.
		assert.Equal(t, 0, result.NormalizedCount)
		assert.Equal(t, 1, result.ClusteredCount)

		require.Len(t, f.summaryRepo.summaries, 2)
		assert.NotNil(t, f.summaryRepo.summaries[0].InvalidatedAt)
		assert.Nil(t, f.summaryRepo.summaries[1].InvalidatedAt)
		assert.Equal(t, 2, f.summaryRepo.summaries[1].Version)
	})

	t.Run("Source listing failure fails the run", func(t *testing.T) {
		cfg := testConfig()
		sourceRepo := new(MockSourceRepo)
		sourceRepo.On("ListEnabled", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

		runRepo := new(MockRunRepo)
		runRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
		runRepo.On("Finalize", mock.Anything, mock.Anything).Return(nil)

		clusterRepo := newMemoryClusterRepo()
		svc := pipeline.NewService(
			sourceRepo,
			connector.NewRegistry(cfg),
			item.NewService(newMemoryItemRepo()),
			cluster.NewEngine(clusterRepo, cfg),
			clusterRepo,
			summary.NewService(&memorySummaryRepo{}, &summary.StubSummarizer{}, cfg),
			runRepo,
			cfg,
		)

		_, err := svc.Run(context.Background(), nil)
		require.Error(t, err)

		run := runRepo.Calls[1].Arguments.Get(1).(*pipeline.Run)
		assert.Equal(t, pipeline.RunStatusFailed, run.Status)
	})
}
