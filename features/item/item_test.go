package item_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pulsewire/features/connector"
	"pulsewire/features/item"
)

type MockRepo struct{ mock.Mock }

func (m *MockRepo) UpsertRaw(ctx context.Context, sourceID, externalID string, payload connector.RawItem) (string, error) {
	args := m.Called(ctx, sourceID, externalID, payload)
	return args.String(0), args.Error(1)
}

func (m *MockRepo) GetByExternalID(ctx context.Context, sourceID, externalID string) (*item.CanonicalItem, error) {
	args := m.Called(ctx, sourceID, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*item.CanonicalItem), args.Error(1)
}

func (m *MockRepo) Insert(ctx context.Context, it *item.CanonicalItem) error {
	return m.Called(ctx, it).Error(0)
}

func (m *MockRepo) Update(ctx context.Context, it *item.CanonicalItem) error {
	return m.Called(ctx, it).Error(0)
}

func (m *MockRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func normalized() *connector.NormalizedItem {
	return connector.NewNormalizedItem(connector.NormalizedItem{
		SourceID:    "src_one",
		SourceType:  "rss",
		ExternalID:  "guid-1",
		Title:       "Cloud outage hits providers",
		Body:        "Elevated error rates reported.",
		URL:         "https://example.com/a1",
		PublishedAt: time.Date(2026, 2, 26, 10, 0, 0, 0, time.UTC),
		RawPayload:  connector.RawItem{"title": "Cloud outage hits providers"},
	})
}

func TestService_Ingest(t *testing.T) {
	t.Run("First sighting creates", func(t *testing.T) {
		repo := new(MockRepo)
		repo.On("UpsertRaw", mock.Anything, "src_one", "guid-1", mock.Anything).Return("raw_abc", nil)
		repo.On("GetByExternalID", mock.Anything, "src_one", "guid-1").Return(nil, sql.ErrNoRows)
		repo.On("Insert", mock.Anything, mock.Anything).Return(nil)

		svc := item.NewService(repo)
		got, created, err := svc.Ingest(context.Background(), normalized())
		require.NoError(t, err)

		assert.True(t, created)
		assert.True(t, strings.HasPrefix(got.ID, "item_"))
		assert.Equal(t, "raw_abc", got.RawItemID)
		assert.Equal(t, "Cloud outage hits providers", got.Title)
		assert.NotEmpty(t, got.ContentHash)
		repo.AssertExpectations(t)
		repo.AssertNotCalled(t, "Update")
	})

	t.Run("Re-sighting refreshes in place", func(t *testing.T) {
		existing := &item.CanonicalItem{
			ID:         "item_old",
			SourceID:   "src_one",
			ExternalID: "guid-1",
			Title:      "Cloud outage (initial)",
			Body:       "early report",
		}

		repo := new(MockRepo)
		repo.On("UpsertRaw", mock.Anything, "src_one", "guid-1", mock.Anything).Return("raw_def", nil)
		repo.On("GetByExternalID", mock.Anything, "src_one", "guid-1").Return(existing, nil)
		repo.On("Update", mock.Anything, mock.Anything).Return(nil)

		svc := item.NewService(repo)
		got, created, err := svc.Ingest(context.Background(), normalized())
		require.NoError(t, err)

		assert.False(t, created)
		assert.Equal(t, "item_old", got.ID)
		assert.Equal(t, "raw_def", got.RawItemID)
		assert.Equal(t, "Cloud outage hits providers", got.Title)
		assert.Equal(t, "Elevated error rates reported.", got.Body)
		repo.AssertNotCalled(t, "Insert")
	})

	t.Run("Repeated ingest stays one item", func(t *testing.T) {
		repo := new(MockRepo)
		repo.On("UpsertRaw", mock.Anything, "src_one", "guid-1", mock.Anything).Return("raw_abc", nil)
		repo.On("GetByExternalID", mock.Anything, "src_one", "guid-1").Return(nil, sql.ErrNoRows).Once()
		repo.On("Insert", mock.Anything, mock.Anything).Return(nil)

		svc := item.NewService(repo)
		first, created, err := svc.Ingest(context.Background(), normalized())
		require.NoError(t, err)
		require.True(t, created)

		repo.On("GetByExternalID", mock.Anything, "src_one", "guid-1").Return(first, nil)
		repo.On("Update", mock.Anything, mock.Anything).Return(nil)

		second, created, err := svc.Ingest(context.Background(), normalized())
		require.NoError(t, err)

		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("Raw retention failure aborts", func(t *testing.T) {
		repo := new(MockRepo)
		repo.On("UpsertRaw", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("db down"))

		svc := item.NewService(repo)
		_, _, err := svc.Ingest(context.Background(), normalized())

		require.Error(t, err)
		repo.AssertNotCalled(t, "Insert")
	})
}
