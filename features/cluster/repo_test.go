package cluster_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsewire/features/cluster"
)

func aggregateRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "slug", "headline", "short_headline", "status", "representative_item_id",
		"primary_category_id", "first_seen_at", "last_updated_at", "item_count", "source_count", "ranking_score",
	}).AddRow(
		"story_outage", "cloud-outage-abc12345", "Major cloud outage", "Major cloud outage",
		"breaking", "item_1", "cat_world", now.Add(-2*time.Hour), now, 3, 2, 4.2,
	)
}

func TestPostgresRepo_CandidatesSince(t *testing.T) {
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	cutoff := now.Add(-72 * time.Hour)
	mockDB.ExpectQuery("SELECT (.+) FROM story_clusters").
		WithArgs(cutoff, 100).
		WillReturnRows(aggregateRows(now))

	aggs, err := cluster.NewPostgresRepo(db).CandidatesSince(context.Background(), cutoff, 100)
	require.NoError(t, err)

	require.Len(t, aggs, 1)
	assert.Equal(t, "story_outage", aggs[0].ID)
	assert.Equal(t, 3, aggs[0].ItemCount)
	assert.Equal(t, "cat_world", aggs[0].PrimaryCategoryID)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestPostgresRepo_CategoryIDBySlug(t *testing.T) {
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	t.Run("Known slug", func(t *testing.T) {
		mockDB.ExpectQuery("SELECT id FROM categories").
			WithArgs("world").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("cat_world"))

		id, err := cluster.NewPostgresRepo(db).CategoryIDBySlug(context.Background(), "world")
		require.NoError(t, err)
		assert.Equal(t, "cat_world", id)
	})

	t.Run("Unknown slug resolves empty", func(t *testing.T) {
		mockDB.ExpectQuery("SELECT id FROM categories").
			WithArgs("unlisted").
			WillReturnError(sql.ErrNoRows)

		id, err := cluster.NewPostgresRepo(db).CategoryIDBySlug(context.Background(), "unlisted")
		require.NoError(t, err)
		assert.Empty(t, id)
	})

	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestPostgresRepo_Link(t *testing.T) {
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	t.Run("New membership", func(t *testing.T) {
		mockDB.ExpectExec("INSERT INTO cluster_items").
			WithArgs("ci_abc", "story_outage", "item_1", 0.51, true).
			WillReturnResult(sqlmock.NewResult(0, 1))

		m := &cluster.Membership{
			ID: "ci_abc", AggregateID: "story_outage", ItemID: "item_1",
			RelevanceScore: 0.51, IsPrimary: true,
		}
		require.NoError(t, cluster.NewPostgresRepo(db).Link(context.Background(), m))
	})

	t.Run("Duplicate pair is a no-op", func(t *testing.T) {
		mockDB.ExpectExec("INSERT INTO cluster_items").
			WillReturnResult(sqlmock.NewResult(0, 0))

		m := &cluster.Membership{ID: "ci_def", AggregateID: "story_outage", ItemID: "item_1"}
		require.NoError(t, cluster.NewPostgresRepo(db).Link(context.Background(), m))
	})

	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestPostgresRepo_UpdateStats(t *testing.T) {
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mockDB.ExpectExec("UPDATE story_clusters").
		WithArgs(4, 3, now, "developing", 5.6, "story_outage").
		WillReturnResult(sqlmock.NewResult(0, 1))

	agg := &cluster.StoryAggregate{
		ID: "story_outage", ItemCount: 4, SourceCount: 3,
		LastUpdatedAt: now, Status: "developing", RankingScore: 5.6,
	}
	require.NoError(t, cluster.NewPostgresRepo(db).UpdateStats(context.Background(), agg))
	assert.NoError(t, mockDB.ExpectationsWereMet())
}
