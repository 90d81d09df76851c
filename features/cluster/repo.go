package cluster

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const aggregateColumns = `id, slug, headline, short_headline, status, representative_item_id,
		primary_category_id, first_seen_at, last_updated_at, item_count, source_count, ranking_score`

func scanAggregate(scanner interface{ Scan(...interface{}) error }, a *StoryAggregate) error {
	var rep sql.NullString
	var short sql.NullString
	var category sql.NullString
	err := scanner.Scan(
		&a.ID, &a.Slug, &a.Headline, &short, &a.Status, &rep, &category,
		&a.FirstSeenAt, &a.LastUpdatedAt, &a.ItemCount, &a.SourceCount, &a.RankingScore,
	)
	if err != nil {
		return err
	}
	a.ShortHeadline = short.String
	a.RepresentativeItemID = rep.String
	a.PrimaryCategoryID = category.String
	return nil
}

// CandidatesSince returns aggregates updated at or after the cutoff,
// most recently updated first, bounded by limit. This is what keeps a
// single assignment O(window cap) instead of a full-table scan.
func (r *PostgresRepo) CandidatesSince(ctx context.Context, cutoff time.Time, limit int) ([]StoryAggregate, error) {
	query := `SELECT ` + aggregateColumns + ` FROM story_clusters
		WHERE last_updated_at >= $1 ORDER BY last_updated_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aggs []StoryAggregate
	for rows.Next() {
		var a StoryAggregate
		if err := scanAggregate(rows, &a); err != nil {
			return nil, err
		}
		aggs = append(aggs, a)
	}
	return aggs, rows.Err()
}

func (r *PostgresRepo) Insert(ctx context.Context, agg *StoryAggregate) error {
	query := `INSERT INTO story_clusters (id, slug, headline, short_headline, status, representative_item_id,
			primary_category_id, first_seen_at, last_updated_at, item_count, source_count, ranking_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.ExecContext(ctx, query,
		agg.ID, agg.Slug, agg.Headline, agg.ShortHeadline, agg.Status,
		nullable(agg.RepresentativeItemID), nullable(agg.PrimaryCategoryID),
		agg.FirstSeenAt, agg.LastUpdatedAt,
		agg.ItemCount, agg.SourceCount, agg.RankingScore,
	)
	return err
}

// CategoryIDBySlug resolves a category slug to its id; an unknown slug
// returns empty rather than an error.
func (r *PostgresRepo) CategoryIDBySlug(ctx context.Context, slug string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM categories WHERE slug = $1`, slug).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}

// Link is idempotent: re-linking the same (aggregate, item) pair is a
// no-op so membership is never duplicated or double-counted.
func (r *PostgresRepo) Link(ctx context.Context, m *Membership) error {
	query := `INSERT INTO cluster_items (id, cluster_id, source_item_id, relevance_score, is_primary)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cluster_id, source_item_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, m.ID, m.AggregateID, m.ItemID, m.RelevanceScore, m.IsPrimary)
	return err
}

func (r *PostgresRepo) Members(ctx context.Context, aggregateID string) ([]Member, error) {
	query := `SELECT si.id, si.source_id, si.published_at
		FROM cluster_items ci
		JOIN source_items si ON si.id = ci.source_item_id
		WHERE ci.cluster_id = $1`
	rows, err := r.db.QueryContext(ctx, query, aggregateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ItemID, &m.SourceID, &m.PublishedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *PostgresRepo) UpdateStats(ctx context.Context, agg *StoryAggregate) error {
	query := `UPDATE story_clusters SET item_count = $1, source_count = $2, last_updated_at = $3,
			status = $4, ranking_score = $5, updated_at = NOW()
		WHERE id = $6`
	_, err := r.db.ExecContext(ctx, query,
		agg.ItemCount, agg.SourceCount, agg.LastUpdatedAt, agg.Status, agg.RankingScore, agg.ID,
	)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*StoryAggregate, error) {
	a := &StoryAggregate{}
	query := `SELECT ` + aggregateColumns + ` FROM story_clusters WHERE id = $1`
	if err := scanAggregate(r.db.QueryRowContext(ctx, query, id), a); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM story_clusters`).Scan(&count)
	return count, err
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
