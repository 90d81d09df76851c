package story

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const cardQuery = `SELECT sc.id, sc.slug, sc.headline, sc.short_headline, sc.status,
		sc.item_count, sc.source_count, sc.ranking_score, sc.last_updated_at,
		COALESCE(s.short_summary, '')
	FROM story_clusters sc
	LEFT JOIN summaries s ON s.cluster_id = sc.id AND s.invalidated_at IS NULL`

// Cards lists story cards, optionally filtered by status or category
// slug. An unknown category slug matches nothing, so the caller gets an
// empty list rather than the unfiltered feed.
func (r *PostgresRepo) Cards(ctx context.Context, limit int, status, category string) ([]StoryCard, error) {
	query := cardQuery
	args := []interface{}{limit}
	var where []string
	if status != "" {
		args = append(args, status)
		where = append(where, fmt.Sprintf("sc.status = $%d", len(args)))
	}
	if category != "" {
		args = append(args, category)
		where = append(where, fmt.Sprintf("sc.primary_category_id = (SELECT id FROM categories WHERE slug = $%d)", len(args)))
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY sc.ranking_score DESC, sc.last_updated_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []StoryCard
	for rows.Next() {
		var c StoryCard
		var short sql.NullString
		if err := rows.Scan(
			&c.ID, &c.Slug, &c.Headline, &short, &c.Status,
			&c.ItemCount, &c.SourceCount, &c.RankingScore, &c.LastUpdatedAt, &c.ShortSummary,
		); err != nil {
			return nil, err
		}
		c.ShortHeadline = short.String
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func (r *PostgresRepo) Detail(ctx context.Context, id string) (*StoryDetail, error) {
	d := &StoryDetail{}
	var short sql.NullString
	var longSummary, whyItMatters sql.NullString
	var version sql.NullInt64
	query := `SELECT sc.id, sc.slug, sc.headline, sc.short_headline, sc.status,
			sc.item_count, sc.source_count, sc.ranking_score, sc.last_updated_at,
			COALESCE(s.short_summary, ''), s.long_summary, s.why_it_matters, s.changes_bullets, s.summary_version
		FROM story_clusters sc
		LEFT JOIN summaries s ON s.cluster_id = sc.id AND s.invalidated_at IS NULL
		WHERE sc.id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&d.ID, &d.Slug, &d.Headline, &short, &d.Status,
		&d.ItemCount, &d.SourceCount, &d.RankingScore, &d.LastUpdatedAt,
		&d.ShortSummary, &longSummary, &whyItMatters, pq.Array(&d.ChangesBullets), &version,
	)
	if err != nil {
		return nil, err
	}
	d.ShortHeadline = short.String
	d.LongSummary = longSummary.String
	d.WhyItMatters = whyItMatters.String
	d.SummaryVersion = int(version.Int64)

	sources, err := r.storySources(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Sources = sources
	return d, nil
}

func (r *PostgresRepo) storySources(ctx context.Context, clusterID string) ([]StorySource, error) {
	query := `SELECT src.name, src.source_type, si.title, si.canonical_url, si.published_at
		FROM cluster_items ci
		JOIN source_items si ON si.id = ci.source_item_id
		JOIN sources src ON src.id = si.source_id
		WHERE ci.cluster_id = $1
		ORDER BY si.published_at DESC`
	rows, err := r.db.QueryContext(ctx, query, clusterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sources := []StorySource{}
	for rows.Next() {
		var s StorySource
		if err := rows.Scan(&s.SourceName, &s.SourceType, &s.Title, &s.URL, &s.PublishedAt); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

func (r *PostgresRepo) Categories(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, slug, name FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Slug, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
