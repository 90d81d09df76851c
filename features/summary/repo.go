package summary

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) MemberEvidence(ctx context.Context, aggregateID string) ([]EvidenceItem, error) {
	query := `SELECT si.id, si.title, si.canonical_url, si.published_at
		FROM cluster_items ci
		JOIN source_items si ON si.id = ci.source_item_id
		WHERE ci.cluster_id = $1
		ORDER BY si.published_at DESC`
	rows, err := r.db.QueryContext(ctx, query, aggregateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []EvidenceItem
	for rows.Next() {
		var it EvidenceItem
		if err := rows.Scan(&it.ItemID, &it.Title, &it.URL, &it.PublishedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *PostgresRepo) ActiveSummary(ctx context.Context, aggregateID string) (*Summary, error) {
	s := &Summary{}
	var why sql.NullString
	query := `SELECT id, cluster_id, provider, model, short_summary, long_summary, changes_bullets,
			why_it_matters, snapshot_item_ids, summary_version, generated_at
		FROM summaries
		WHERE cluster_id = $1 AND invalidated_at IS NULL
		ORDER BY summary_version DESC
		LIMIT 1`
	err := r.db.QueryRowContext(ctx, query, aggregateID).Scan(
		&s.ID, &s.AggregateID, &s.Provider, &s.Model, &s.ShortSummary, &s.LongSummary,
		pq.Array(&s.ChangesBullets), &why, pq.Array(&s.SnapshotItemIDs), &s.Version, &s.GeneratedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.WhyItMatters = why.String
	return s, nil
}

func (r *PostgresRepo) Invalidate(ctx context.Context, summaryID string, at time.Time) error {
	query := `UPDATE summaries SET invalidated_at = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, at, summaryID)
	return err
}

func (r *PostgresRepo) Insert(ctx context.Context, s *Summary) error {
	query := `INSERT INTO summaries (id, cluster_id, provider, model, short_summary, long_summary,
			changes_bullets, why_it_matters, snapshot_item_ids, summary_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING generated_at`
	return r.db.QueryRowContext(ctx, query,
		s.ID, s.AggregateID, s.Provider, s.Model, s.ShortSummary, s.LongSummary,
		pq.Array(s.ChangesBullets), nullString(s.WhyItMatters), pq.Array(s.SnapshotItemIDs), s.Version,
	).Scan(&s.GeneratedAt)
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM summaries`).Scan(&count)
	return count, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
