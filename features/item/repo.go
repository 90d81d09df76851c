package item

import (
	"context"
	"database/sql"
	"encoding/json"

	"pulsewire/features/connector"
	"pulsewire/internal/ident"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) UpsertRaw(ctx context.Context, sourceID, externalID string, payload connector.RawItem) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	var id string
	query := `INSERT INTO raw_ingested_items (id, source_id, external_id, payload_json)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source_id, external_id)
		DO UPDATE SET payload_json = EXCLUDED.payload_json, fetched_at = NOW()
		RETURNING id`
	err = r.db.QueryRowContext(ctx, query, ident.New("raw"), sourceID, externalID, data).Scan(&id)
	return id, err
}

const itemColumns = `id, source_id, raw_item_id, external_id, author, title, body, canonical_url,
		published_at, fetched_at, language, engagement_json, content_hash, dedupe_key, created_at`

func (r *PostgresRepo) GetByExternalID(ctx context.Context, sourceID, externalID string) (*CanonicalItem, error) {
	query := `SELECT ` + itemColumns + ` FROM source_items WHERE source_id = $1 AND external_id = $2`
	return r.scanItem(r.db.QueryRowContext(ctx, query, sourceID, externalID))
}

func (r *PostgresRepo) scanItem(row *sql.Row) (*CanonicalItem, error) {
	it := &CanonicalItem{}
	var rawItemID sql.NullString
	var author sql.NullString
	var engagement []byte
	err := row.Scan(
		&it.ID, &it.SourceID, &rawItemID, &it.ExternalID, &author, &it.Title, &it.Body,
		&it.CanonicalURL, &it.PublishedAt, &it.FetchedAt, &it.Language, &engagement,
		&it.ContentHash, &it.DedupeKey, &it.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	it.RawItemID = rawItemID.String
	it.Author = author.String
	if len(engagement) > 0 {
		if err := json.Unmarshal(engagement, &it.Engagement); err != nil {
			return nil, err
		}
	}
	return it, nil
}

func (r *PostgresRepo) Insert(ctx context.Context, it *CanonicalItem) error {
	engagement, err := json.Marshal(it.Engagement)
	if err != nil {
		return err
	}
	query := `INSERT INTO source_items (id, source_id, raw_item_id, external_id, author, title, body,
			canonical_url, published_at, fetched_at, language, engagement_json, content_hash, dedupe_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at`
	return r.db.QueryRowContext(ctx, query,
		it.ID, it.SourceID, nullable(it.RawItemID), it.ExternalID, nullable(it.Author), it.Title, it.Body,
		it.CanonicalURL, it.PublishedAt, it.FetchedAt, it.Language, engagement, it.ContentHash, it.DedupeKey,
	).Scan(&it.CreatedAt)
}

func (r *PostgresRepo) Update(ctx context.Context, it *CanonicalItem) error {
	engagement, err := json.Marshal(it.Engagement)
	if err != nil {
		return err
	}
	query := `UPDATE source_items SET raw_item_id = $1, author = $2, title = $3, body = $4,
			canonical_url = $5, published_at = $6, fetched_at = $7, language = $8,
			engagement_json = $9, content_hash = $10, dedupe_key = $11
		WHERE id = $12`
	_, err = r.db.ExecContext(ctx, query,
		nullable(it.RawItemID), nullable(it.Author), it.Title, it.Body,
		it.CanonicalURL, it.PublishedAt, it.FetchedAt, it.Language,
		engagement, it.ContentHash, it.DedupeKey, it.ID,
	)
	return err
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM source_items`).Scan(&count)
	return count, err
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
