package source

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const sourceColumns = `id, source_type, name, external_ref, url, enabled, polling_interval_seconds, category_hints, created_at, updated_at`

func (r *PostgresRepo) Save(ctx context.Context, src *Source) error {
	query := `INSERT INTO sources (id, source_type, name, external_ref, url, enabled, polling_interval_seconds, category_hints)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at, updated_at`
	return r.db.QueryRowContext(ctx, query,
		src.ID, src.SourceType, src.Name, src.ExternalRef, src.URL, src.Enabled,
		src.PollingInterval, pq.Array(src.CategoryHints),
	).Scan(&src.CreatedAt, &src.UpdatedAt)
}

func scanSource(scanner interface{ Scan(...interface{}) error }, s *Source) error {
	return scanner.Scan(
		&s.ID, &s.SourceType, &s.Name, &s.ExternalRef, &s.URL, &s.Enabled,
		&s.PollingInterval, pq.Array(&s.CategoryHints), &s.CreatedAt, &s.UpdatedAt,
	)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Source, error) {
	s := &Source{}
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE id = $1`
	if err := scanSource(r.db.QueryRowContext(ctx, query, id), s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		if err := scanSource(rows, &s); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

func (r *PostgresRepo) ListEnabled(ctx context.Context, sourceTypes []string) ([]Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE enabled = TRUE`
	args := []interface{}{}
	if len(sourceTypes) > 0 {
		query += ` AND source_type = ANY($1)`
		args = append(args, pq.Array(sourceTypes))
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		if err := scanSource(rows, &s); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

func (r *PostgresRepo) SetEnabled(ctx context.Context, id string, enabled bool) error {
	query := `UPDATE sources SET enabled = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, enabled, id)
	return err
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM sources`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}
