package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"pulsewire/internal/ident"
)

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// SourceError records one non-fatal per-source failure so a caller can
// see which sources contributed nothing and why.
type SourceError struct {
	SourceID string `json:"source_id"`
	Stage    string `json:"stage"`
	Message  string `json:"message"`
}

// Run is the audit record of one pipeline execution.
type Run struct {
	ID              string        `json:"id"`
	Status          string        `json:"status"`
	SourceFilter    []string      `json:"source_filter"`
	FetchedCount    int           `json:"fetched_count"`
	NormalizedCount int           `json:"normalized_count"`
	ClusteredCount  int           `json:"clustered_count"`
	SourceErrors    []SourceError `json:"source_errors"`
	StartedAt       time.Time     `json:"started_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
}

type RunRepository interface {
	Create(ctx context.Context, run *Run) error
	Finalize(ctx context.Context, run *Run) error
	List(ctx context.Context, limit int) ([]Run, error)
}

type PostgresRunRepo struct {
	db *sql.DB
}

func NewPostgresRunRepo(db *sql.DB) *PostgresRunRepo {
	return &PostgresRunRepo{db: db}
}

func (r *PostgresRunRepo) Create(ctx context.Context, run *Run) error {
	run.ID = ident.New("run")
	run.Status = RunStatusRunning
	query := `INSERT INTO ingestion_runs (id, status, source_filter) VALUES ($1, $2, $3) RETURNING started_at`
	return r.db.QueryRowContext(ctx, query, run.ID, run.Status, pq.Array(run.SourceFilter)).Scan(&run.StartedAt)
}

// Finalize writes status, counters and completion in one statement.
func (r *PostgresRunRepo) Finalize(ctx context.Context, run *Run) error {
	errorsJSON, err := json.Marshal(run.SourceErrors)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	run.CompletedAt = &now
	query := `UPDATE ingestion_runs
		SET status = $1, fetched_count = $2, normalized_count = $3, clustered_count = $4,
			source_errors = $5, completed_at = $6
		WHERE id = $7`
	_, err = r.db.ExecContext(ctx, query,
		run.Status, run.FetchedCount, run.NormalizedCount, run.ClusteredCount,
		errorsJSON, now, run.ID,
	)
	return err
}

func (r *PostgresRunRepo) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, status, source_filter, fetched_count, normalized_count, clustered_count,
			source_errors, started_at, completed_at
		FROM ingestion_runs ORDER BY started_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var errorsJSON []byte
		var completed sql.NullTime
		if err := rows.Scan(
			&run.ID, &run.Status, pq.Array(&run.SourceFilter),
			&run.FetchedCount, &run.NormalizedCount, &run.ClusteredCount,
			&errorsJSON, &run.StartedAt, &completed,
		); err != nil {
			return nil, err
		}
		if len(errorsJSON) > 0 {
			if err := json.Unmarshal(errorsJSON, &run.SourceErrors); err != nil {
				return nil, err
			}
		}
		if completed.Valid {
			t := completed.Time
			run.CompletedAt = &t
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
