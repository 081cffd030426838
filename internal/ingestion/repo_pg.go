package ingestion

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const jobColumns = `id, document_id, status, error_message, result, config, started_at, completed_at, created_at, updated_at`

// Create inserts a new ingestion job.
func (r *PGRepo) Create(ctx context.Context, job Job) error {
	const query = `
INSERT INTO ingestion_jobs (` + jobColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	result, err := toNullJSON(job.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	config, err := toNullJSON(job.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	_, err = r.DB.ExecContext(
		ctx,
		query,
		job.ID,
		job.DocumentID,
		string(job.Status),
		toNullString(job.ErrorMessage),
		result,
		config,
		job.StartedAt,
		job.CompletedAt,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

// GetByID fetches a job by ID.
func (r *PGRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	const query = `SELECT ` + jobColumns + ` FROM ingestion_jobs WHERE id = $1 LIMIT 1`
	job, err := scanJob(r.DB.QueryRowContext(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}
	return job, nil
}

// List returns all jobs ordered newest-first.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Job, error) {
	const query = `
SELECT ` + jobColumns + `
FROM ingestion_jobs
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`
	return r.queryMany(ctx, query, clampLimit(limit), clampOffset(offset))
}

// ListByOwner returns jobs whose document belongs to the given user,
// ordered newest-first. Ownership is transitive through the document.
func (r *PGRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Job, error) {
	const query = `
SELECT j.id, j.document_id, j.status, j.error_message, j.result, j.config, j.started_at, j.completed_at, j.created_at, j.updated_at
FROM ingestion_jobs j
JOIN documents d ON d.id = j.document_id
WHERE d.uploaded_by = $1
ORDER BY j.created_at DESC
LIMIT $2 OFFSET $3`
	return r.queryMany(ctx, query, ownerID, clampLimit(limit), clampOffset(offset))
}

// Update persists mutable job fields.
func (r *PGRepo) Update(ctx context.Context, job Job) error {
	const query = `
UPDATE ingestion_jobs
SET status = $1, error_message = $2, result = $3, started_at = $4, completed_at = $5, updated_at = $6
WHERE id = $7`

	result, err := toNullJSON(job.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	res, err := r.DB.ExecContext(
		ctx,
		query,
		string(job.Status),
		toNullString(job.ErrorMessage),
		result,
		job.StartedAt,
		job.CompletedAt,
		job.UpdatedAt,
		job.ID,
	)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a job record.
func (r *PGRepo) Delete(ctx context.Context, jobID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM ingestion_jobs WHERE id = $1`, jobID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) queryMany(ctx context.Context, query string, args ...any) ([]Job, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var job Job
	var status string
	var errorMessage sql.NullString
	var result, config []byte
	var startedAt, completedAt sql.NullTime
	err := row.Scan(
		&job.ID,
		&job.DocumentID,
		&status,
		&errorMessage,
		&result,
		&config,
		&startedAt,
		&completedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return Job{}, err
	}
	job.Status = Status(status)
	if errorMessage.Valid {
		job.ErrorMessage = errorMessage.String
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &job.Result); err != nil {
			return Job{}, fmt.Errorf("decode result: %w", err)
		}
	}
	if len(config) > 0 {
		if err := json.Unmarshal(config, &job.Config); err != nil {
			return Job{}, fmt.Errorf("decode config: %w", err)
		}
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return job, nil
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func toNullJSON(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

func clampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

var _ Repo = (*PGRepo)(nil)
