package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, file_name, original_filename, mime_type, size_bytes, storage_key, status, description, metadata, uploaded_by, created_at, updated_at`

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (` + documentColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	description := toNullString(doc.Description)
	metadata, err := toNullJSON(doc.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	_, err = r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.FileName,
		doc.OriginalFilename,
		doc.MimeType,
		doc.SizeBytes,
		doc.StorageKey,
		string(doc.Status),
		description,
		metadata,
		doc.UploadedBy,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	return err
}

// GetByID fetches a document by ID.
func (r *PGRepo) GetByID(ctx context.Context, documentID string) (Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 LIMIT 1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, documentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// List returns all documents ordered newest-first.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Document, error) {
	const query = `
SELECT ` + documentColumns + `
FROM documents
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`
	return r.queryMany(ctx, query, clampLimit(limit), clampOffset(offset))
}

// ListByOwner returns a user's documents ordered newest-first.
func (r *PGRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Document, error) {
	const query = `
SELECT ` + documentColumns + `
FROM documents
WHERE uploaded_by = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	return r.queryMany(ctx, query, ownerID, clampLimit(limit), clampOffset(offset))
}

// Update persists mutable document fields.
func (r *PGRepo) Update(ctx context.Context, doc Document) error {
	const query = `
UPDATE documents
SET status = $1, description = $2, metadata = $3, updated_at = $4
WHERE id = $5`

	description := toNullString(doc.Description)
	metadata, err := toNullJSON(doc.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	res, err := r.DB.ExecContext(ctx, query, string(doc.Status), description, metadata, doc.UpdatedAt, doc.ID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus transitions a document's status.
func (r *PGRepo) UpdateStatus(ctx context.Context, documentID string, status Status, updatedAt time.Time) error {
	const query = `UPDATE documents SET status = $1, updated_at = $2 WHERE id = $3`
	res, err := r.DB.ExecContext(ctx, query, string(status), updatedAt, documentID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimProcessing atomically moves a document into processing unless it is
// already there. The conditional write is what prevents two concurrent job
// creations from both claiming the same document.
func (r *PGRepo) ClaimProcessing(ctx context.Context, documentID string, updatedAt time.Time) (bool, error) {
	const query = `
UPDATE documents
SET status = $1, updated_at = $2
WHERE id = $3 AND status <> $1`
	res, err := r.DB.ExecContext(ctx, query, string(StatusProcessing), updatedAt, documentID)
	if err != nil {
		return false, err
	}
	affected, _ := res.RowsAffected()
	if affected > 0 {
		return true, nil
	}
	// Zero rows means either a missing document or one already processing;
	// tell the two apart so callers can surface not-found correctly.
	if _, err := r.GetByID(ctx, documentID); err != nil {
		return false, err
	}
	return false, nil
}

// Delete removes a document record.
func (r *PGRepo) Delete(ctx context.Context, documentID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, documentID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) queryMany(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var status string
	var description sql.NullString
	var metadata []byte
	err := row.Scan(
		&doc.ID,
		&doc.FileName,
		&doc.OriginalFilename,
		&doc.MimeType,
		&doc.SizeBytes,
		&doc.StorageKey,
		&status,
		&description,
		&metadata,
		&doc.UploadedBy,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return Document{}, err
	}
	doc.Status = Status(status)
	if description.Valid {
		doc.Description = description.String
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
			return Document{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return doc, nil
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func toNullJSON(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
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
