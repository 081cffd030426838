package ingestion

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("ingestion job not found")

// Repo defines persistence operations for ingestion jobs.
type Repo interface {
	Create(ctx context.Context, job Job) error
	GetByID(ctx context.Context, jobID string) (Job, error)
	List(ctx context.Context, limit, offset int) ([]Job, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Job, error)
	Update(ctx context.Context, job Job) error
	Delete(ctx context.Context, jobID string) error
}
