package documents

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Repo defines persistence operations for documents.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, documentID string) (Document, error)
	List(ctx context.Context, limit, offset int) ([]Document, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Document, error)
	Update(ctx context.Context, doc Document) error
	UpdateStatus(ctx context.Context, documentID string, status Status, updatedAt time.Time) error
	ClaimProcessing(ctx context.Context, documentID string, updatedAt time.Time) (bool, error)
	Delete(ctx context.Context, documentID string) error
}
