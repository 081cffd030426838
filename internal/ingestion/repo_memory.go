package ingestion

import (
	"context"
	"errors"
	"sort"
	"sync"

	"docvault-backend/internal/documents"
)

// MemoryRepo is an in-memory implementation of Repo. Job ownership is
// transitive through documents, so the repo resolves owners against the
// document store it is constructed with.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Job
	docs documents.Repo
}

// NewMemoryRepo constructs a MemoryRepo backed by the given document store.
func NewMemoryRepo(docs documents.Repo) *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Job), docs: docs}
}

// Create stores a new job.
func (r *MemoryRepo) Create(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[job.ID] = job
	return nil
}

// GetByID returns a job by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.data[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// List returns all jobs, newest first.
func (r *MemoryRepo) List(ctx context.Context, limit, offset int) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	jobs := make([]Job, 0, len(r.data))
	for _, job := range r.data {
		jobs = append(jobs, job)
	}
	r.mu.RUnlock()
	return page(jobs, limit, offset), nil
}

// ListByOwner returns jobs whose document belongs to the given user,
// newest first.
func (r *MemoryRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	jobs := make([]Job, 0, len(r.data))
	for _, job := range r.data {
		jobs = append(jobs, job)
	}
	r.mu.RUnlock()

	owned := jobs[:0]
	for _, job := range jobs {
		doc, err := r.docs.GetByID(ctx, job.DocumentID)
		if err != nil {
			if errors.Is(err, documents.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if doc.UploadedBy == ownerID {
			owned = append(owned, job)
		}
	}
	return page(owned, limit, offset), nil
}

// Update overwrites an existing job.
func (r *MemoryRepo) Update(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[job.ID]; !ok {
		return ErrNotFound
	}
	r.data[job.ID] = job
	return nil
}

// Delete removes a job.
func (r *MemoryRepo) Delete(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[jobID]; !ok {
		return ErrNotFound
	}
	delete(r.data, jobID)
	return nil
}

func page(jobs []Job, limit, offset int) []Job {
	limit = clampLimit(limit)
	offset = clampOffset(offset)

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if offset >= len(jobs) {
		return []Job{}
	}
	end := len(jobs)
	if offset+limit < end {
		end = offset + limit
	}
	return jobs[offset:end]
}

var _ Repo = (*MemoryRepo)(nil)
