package documents

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"docvault-backend/internal/policy"
	"docvault-backend/internal/shared/apperr"
	"docvault-backend/internal/shared/storage/object"
	"docvault-backend/internal/shared/telemetry"
)

// Service contains business logic for documents.
type Service struct {
	Store object.ObjectStore
	Repo  Repo
}

// Upload saves the file to object storage and records the document with
// status uploaded.
func (s *Service) Upload(ctx context.Context, actor policy.Actor, fileName, description string, metadata map[string]any, r io.Reader) (Document, error) {
	if strings.TrimSpace(fileName) == "" {
		return Document{}, apperr.BadRequest("file name is required")
	}

	storageKey, size, mimeType, err := s.Store.Save(ctx, actor.ID, fileName, r)
	if err != nil {
		return Document{}, err
	}

	now := time.Now().UTC()
	doc := Document{
		ID:               uuid.NewString(),
		FileName:         path.Base(storageKey),
		OriginalFilename: fileName,
		MimeType:         mimeType,
		SizeBytes:        size,
		StorageKey:       storageKey,
		Status:           StatusUploaded,
		Description:      strings.TrimSpace(description),
		Metadata:         metadata,
		UploadedBy:       actor.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.Repo.Create(ctx, doc); err != nil {
		// The blob exists without a record at this point; remove it so
		// storage does not leak.
		if delErr := s.Store.Delete(ctx, storageKey); delErr != nil {
			telemetry.Error("document.orphan_blob", map[string]any{
				"storage_key": storageKey,
				"error":       delErr.Error(),
			})
		}
		return Document{}, err
	}

	return doc, nil
}

// Get returns a document visible to the actor. Existence is checked before
// ownership so a missing id reads as not-found for everyone.
func (s *Service) Get(ctx context.Context, actor policy.Actor, documentID string) (Document, error) {
	doc, err := s.find(ctx, documentID)
	if err != nil {
		return Document{}, err
	}
	if d := policy.CanViewDocument(actor, doc.UploadedBy); !d.Allowed {
		return Document{}, apperr.Forbidden("%s", d.Reason)
	}
	return doc, nil
}

// List returns documents: all of them for admins, otherwise only the
// actor's own.
func (s *Service) List(ctx context.Context, actor policy.Actor, limit, offset int) ([]Document, error) {
	if actor.IsAdmin() {
		return s.Repo.List(ctx, limit, offset)
	}
	return s.Repo.ListByOwner(ctx, actor.ID, limit, offset)
}

// UpdateInput carries optional document mutations; nil fields are left
// unchanged.
type UpdateInput struct {
	Description *string
	Metadata    *map[string]any
	Status      *Status
}

// Update applies metadata changes (owner or admin) and status changes
// (admin only, regardless of ownership).
func (s *Service) Update(ctx context.Context, actor policy.Actor, documentID string, in UpdateInput) (Document, error) {
	doc, err := s.find(ctx, documentID)
	if err != nil {
		return Document{}, err
	}

	if in.Description != nil || in.Metadata != nil {
		if d := policy.CanUpdateDocumentMetadata(actor, doc.UploadedBy); !d.Allowed {
			return Document{}, apperr.Forbidden("%s", d.Reason)
		}
	}
	if in.Status != nil {
		if d := policy.CanUpdateDocumentStatus(actor); !d.Allowed {
			return Document{}, apperr.Forbidden("%s", d.Reason)
		}
		if !in.Status.Valid() {
			return Document{}, apperr.BadRequest("invalid document status %q", *in.Status)
		}
		doc.Status = *in.Status
	}
	if in.Description != nil {
		doc.Description = strings.TrimSpace(*in.Description)
	}
	if in.Metadata != nil {
		doc.Metadata = *in.Metadata
	}

	doc.UpdatedAt = time.Now().UTC()
	if err := s.Repo.Update(ctx, doc); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Document{}, apperr.NotFound("document not found")
		}
		return Document{}, err
	}
	return doc, nil
}

// Download opens the stored file for a document visible to the actor.
func (s *Service) Download(ctx context.Context, actor policy.Actor, documentID string) (Document, io.ReadCloser, error) {
	doc, err := s.Get(ctx, actor, documentID)
	if err != nil {
		return Document{}, nil, err
	}
	body, err := s.Store.Open(ctx, doc.StorageKey)
	if err != nil {
		return Document{}, nil, err
	}
	return doc, body, nil
}

// Delete removes a document record together with its stored file.
func (s *Service) Delete(ctx context.Context, actor policy.Actor, documentID string) error {
	doc, err := s.find(ctx, documentID)
	if err != nil {
		return err
	}
	if d := policy.CanDeleteDocument(actor, doc.UploadedBy); !d.Allowed {
		return apperr.Forbidden("%s", d.Reason)
	}

	if err := s.Store.Delete(ctx, doc.StorageKey); err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, doc.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("document not found")
		}
		return err
	}
	return nil
}

// SetStatus transitions a document's status on behalf of the ingestion
// engine. It bypasses actor checks; callers are system-internal.
func (s *Service) SetStatus(ctx context.Context, documentID string, status Status) error {
	if !status.Valid() {
		return apperr.BadRequest("invalid document status %q", status)
	}
	if err := s.Repo.UpdateStatus(ctx, documentID, status, time.Now().UTC()); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("document not found")
		}
		return err
	}
	return nil
}

// ClaimForProcessing atomically transitions a document into processing on
// behalf of the ingestion engine. It returns false when the document is
// already being processed.
func (s *Service) ClaimForProcessing(ctx context.Context, documentID string) (bool, error) {
	claimed, err := s.Repo.ClaimProcessing(ctx, documentID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, apperr.NotFound("document not found")
		}
		return false, err
	}
	return claimed, nil
}

func (s *Service) find(ctx context.Context, documentID string) (Document, error) {
	if strings.TrimSpace(documentID) == "" {
		return Document{}, apperr.BadRequest("document id is required")
	}
	doc, err := s.Repo.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Document{}, apperr.NotFound("document not found")
		}
		return Document{}, err
	}
	return doc, nil
}
