package ingestion

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"docvault-backend/internal/documents"
	"docvault-backend/internal/policy"
	"docvault-backend/internal/shared/apperr"
	"docvault-backend/internal/shared/metrics"
	"docvault-backend/internal/shared/telemetry"
	"docvault-backend/internal/webhook"
)

// Service owns ingestion job records, runs the job state machine, and
// cascades status side effects onto documents.
type Service struct {
	Repo      Repo
	Docs      *documents.Service
	Scheduler *Scheduler
	Notifier  *webhook.Notifier

	RunningDelay  time.Duration
	CompleteDelay time.Duration
}

// Create registers a pending job for a document and claims the document
// for processing. The claim is an atomic conditional write, so two
// concurrent creates for one document cannot both pass.
func (s *Service) Create(ctx context.Context, actor policy.Actor, documentID string, config map[string]any) (Job, error) {
	doc, err := s.Docs.Get(ctx, actor, documentID)
	if err != nil {
		return Job{}, err
	}
	if d := policy.CanCreateJob(actor, doc.UploadedBy); !d.Allowed {
		return Job{}, apperr.Forbidden("%s", d.Reason)
	}

	claimed, err := s.Docs.ClaimForProcessing(ctx, doc.ID)
	if err != nil {
		return Job{}, err
	}
	if !claimed {
		return Job{}, apperr.BadRequest("document is already being processed")
	}

	now := time.Now().UTC()
	job := Job{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		Status:     StatusPending,
		Config:     config,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Repo.Create(ctx, job); err != nil {
		// The document was claimed but no job exists; put it back so it
		// does not stay stuck in processing.
		if revertErr := s.Docs.SetStatus(ctx, doc.ID, documents.StatusUploaded); revertErr != nil {
			telemetry.Error("ingestion.claim_revert_failed", map[string]any{
				"document_id": doc.ID,
				"error":       revertErr.Error(),
			})
		}
		return Job{}, err
	}

	metrics.IncJobCreated()
	telemetry.Info("ingestion.job_created", map[string]any{
		"job_id":      job.ID,
		"document_id": doc.ID,
		"user_id":     actor.ID,
	})
	s.scheduleRun(job.ID)
	return job, nil
}

// Get returns a job visible to the actor. Visibility follows the owning
// document: admins and the document owner may read it.
func (s *Service) Get(ctx context.Context, actor policy.Actor, jobID string) (Job, error) {
	job, err := s.find(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	ownerID, err := s.documentOwner(ctx, job.DocumentID)
	if err != nil {
		return Job{}, err
	}
	if d := policy.CanViewJob(actor, ownerID); !d.Allowed {
		return Job{}, apperr.Forbidden("%s", d.Reason)
	}
	return job, nil
}

// List returns jobs: all of them for admins, otherwise only those on the
// actor's own documents.
func (s *Service) List(ctx context.Context, actor policy.Actor, limit, offset int) ([]Job, error) {
	if actor.IsAdmin() {
		return s.Repo.List(ctx, limit, offset)
	}
	return s.Repo.ListByOwner(ctx, actor.ID, limit, offset)
}

// UpdateInput carries optional job mutations; nil fields are left
// unchanged. Result and Config payloads are opaque to the engine.
type UpdateInput struct {
	Status       *Status
	ErrorMessage *string
	Result       *map[string]any
}

// Update applies an admin-driven job mutation. Transitions out of a
// terminal state are rejected; terminal cascades flow to the document.
func (s *Service) Update(ctx context.Context, actor policy.Actor, jobID string, in UpdateInput) (Job, error) {
	job, err := s.find(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	if d := policy.CanManageJob(actor); !d.Allowed {
		return Job{}, apperr.Forbidden("%s", d.Reason)
	}

	if in.Status != nil && *in.Status != job.Status {
		if !in.Status.Valid() {
			return Job{}, apperr.BadRequest("invalid job status %q", *in.Status)
		}
		if job.Status.Terminal() {
			return Job{}, apperr.BadRequest("job is already %s; terminal states are final", job.Status)
		}
	}
	return s.applyUpdate(ctx, job, in)
}

// Cancel stops a pending or running job and reverts the document to
// uploaded. Any still-pending simulated step is deregistered first.
func (s *Service) Cancel(ctx context.Context, actor policy.Actor, jobID string) (Job, error) {
	job, err := s.find(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	ownerID, err := s.documentOwner(ctx, job.DocumentID)
	if err != nil {
		return Job{}, err
	}
	if d := policy.CanCancelJob(actor, ownerID); !d.Allowed {
		return Job{}, apperr.Forbidden("%s", d.Reason)
	}
	if job.Status.Terminal() {
		return Job{}, apperr.BadRequest("cannot cancel a completed or failed job")
	}

	s.Scheduler.Cancel(job.ID)
	next := StatusCancelled
	return s.applyUpdate(ctx, job, UpdateInput{Status: &next})
}

// Delete removes a job record in any state. The document's status is left
// as-is.
func (s *Service) Delete(ctx context.Context, actor policy.Actor, jobID string) error {
	job, err := s.find(ctx, jobID)
	if err != nil {
		return err
	}
	if d := policy.CanManageJob(actor); !d.Allowed {
		return apperr.Forbidden("%s", d.Reason)
	}

	s.Scheduler.Cancel(job.ID)
	if err := s.Repo.Delete(ctx, job.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("ingestion job not found")
		}
		return err
	}
	telemetry.Info("ingestion.job_deleted", map[string]any{
		"job_id":  job.ID,
		"user_id": actor.ID,
	})
	return nil
}

// ProcessWebhook applies an external callback to a job. There is no actor:
// the caller is trusted on the job id alone. A callback against a job
// already in a terminal state is a no-op returning the current record, and
// an unknown status value is ignored rather than rejected, so the endpoint
// only ever answers with the job or not-found.
func (s *Service) ProcessWebhook(ctx context.Context, jobID string, in UpdateInput) (Job, error) {
	job, err := s.find(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	if job.Status.Terminal() {
		telemetry.Info("ingestion.webhook_noop", map[string]any{
			"job_id": job.ID,
			"status": string(job.Status),
		})
		return job, nil
	}
	if in.Status != nil && !in.Status.Valid() {
		telemetry.Warn("ingestion.webhook_bad_status", map[string]any{
			"job_id": job.ID,
			"status": string(*in.Status),
		})
		in.Status = nil
	}
	return s.applyUpdate(ctx, job, in)
}

// applyUpdate merges fields, runs the status transition with its
// set-at-most-once timestamps, persists the job, and cascades terminal
// transitions onto the document.
func (s *Service) applyUpdate(ctx context.Context, job Job, in UpdateInput) (Job, error) {
	now := time.Now().UTC()
	wasTerminal := job.Status.Terminal()

	if in.ErrorMessage != nil {
		job.ErrorMessage = strings.TrimSpace(*in.ErrorMessage)
	}
	if in.Result != nil {
		job.Result = *in.Result
	}
	if in.Status != nil && *in.Status != job.Status {
		job.Status = *in.Status
		if job.Status == StatusRunning && job.StartedAt == nil {
			job.StartedAt = &now
		}
		if job.Status.Terminal() && job.CompletedAt == nil {
			job.CompletedAt = &now
		}
	}
	job.UpdatedAt = now

	if err := s.Repo.Update(ctx, job); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Job{}, apperr.NotFound("ingestion job not found")
		}
		return Job{}, err
	}

	if !wasTerminal && job.Status.Terminal() {
		s.finish(ctx, job)
	}
	return job, nil
}

// finish applies the document cascade, metrics, and outbound notification
// for a job that just entered a terminal state.
func (s *Service) finish(ctx context.Context, job Job) {
	var docStatus documents.Status
	switch job.Status {
	case StatusCompleted:
		docStatus = documents.StatusProcessed
		metrics.IncJobCompleted()
		metrics.ObserveJobDurationMs(float64(job.CompletedAt.Sub(job.CreatedAt).Milliseconds()))
	case StatusFailed:
		docStatus = documents.StatusFailed
		metrics.IncJobFailed()
	case StatusCancelled:
		docStatus = documents.StatusUploaded
		metrics.IncJobCancelled()
	default:
		return
	}

	if err := s.Docs.SetStatus(ctx, job.DocumentID, docStatus); err != nil {
		telemetry.Error("ingestion.cascade_failed", map[string]any{
			"job_id":      job.ID,
			"document_id": job.DocumentID,
			"status":      string(docStatus),
			"error":       err.Error(),
		})
	}
	telemetry.Info("ingestion.job_finished", map[string]any{
		"job_id":      job.ID,
		"document_id": job.DocumentID,
		"status":      string(job.Status),
	})

	s.Notifier.Enqueue(webhook.Event{
		JobID:      job.ID,
		DocumentID: job.DocumentID,
		Status:     string(job.Status),
		Error:      job.ErrorMessage,
		Result:     job.Result,
		OccurredAt: time.Now().UTC(),
	})
}

func (s *Service) find(ctx context.Context, jobID string) (Job, error) {
	if strings.TrimSpace(jobID) == "" {
		return Job{}, apperr.BadRequest("job id is required")
	}
	job, err := s.Repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Job{}, apperr.NotFound("ingestion job not found")
		}
		return Job{}, err
	}
	return job, nil
}

func (s *Service) documentOwner(ctx context.Context, documentID string) (string, error) {
	doc, err := s.Docs.Repo.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			return "", apperr.NotFound("document not found")
		}
		return "", err
	}
	return doc.UploadedBy, nil
}
