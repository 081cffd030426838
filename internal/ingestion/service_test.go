package ingestion

import (
	"context"
	"testing"
	"time"

	"docvault-backend/internal/documents"
	"docvault-backend/internal/policy"
	"docvault-backend/internal/shared/apperr"
	"docvault-backend/internal/shared/storage/object/local"
)

var (
	adminActor    = policy.Actor{ID: "admin-1", Role: policy.RoleAdmin}
	ownerActor    = policy.Actor{ID: "user-1", Role: policy.RoleEditor}
	strangerActor = policy.Actor{ID: "user-2", Role: policy.RoleViewer}
)

func setupService(t *testing.T) (*Service, *MemoryRepo, *documents.MemoryRepo) {
	t.Helper()
	docRepo := documents.NewMemoryRepo()
	jobRepo := NewMemoryRepo(docRepo)
	docSvc := &documents.Service{
		Store: local.New(t.TempDir()),
		Repo:  docRepo,
	}
	scheduler := NewScheduler()
	t.Cleanup(scheduler.Stop)

	svc := &Service{
		Repo:      jobRepo,
		Docs:      docSvc,
		Scheduler: scheduler,
		// Long delays keep the simulated processor out of tests that
		// drive transitions explicitly.
		RunningDelay:  time.Hour,
		CompleteDelay: time.Hour,
	}
	return svc, jobRepo, docRepo
}

func seedDocument(t *testing.T, docRepo *documents.MemoryRepo, id, owner string, status documents.Status) {
	t.Helper()
	now := time.Now().UTC()
	doc := documents.Document{
		ID:               id,
		FileName:         id + ".pdf",
		OriginalFilename: "report.pdf",
		MimeType:         "application/pdf",
		SizeBytes:        10,
		StorageKey:       "blobs/" + id,
		Status:           status,
		UploadedBy:       owner,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := docRepo.Create(context.Background(), doc); err != nil {
		t.Fatalf("seed document: %v", err)
	}
}

func documentStatus(t *testing.T, docRepo *documents.MemoryRepo, id string) documents.Status {
	t.Helper()
	doc, err := docRepo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	return doc.Status
}

func TestCreateJobMarksDocumentProcessing(t *testing.T) {
	svc, _, docRepo := setupService(t)
	seedDocument(t, docRepo, "doc-1", ownerActor.ID, documents.StatusUploaded)

	job, err := svc.Create(context.Background(), ownerActor, "doc-1", map[string]any{"ocr": true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if job.Status != StatusPending {
		t.Fatalf("expected pending, got %s", job.Status)
	}
	if job.StartedAt != nil || job.CompletedAt != nil {
		t.Fatalf("expected unset timestamps on a new job")
	}
	if got := documentStatus(t, docRepo, "doc-1"); got != documents.StatusProcessing {
		t.Fatalf("expected document processing, got %s", got)
	}
}

func TestCreateJobRejectsDocumentAlreadyProcessing(t *testing.T) {
	svc, _, docRepo := setupService(t)
	seedDocument(t, docRepo, "doc-1", ownerActor.ID, documents.StatusProcessing)

	_, err := svc.Create(context.Background(), ownerActor, "doc-1", nil)
	if !apperr.IsBadRequest(err) {
		t.Fatalf("expected bad request, got %v", err)
	}
}

func TestCreateJobUnknownDocument(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.Create(context.Background(), ownerActor, "missing", nil)
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateJobForbiddenForNonOwner(t *testing.T) {
	svc, _, docRepo := setupService(t)
	seedDocument(t, docRepo, "doc-1", ownerActor.ID, documents.StatusUploaded)

	_, err := svc.Create(context.Background(), strangerActor, "doc-1", nil)
	if !apperr.IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if got := documentStatus(t, docRepo, "doc-1"); got != documents.StatusUploaded {
		t.Fatalf("expected document untouched, got %s", got)
	}
}

func TestGetJobNotFoundBeforeOwnership(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.Get(context.Background(), strangerActor, "missing")
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetJobForbiddenForNonOwner(t *testing.T) {
	svc, _, docRepo := setupService(t)
	seedDocument(t, docRepo, "doc-1", ownerActor.ID, documents.StatusUploaded)
	job, err := svc.Create(context.Background(), ownerActor, "doc-1", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Get(context.Background(), strangerActor, job.ID); !apperr.IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.Get(context.Background(), adminActor, job.ID); err != nil {
		t.Fatalf("admin read: %v", err)
	}
}

func TestCancelPendingRevertsDocument(t *testing.T) {
	svc, _, docRepo := setupService(t)
	seedDocument(t, docRepo, "doc-1", ownerActor.ID, documents.StatusUploaded)
	job, err := svc.Create(context.Background(), ownerActor, "doc-1", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	cancelled, err := svc.Cancel(context.Background(), ownerActor, job.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.CompletedAt == nil {
		t.Fatalf("expected completedAt on cancellation")
	}
	if got := documentStatus(t, docRepo, "doc-1"); got != documents.StatusUploaded {
		t.Fatalf("expected document reverted to uploaded, got %s", got)
	}
}

func TestCancelTerminalJobRejected(t *testing.T) {
	svc, _, docRepo := setupService(t)
	seedDocument(t, docRepo, "doc-1", ownerActor.ID, documents.StatusUploaded)
	job, err := svc.Create(context.Background(), ownerActor, "doc-1", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	next := StatusCompleted
	done, err := svc.Update(context.Background(), adminActor, job.ID, UpdateInput{Status: &next})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := svc.Cancel(context.Background(), ownerActor, job.ID); !apperr.IsBadRequest(err) {
		t.Fatalf("expected bad request, got %v", err)
	}

	got, err := svc.Get(context.Background(), adminActor, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusCompleted || !got.CompletedAt.Equal(*done.CompletedAt) {
		t.Fatalf("terminal job mutated by rejected cancel")
	}
}

func TestCancelForbiddenForNonOwner(t *testing.T) {
	svc, _, docRepo := setupService(t)
	seedDocument(t, docRepo, "doc-1", ownerActor.ID, documents.StatusUploaded)
	job, err := svc.Create(context.Background(), ownerActor, "doc-1", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Cancel(context.Background(), strangerActor, job.ID); !apperr.IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestUpdateRequiresAdmin(t *testing.T) {
	svc, _, docRepo := setupService(t)
	seedDocument(t, docRepo, "doc-1", ownerActor.ID, documents.StatusUploaded)
	job, err := svc.Create(context.Background(), ownerActor, "doc-1", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	next := StatusRunning
	if _, err := svc.Update(context.Background(), ownerActor, job.ID, UpdateInput{Status: &next}); !apperr.IsForbidden(err) {
		t.Fatalf("expected forbidden for non-admin, got %v", err)
	}
}

func TestUpdateRejectsTransitionOutOfTerminal(t *testing.T) {
	svc, _, docRepo := setupService(t)
	seedDocument(t, docRepo, "doc-1", ownerActor.ID, documents.StatusUploaded)
	job, err := svc.Create(context.Background(), ownerActor, "doc-1", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	next := StatusFailed
	if _, err := svc.Update(context.Background(), adminActor, job.ID, UpdateInput{Status: &next}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	back := StatusRunning
	if _, err := svc.Update(context.Background(), adminActor, job.ID, UpdateInput{Status: &back}); !apperr.IsBadRequest(err) {
		t.Fatalf("expected bad request, got %v", err)
	}
}

func TestUpdateToFailedCascades(t *testing.T) {
	svc, _, docRepo := setupService(t)
	seedDocument(t, docRepo, "doc-1", ownerActor.ID, documents.StatusUploaded)
	job, err := svc.Create(context.Background(), ownerActor, "doc-1", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	next := StatusFailed
	msg := "extractor crashed"
	failed, err := svc.Update(context.Background(), adminActor, job.ID, UpdateInput{Status: &next, ErrorMessage: &msg})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if failed.Status != StatusFailed || failed.ErrorMessage != msg {
		t.Fatalf("unexpected job state: %+v", failed)
	}
	if failed.CompletedAt == nil {
		t.Fatalf("expected completedAt on failure")
	}
	if got := documentStatus(t, docRepo, "doc-1"); got != documents.StatusFailed {
		t.Fatalf("expected document failed, got %s", got)
	}
}

func TestStartedAtSetOnlyOnce(t *testing.T) {
	svc, _, docRepo := setupService(t)
	seedDocument(t, docRepo, "doc-1", ownerActor.ID, documents.StatusUploaded)
	job, err := svc.Create(context.Background(), ownerActor, "doc-1", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	running := StatusRunning
	first, err := svc.Update(context.Background(), adminActor, job.ID, UpdateInput{Status: &running})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if first.StartedAt == nil {
		t.Fatalf("expected startedAt on first run")
	}

	pending := StatusPending
	if _, err := svc.Update(context.Background(), adminActor, job.ID, UpdateInput{Status: &pending}); err != nil {
		t.Fatalf("Update back to pending: %v", err)
	}
	second, err := svc.Update(context.Background(), adminActor, job.ID, UpdateInput{Status: &running})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !second.StartedAt.Equal(*first.StartedAt) {
		t.Fatalf("startedAt overwritten on re-entry: %v vs %v", second.StartedAt, first.StartedAt)
	}
}

func TestWebhookCompletedCascades(t *testing.T) {
	svc, _, docRepo := setupService(t)
	seedDocument(t, docRepo, "doc-1", ownerActor.ID, documents.StatusUploaded)
	job, err := svc.Create(context.Background(), ownerActor, "doc-1", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	next := StatusCompleted
	result := map[string]any{"pages": 3}
	done, err := svc.ProcessWebhook(context.Background(), job.ID, UpdateInput{Status: &next, Result: &result})
	if err != nil {
		t.Fatalf("ProcessWebhook: %v", err)
	}
	if done.Status != StatusCompleted || done.Result["pages"] != 3 {
		t.Fatalf("unexpected job state: %+v", done)
	}
	if got := documentStatus(t, docRepo, "doc-1"); got != documents.StatusProcessed {
		t.Fatalf("expected document processed, got %s", got)
	}
}

func TestWebhookNoopOnTerminalJob(t *testing.T) {
	svc, _, docRepo := setupService(t)
	seedDocument(t, docRepo, "doc-1", ownerActor.ID, documents.StatusUploaded)
	job, err := svc.Create(context.Background(), ownerActor, "doc-1", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), ownerActor, job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	next := StatusFailed
	got, err := svc.ProcessWebhook(context.Background(), job.ID, UpdateInput{Status: &next})
	if err != nil {
		t.Fatalf("ProcessWebhook: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Fatalf("terminal job resurrected: %s", got.Status)
	}
	if doc := documentStatus(t, docRepo, "doc-1"); doc != documents.StatusUploaded {
		t.Fatalf("expected document left uploaded, got %s", doc)
	}
}

func TestWebhookUnknownJob(t *testing.T) {
	svc, _, _ := setupService(t)
	if _, err := svc.ProcessWebhook(context.Background(), "missing", UpdateInput{}); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestWebhookIgnoresUnknownStatus(t *testing.T) {
	svc, _, docRepo := setupService(t)
	seedDocument(t, docRepo, "doc-1", ownerActor.ID, documents.StatusUploaded)
	job, err := svc.Create(context.Background(), ownerActor, "doc-1", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	bogus := Status("exploded")
	msg := "partial progress"
	got, err := svc.ProcessWebhook(context.Background(), job.ID, UpdateInput{Status: &bogus, ErrorMessage: &msg})
	if err != nil {
		t.Fatalf("ProcessWebhook: %v", err)
	}
	if got.Status != StatusPending {
		t.Fatalf("expected status unchanged, got %s", got.Status)
	}
	if got.ErrorMessage != msg {
		t.Fatalf("expected error message merged")
	}
}

func TestDeleteJobAdminOnly(t *testing.T) {
	svc, _, docRepo := setupService(t)
	seedDocument(t, docRepo, "doc-1", ownerActor.ID, documents.StatusUploaded)
	job, err := svc.Create(context.Background(), ownerActor, "doc-1", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Delete(context.Background(), ownerActor, job.ID); !apperr.IsForbidden(err) {
		t.Fatalf("expected forbidden for owner, got %v", err)
	}
	if err := svc.Delete(context.Background(), adminActor, job.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(context.Background(), adminActor, job.ID); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	// Deleting a job leaves the document status as-is.
	if got := documentStatus(t, docRepo, "doc-1"); got != documents.StatusProcessing {
		t.Fatalf("expected document still processing, got %s", got)
	}
}

func TestListFiltersByOwner(t *testing.T) {
	svc, _, docRepo := setupService(t)
	seedDocument(t, docRepo, "doc-1", ownerActor.ID, documents.StatusUploaded)
	seedDocument(t, docRepo, "doc-2", strangerActor.ID, documents.StatusUploaded)
	if _, err := svc.Create(context.Background(), ownerActor, "doc-1", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(context.Background(), strangerActor, "doc-2", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	mine, err := svc.List(context.Background(), ownerActor, 20, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(mine) != 1 || mine[0].DocumentID != "doc-1" {
		t.Fatalf("expected only own jobs, got %+v", mine)
	}

	all, err := svc.List(context.Background(), adminActor, 20, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected admin to see all jobs, got %d", len(all))
	}
}

func TestSimulatedRunCompletesJob(t *testing.T) {
	svc, _, docRepo := setupService(t)
	svc.RunningDelay = 5 * time.Millisecond
	svc.CompleteDelay = 5 * time.Millisecond
	seedDocument(t, docRepo, "doc-1", ownerActor.ID, documents.StatusUploaded)

	job, err := svc.Create(context.Background(), ownerActor, "doc-1", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var got Job
	for {
		got, err = svc.Repo.GetByID(context.Background(), job.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.Status == StatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never completed, status %s", got.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Fatalf("expected both timestamps set, got %+v", got)
	}
	if got.Result == nil {
		t.Fatalf("expected a result payload")
	}
	if doc := documentStatus(t, docRepo, "doc-1"); doc != documents.StatusProcessed {
		t.Fatalf("expected document processed, got %s", doc)
	}
}

func TestSimulatedRunDoesNotResurrectCancelledJob(t *testing.T) {
	svc, _, docRepo := setupService(t)
	svc.RunningDelay = 5 * time.Millisecond
	svc.CompleteDelay = 50 * time.Millisecond
	seedDocument(t, docRepo, "doc-1", ownerActor.ID, documents.StatusUploaded)

	job, err := svc.Create(context.Background(), ownerActor, "doc-1", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Wait for the running step so the completion step is pending.
	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := svc.Repo.GetByID(context.Background(), job.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.Status == StatusRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never started running, status %s", got.Status)
		}
		time.Sleep(2 * time.Millisecond)
	}

	if _, err := svc.Cancel(context.Background(), ownerActor, job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	got, err := svc.Repo.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Fatalf("cancelled job overwritten to %s", got.Status)
	}
	if doc := documentStatus(t, docRepo, "doc-1"); doc != documents.StatusUploaded {
		t.Fatalf("expected document uploaded, got %s", doc)
	}
}
