package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	authsvc "docvault-backend/internal/auth"
	"docvault-backend/internal/documents"
	"docvault-backend/internal/ingestion"
	"docvault-backend/internal/services/health"
	"docvault-backend/internal/shared/config"
	"docvault-backend/internal/shared/storage/object/local"
	"docvault-backend/internal/users"
)

func setupRouter(t *testing.T, runningDelay, completeDelay time.Duration) *gin.Engine {
	t.Helper()

	docRepo := documents.NewMemoryRepo()
	jobRepo := ingestion.NewMemoryRepo(docRepo)
	usersSvc := users.NewService(users.NewMemoryRepo())
	authSvc := authsvc.NewService(usersSvc)
	docSvc := &documents.Service{
		Store: local.New(t.TempDir()),
		Repo:  docRepo,
	}
	scheduler := ingestion.NewScheduler()
	t.Cleanup(scheduler.Stop)
	jobSvc := &ingestion.Service{
		Repo:          jobRepo,
		Docs:          docSvc,
		Scheduler:     scheduler,
		RunningDelay:  runningDelay,
		CompleteDelay: completeDelay,
	}

	return NewRouter(RouterDeps{
		Config:           config.Config{CORSAllowOrigin: []string{"http://localhost:5173"}},
		Health:           health.NewService(nil),
		AuthHandler:      authsvc.NewHandler(authSvc),
		UsersService:     usersSvc,
		UsersHandler:     users.NewHandler(usersSvc),
		DocumentsHandler: documents.NewHandler(docSvc),
		IngestionHandler: ingestion.NewHandler(jobSvc),
	})
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func registerUser(t *testing.T, r *gin.Engine, email string) (string, string) {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    email,
		"password": "password123",
		"fullName": "Test User",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: status %d body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decodeBody(t, w, &resp)
	return resp.Token, resp.User.ID
}

func uploadDocument(t *testing.T, r *gin.Engine, token string) string {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "report.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fmt.Fprint(part, "file contents")
	if err := mw.WriteField("description", "quarterly report"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: status %d body %s", w.Code, w.Body.String())
	}

	var doc struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decodeBody(t, w, &doc)
	if doc.Status != "uploaded" {
		t.Fatalf("expected uploaded, got %s", doc.Status)
	}
	return doc.ID
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	r := setupRouter(t, time.Hour, time.Hour)

	w := doJSON(t, r, http.MethodGet, "/api/v1/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health: status %d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/api/v1/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: status %d", w.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := setupRouter(t, time.Hour, time.Hour)

	w := doJSON(t, r, http.MethodGet, "/api/v1/documents", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestUploadIngestAndComplete(t *testing.T) {
	r := setupRouter(t, 5*time.Millisecond, 5*time.Millisecond)
	token, _ := registerUser(t, r, "editor@example.com")
	docID := uploadDocument(t, r, token)

	w := doJSON(t, r, http.MethodPost, "/api/v1/ingestion", token, map[string]any{"documentId": docID})
	if w.Code != http.StatusCreated {
		t.Fatalf("create job: status %d body %s", w.Code, w.Body.String())
	}
	var job struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decodeBody(t, w, &job)
	if job.Status != "pending" {
		t.Fatalf("expected pending, got %s", job.Status)
	}

	// A second job for the same document is rejected while processing.
	w = doJSON(t, r, http.MethodPost, "/api/v1/ingestion", token, map[string]any{"documentId": docID})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate job: status %d body %s", w.Code, w.Body.String())
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		w = doJSON(t, r, http.MethodGet, "/api/v1/ingestion/"+job.ID, token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("get job: status %d body %s", w.Code, w.Body.String())
		}
		var got struct {
			Status string         `json:"status"`
			Result map[string]any `json:"result"`
		}
		decodeBody(t, w, &got)
		if got.Status == "completed" {
			if got.Result == nil {
				t.Fatalf("expected a result payload")
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never completed, status %s", got.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/documents/"+docID, token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get document: status %d", w.Code)
	}
	var doc struct {
		Status string `json:"status"`
	}
	decodeBody(t, w, &doc)
	if doc.Status != "processed" {
		t.Fatalf("expected processed, got %s", doc.Status)
	}
}

func TestCancelRevertsDocumentOverHTTP(t *testing.T) {
	r := setupRouter(t, time.Hour, time.Hour)
	token, _ := registerUser(t, r, "editor@example.com")
	docID := uploadDocument(t, r, token)

	w := doJSON(t, r, http.MethodPost, "/api/v1/ingestion", token, map[string]any{
		"documentId": docID,
		"config":     map[string]any{"priority": "low"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create job: status %d body %s", w.Code, w.Body.String())
	}
	var job struct {
		ID string `json:"id"`
	}
	decodeBody(t, w, &job)

	w = doJSON(t, r, http.MethodPost, "/api/v1/ingestion/"+job.ID+"/cancel", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: status %d body %s", w.Code, w.Body.String())
	}
	var cancelled struct {
		Status      string     `json:"status"`
		CompletedAt *time.Time `json:"completedAt"`
	}
	decodeBody(t, w, &cancelled)
	if cancelled.Status != "cancelled" || cancelled.CompletedAt == nil {
		t.Fatalf("unexpected cancel result: %+v", cancelled)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/documents/"+docID, token, nil)
	var doc struct {
		Status string `json:"status"`
	}
	decodeBody(t, w, &doc)
	if doc.Status != "uploaded" {
		t.Fatalf("expected uploaded after cancel, got %s", doc.Status)
	}
}

func TestNonOwnerGetsForbidden(t *testing.T) {
	r := setupRouter(t, time.Hour, time.Hour)
	ownerToken, _ := registerUser(t, r, "owner@example.com")
	otherToken, _ := registerUser(t, r, "other@example.com")
	docID := uploadDocument(t, r, ownerToken)

	w := doJSON(t, r, http.MethodGet, "/api/v1/documents/"+docID, otherToken, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/documents/does-not-exist", otherToken, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before ownership, got %d", w.Code)
	}
}

func TestWebhookIsUnauthenticated(t *testing.T) {
	r := setupRouter(t, time.Hour, time.Hour)
	token, _ := registerUser(t, r, "editor@example.com")
	docID := uploadDocument(t, r, token)

	w := doJSON(t, r, http.MethodPost, "/api/v1/ingestion", token, map[string]any{"documentId": docID})
	var job struct {
		ID string `json:"id"`
	}
	decodeBody(t, w, &job)

	w = doJSON(t, r, http.MethodPost, "/api/v1/ingestion/webhook", "", map[string]any{
		"jobId":  job.ID,
		"status": "failed",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("webhook: status %d body %s", w.Code, w.Body.String())
	}
	var updated struct {
		Status string `json:"status"`
	}
	decodeBody(t, w, &updated)
	if updated.Status != "failed" {
		t.Fatalf("expected failed, got %s", updated.Status)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/documents/"+docID, token, nil)
	var doc struct {
		Status string `json:"status"`
	}
	decodeBody(t, w, &doc)
	if doc.Status != "failed" {
		t.Fatalf("expected document failed after webhook, got %s", doc.Status)
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/ingestion/webhook", "", map[string]any{
		"jobId": "missing",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown job, got %d", w.Code)
	}
}

func TestMeReturnsProfile(t *testing.T) {
	r := setupRouter(t, time.Hour, time.Hour)
	token, userID := registerUser(t, r, "me@example.com")

	w := doJSON(t, r, http.MethodGet, "/api/v1/me", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: status %d body %s", w.Code, w.Body.String())
	}
	var me struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	decodeBody(t, w, &me)
	if me.ID != userID || me.Email != "me@example.com" || me.Role != "editor" {
		t.Fatalf("unexpected profile: %+v", me)
	}
}
