package ingestion

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docvault-backend/internal/shared/server/middleware"
	"docvault-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches job routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/ingestion", h.create)
	rg.GET("/ingestion", h.list)
	rg.GET("/ingestion/:id", h.get)
	rg.PATCH("/ingestion/:id", h.update)
	rg.POST("/ingestion/:id/cancel", h.cancel)
	rg.DELETE("/ingestion/:id", h.delete)
}

// RegisterWebhook attaches the unauthenticated callback endpoint.
func (h *Handler) RegisterWebhook(rg *gin.RouterGroup) {
	rg.POST("/ingestion/webhook", h.webhook)
}

type createRequest struct {
	DocumentID string         `json:"documentId" binding:"required"`
	Config     map[string]any `json:"config"`
}

func (h *Handler) create(c *gin.Context) {
	actor := middleware.ActorFromContext(c)

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "documentId is required", nil)
		return
	}

	job, err := h.Svc.Create(c.Request.Context(), actor, req.DocumentID, req.Config)
	if err != nil {
		respond.AppError(c, err)
		return
	}

	c.Set("jobId", job.ID)
	respond.JSON(c, http.StatusCreated, job)
}

func (h *Handler) list(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	limit, offset := pagination(c)

	jobs, err := h.Svc.List(c.Request.Context(), actor, limit, offset)
	if err != nil {
		respond.AppError(c, err)
		return
	}
	if jobs == nil {
		jobs = []Job{}
	}
	respond.OK(c, jobs)
}

func (h *Handler) get(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	job, err := h.Svc.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respond.AppError(c, err)
		return
	}
	respond.OK(c, job)
}

type updateRequest struct {
	Status       *string         `json:"status"`
	ErrorMessage *string         `json:"errorMessage"`
	Result       *map[string]any `json:"result"`
}

func (r updateRequest) input() UpdateInput {
	in := UpdateInput{
		ErrorMessage: r.ErrorMessage,
		Result:       r.Result,
	}
	if r.Status != nil {
		status := Status(*r.Status)
		in.Status = &status
	}
	return in
}

func (h *Handler) update(c *gin.Context) {
	actor := middleware.ActorFromContext(c)

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	job, err := h.Svc.Update(c.Request.Context(), actor, c.Param("id"), req.input())
	if err != nil {
		respond.AppError(c, err)
		return
	}
	respond.OK(c, job)
}

func (h *Handler) cancel(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	job, err := h.Svc.Cancel(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respond.AppError(c, err)
		return
	}
	respond.OK(c, job)
}

func (h *Handler) delete(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	if err := h.Svc.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		respond.AppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type webhookRequest struct {
	JobID        string          `json:"jobId" binding:"required"`
	Status       *string         `json:"status"`
	ErrorMessage *string         `json:"errorMessage"`
	Result       *map[string]any `json:"result"`
}

func (h *Handler) webhook(c *gin.Context) {
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "jobId is required", nil)
		return
	}

	in := updateRequest{
		Status:       req.Status,
		ErrorMessage: req.ErrorMessage,
		Result:       req.Result,
	}.input()

	job, err := h.Svc.ProcessWebhook(c.Request.Context(), req.JobID, in)
	if err != nil {
		respond.AppError(c, err)
		return
	}
	c.Set("jobId", job.ID)
	respond.OK(c, job)
}

func pagination(c *gin.Context) (int, int) {
	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	return limit, offset
}
