package documents

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docvault-backend/internal/shared/server/middleware"
	"docvault-backend/internal/shared/server/respond"
)

const maxUploadSize = 25 << 20 // 25MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents", h.upload)
	rg.GET("/documents", h.list)
	rg.GET("/documents/:id", h.get)
	rg.GET("/documents/:id/download", h.download)
	rg.PATCH("/documents/:id", h.update)
	rg.DELETE("/documents/:id", h.delete)
}

func (h *Handler) upload(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	description := c.PostForm("description")
	var metadata map[string]any
	if raw := c.PostForm("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "metadata must be a JSON object", nil)
			return
		}
	}

	doc, err := h.Svc.Upload(c.Request.Context(), actor, fileHeader.Filename, description, metadata, file)
	if err != nil {
		respond.AppError(c, err)
		return
	}

	c.Set("documentId", doc.ID)
	respond.JSON(c, http.StatusCreated, doc)
}

func (h *Handler) list(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	limit, offset := pagination(c)

	docs, err := h.Svc.List(c.Request.Context(), actor, limit, offset)
	if err != nil {
		respond.AppError(c, err)
		return
	}
	if docs == nil {
		docs = []Document{}
	}
	respond.OK(c, docs)
}

func (h *Handler) get(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	doc, err := h.Svc.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respond.AppError(c, err)
		return
	}
	respond.OK(c, doc)
}

func (h *Handler) download(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	doc, body, err := h.Svc.Download(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respond.AppError(c, err)
		return
	}
	defer body.Close()

	c.Header("Content-Disposition", `attachment; filename="`+doc.OriginalFilename+`"`)
	c.DataFromReader(http.StatusOK, doc.SizeBytes, doc.MimeType, body, nil)
}

type updateRequest struct {
	Description *string         `json:"description"`
	Metadata    *map[string]any `json:"metadata"`
	Status      *string         `json:"status"`
}

func (h *Handler) update(c *gin.Context) {
	actor := middleware.ActorFromContext(c)

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	in := UpdateInput{
		Description: req.Description,
		Metadata:    req.Metadata,
	}
	if req.Status != nil {
		status := Status(*req.Status)
		in.Status = &status
	}

	doc, err := h.Svc.Update(c.Request.Context(), actor, c.Param("id"), in)
	if err != nil {
		respond.AppError(c, err)
		return
	}
	respond.OK(c, doc)
}

func (h *Handler) delete(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	if err := h.Svc.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		respond.AppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
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
