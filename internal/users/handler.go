package users

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docvault-backend/internal/policy"
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

// RegisterRoutes attaches user routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/users", h.list)
	rg.GET("/users/:id", h.get)
	rg.PATCH("/users/:id", h.update)
	rg.DELETE("/users/:id", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	list, err := h.Svc.List(c.Request.Context(), actor)
	if err != nil {
		respond.AppError(c, err)
		return
	}
	respond.OK(c, list)
}

func (h *Handler) get(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	user, err := h.Svc.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respond.AppError(c, err)
		return
	}
	respond.OK(c, user)
}

type updateRequest struct {
	FullName *string `json:"fullName"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"isActive"`
}

func (h *Handler) update(c *gin.Context) {
	actor := middleware.ActorFromContext(c)

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	in := UpdateInput{
		FullName: req.FullName,
		IsActive: req.IsActive,
	}
	if req.Role != nil {
		role := policy.Role(*req.Role)
		in.Role = &role
	}

	user, err := h.Svc.Update(c.Request.Context(), actor, c.Param("id"), in)
	if err != nil {
		respond.AppError(c, err)
		return
	}
	respond.OK(c, user)
}

func (h *Handler) delete(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	if err := h.Svc.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		respond.AppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
