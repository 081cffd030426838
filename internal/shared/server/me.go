package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docvault-backend/internal/shared/server/middleware"
	"docvault-backend/internal/shared/server/respond"
	"docvault-backend/internal/users"
)

// registerMeRoutes attaches the /me endpoint.
func registerMeRoutes(rg *gin.RouterGroup, usersSvc *users.Service) {
	rg.GET("/me", meHandler(usersSvc))
}

func meHandler(usersSvc *users.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserIDFromContext(c)
		if userID == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		actor := middleware.ActorFromContext(c)
		user, err := usersSvc.Get(c.Request.Context(), actor, userID)
		if err != nil {
			// Token is valid but the record is gone; fall back to claims.
			response := gin.H{"userId": userID, "role": middleware.UserRoleFromContext(c)}
			if email := middleware.UserEmailFromContext(c); email != "" {
				response["email"] = email
			}
			respond.JSON(c, http.StatusOK, response)
			return
		}
		respond.OK(c, user)
	}
}
