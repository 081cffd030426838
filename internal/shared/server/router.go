package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	authsvc "docvault-backend/internal/auth"
	"docvault-backend/internal/documents"
	"docvault-backend/internal/ingestion"
	"docvault-backend/internal/services/health"
	"docvault-backend/internal/shared/config"
	"docvault-backend/internal/shared/metrics"
	"docvault-backend/internal/shared/server/middleware"
	"docvault-backend/internal/shared/server/respond"
	"docvault-backend/internal/users"
)

// RouterDeps bundles everything the router needs wired.
type RouterDeps struct {
	Config           config.Config
	Health           *health.Service
	AuthHandler      *authsvc.Handler
	GoogleAuth       *authsvc.GoogleService
	UsersService     *users.Service
	UsersHandler     *users.Handler
	DocumentsHandler *documents.Handler
	IngestionHandler *ingestion.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	limiter := middleware.NewRateLimiter(nil)
	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(),
		middleware.RateLimit(limiter, middleware.RateLimitRule{Rate: 10, Burst: 30}),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, deps.Health.Status(c.Request.Context()))
	})
	api.GET("/metrics", metrics.Handler())

	deps.AuthHandler.RegisterRoutes(api)
	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}
	registerMeRoutes(api, deps.UsersService)
	deps.UsersHandler.RegisterRoutes(api)
	deps.DocumentsHandler.RegisterRoutes(api)
	deps.IngestionHandler.RegisterRoutes(api)
	deps.IngestionHandler.RegisterWebhook(api)

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
