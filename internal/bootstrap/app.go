package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	authsvc "docvault-backend/internal/auth"
	"docvault-backend/internal/documents"
	"docvault-backend/internal/ingestion"
	"docvault-backend/internal/services/health"
	"docvault-backend/internal/shared/config"
	"docvault-backend/internal/shared/server"
	"docvault-backend/internal/shared/storage/db"
	"docvault-backend/internal/shared/storage/object"
	localstore "docvault-backend/internal/shared/storage/object/local"
	s3store "docvault-backend/internal/shared/storage/object/s3"
	"docvault-backend/internal/shared/telemetry"
	"docvault-backend/internal/users"
	"docvault-backend/internal/webhook"
)

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore

	Scheduler *ingestion.Scheduler
	Notifier  *webhook.Notifier

	UsersRepo     users.Repo
	DocumentsRepo documents.Repo
	IngestionRepo ingestion.Repo

	UsersService     *users.Service
	AuthService      *authsvc.Service
	DocumentsService *documents.Service
	IngestionService *ingestion.Service
	HealthService    *health.Service
	GoogleAuth       *authsvc.GoogleService

	AuthHandler      *authsvc.Handler
	UsersHandler     *users.Handler
	DocumentsHandler *documents.Handler
	IngestionHandler *ingestion.Handler
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:    cfg,
		DB:        sqlDB,
		Store:     store,
		Scheduler: ingestion.NewScheduler(),
		Notifier:  webhook.NewNotifier(cfg.WebhookTargetURL, cfg.WebhookSecret),
	}
	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:           app.Config,
		Health:           app.HealthService,
		AuthHandler:      app.AuthHandler,
		GoogleAuth:       app.GoogleAuth,
		UsersService:     app.UsersService,
		UsersHandler:     app.UsersHandler,
		DocumentsHandler: app.DocumentsHandler,
		IngestionHandler: app.IngestionHandler,
	})

	return app, nil
}

// Close releases background workers and the database pool.
func (a *App) Close() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Notifier != nil {
		a.Notifier.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{
				"reason": "DATABASE_URL empty",
			})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.DefaultServerOptions())
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{
				"reason": "database connect failed",
				"error":  err.Error(),
			})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.AWSRegion) == "" || strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires AWS_REGION and S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildServices(app *App) {
	if app.DB != nil {
		app.UsersRepo = &users.PGRepo{DB: app.DB}
		app.DocumentsRepo = &documents.PGRepo{DB: app.DB}
		app.IngestionRepo = &ingestion.PGRepo{DB: app.DB}
	} else {
		app.UsersRepo = users.NewMemoryRepo()
		docRepo := documents.NewMemoryRepo()
		app.DocumentsRepo = docRepo
		app.IngestionRepo = ingestion.NewMemoryRepo(docRepo)
	}

	app.UsersService = users.NewService(app.UsersRepo)
	app.AuthService = authsvc.NewService(app.UsersService)
	app.DocumentsService = &documents.Service{Store: app.Store, Repo: app.DocumentsRepo}
	app.IngestionService = &ingestion.Service{
		Repo:          app.IngestionRepo,
		Docs:          app.DocumentsService,
		Scheduler:     app.Scheduler,
		Notifier:      app.Notifier,
		RunningDelay:  app.Config.IngestRunningDelay,
		CompleteDelay: app.Config.IngestCompleteDelay,
	}
	app.HealthService = health.NewService(app.DB)
	if app.Config.GoogleClientID != "" {
		app.GoogleAuth = authsvc.NewGoogleService(
			app.Config.GoogleClientID,
			app.Config.GoogleClientSecret,
			app.Config.GoogleRedirectURL,
			app.Config.UIRedirectURL,
			app.UsersService,
			app.AuthService,
		)
	}

	app.AuthHandler = authsvc.NewHandler(app.AuthService)
	app.UsersHandler = users.NewHandler(app.UsersService)
	app.DocumentsHandler = documents.NewHandler(app.DocumentsService)
	app.IngestionHandler = ingestion.NewHandler(app.IngestionService)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
