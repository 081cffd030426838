package health

import (
	"context"
	"database/sql"
	"time"
)

// Service encapsulates health-related checks.
type Service struct {
	DB *sql.DB
}

// NewService constructs a new health service. db may be nil when the
// in-memory stores are in use.
func NewService(db *sql.DB) *Service {
	return &Service{DB: db}
}

// Status reports liveness plus the backing store in use.
func (s *Service) Status(ctx context.Context) map[string]any {
	out := map[string]any{
		"ok":    true,
		"store": "memory",
	}
	if s.DB == nil {
		return out
	}
	out["store"] = "postgres"
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.DB.PingContext(pingCtx); err != nil {
		out["ok"] = false
		out["error"] = err.Error()
	}
	return out
}
