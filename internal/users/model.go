package users

import (
	"time"

	"docvault-backend/internal/policy"
)

// User is an account that owns documents and ingestion jobs.
type User struct {
	ID           string      `json:"id"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	FullName     string      `json:"fullName,omitempty"`
	Role         policy.Role `json:"role"`
	IsActive     bool        `json:"isActive"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}
