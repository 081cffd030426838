package users

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"docvault-backend/internal/policy"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const userColumns = `id, email, password_hash, full_name, role, is_active, created_at, updated_at`

// Create inserts a new user.
func (r *PGRepo) Create(ctx context.Context, user User) error {
	const query = `
INSERT INTO users (id, email, password_hash, full_name, role, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	var fullName sql.NullString
	if user.FullName != "" {
		fullName = sql.NullString{String: user.FullName, Valid: true}
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		user.ID,
		user.Email,
		user.PasswordHash,
		fullName,
		string(user.Role),
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil && strings.Contains(err.Error(), "users_email_key") {
		return ErrEmailConflict
	}
	return err
}

// GetByID fetches a user by ID.
func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, userID))
}

// GetByEmail fetches a user by email.
func (r *PGRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1 LIMIT 1`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, email))
}

// List returns all users ordered by creation time.
func (r *PGRepo) List(ctx context.Context) ([]User, error) {
	const query = `SELECT ` + userColumns + ` FROM users ORDER BY created_at ASC`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

// Update persists mutable user fields.
func (r *PGRepo) Update(ctx context.Context, user User) error {
	const query = `
UPDATE users
SET email = $1, password_hash = $2, full_name = $3, role = $4, is_active = $5, updated_at = $6
WHERE id = $7`

	var fullName sql.NullString
	if user.FullName != "" {
		fullName = sql.NullString{String: user.FullName, Valid: true}
	}

	res, err := r.DB.ExecContext(
		ctx,
		query,
		user.Email,
		user.PasswordHash,
		fullName,
		string(user.Role),
		user.IsActive,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a user record.
func (r *PGRepo) Delete(ctx context.Context, userID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PGRepo) scanOne(row rowScanner) (User, error) {
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

func scanUser(row rowScanner) (User, error) {
	var user User
	var fullName sql.NullString
	var role string
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&fullName,
		&role,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	if fullName.Valid {
		user.FullName = fullName.String
	}
	user.Role = policy.Role(role)
	return user, nil
}

var _ Repo = (*PGRepo)(nil)
