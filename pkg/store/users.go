package store

import (
	"context"
	"database/sql"
	"time"
)

// User is one API account row.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateUser inserts a new user. A duplicate email fails on the unique
// constraint.
func (s *Store) CreateUser(ctx context.Context, u User) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID, u.Email, u.PasswordHash, u.CreatedAt.UnixMilli(), u.UpdatedAt.UnixMilli())
	return err
}

// UserByEmail looks a user up by email; nil when absent.
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	var created, updated int64
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE email = ?
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = time.UnixMilli(created)
	u.UpdatedAt = time.UnixMilli(updated)
	return &u, nil
}
