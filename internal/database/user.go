package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/forcessl/forcessl/internal/database/models"
)

// userRepo implements UserRepository.
type userRepo struct {
	db *DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *DB) UserRepository {
	return &userRepo{db: db}
}

// Upsert inserts a user or, if the username exists, replaces its display name
// and password hash. user.ID is set to the stored row's id.
func (r *userRepo) Upsert(ctx context.Context, user *models.User) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (username, display_name, password_hash)
		 VALUES (?, ?, ?)
		 ON CONFLICT(username) DO UPDATE SET
		   display_name = excluded.display_name,
		   password_hash = excluded.password_hash,
		   updated_at = datetime('now')
		 RETURNING id`,
		user.Username, user.DisplayName, user.PasswordHash,
	).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}
	return nil
}

// GetByID returns a user by id, or nil if none exists.
func (r *userRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, "id = ?", id)
}

// GetByUsername returns a user by username, or nil if none exists.
func (r *userRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, "username = ?", username)
}

func (r *userRepo) getOne(ctx context.Context, where string, arg any) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, display_name, password_hash, created_at, updated_at
		 FROM users WHERE `+where, arg,
	).Scan(&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &u, nil
}
