// Package user is the minimal directory the core references.
package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"hums/internal/store"
)

// User represents a registered member.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     *string   `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository persists users in Postgres.
type Repository struct {
	db store.DBTX
}

// NewRepository creates a repo bound to the given handle.
func NewRepository(db store.DBTX) *Repository {
	return &Repository{db: db}
}

// List returns all users.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, created_at FROM users ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Get returns a single user by id, or nil when missing.
func (r *Repository) Get(ctx context.Context, id int64) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at FROM users WHERE id = $1
	`, id)
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// Insert creates a user.
func (r *Repository) Insert(ctx context.Context, name string, email *string) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (name, email) VALUES ($1, $2)
		RETURNING id, name, email, created_at
	`, name, email)
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
		return User{}, err
	}
	return u, nil
}
