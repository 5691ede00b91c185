package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"clan-manager/internal/db"
)

type Repository struct {
	db db.DBTX
}

func NewRepository(database db.DBTX) *Repository {
	return &Repository{db: database}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, withHash bool) (User, error) {
	var user User
	var role string

	var err error
	if withHash {
		err = row.Scan(&user.ID, &user.Username, &user.PasswordHash, &role, &user.CreatedAt)
	} else {
		err = row.Scan(&user.ID, &user.Username, &role, &user.CreatedAt)
	}
	if err != nil {
		return User{}, err
	}

	user.Role, err = ParseRole(role)
	if err != nil {
		return User{}, fmt.Errorf("user %s: %w", user.ID, err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

func (r *Repository) Create(ctx context.Context, user User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, username, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.Username, user.PasswordHash, string(user.Role), user.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

func (r *Repository) GetByUsername(ctx context.Context, username string) (User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `
		SELECT id, username, password_hash, role, created_at
		FROM users
		WHERE username = $1
	`, username), true)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("query user by username: %w", err)
	}

	return user, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `
		SELECT id, username, role, created_at
		FROM users
		WHERE id = $1
	`, id), false)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("query user by id: %w", err)
	}

	return user, nil
}

// Delete removes the user; roster, clan-war and strategy rows go with it
// through ON DELETE CASCADE.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *Repository) UpdateRole(ctx context.Context, id string, role Role) (User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `
		UPDATE users
		SET role = $2
		WHERE id = $1
		RETURNING id, username, role, created_at
	`, id, string(role)), false)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("update user role: %w", err)
	}

	return user, nil
}

// EnsureAdmin creates the account or, when the username exists, resets its
// password and promotes it.
func (r *Repository) EnsureAdmin(ctx context.Context, user User) (User, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	saved, err := scanUser(r.db.QueryRow(ctx, `
		INSERT INTO users (id, username, password_hash, role, created_at)
		VALUES ($1, $2, $3, 'admin', $4)
		ON CONFLICT (username) DO UPDATE
		SET password_hash = EXCLUDED.password_hash, role = 'admin'
		RETURNING id, username, role, created_at
	`, user.ID, user.Username, user.PasswordHash, user.CreatedAt), false)
	if err != nil {
		return User{}, fmt.Errorf("upsert admin user: %w", err)
	}

	return saved, nil
}
