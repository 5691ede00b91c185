package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clan-manager/internal/db"
)

var (
	ErrNotFound = errors.New("strategy not found")
	// ErrAuthorNotFound is returned when the uploading account no longer exists.
	ErrAuthorNotFound = errors.New("author not found")
)

type Image struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Author      string    `json:"author"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
}

type Repository struct {
	db db.DBTX
}

func NewRepository(database db.DBTX) *Repository {
	return &Repository{db: database}
}

func (r *Repository) List(ctx context.Context) ([]Image, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.id, s.user_id, u.username, s.title, s.description, s.image_url, s.created_at
		FROM strategy_images s
		JOIN users u ON u.id = s.user_id
		ORDER BY s.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list strategy images: %w", err)
	}
	defer rows.Close()

	images := make([]Image, 0)
	for rows.Next() {
		var image Image
		if err := rows.Scan(&image.ID, &image.UserID, &image.Author, &image.Title, &image.Description, &image.ImageURL, &image.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan strategy image: %w", err)
		}
		image.CreatedAt = image.CreatedAt.UTC()
		images = append(images, image)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate strategy images: %w", err)
	}

	return images, nil
}

func (r *Repository) Create(ctx context.Context, image Image) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO strategy_images (id, user_id, title, description, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, image.ID, image.UserID, image.Title, image.Description, image.ImageURL, image.CreatedAt)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrAuthorNotFound
		}
		return fmt.Errorf("insert strategy image: %w", err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM strategy_images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete strategy image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
