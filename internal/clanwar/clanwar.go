package clanwar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clan-manager/internal/db"
)

const DateLayout = "2006-01-02"

var ErrUserNotFound = errors.New("user not found")

type Registration struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Date      string    `json:"date"`
	Attending bool      `json:"attending"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Repository struct {
	db db.DBTX
}

func NewRepository(database db.DBTX) *Repository {
	return &Repository{db: database}
}

func (r *Repository) ListByDate(ctx context.Context, date time.Time) ([]Registration, error) {
	rows, err := r.db.Query(ctx, `
		SELECT r.user_id, u.username, r.war_date, r.attending, r.updated_at
		FROM clan_war_registrations r
		JOIN users u ON u.id = r.user_id
		WHERE r.war_date = $1
		ORDER BY u.username ASC
	`, date)
	if err != nil {
		return nil, fmt.Errorf("list clan war registrations: %w", err)
	}
	defer rows.Close()

	registrations := make([]Registration, 0)
	for rows.Next() {
		var reg Registration
		var warDate time.Time
		if err := rows.Scan(&reg.UserID, &reg.Username, &warDate, &reg.Attending, &reg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan clan war registration: %w", err)
		}
		reg.Date = warDate.Format(DateLayout)
		reg.UpdatedAt = reg.UpdatedAt.UTC()
		registrations = append(registrations, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clan war registrations: %w", err)
	}

	return registrations, nil
}

// Save records the member's answer for the day, replacing an earlier one.
func (r *Repository) Save(ctx context.Context, userID string, date time.Time, attending bool) (time.Time, error) {
	var updatedAt time.Time
	err := r.db.QueryRow(ctx, `
		INSERT INTO clan_war_registrations (user_id, war_date, attending, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, war_date) DO UPDATE
		SET attending = EXCLUDED.attending, updated_at = NOW()
		RETURNING updated_at
	`, userID, date, attending).Scan(&updatedAt)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return time.Time{}, ErrUserNotFound
		}
		return time.Time{}, fmt.Errorf("upsert clan war registration: %w", err)
	}

	return updatedAt.UTC(), nil
}
