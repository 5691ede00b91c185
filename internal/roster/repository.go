package roster

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"clan-manager/internal/db"
)

type Repository struct {
	db db.DBTX
}

func NewRepository(database db.DBTX) *Repository {
	return &Repository{db: database}
}

var (
	consumablesSelect = buildConsumablesSelect("c")
	consumablesUpsert = buildConsumablesUpsert()
)

func buildConsumablesSelect(alias string) string {
	parts := make([]string, 0, len(consumableColumns))
	for _, column := range consumableColumns {
		zero := "0"
		if strings.HasPrefix(column, "bonus_") {
			zero = "FALSE"
		}
		parts = append(parts, fmt.Sprintf("COALESCE(%s.%s, %s)", alias, column, zero))
	}
	return strings.Join(parts, ", ")
}

func buildConsumablesUpsert() string {
	placeholders := make([]string, 0, len(consumableColumns))
	updates := make([]string, 0, len(consumableColumns))
	for i, column := range consumableColumns {
		placeholders = append(placeholders, "$"+strconv.Itoa(i+2))
		updates = append(updates, column+" = EXCLUDED."+column)
	}

	return "INSERT INTO consumables (user_id, " + strings.Join(consumableColumns, ", ") + ", updated_at) " +
		"VALUES ($1, " + strings.Join(placeholders, ", ") + ", NOW()) " +
		"ON CONFLICT (user_id) DO UPDATE SET " + strings.Join(updates, ", ") + ", updated_at = NOW()"
}

// Reads go through users so that a missing member is told apart from a member
// who has not saved anything yet.

func (r *Repository) GetStats(ctx context.Context, userID string) (Stats, error) {
	var stats Stats
	err := r.db.QueryRow(ctx, `
		SELECT u.id, COALESCE(p.ingame_name, ''), COALESCE(p.discord_name, ''), COALESCE(p.kills, 0), COALESCE(p.deaths, 0)
		FROM users u
		LEFT JOIN player_stats p ON p.user_id = u.id
		WHERE u.id = $1
	`, userID).Scan(&stats.UserID, &stats.IngameName, &stats.DiscordName, &stats.Kills, &stats.Deaths)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stats{}, ErrUserNotFound
		}
		return Stats{}, fmt.Errorf("query player stats: %w", err)
	}

	return stats, nil
}

func (r *Repository) SaveStats(ctx context.Context, stats Stats) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO player_stats (user_id, ingame_name, discord_name, kills, deaths, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET ingame_name = EXCLUDED.ingame_name,
			discord_name = EXCLUDED.discord_name,
			kills = EXCLUDED.kills,
			deaths = EXCLUDED.deaths,
			updated_at = NOW()
	`, stats.UserID, stats.IngameName, stats.DiscordName, stats.Kills, stats.Deaths)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("upsert player stats: %w", err)
	}

	return nil
}

func (r *Repository) GetEquipment(ctx context.Context, userID string) (Equipment, error) {
	var equipment Equipment
	err := r.db.QueryRow(ctx, `
		SELECT u.id, COALESCE(e.weapons, ''), COALESCE(e.armors, ''), COALESCE(e.artifact_builds, ''), COALESCE(e.artifact_image, '')
		FROM users u
		LEFT JOIN equipment e ON e.user_id = u.id
		WHERE u.id = $1
	`, userID).Scan(&equipment.UserID, &equipment.Weapons, &equipment.Armors, &equipment.ArtifactBuilds, &equipment.ArtifactImage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Equipment{}, ErrUserNotFound
		}
		return Equipment{}, fmt.Errorf("query equipment: %w", err)
	}

	return equipment, nil
}

func (r *Repository) SaveEquipment(ctx context.Context, equipment Equipment) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO equipment (user_id, weapons, armors, artifact_builds, artifact_image, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET weapons = EXCLUDED.weapons,
			armors = EXCLUDED.armors,
			artifact_builds = EXCLUDED.artifact_builds,
			artifact_image = EXCLUDED.artifact_image,
			updated_at = NOW()
	`, equipment.UserID, equipment.Weapons, equipment.Armors, equipment.ArtifactBuilds, equipment.ArtifactImage)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("upsert equipment: %w", err)
	}

	return nil
}

func (r *Repository) GetConsumables(ctx context.Context, userID string) (Consumables, error) {
	var consumables Consumables
	dest := append([]any{&consumables.UserID}, consumables.fields()...)

	err := r.db.QueryRow(ctx, `
		SELECT u.id, `+consumablesSelect+`
		FROM users u
		LEFT JOIN consumables c ON c.user_id = u.id
		WHERE u.id = $1
	`, userID).Scan(dest...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Consumables{}, ErrUserNotFound
		}
		return Consumables{}, fmt.Errorf("query consumables: %w", err)
	}

	return consumables, nil
}

func (r *Repository) SaveConsumables(ctx context.Context, consumables Consumables) error {
	args := append([]any{consumables.UserID}, consumables.values()...)
	if _, err := r.db.Exec(ctx, consumablesUpsert, args...); err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("upsert consumables: %w", err)
	}

	return nil
}

func (r *Repository) Overview(ctx context.Context) ([]MemberOverview, error) {
	rows, err := r.db.Query(ctx, `
		SELECT u.id, u.username, u.role, u.created_at,
			COALESCE(p.ingame_name, ''), COALESCE(p.discord_name, ''), COALESCE(p.kills, 0), COALESCE(p.deaths, 0),
			COALESCE(e.weapons, ''), COALESCE(e.armors, ''), COALESCE(e.artifact_builds, ''), COALESCE(e.artifact_image, ''),
			`+consumablesSelect+`
		FROM users u
		LEFT JOIN player_stats p ON p.user_id = u.id
		LEFT JOIN equipment e ON e.user_id = u.id
		LEFT JOIN consumables c ON c.user_id = u.id
		ORDER BY u.username ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query member overview: %w", err)
	}
	defer rows.Close()

	members := make([]MemberOverview, 0)
	for rows.Next() {
		var m MemberOverview
		dest := []any{
			&m.ID, &m.Username, &m.Role, &m.CreatedAt,
			&m.Stats.IngameName, &m.Stats.DiscordName, &m.Stats.Kills, &m.Stats.Deaths,
			&m.Equipment.Weapons, &m.Equipment.Armors, &m.Equipment.ArtifactBuilds, &m.Equipment.ArtifactImage,
		}
		dest = append(dest, m.Consumables.fields()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan member overview: %w", err)
		}

		m.CreatedAt = m.CreatedAt.UTC()
		m.Stats.UserID = m.ID
		m.Equipment.UserID = m.ID
		m.Consumables.UserID = m.ID
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member overview: %w", err)
	}

	return members, nil
}
