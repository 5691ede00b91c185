package security

import (
	"context"
	"fmt"
	"time"

	"clan-manager/internal/db"
)

// PostgresStore keeps counters in the abuse_counters table so that every
// instance behind a load balancer sees the same windows.
type PostgresStore struct {
	db        db.DBTX
	batchSize int
}

func NewPostgresStore(database db.DBTX) *PostgresStore {
	return &PostgresStore{db: database, batchSize: 500}
}

func (s *PostgresStore) Hit(ctx context.Context, key string, window time.Duration, now time.Time) (Counter, error) {
	now = now.UTC()
	threshold := now.Add(-window)

	var counter Counter
	err := s.db.QueryRow(ctx, `
		INSERT INTO abuse_counters (key, window_started_at, expires_at, hits, updated_at)
		VALUES ($1, $2, $4, 1, $2)
		ON CONFLICT (key) DO UPDATE
		SET
			hits = CASE
				WHEN abuse_counters.window_started_at <= $3 THEN 1
				ELSE abuse_counters.hits + 1
			END,
			window_started_at = CASE
				WHEN abuse_counters.window_started_at <= $3 THEN $2
				ELSE abuse_counters.window_started_at
			END,
			expires_at = CASE
				WHEN abuse_counters.window_started_at <= $3 THEN $4
				ELSE abuse_counters.expires_at
			END,
			updated_at = $2
		RETURNING hits, window_started_at
	`, key, now, threshold, now.Add(window)).Scan(&counter.Hits, &counter.WindowStart)
	if err != nil {
		return Counter{}, fmt.Errorf("upsert abuse counter: %w", err)
	}

	counter.WindowStart = counter.WindowStart.UTC()
	return counter, nil
}

func (s *PostgresStore) Release(ctx context.Context, key string, windowStart time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE abuse_counters
		SET hits = GREATEST(hits - 1, 0)
		WHERE key = $1 AND window_started_at = $2
	`, key, windowStart.UTC())
	if err != nil {
		return fmt.Errorf("release abuse counter: %w", err)
	}
	return nil
}

func (s *PostgresStore) Reset(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM abuse_counters WHERE key = $1`, key); err != nil {
		return fmt.Errorf("reset abuse counter: %w", err)
	}
	return nil
}

// Sweep deletes closed windows in batches until none are left.
func (s *PostgresStore) Sweep(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for {
		tag, err := s.db.Exec(ctx, `
			WITH stale AS (
				SELECT key
				FROM abuse_counters
				WHERE expires_at <= $1
				ORDER BY expires_at ASC
				LIMIT $2
			)
			DELETE FROM abuse_counters c
			USING stale
			WHERE c.key = stale.key
		`, now.UTC(), s.batchSize)
		if err != nil {
			return total, fmt.Errorf("delete stale abuse counters: %w", err)
		}

		total += tag.RowsAffected()
		if tag.RowsAffected() < int64(s.batchSize) {
			return total, nil
		}
	}
}
