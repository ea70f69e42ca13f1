package fraud

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/earnflow/earnflow/internal/ledger"
)

// PostgresScoreStore persists fraud scores in PostgreSQL.
type PostgresScoreStore struct {
	db *pgxpool.Pool
}

// NewPostgresScoreStore builds a score store backed by PostgreSQL.
func NewPostgresScoreStore(db *pgxpool.Pool) *PostgresScoreStore {
	return &PostgresScoreStore{db: db}
}

func (s *PostgresScoreStore) Get(ctx context.Context, userID string) (Score, error) {
	row := s.db.QueryRow(ctx, `SELECT user_id, score, factors, flagged, vend_count, expired_holds, cooldown_until, updated_at
        FROM fraud_scores WHERE user_id = $1`, userID)

	var score Score
	var cooldown *time.Time
	if err := row.Scan(&score.UserID, &score.Score, &score.Factors, &score.Flagged,
		&score.VendCount, &score.ExpiredHolds, &cooldown, &score.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Score{}, ledger.ErrNotFound
		}
		return Score{}, err
	}
	if cooldown != nil {
		score.CooldownUntil = cooldown.UTC()
	}
	score.UpdatedAt = score.UpdatedAt.UTC()
	return score, nil
}

func (s *PostgresScoreStore) Upsert(ctx context.Context, score Score) error {
	var cooldown *time.Time
	if !score.CooldownUntil.IsZero() {
		t := score.CooldownUntil.UTC()
		cooldown = &t
	}
	_, err := s.db.Exec(ctx, `INSERT INTO fraud_scores
        (user_id, score, factors, flagged, vend_count, expired_holds, cooldown_until, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (user_id) DO UPDATE SET
            score = EXCLUDED.score,
            factors = EXCLUDED.factors,
            flagged = EXCLUDED.flagged,
            vend_count = EXCLUDED.vend_count,
            expired_holds = EXCLUDED.expired_holds,
            cooldown_until = EXCLUDED.cooldown_until,
            updated_at = EXCLUDED.updated_at`,
		score.UserID, score.Score, score.Factors, score.Flagged,
		score.VendCount, score.ExpiredHolds, cooldown, score.UpdatedAt.UTC())
	return err
}
