package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"taskmaster/internal/model"
	"taskmaster/pkg/metrics"
)

// PushTokenRepository stores device registration tokens per owner. Tokens
// are globally unique; re-registering one moves it to its current owner.
type PushTokenRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPushTokenRepository(db *pgxpool.Pool, logger *zap.Logger) *PushTokenRepository {
	return &PushTokenRepository{db: db, logger: logger}
}

func (r *PushTokenRepository) Upsert(ctx context.Context, ownerID, token string) error {
	start := time.Now()
	query := `
        INSERT INTO push_tokens (token, owner_id, created_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (token) DO UPDATE SET owner_id = EXCLUDED.owner_id
    `
	_, err := r.db.Exec(ctx, query, token, ownerID, model.FormatInstant(time.Now()))
	metrics.RecordDBQueryDuration("upsert", "push_tokens", time.Since(start))
	if err != nil {
		r.logger.Error("Failed to upsert push token",
			zap.Error(err),
			zap.String("owner_id", ownerID),
		)
		return err
	}

	r.logger.Info("Push token registered", zap.String("owner_id", ownerID))
	return nil
}

func (r *PushTokenRepository) ListByOwner(ctx context.Context, ownerID string) ([]string, error) {
	start := time.Now()
	rows, err := r.db.Query(ctx, `SELECT token FROM push_tokens WHERE owner_id = $1`, ownerID)
	if err != nil {
		r.logger.Error("Failed to query push tokens",
			zap.Error(err),
			zap.String("owner_id", ownerID),
		)
		return nil, err
	}
	defer rows.Close()

	tokens := []string{}
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	metrics.RecordDBQueryDuration("select", "push_tokens", time.Since(start))
	return tokens, rows.Err()
}

// Delete removes a token unconditionally. Used both for explicit
// unregistration and for pruning tokens the push service reports stale.
func (r *PushTokenRepository) Delete(ctx context.Context, token string) error {
	start := time.Now()
	_, err := r.db.Exec(ctx, `DELETE FROM push_tokens WHERE token = $1`, token)
	metrics.RecordDBQueryDuration("delete", "push_tokens", time.Since(start))
	if err != nil {
		r.logger.Error("Failed to delete push token", zap.Error(err))
		return err
	}
	return nil
}

// DeleteForOwner removes a token only if the owner holds it.
func (r *PushTokenRepository) DeleteForOwner(ctx context.Context, ownerID, token string) error {
	start := time.Now()
	_, err := r.db.Exec(ctx,
		`DELETE FROM push_tokens WHERE token = $1 AND owner_id = $2`, token, ownerID)
	metrics.RecordDBQueryDuration("delete", "push_tokens", time.Since(start))
	if err != nil {
		r.logger.Error("Failed to delete push token",
			zap.Error(err),
			zap.String("owner_id", ownerID),
		)
		return err
	}
	return nil
}
