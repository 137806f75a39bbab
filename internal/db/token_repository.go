package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// Replace deletes any stored token for the entity's provider and inserts the
// new one in a single transaction, keeping at most one live token per provider.
func (r *TokenRepository) Replace(ctx context.Context, entity *OAuthTokenEntity) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM oauth_tokens WHERE provider = $1`, entity.Provider); err != nil {
		return errors.Wrap(err, "deleting previous token")
	}

	query := `INSERT INTO oauth_tokens (provider, access_token, refresh_token, expires_at)
	          VALUES ($1, $2, $3, $4)`
	if _, err := tx.Exec(ctx, query, entity.Provider, entity.AccessToken, entity.RefreshToken, entity.ExpiresAt); err != nil {
		return errors.Wrap(err, "inserting token")
	}

	return errors.Wrap(tx.Commit(ctx), "committing token replace")
}

// GetByProvider returns the stored token for the provider, or nil when none
// exists.
func (r *TokenRepository) GetByProvider(ctx context.Context, provider string) (*OAuthTokenEntity, error) {
	query := `SELECT id, provider, access_token, refresh_token, expires_at, created_at, updated_at
	          FROM oauth_tokens WHERE provider = $1`

	var entity OAuthTokenEntity
	err := r.pool.QueryRow(ctx, query, provider).Scan(
		&entity.ID,
		&entity.Provider,
		&entity.AccessToken,
		&entity.RefreshToken,
		&entity.ExpiresAt,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying token")
	}
	return &entity, nil
}
