package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/xid"

	"github.com/sakif/cliplet/internal/apperror"
	"github.com/sakif/cliplet/internal/model"
)

// UpsertWithProvider finds the user by email or inserts it, then links the
// provider. Everything runs in one transaction. Two first logins racing on
// the same email surface as Conflict for the loser.
func (db *DB) UpsertWithProvider(ctx context.Context, user *model.User, provider model.Provider, providerID string) error {
	err := pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		existing, err := scanUser(tx.QueryRow(ctx,
			`SELECT id, name, email, avatar_url, created_at, updated_at
			 FROM users WHERE email = $1`, user.Email,
		))
		switch {
		case err == nil:
			*user = *existing
		case errors.Is(err, pgx.ErrNoRows):
			now := time.Now().UTC()
			user.ID = xid.New().String()
			user.CreatedAt = now
			user.UpdatedAt = now
			if _, err := tx.Exec(ctx,
				`INSERT INTO users (id, name, email, avatar_url, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				user.ID, user.Name, user.Email, user.AvatarURL, user.CreatedAt, user.UpdatedAt,
			); err != nil {
				if isUniqueViolation(err) {
					return apperror.Conflict("user", user.Email)
				}
				return fmt.Errorf("insert user: %w", err)
			}
		default:
			return fmt.Errorf("find user by email: %w", err)
		}

		now := time.Now().UTC()
		_, err = tx.Exec(ctx,
			`INSERT INTO user_auth_providers (id, user_id, provider, provider_id, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (user_id, provider) DO NOTHING`,
			xid.New().String(), user.ID, string(provider), providerID, now, now,
		)
		if err != nil {
			return fmt.Errorf("link provider: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("postgres: upsert user %s: %w", user.Email, err)
	}
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx,
		`SELECT id, name, email, avatar_url, created_at, updated_at
		 FROM users WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("postgres: get user %s: %w", id, err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}
