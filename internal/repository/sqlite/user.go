package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/cliplet/internal/apperror"
	"github.com/sakif/cliplet/internal/model"
	"github.com/sakif/cliplet/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// UpsertWithProvider resolves the account for an OAuth login.
//
// Users are keyed by email. A first login inserts the user and the provider
// link in one transaction; a later login (with the same or another provider)
// keeps the existing row and adds the link if it is missing. Profile fields
// are not overwritten on later logins.
func (db *DB) UpsertWithProvider(ctx context.Context, user *model.User, provider model.Provider, providerID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning user upsert: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanUser(tx.QueryRowContext(ctx,
		`SELECT id, name, email, avatar_url, created_at, updated_at
		 FROM users WHERE email = ?`, user.Email,
	))
	switch {
	case err == nil:
		*user = *existing
	case errors.Is(err, sql.ErrNoRows):
		now := time.Now().UTC()
		user.ID = xid.New().String()
		user.CreatedAt = now
		user.UpdatedAt = now

		_, err = tx.ExecContext(ctx,
			`INSERT INTO users (id, name, email, avatar_url, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			user.ID, user.Name, user.Email, user.AvatarURL, user.CreatedAt, user.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
		}
	default:
		return fmt.Errorf("sqlite: looking up user by email: %w", err)
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_auth_providers (id, user_id, provider, provider_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, provider) DO NOTHING`,
		xid.New().String(), user.ID, string(provider), providerID, now, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: linking %s to user %s: %w", provider, user.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing user upsert: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT id, name, email, avatar_url, created_at, updated_at
		 FROM users WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}
