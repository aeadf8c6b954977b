package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/xid"

	"github.com/sakif/cliplet/internal/apperror"
	"github.com/sakif/cliplet/internal/model"
	"github.com/sakif/cliplet/internal/repository"
)

func (db *DB) CreateClip(ctx context.Context, clip *model.Clip) error {
	if clip.Payload == nil || clip.Payload.Type() != clip.Type {
		return fmt.Errorf("postgres: clip type %q does not match its payload", clip.Type)
	}

	id := xid.New().String()
	sat, err := repository.SatelliteFor(id, clip.Payload)
	if err != nil {
		return err
	}

	placeholders := make([]string, len(sat.Columns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	satSQL := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		sat.Table, strings.Join(sat.Columns, ", "), strings.Join(placeholders, ", "))

	now := time.Now().UTC()
	err = pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO clips (id, type, user_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
			id, string(clip.Type), clip.UserID, now, now,
		); err != nil {
			return fmt.Errorf("insert clip header: %w", err)
		}
		if _, err := tx.Exec(ctx, satSQL, sat.Values...); err != nil {
			return fmt.Errorf("insert %s row: %w", sat.Table, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("postgres: create clip: %w", err)
	}

	clip.ID = id
	clip.CreatedAt = now
	clip.UpdatedAt = now
	return nil
}

func (db *DB) GetClip(ctx context.Context, ownerID, id string) (*model.Clip, error) {
	var row repository.ClipRow
	err := db.pool.QueryRow(ctx,
		`SELECT `+repository.ClipColumns+repository.ClipJoins+`
		 WHERE c.id = $1 AND c.user_id = $2`,
		id, ownerID,
	).Scan(row.Dest()...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("clip", id)
		}
		return nil, fmt.Errorf("postgres: get clip %s: %w", id, err)
	}
	return row.Clip()
}

func (db *DB) ListClips(ctx context.Context, ownerID string, opts repository.ListOptions) ([]*model.Clip, error) {
	query := `SELECT ` + repository.ClipColumns + repository.ClipJoins + ` WHERE c.user_id = $1`
	args := []any{ownerID}

	if opts.Type != nil {
		query += ` AND c.type = $2`
		args = append(args, string(*opts.Type))
	}

	if opts.Order == model.SortNewest {
		query += ` ORDER BY c.created_at DESC, c.id DESC`
	} else {
		query += ` ORDER BY c.created_at ASC, c.id ASC`
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list clips: %w", err)
	}
	defer rows.Close()

	clips := []*model.Clip{}
	for rows.Next() {
		var row repository.ClipRow
		if err := rows.Scan(row.Dest()...); err != nil {
			return nil, fmt.Errorf("postgres: scan clip: %w", err)
		}
		c, err := row.Clip()
		if err != nil {
			return nil, err
		}
		clips = append(clips, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate clips: %w", err)
	}
	return clips, nil
}

func (db *DB) DeleteClip(ctx context.Context, ownerID, id string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM clips WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("postgres: delete clip %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("clip", id)
	}
	return nil
}

func (db *DB) StorageKeyExists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx, fmt.Sprintf(repository.StorageKeyQuery, "$1"), key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: check storage key: %w", err)
	}
	return exists, nil
}
