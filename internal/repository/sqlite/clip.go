package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/cliplet/internal/apperror"
	"github.com/sakif/cliplet/internal/model"
	"github.com/sakif/cliplet/internal/repository"
)

var _ repository.ClipRepository = (*DB)(nil)

// CreateClip inserts the header and its satellite row in one transaction.
// If either insert fails the transaction is rolled back and neither row is
// visible.
func (db *DB) CreateClip(ctx context.Context, clip *model.Clip) error {
	if clip.Payload == nil || clip.Payload.Type() != clip.Type {
		return fmt.Errorf("sqlite: clip type %q does not match its payload", clip.Type)
	}

	id := xid.New().String()
	sat, err := repository.SatelliteFor(id, clip.Payload)
	if err != nil {
		return err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning clip insert: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO clips (id, type, user_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(clip.Type), clip.UserID, now, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting clip header: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(sat.Columns)), ", ")
	_, err = tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s)`,
		sat.Table, strings.Join(sat.Columns, ", "), placeholders,
	), sat.Values...)
	if err != nil {
		return fmt.Errorf("sqlite: inserting %s row: %w", sat.Table, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing clip: %w", err)
	}

	clip.ID = id
	clip.CreatedAt = now
	clip.UpdatedAt = now
	return nil
}

// GetClip returns the clip only if ownerID owns it. A foreign clip is
// reported exactly like a missing one.
func (db *DB) GetClip(ctx context.Context, ownerID, id string) (*model.Clip, error) {
	var row repository.ClipRow
	err := db.conn.QueryRowContext(ctx,
		`SELECT `+repository.ClipColumns+repository.ClipJoins+`
		 WHERE c.id = ? AND c.user_id = ?`,
		id, ownerID,
	).Scan(row.Dest()...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("clip", id)
		}
		return nil, fmt.Errorf("sqlite: getting clip %s: %w", id, err)
	}
	return row.Clip()
}

func (db *DB) ListClips(ctx context.Context, ownerID string, opts repository.ListOptions) ([]*model.Clip, error) {
	query := `SELECT ` + repository.ClipColumns + repository.ClipJoins + ` WHERE c.user_id = ?`
	args := []any{ownerID}

	if opts.Type != nil {
		query += ` AND c.type = ?`
		args = append(args, string(*opts.Type))
	}

	if opts.Order == model.SortNewest {
		query += ` ORDER BY c.created_at DESC, c.id DESC`
	} else {
		query += ` ORDER BY c.created_at ASC, c.id ASC`
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing clips: %w", err)
	}
	defer rows.Close()

	clips := []*model.Clip{}
	for rows.Next() {
		var row repository.ClipRow
		if err := rows.Scan(row.Dest()...); err != nil {
			return nil, fmt.Errorf("sqlite: scanning clip: %w", err)
		}
		c, err := row.Clip()
		if err != nil {
			return nil, err
		}
		clips = append(clips, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating clips: %w", err)
	}
	return clips, nil
}

// DeleteClip removes the header; the satellite row goes with it through
// ON DELETE CASCADE.
func (db *DB) DeleteClip(ctx context.Context, ownerID, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM clips WHERE id = ? AND user_id = ?`, id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting clip %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking delete result: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("clip", id)
	}
	return nil
}

func (db *DB) StorageKeyExists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		fmt.Sprintf(repository.StorageKeyQuery, "?1"), key,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking storage key: %w", err)
	}
	return exists, nil
}
