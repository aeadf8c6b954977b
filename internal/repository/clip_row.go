package repository

import (
	"fmt"
	"time"

	"github.com/sakif/cliplet/internal/model"
)

// ClipColumns selects a clip header joined with every satellite table. At most
// one satellite matches a given header, so COALESCE flattens the pair into a
// single row. Scan the result with ClipRow.Dest.
const ClipColumns = `
	c.id, c.type, c.user_id, c.created_at, c.updated_at,
	t.content,
	COALESCE(i.storage_key, v.storage_key, a.storage_key, d.storage_key, f.storage_key),
	COALESCE(i.size, v.size, a.size, d.size, f.size),
	COALESCE(i.mime_type, v.mime_type, a.mime_type, d.mime_type),
	COALESCE(i.original_name, v.original_name, a.original_name, d.original_name, f.original_name),
	COALESCE(i.width, v.width),
	COALESCE(i.height, v.height),
	COALESCE(v.duration, a.duration)`

// ClipJoins is the FROM clause matching ClipColumns.
const ClipJoins = `
	FROM clips c
	LEFT JOIN texts t     ON t.id = c.id
	LEFT JOIN images i    ON i.id = c.id
	LEFT JOIN videos v    ON v.id = c.id
	LEFT JOIN audios a    ON a.id = c.id
	LEFT JOIN documents d ON d.id = c.id
	LEFT JOIN files f     ON f.id = c.id`

// StorageKeyQuery is true when any satellite references the key. Backends
// substitute their own placeholder for %s.
const StorageKeyQuery = `
	SELECT EXISTS (
		SELECT 1 FROM images WHERE storage_key = %[1]s
		UNION ALL SELECT 1 FROM videos WHERE storage_key = %[1]s
		UNION ALL SELECT 1 FROM audios WHERE storage_key = %[1]s
		UNION ALL SELECT 1 FROM documents WHERE storage_key = %[1]s
		UNION ALL SELECT 1 FROM files WHERE storage_key = %[1]s
	)`

// ClipRow is the flattened projection produced by ClipColumns.
type ClipRow struct {
	ID           string
	Type         string
	UserID       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Content      *string
	StorageKey   *string
	Size         *int64
	MimeType     *string
	OriginalName *string
	Width        *int
	Height       *int
	Duration     *int
}

// Dest returns scan destinations in ClipColumns order.
func (r *ClipRow) Dest() []any {
	return []any{
		&r.ID, &r.Type, &r.UserID, &r.CreatedAt, &r.UpdatedAt,
		&r.Content,
		&r.StorageKey, &r.Size, &r.MimeType, &r.OriginalName,
		&r.Width, &r.Height, &r.Duration,
	}
}

// Clip rebuilds the tagged payload. A header whose satellite row is missing
// is reported as an error rather than returned half-built.
func (r *ClipRow) Clip() (*model.Clip, error) {
	typ, err := model.ParseClipType(r.Type)
	if err != nil {
		return nil, err
	}

	c := &model.Clip{
		ID:        r.ID,
		Type:      typ,
		UserID:    r.UserID,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}

	if typ == model.ClipText {
		if r.Content == nil {
			return nil, fmt.Errorf("repository: clip %s has no text row", r.ID)
		}
		c.Payload = &model.Text{Content: *r.Content}
		return c, nil
	}

	if r.StorageKey == nil {
		return nil, fmt.Errorf("repository: clip %s has no %s row", r.ID, typ)
	}
	obj := model.StoredObject{
		Key:          *r.StorageKey,
		Size:         deref(r.Size),
		MimeType:     deref(r.MimeType),
		OriginalName: deref(r.OriginalName),
	}

	switch typ {
	case model.ClipImage:
		c.Payload = &model.Image{StoredObject: obj, Width: r.Width, Height: r.Height}
	case model.ClipVideo:
		c.Payload = &model.Video{StoredObject: obj, Width: r.Width, Height: r.Height, Duration: deref(r.Duration)}
	case model.ClipAudio:
		c.Payload = &model.Audio{StoredObject: obj, Duration: deref(r.Duration)}
	case model.ClipDocument:
		c.Payload = &model.Document{StoredObject: obj}
	case model.ClipFile:
		obj.MimeType = ""
		c.Payload = &model.File{StoredObject: obj}
	}
	return c, nil
}

// Satellite describes the INSERT for a payload: table name, column list and
// values in matching order. Placeholders are left to the backend.
type Satellite struct {
	Table   string
	Columns []string
	Values  []any
}

// SatelliteFor maps a payload to its satellite row for clip id.
func SatelliteFor(id string, p model.Payload) (Satellite, error) {
	switch v := p.(type) {
	case *model.Text:
		return Satellite{"texts", []string{"id", "content"}, []any{id, v.Content}}, nil
	case *model.Image:
		return Satellite{"images",
			[]string{"id", "storage_key", "size", "mime_type", "original_name", "width", "height"},
			[]any{id, v.Key, v.Size, v.MimeType, v.OriginalName, v.Width, v.Height}}, nil
	case *model.Video:
		return Satellite{"videos",
			[]string{"id", "storage_key", "size", "mime_type", "original_name", "width", "height", "duration"},
			[]any{id, v.Key, v.Size, v.MimeType, v.OriginalName, v.Width, v.Height, v.Duration}}, nil
	case *model.Audio:
		return Satellite{"audios",
			[]string{"id", "storage_key", "size", "mime_type", "original_name", "duration"},
			[]any{id, v.Key, v.Size, v.MimeType, v.OriginalName, v.Duration}}, nil
	case *model.Document:
		return Satellite{"documents",
			[]string{"id", "storage_key", "size", "mime_type", "original_name"},
			[]any{id, v.Key, v.Size, v.MimeType, v.OriginalName}}, nil
	case *model.File:
		return Satellite{"files",
			[]string{"id", "storage_key", "size", "original_name"},
			[]any{id, v.Key, v.Size, v.OriginalName}}, nil
	}
	return Satellite{}, fmt.Errorf("repository: unsupported payload %T", p)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
