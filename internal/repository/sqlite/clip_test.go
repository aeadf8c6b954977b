package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/cliplet/internal/apperror"
	"github.com/sakif/cliplet/internal/model"
	"github.com/sakif/cliplet/internal/repository"
)

func intPtr(v int) *int { return &v }

func createTestClip(t *testing.T, db *DB, userID string, p model.Payload) *model.Clip {
	t.Helper()
	c := model.NewClip(userID, p)
	if err := db.CreateClip(context.Background(), c); err != nil {
		t.Fatalf("failed to create test clip: %v", err)
	}
	return c
}

func countRows(t *testing.T, db *DB, table string) int {
	t.Helper()
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("counting %s: %v", table, err)
	}
	return n
}

// =========================================================================
// CREATE / GET
// =========================================================================

func TestCreateClip_EveryTypeRoundTrips(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "rt@example.com")
	ctx := context.Background()

	obj := func(key, mime string) model.StoredObject {
		return model.StoredObject{Key: user.ID + "/" + key, Size: 1024, MimeType: mime, OriginalName: key}
	}

	payloads := []model.Payload{
		&model.Text{Content: "hello"},
		&model.Image{StoredObject: obj("a.png", "image/png"), Width: intPtr(640), Height: intPtr(480)},
		&model.Video{StoredObject: obj("b.mp4", "video/mp4"), Width: intPtr(1920), Height: intPtr(1080), Duration: 12},
		&model.Audio{StoredObject: obj("c.mp3", "audio/mpeg"), Duration: 180},
		&model.Document{StoredObject: obj("d.pdf", "application/pdf")},
		&model.File{StoredObject: model.StoredObject{Key: user.ID + "/e.zip", Size: 99, OriginalName: "e.zip"}},
	}

	for _, p := range payloads {
		t.Run(string(p.Type()), func(t *testing.T) {
			created := createTestClip(t, db, user.ID, p)
			if created.ID == "" || created.CreatedAt.IsZero() {
				t.Fatalf("CreateClip() did not fill ID/CreatedAt: %+v", created)
			}

			got, err := db.GetClip(ctx, user.ID, created.ID)
			if err != nil {
				t.Fatalf("GetClip() error = %v", err)
			}
			if got.Type != p.Type() || got.Payload.Type() != p.Type() {
				t.Errorf("got type %q / payload %q, want %q", got.Type, got.Payload.Type(), p.Type())
			}

			switch want := p.(type) {
			case *model.Text:
				if got.Payload.(*model.Text).Content != want.Content {
					t.Errorf("content = %q", got.Payload.(*model.Text).Content)
				}
			case *model.Image:
				img := got.Payload.(*model.Image)
				if img.Key != want.Key || *img.Width != 640 || *img.Height != 480 {
					t.Errorf("image = %+v", img)
				}
			case *model.Video:
				if v := got.Payload.(*model.Video); v.Duration != 12 || *v.Width != 1920 {
					t.Errorf("video = %+v", v)
				}
			case *model.Audio:
				if a := got.Payload.(*model.Audio); a.Duration != 180 || a.MimeType != "audio/mpeg" {
					t.Errorf("audio = %+v", a)
				}
			case *model.File:
				if f := got.Payload.(*model.File); f.OriginalName != "e.zip" || f.MimeType != "" {
					t.Errorf("file = %+v", f)
				}
			}
		})
	}
}

func TestCreateClip_ImageWithoutDimensions(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "nodim@example.com")

	c := createTestClip(t, db, user.ID, &model.Image{StoredObject: model.StoredObject{
		Key: user.ID + "/x", Size: 1, MimeType: "image/svg+xml", OriginalName: "x.svg",
	}})

	got, err := db.GetClip(context.Background(), user.ID, c.ID)
	if err != nil {
		t.Fatalf("GetClip() error = %v", err)
	}
	img := got.Payload.(*model.Image)
	if img.Width != nil || img.Height != nil {
		t.Errorf("dimensions should stay NULL, got %v x %v", img.Width, img.Height)
	}
}

// A satellite insert failure must roll back the header too.
func TestCreateClip_AtomicOnSatelliteFailure(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "atomic@example.com")
	ctx := context.Background()

	if _, err := db.conn.Exec(`DROP TABLE files`); err != nil {
		t.Fatalf("dropping files: %v", err)
	}

	err := db.CreateClip(ctx, model.NewClip(user.ID, &model.File{StoredObject: model.StoredObject{Key: "k", Size: 1, OriginalName: "f"}}))
	if err == nil {
		t.Fatal("CreateClip() should fail when the satellite insert fails")
	}
	if n := countRows(t, db, "clips"); n != 0 {
		t.Errorf("clips has %d rows after failed create, want 0", n)
	}
}

func TestCreateClip_MismatchedType(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "mismatch@example.com")

	c := &model.Clip{Type: model.ClipImage, UserID: user.ID, Payload: &model.Text{Content: "x"}}
	if err := db.CreateClip(context.Background(), c); err == nil {
		t.Fatal("CreateClip() should reject a payload that does not match the header type")
	}
	if n := countRows(t, db, "clips"); n != 0 {
		t.Errorf("clips has %d rows, want 0", n)
	}
}

func TestGetClip_OtherOwnerIsNotFound(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "owner@example.com")
	other := createTestUser(t, db, "other@example.com")

	c := createTestClip(t, db, owner.ID, &model.Text{Content: "secret"})

	_, err := db.GetClip(context.Background(), other.ID, c.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetClip() by another user error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// LIST
// =========================================================================

func TestListClips_FilterAndOrder(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "list@example.com")
	other := createTestUser(t, db, "list-other@example.com")
	ctx := context.Background()

	first := createTestClip(t, db, user.ID, &model.Text{Content: "one"})
	second := createTestClip(t, db, user.ID, &model.Image{StoredObject: model.StoredObject{Key: user.ID + "/i", Size: 1, MimeType: "image/png", OriginalName: "i.png"}})
	third := createTestClip(t, db, user.ID, &model.Text{Content: "three"})
	createTestClip(t, db, other.ID, &model.Text{Content: "not mine"})

	asc, err := db.ListClips(ctx, user.ID, repository.ListOptions{Order: model.SortOldest})
	if err != nil {
		t.Fatalf("ListClips() error = %v", err)
	}
	if len(asc) != 3 {
		t.Fatalf("ListClips() returned %d clips, want 3", len(asc))
	}
	if asc[0].ID != first.ID || asc[2].ID != third.ID {
		t.Errorf("oldest order = [%s %s %s]", asc[0].ID, asc[1].ID, asc[2].ID)
	}

	desc, _ := db.ListClips(ctx, user.ID, repository.ListOptions{Order: model.SortNewest})
	if desc[0].ID != third.ID || desc[2].ID != first.ID {
		t.Errorf("newest order = [%s %s %s]", desc[0].ID, desc[1].ID, desc[2].ID)
	}

	img := model.ClipImage
	only, _ := db.ListClips(ctx, user.ID, repository.ListOptions{Type: &img})
	if len(only) != 1 || only[0].ID != second.ID {
		t.Errorf("image filter returned %d clips", len(only))
	}
}

func TestListClips_EmptyIsNotNil(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "empty@example.com")

	clips, err := db.ListClips(context.Background(), user.ID, repository.ListOptions{})
	if err != nil {
		t.Fatalf("ListClips() error = %v", err)
	}
	if clips == nil || len(clips) != 0 {
		t.Errorf("ListClips() = %v, want empty non-nil slice", clips)
	}
}

// =========================================================================
// DELETE
// =========================================================================

func TestDeleteClip_CascadesSatellite(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "del@example.com")
	ctx := context.Background()

	c := createTestClip(t, db, user.ID, &model.Text{Content: "hello"})

	if err := db.DeleteClip(ctx, user.ID, c.ID); err != nil {
		t.Fatalf("DeleteClip() error = %v", err)
	}
	if n := countRows(t, db, "texts"); n != 0 {
		t.Errorf("texts has %d rows after delete, want 0", n)
	}

	_, err := db.GetClip(ctx, user.ID, c.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetClip() after delete error = %v, want ErrNotFound", err)
	}
}

func TestDeleteClip_NotOwnedChangesNothing(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "keep@example.com")
	intruder := createTestUser(t, db, "intruder@example.com")
	ctx := context.Background()

	c := createTestClip(t, db, owner.ID, &model.Text{Content: "mine"})

	err := db.DeleteClip(ctx, intruder.ID, c.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("DeleteClip() error = %v, want ErrNotFound", err)
	}
	if n := countRows(t, db, "clips"); n != 1 {
		t.Errorf("clips has %d rows, want 1", n)
	}

	if err := db.DeleteClip(ctx, owner.ID, "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("DeleteClip(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStorageKeyExists(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "keys@example.com")
	ctx := context.Background()

	key := user.ID + "/doc"
	createTestClip(t, db, user.ID, &model.Document{StoredObject: model.StoredObject{Key: key, Size: 1, MimeType: "application/pdf", OriginalName: "d.pdf"}})

	ok, err := db.StorageKeyExists(ctx, key)
	if err != nil || !ok {
		t.Errorf("StorageKeyExists(%q) = %v, %v; want true", key, ok, err)
	}

	ok, err = db.StorageKeyExists(ctx, user.ID+"/orphan")
	if err != nil || ok {
		t.Errorf("StorageKeyExists(orphan) = %v, %v; want false", ok, err)
	}
}
