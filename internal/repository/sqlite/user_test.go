package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sakif/cliplet/internal/apperror"
	"github.com/sakif/cliplet/internal/model"
)

// newTestDB opens a fresh in-memory database for one test.
//
// t.Helper() makes failures point at the caller's line; t.Cleanup closes the
// database when the test (and its subtests) finish.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser signs a user in through GitHub and fails the test on error.
func createTestUser(t *testing.T, db *DB, email string) *model.User {
	t.Helper()
	user := &model.User{
		Name:      "Test " + email,
		Email:     email,
		AvatarURL: "https://avatars.githubusercontent.com/u/123",
	}
	if err := db.UpsertWithProvider(context.Background(), user, model.ProviderGitHub, "gh-"+email); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// =========================================================================
// UPSERT TESTS
// =========================================================================

func TestUpsertWithProvider_NewUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user := &model.User{Name: "Octo Cat", Email: "octo@example.com"}
	if err := db.UpsertWithProvider(ctx, user, model.ProviderGitHub, "42"); err != nil {
		t.Fatalf("UpsertWithProvider() error = %v", err)
	}

	if user.ID == "" {
		t.Error("UpsertWithProvider() did not set user.ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("UpsertWithProvider() did not set user.CreatedAt")
	}

	providers, err := db.providersFor(ctx, user.ID)
	if err != nil {
		t.Fatalf("providersFor() error = %v", err)
	}
	if len(providers) != 1 || providers[0].Provider != model.ProviderGitHub || providers[0].ProviderID != "42" {
		t.Errorf("providers = %+v, want one GITHUB link with id 42", providers)
	}
}

func TestUpsertWithProvider_ExistingEmailKeepsID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := createTestUser(t, db, "same@example.com")

	again := &model.User{Name: "Renamed", Email: "same@example.com"}
	if err := db.UpsertWithProvider(ctx, again, model.ProviderGitHub, "gh-same@example.com"); err != nil {
		t.Fatalf("second UpsertWithProvider() error = %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("second login ID = %q, want %q", again.ID, first.ID)
	}
	if again.Name != first.Name {
		t.Errorf("existing profile should be returned, got name %q", again.Name)
	}

	providers, err := db.providersFor(ctx, first.ID)
	if err != nil {
		t.Fatalf("providersFor() error = %v", err)
	}
	if len(providers) != 1 {
		t.Errorf("repeated login with the same provider created %d links, want 1", len(providers))
	}
}

func TestUpsertWithProvider_SecondProviderAddsLink(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := createTestUser(t, db, "both@example.com")

	viaGoogle := &model.User{Name: "Both", Email: "both@example.com"}
	if err := db.UpsertWithProvider(ctx, viaGoogle, model.ProviderGoogle, "g-1"); err != nil {
		t.Fatalf("UpsertWithProvider(google) error = %v", err)
	}
	if viaGoogle.ID != first.ID {
		t.Errorf("google login ID = %q, want %q", viaGoogle.ID, first.ID)
	}

	providers, _ := db.providersFor(ctx, first.ID)
	if len(providers) != 2 {
		t.Fatalf("got %d provider links, want 2", len(providers))
	}
}

// =========================================================================
// GET TESTS
// =========================================================================

func TestGetUserByID(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "get@example.com")

	got, err := db.GetUserByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if got.Email != "get@example.com" {
		t.Errorf("Email = %q, want %q", got.Email, "get@example.com")
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByID(context.Background(), "nonexistent")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}

// providersFor lists the providers linked to a user, in link order.
func (db *DB) providersFor(ctx context.Context, userID string) ([]model.AuthProvider, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, provider, provider_id, created_at, updated_at
		 FROM user_auth_providers WHERE user_id = ? ORDER BY created_at, id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing providers for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []model.AuthProvider
	for rows.Next() {
		var p model.AuthProvider
		var provider string
		if err := rows.Scan(&p.ID, &p.UserID, &provider, &p.ProviderID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning provider: %w", err)
		}
		p.Provider = model.Provider(provider)
		out = append(out, p)
	}
	return out, rows.Err()
}
