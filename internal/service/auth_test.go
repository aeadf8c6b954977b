package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sakif/cliplet/internal/apperror"
	"github.com/sakif/cliplet/internal/auth"
	"github.com/sakif/cliplet/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository keyed by email,
// which is how the real backends resolve accounts.
type fakeUserRepo struct {
	users   map[string]*model.User // keyed by internal ID
	byEmail map[string]*model.User
	links   map[string]bool // "<userID>/<provider>"
	nextID  int

	upsertErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:   make(map[string]*model.User),
		byEmail: make(map[string]*model.User),
		links:   make(map[string]bool),
	}
}

func (f *fakeUserRepo) UpsertWithProvider(_ context.Context, user *model.User, provider model.Provider, _ string) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if existing, ok := f.byEmail[user.Email]; ok {
		*user = *existing
	} else {
		f.nextID++
		user.ID = fmt.Sprintf("user-%d", f.nextID)
		user.CreatedAt = time.Now()
		user.UpdatedAt = user.CreatedAt
		stored := *user
		f.users[user.ID] = &stored
		f.byEmail[user.Email] = &stored
	}
	f.links[user.ID+"/"+string(provider)] = true
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	result := *u
	return &result, nil
}

// fakeProvider returns a fixed identity for code "good".
type fakeProvider struct {
	name     model.Provider
	identity auth.Identity
}

func (p *fakeProvider) Name() model.Provider { return p.name }

func (p *fakeProvider) AuthURL(state string) string {
	return "https://provider.test/authorize?state=" + state
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*auth.Identity, error) {
	if code != "good" {
		return nil, errors.New("bad_verification_code")
	}
	id := p.identity
	id.Provider = p.name
	return &id, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAuthService(t *testing.T) (*AuthService, *fakeUserRepo, *auth.TokenService) {
	t.Helper()
	tokens, err := auth.NewTokenService("test-secret-that-is-long-enough-32")
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	repo := newFakeUserRepo()
	gh := &fakeProvider{name: model.ProviderGitHub, identity: auth.Identity{
		ProviderID: "42", Email: "octo@example.com", Name: "Octo Cat",
	}}
	g := &fakeProvider{name: model.ProviderGoogle, identity: auth.Identity{
		ProviderID: "g-1", Email: "octo@example.com", Name: "Octo G",
	}}
	return NewAuthService(repo, tokens, discardLogger(), gh, g), repo, tokens
}

// =========================================================================
// LOGIN
// =========================================================================

func TestLogin_NewUser(t *testing.T) {
	svc, repo, tokens := newTestAuthService(t)

	result, err := svc.Login(context.Background(), model.ProviderGitHub, "good")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.User.ID == "" {
		t.Error("Login() returned a user without an ID")
	}
	if result.User.Email != "octo@example.com" {
		t.Errorf("Email = %q, want %q", result.User.Email, "octo@example.com")
	}
	if !repo.links[result.User.ID+"/GITHUB"] {
		t.Error("Login() did not link the GitHub provider")
	}

	subject, err := tokens.Validate(result.Token)
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if subject != result.User.ID {
		t.Errorf("token subject = %q, want %q", subject, result.User.ID)
	}
}

func TestLogin_SecondProviderSameEmailSameUser(t *testing.T) {
	svc, repo, _ := newTestAuthService(t)
	ctx := context.Background()

	first, err := svc.Login(ctx, model.ProviderGitHub, "good")
	if err != nil {
		t.Fatalf("GitHub Login() error = %v", err)
	}
	second, err := svc.Login(ctx, model.ProviderGoogle, "good")
	if err != nil {
		t.Fatalf("Google Login() error = %v", err)
	}

	if first.User.ID != second.User.ID {
		t.Errorf("user IDs differ: %q vs %q", first.User.ID, second.User.ID)
	}
	if len(repo.users) != 1 {
		t.Errorf("users = %d, want 1", len(repo.users))
	}
	if !repo.links[first.User.ID+"/GOOGLE"] {
		t.Error("Google link missing")
	}
}

func TestLogin_ExchangeFailure(t *testing.T) {
	svc, repo, _ := newTestAuthService(t)

	_, err := svc.Login(context.Background(), model.ProviderGitHub, "bad")
	if !errors.Is(err, apperror.ErrOAuthExchange) {
		t.Fatalf("error = %v, want ErrOAuthExchange", err)
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Message != "GitHub sign-in failed" {
		t.Errorf("message = %q", appErr.Message)
	}
	if len(repo.users) != 0 {
		t.Error("a failed exchange must not create a user")
	}
}

func TestLogin_EmptyCode(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	_, err := svc.Login(context.Background(), model.ProviderGoogle, "  ")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestLogin_UnconfiguredProvider(t *testing.T) {
	tokens, _ := auth.NewTokenService("test-secret-that-is-long-enough-32")
	svc := NewAuthService(newFakeUserRepo(), tokens, discardLogger())

	_, err := svc.Login(context.Background(), model.ProviderGitHub, "good")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if _, err := svc.AuthURL(model.ProviderGitHub, "s"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("AuthURL error = %v, want ErrNotFound", err)
	}
}

func TestLogin_RepositoryError(t *testing.T) {
	svc, repo, _ := newTestAuthService(t)
	dbErr := errors.New("database is locked")
	repo.upsertErr = dbErr

	_, err := svc.Login(context.Background(), model.ProviderGitHub, "good")
	if !errors.Is(err, dbErr) {
		t.Errorf("error = %v, want wrapped %v", err, dbErr)
	}
}

func TestAuthURL(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	u, err := svc.AuthURL(model.ProviderGoogle, "abc")
	if err != nil {
		t.Fatalf("AuthURL() error = %v", err)
	}
	if u != "https://provider.test/authorize?state=abc" {
		t.Errorf("AuthURL() = %q", u)
	}
}

// =========================================================================
// GET USER / VALIDATE TOKEN
// =========================================================================

func TestGetUserByID(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	result, _ := svc.Login(ctx, model.ProviderGitHub, "good")
	user, err := svc.GetUserByID(ctx, result.User.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if user.Name != "Octo Cat" {
		t.Errorf("Name = %q", user.Name)
	}

	if _, err := svc.GetUserByID(ctx, "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("missing user error = %v, want ErrNotFound", err)
	}
	if _, err := svc.GetUserByID(ctx, ""); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("empty id error = %v, want ErrUnauthorized", err)
	}
}

func TestValidateToken(t *testing.T) {
	svc, _, tokens := newTestAuthService(t)

	good, _ := tokens.Generate("user-7")
	if id, err := svc.ValidateToken(good); err != nil || id != "user-7" {
		t.Errorf("ValidateToken(good) = %q, %v", id, err)
	}

	expired, _ := tokens.GenerateWithDuration("user-7", -time.Minute)
	if _, err := svc.ValidateToken(expired); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("ValidateToken(expired) error = %v, want ErrUnauthorized", err)
	}
}
