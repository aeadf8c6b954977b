package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/cliplet/internal/apperror"
	"github.com/sakif/cliplet/internal/auth"
	"github.com/sakif/cliplet/internal/model"
	"github.com/sakif/cliplet/internal/repository"
)

// AuthService handles the authentication business logic.
//
//	AuthHandler (HTTP) → AuthService → auth.Provider (GitHub / Google)
//	                                 → UserRepository (DB)
//	                                 → TokenService (JWT)
//
// It never touches cookies or redirects; that is the handler's job.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	providers map[model.Provider]auth.Provider
	logger    *slog.Logger
}

// NewAuthService wires the providers that are configured. A provider left
// out here answers its routes with 404.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	logger *slog.Logger,
	providers ...auth.Provider,
) *AuthService {
	s := &AuthService{
		users:     users,
		tokens:    tokens,
		providers: make(map[model.Provider]auth.Provider, len(providers)),
		logger:    logger,
	}
	for _, p := range providers {
		s.providers[p.Name()] = p
	}
	return s
}

// AuthResult bundles the user record and the issued JWT so the handler can
// set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

func (s *AuthService) provider(name model.Provider) (auth.Provider, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, apperror.NotFound("auth provider", strings.ToLower(string(name)))
	}
	return p, nil
}

// AuthURL returns the provider consent page URL carrying state.
func (s *AuthService) AuthURL(name model.Provider, state string) (string, error) {
	p, err := s.provider(name)
	if err != nil {
		return "", err
	}
	return p.AuthURL(state), nil
}

// Login completes the OAuth callback:
//
//  1. Exchange the code for the provider profile
//  2. Find the user by email, or create it with the provider link
//  3. Issue a session token for the local user id
//
// Any provider failure, including a profile without a verified email, is
// reported as apperror.ErrOAuthExchange.
func (s *AuthService) Login(ctx context.Context, name model.Provider, code string) (*AuthResult, error) {
	p, err := s.provider(name)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(code) == "" {
		return nil, apperror.ValidationFailed("code", "authorization code is required")
	}

	id, err := p.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("oauth exchange failed",
			slog.String("provider", string(name)),
			slog.String("error", err.Error()),
		)
		return nil, apperror.OAuthExchange(providerLabel(name), err)
	}

	user := &model.User{
		Name:      id.Name,
		Email:     id.Email,
		AvatarURL: id.AvatarURL,
	}
	if err := s.users.UpsertWithProvider(ctx, user, id.Provider, id.ProviderID); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (%s %s): %w", id.Provider, id.ProviderID, err)
	}

	s.logger.Info("user authenticated",
		slog.String("userID", user.ID),
		slog.String("provider", string(name)),
	)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID returns the user for the given internal ID.
// Used by /api/me after the guard has extracted the token subject.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.Unauthorized("missing user id")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}

// ValidateToken validates a JWT string and returns the userID it encodes.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", apperror.Unauthorized(err.Error())
	}
	return userID, nil
}

func providerLabel(p model.Provider) string {
	switch p {
	case model.ProviderGitHub:
		return "GitHub"
	case model.ProviderGoogle:
		return "Google"
	}
	return string(p)
}
