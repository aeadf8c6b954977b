package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/sakif/cliplet/internal/model"
)

// Identity is what a provider tells us about the person signing in.
type Identity struct {
	Provider   model.Provider
	ProviderID string
	Email      string
	Name       string
	AvatarURL  string
}

// Provider is one OAuth 2.0 Authorization Code integration.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
//  1. We redirect the browser to the provider with our client id and scopes.
//  2. The user approves on the provider's site.
//  3. The provider redirects back to our callback with a short-lived "code".
//  4. We exchange the code for an access token (server-to-server, using the
//     client secret, which never reaches the browser).
//  5. We call the provider's API with that token to read the profile.
type Provider interface {
	Name() model.Provider
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
}

// ErrProfileIncomplete means the provider did not return a usable email or name.
var ErrProfileIncomplete = errors.New("auth: provider profile incomplete")

// =========================================================================
// GITHUB
// =========================================================================

// gitHubUser is the portion of the GitHub /user response we read.
// GitHub API docs: https://docs.github.com/en/rest/users/users#get-the-authenticated-user
type gitHubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

type gitHubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// GitHubProvider wraps golang.org/x/oauth2 for GitHub.
type GitHubProvider struct {
	config  *oauth2.Config
	apiBase string
}

// NewGitHubProvider creates a GitHubProvider with the given credentials.
//
// Scopes we request:
//   - "read:user"  for the profile (id, login, name, avatar)
//   - "user:email" for /user/emails, since the public profile email may be hidden
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiBase: "https://api.github.com",
	}
}

func (p *GitHubProvider) Name() model.Provider { return model.ProviderGitHub }

// AuthURL returns the URL to redirect the user to for authorization.
// state is echoed back on the callback and checked against a cookie (CSRF).
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the code for a token, then reads /user and /user/emails.
// Only a primary, verified address is accepted. When the profile has no
// display name the login is used instead.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging GitHub code: %w", err)
	}

	// config.Client adds "Authorization: Bearer <token>" to every request.
	client := p.config.Client(ctx, tok)

	var u gitHubUser
	if err := p.getJSON(ctx, client, "/user", &u); err != nil {
		return nil, err
	}
	if u.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	var emails []gitHubEmail
	if err := p.getJSON(ctx, client, "/user/emails", &emails); err != nil {
		return nil, err
	}

	email := ""
	for _, e := range emails {
		if e.Primary && e.Verified {
			email = e.Email
			break
		}
	}
	if email == "" {
		return nil, fmt.Errorf("%w: no verified primary email on GitHub account %s", ErrProfileIncomplete, u.Login)
	}

	name := strings.TrimSpace(u.Name)
	if name == "" {
		name = u.Login
	}
	if name == "" {
		return nil, fmt.Errorf("%w: GitHub account %d has no name", ErrProfileIncomplete, u.ID)
	}

	return &Identity{
		Provider:   model.ProviderGitHub,
		ProviderID: strconv.FormatInt(u.ID, 10),
		Email:      email,
		Name:       name,
		AvatarURL:  u.AvatarURL,
	}, nil
}

func (p *GitHubProvider) getJSON(ctx context.Context, client *http.Client, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("auth: building GitHub %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("auth: calling GitHub %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: GitHub %s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("auth: decoding GitHub %s: %w", path, err)
	}
	return nil
}

// =========================================================================
// GOOGLE
// =========================================================================

// GoogleProvider signs users in with Google. The profile is read through the
// generated oauth2/v2 userinfo client.
type GoogleProvider struct {
	config  *oauth2.Config
	apiBase string // empty means the library default
}

func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes: []string{
				googleoauth2.UserinfoEmailScope,
				googleoauth2.UserinfoProfileScope,
			},
			Endpoint: google.Endpoint,
		},
	}
}

func (p *GoogleProvider) Name() model.Provider { return model.ProviderGoogle }

func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the code for a token and reads the userinfo endpoint.
// Unverified addresses are rejected.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging Google code: %w", err)
	}

	opts := []option.ClientOption{option.WithTokenSource(p.config.TokenSource(ctx, tok))}
	if p.apiBase != "" {
		opts = append(opts, option.WithEndpoint(p.apiBase))
	}

	svc, err := googleoauth2.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("auth: creating Google userinfo client: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("auth: fetching Google userinfo: %w", err)
	}

	if info.Email == "" || (info.VerifiedEmail != nil && !*info.VerifiedEmail) {
		return nil, fmt.Errorf("%w: Google account %s has no verified email", ErrProfileIncomplete, info.Id)
	}
	name := strings.TrimSpace(info.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: Google account %s has no name", ErrProfileIncomplete, info.Id)
	}

	return &Identity{
		Provider:   model.ProviderGoogle,
		ProviderID: info.Id,
		Email:      info.Email,
		Name:       name,
		AvatarURL:  info.Picture,
	}, nil
}
