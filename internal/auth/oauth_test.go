package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/sakif/cliplet/internal/model"
)

// fakeProviderServer answers the token endpoint plus whatever profile routes
// the test registers.
func fakeProviderServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error":"bad_verification_code"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token":"provider-token","token_type":"bearer"}`)
	})
	for path, body := range routes {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer provider-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, body)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testEndpoint(srv *httptest.Server) oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   srv.URL + "/authorize",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

func newTestGitHub(srv *httptest.Server) *GitHubProvider {
	p := NewGitHubProvider("gh-id", "gh-secret", "http://localhost/api/auth/github/callback")
	p.config.Endpoint = testEndpoint(srv)
	p.apiBase = srv.URL
	return p
}

func newTestGoogle(srv *httptest.Server) *GoogleProvider {
	p := NewGoogleProvider("g-id", "g-secret", "http://localhost/api/auth/google/callback")
	p.config.Endpoint = testEndpoint(srv)
	p.apiBase = srv.URL + "/"
	return p
}

// =========================================================================
// GITHUB
// =========================================================================

func TestGitHubAuthURL_CarriesState(t *testing.T) {
	p := NewGitHubProvider("gh-id", "gh-secret", "http://localhost/cb")

	u, err := url.Parse(p.AuthURL("state-123"))
	require.NoError(t, err)
	assert.Equal(t, "github.com", u.Host)
	assert.Equal(t, "state-123", u.Query().Get("state"))
	assert.Equal(t, "gh-id", u.Query().Get("client_id"))
}

func TestGitHubExchange_PrimaryVerifiedEmail(t *testing.T) {
	srv := fakeProviderServer(t, map[string]string{
		"/user": `{"id":42,"login":"octocat","name":"The Octocat","avatar_url":"https://a/42"}`,
		"/user/emails": `[
			{"email":"old@example.com","primary":false,"verified":true},
			{"email":"octo@example.com","primary":true,"verified":true}
		]`,
	})

	id, err := newTestGitHub(srv).Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, model.ProviderGitHub, id.Provider)
	assert.Equal(t, "42", id.ProviderID)
	assert.Equal(t, "octo@example.com", id.Email)
	assert.Equal(t, "The Octocat", id.Name)
	assert.Equal(t, "https://a/42", id.AvatarURL)
}

func TestGitHubExchange_NameFallsBackToLogin(t *testing.T) {
	srv := fakeProviderServer(t, map[string]string{
		"/user":        `{"id":7,"login":"noname","name":null}`,
		"/user/emails": `[{"email":"n@example.com","primary":true,"verified":true}]`,
	})

	id, err := newTestGitHub(srv).Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "noname", id.Name)
}

func TestGitHubExchange_UnverifiedEmailRejected(t *testing.T) {
	srv := fakeProviderServer(t, map[string]string{
		"/user":        `{"id":7,"login":"x"}`,
		"/user/emails": `[{"email":"x@example.com","primary":true,"verified":false}]`,
	})

	_, err := newTestGitHub(srv).Exchange(context.Background(), "good-code")
	assert.True(t, errors.Is(err, ErrProfileIncomplete), "got %v", err)
}

func TestGitHubExchange_BadCode(t *testing.T) {
	srv := fakeProviderServer(t, nil)

	_, err := newTestGitHub(srv).Exchange(context.Background(), "bad-code")
	assert.Error(t, err)
}

// =========================================================================
// GOOGLE
// =========================================================================

func TestGoogleExchange(t *testing.T) {
	srv := fakeProviderServer(t, map[string]string{
		"/oauth2/v2/userinfo": `{"id":"g-99","email":"g@example.com","verified_email":true,"name":"Gee","picture":"https://p/99"}`,
	})

	id, err := newTestGoogle(srv).Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, model.ProviderGoogle, id.Provider)
	assert.Equal(t, "g-99", id.ProviderID)
	assert.Equal(t, "g@example.com", id.Email)
	assert.Equal(t, "Gee", id.Name)
}

func TestGoogleExchange_UnverifiedEmailRejected(t *testing.T) {
	srv := fakeProviderServer(t, map[string]string{
		"/oauth2/v2/userinfo": `{"id":"g-1","email":"g@example.com","verified_email":false,"name":"Gee"}`,
	})

	_, err := newTestGoogle(srv).Exchange(context.Background(), "good-code")
	assert.True(t, errors.Is(err, ErrProfileIncomplete), "got %v", err)
}

func TestGoogleAuthURL(t *testing.T) {
	p := NewGoogleProvider("g-id", "g-secret", "http://localhost/cb")

	u, err := url.Parse(p.AuthURL("s"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Contains(t, u.Query().Get("scope"), "userinfo.email")
}
