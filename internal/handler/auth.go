package handler

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/sakif/cliplet/internal/apperror"
	"github.com/sakif/cliplet/internal/auth"
	"github.com/sakif/cliplet/internal/model"
	"github.com/sakif/cliplet/internal/service"
)

const (
	stateCookieName = "oauth_state"
	stateCookieTTL  = 600 // seconds
)

// AuthHandler manages the OAuth sign-in flow and the session cookie.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin    → redirect the browser to the provider's consent page
//   - HandleCallback → check state, let AuthService log the user in, set the cookie
//   - HandleLogout   → clear the cookie
//   - HandleMe       → return the signed-in user's profile
//
// The {provider} route segment ("github" or "google") picks the provider.
type AuthHandler struct {
	auth         *service.AuthService
	secureCookie bool
	logger       *slog.Logger
}

func NewAuthHandler(svc *service.AuthService, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:         svc,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

func providerParam(r *http.Request) (model.Provider, error) {
	name := chi.URLParam(r, "provider")
	p, err := model.ParseProvider(name)
	if err != nil {
		return "", apperror.NotFound("auth provider", name)
	}
	return p, nil
}

// HandleLogin redirects the user to the provider.
//
// HTTP: GET /api/auth/{provider}
//
// CSRF PROTECTION VIA STATE:
// A random state value is stored in a short-lived HttpOnly cookie and sent to
// the provider, which echoes it back on the callback. A callback whose state
// does not match the cookie was not started by this browser.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	provider, err := providerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	state := xid.New().String()
	target, err := h.auth.AuthURL(provider, state)
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   stateCookieTTL,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

// HandleCallback completes the OAuth login flow.
//
// HTTP: GET /api/auth/{provider}/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. AuthService exchanges the code, upserts the user and issues a JWT
//  3. The JWT goes into the auth_token cookie
//  4. Redirect to the app home page
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	provider, err := providerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || q.Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch", slog.String("provider", string(provider)))
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	// single use
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
	})

	// The user declined on the provider's page.
	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("auth callback: authorization denied",
			slog.String("provider", string(provider)),
			slog.String("error", errParam),
		)
		http.Redirect(w, r, "/auth/sign-in?error="+url.QueryEscape(errParam), http.StatusSeeOther)
		return
	}

	code := q.Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "OAuth code was not found"))
		return
	}

	result, err := h.auth.Login(r.Context(), provider, code)
	if err != nil {
		h.logger.Error("auth callback: login failed",
			slog.String("provider", string(provider)),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	http.SetCookie(w, auth.SessionCookie(result.Token, h.secureCookie))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /api/auth/logout
//
// Sessions are stateless, so the token itself stays valid until it expires;
// without the cookie the browser simply stops sending it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, auth.ClearSessionCookie(h.secureCookie))
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/me (behind RequireAuth)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request, userID string) {
	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
