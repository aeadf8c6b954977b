package auth

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// CookieName is the session cookie set by the OAuth callbacks.
const CookieName = "auth_token"

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// A plain string key could be read or shadowed by any package using the same
// string. Only this package can build a contextKey, so only this package can
// read or write the user id.
type contextKey string

const userIDKey contextKey = "userID"

// SessionCookie wraps a signed token in the session cookie.
//
// HttpOnly keeps it away from JavaScript, SameSite=Lax stops it riding along
// on cross-site POSTs, and Secure is on whenever the site is served over HTTPS.
func SessionCookie(token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearSessionCookie tells the browser to drop the session cookie.
func ClearSessionCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// RequireAuth guards API routes.
//
// It reads the JWT from the "auth_token" cookie, validates it, and stores the
// user id in the request context. A missing, tampered or expired token ends
// the request with 401 and a JSON error body.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns a new one that wraps it.
// Chi applies them as a chain: req → M1 → M2 → Handler → M2 → M1 → resp.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				writeUnauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuthRedirect guards HTML pages: instead of a 401 the browser is sent
// to loginPath.
func RequireAuthRedirect(tokens *TokenService, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth records the user when a valid token is present and never
// blocks. The sign-in page uses it to bounce users who are already signed in.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, err := extractUserID(r, tokens); err == nil && userID != "" {
				ctx := context.WithValue(r.Context(), userIDKey, userID)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext returns the authenticated user's id, or ("", false) for
// an anonymous request.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// UserHandlerFunc is a handler that has already been given the caller's id.
type UserHandlerFunc func(w http.ResponseWriter, r *http.Request, userID string)

// UserIDHandlerFunc additionally receives one route parameter, typically the
// id of the resource being addressed.
type UserIDHandlerFunc func(w http.ResponseWriter, r *http.Request, userID, id string)

// WithUser adapts fn to http.HandlerFunc. It must sit behind RequireAuth;
// without an authenticated user it answers 401.
func WithUser(fn UserHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			writeUnauthorized(w)
			return
		}
		fn(w, r, userID)
	}
}

// WithUserAndID is WithUser for routes carrying the chi URL parameter param.
func WithUserAndID(param string, fn UserIDHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			writeUnauthorized(w)
			return
		}
		fn(w, r, userID, chi.URLParam(r, param))
	}
}

// extractUserID reads the session cookie and validates it.
func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", err
	}

	return tokens.Validate(cookie.Value)
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}` + "\n"))
}
