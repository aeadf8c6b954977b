// Package handler contains the HTTP request handlers.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming HTTP request (query params, body, route params)
//  2. Call the service layer
//  3. Write the HTTP response (status code, headers, body)
//
// Handlers hold no business rules; they translate between HTTP and services.
package handler

import (
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/sakif/cliplet/internal/apperror"
	"github.com/sakif/cliplet/internal/auth"
	"github.com/sakif/cliplet/internal/model"
	"github.com/sakif/cliplet/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

// providerLink is one button on the sign-in page.
type providerLink struct {
	Slug  string
	Label string
}

// PageHandler serves the two HTML pages: the sign-in page and the home page.
//
// Each page is parsed once at startup together with base.html, which holds
// the layout and pulls the page in through {{template "content" .}}.
type PageHandler struct {
	signIn    *template.Template
	home      *template.Template
	providers []providerLink
	users     *service.AuthService
	clips     *service.ClipService
	secure    bool
	logger    *slog.Logger
}

// NewPageHandler parses the embedded templates. enabled lists the providers
// that get a button on the sign-in page. secureCookie matches the flag the
// session cookie was set with.
func NewPageHandler(users *service.AuthService, clips *service.ClipService, enabled []model.Provider, secureCookie bool, logger *slog.Logger) (*PageHandler, error) {
	signIn, err := template.ParseFS(templateFS, "templates/base.html", "templates/sign_in.html")
	if err != nil {
		return nil, err
	}
	home, err := template.ParseFS(templateFS, "templates/base.html", "templates/home.html")
	if err != nil {
		return nil, err
	}

	links := make([]providerLink, 0, len(enabled))
	for _, p := range enabled {
		switch p {
		case model.ProviderGitHub:
			links = append(links, providerLink{Slug: "github", Label: "GitHub"})
		case model.ProviderGoogle:
			links = append(links, providerLink{Slug: "google", Label: "Google"})
		}
	}

	return &PageHandler{
		signIn:    signIn,
		home:      home,
		providers: links,
		users:     users,
		clips:     clips,
		secure:    secureCookie,
		logger:    logger,
	}, nil
}

// HandleSignIn serves the sign-in page. A visitor who already holds a valid
// session is sent home instead.
//
// HTTP: GET /auth/sign-in (behind OptionalAuth)
func (h *PageHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserIDFromContext(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.render(w, h.signIn, map[string]any{
		"Title":     "Sign in · Cliplet",
		"Providers": h.providers,
		"Error":     r.URL.Query().Get("error"),
	})
}

// HandleHome serves the signed-in landing page with the newest clips.
//
// HTTP: GET / (behind RequireAuthRedirect)
func (h *PageHandler) HandleHome(w http.ResponseWriter, r *http.Request, userID string) {
	user, err := h.users.GetUserByID(r.Context(), userID)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		// The account behind a still-valid token is gone.
		http.SetCookie(w, auth.ClearSessionCookie(h.secure))
		http.Redirect(w, r, "/auth/sign-in", http.StatusSeeOther)
		return
	case err != nil:
		h.logger.Error("home: loading user failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	clips, err := h.clips.ListClips(r.Context(), userID, "", string(model.SortNewest))
	if err != nil {
		h.logger.Error("home: listing clips failed", slog.String("error", err.Error()))
		clips = nil
	}

	h.render(w, h.home, map[string]any{
		"Title": "Cliplet",
		"User":  user,
		"Clips": clips,
	})
}

func (h *PageHandler) render(w http.ResponseWriter, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render template", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
