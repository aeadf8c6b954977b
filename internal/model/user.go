// Package model defines the data structures used throughout the application.
package model

import (
	"fmt"
	"time"
)

// User represents a registered user account.
//
// A user is identified by email: signing in with GitHub and later with Google
// using the same verified address lands on the same account, with one
// AuthProvider link per provider. Users are created on first login and never
// deleted in-app.
type User struct {
	ID        string    `json:"id"        db:"id"`
	Name      string    `json:"name"      db:"name"`
	Email     string    `json:"email"     db:"email"`
	AvatarURL string    `json:"avatarUrl" db:"avatar_url"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Provider names an OAuth identity provider. The stored values are upper case
// to match the CHECK constraint on user_auth_providers.provider.
type Provider string

const (
	ProviderGitHub Provider = "GITHUB"
	ProviderGoogle Provider = "GOOGLE"
)

// ParseProvider accepts the lower-case route segment ("github") or the stored form.
func ParseProvider(s string) (Provider, error) {
	switch s {
	case "github", string(ProviderGitHub):
		return ProviderGitHub, nil
	case "google", string(ProviderGoogle):
		return ProviderGoogle, nil
	}
	return "", fmt.Errorf("model: unknown provider %q", s)
}

// AuthProvider links a user to the id a provider issued for them.
type AuthProvider struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Provider   Provider  `json:"provider"`
	ProviderID string    `json:"providerId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
