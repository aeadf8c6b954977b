// Package repository declares the data-access contracts the services depend on.
// Backends live in the sqlite and postgres subpackages.
package repository

import (
	"context"

	"github.com/sakif/cliplet/internal/model"
)

// ListOptions narrows a clip listing. A nil Type lists every type.
type ListOptions struct {
	Type  *model.ClipType
	Order model.SortOrder
}

type UserRepository interface {
	// UpsertWithProvider finds the user by email or creates it together with
	// its provider link in one transaction. On return user holds the stored row.
	UpsertWithProvider(ctx context.Context, user *model.User, provider model.Provider, providerID string) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

type ClipRepository interface {
	// CreateClip writes the header and its satellite row atomically and fills
	// in ID and timestamps.
	CreateClip(ctx context.Context, clip *model.Clip) error
	GetClip(ctx context.Context, ownerID, id string) (*model.Clip, error)
	ListClips(ctx context.Context, ownerID string, opts ListOptions) ([]*model.Clip, error)
	// DeleteClip returns apperror.ErrNotFound when nothing owned by ownerID matched.
	DeleteClip(ctx context.Context, ownerID, id string) error
	StorageKeyExists(ctx context.Context, key string) (bool, error)
}

// Store is everything a backend provides.
type Store interface {
	UserRepository
	ClipRepository
	Close() error
}
