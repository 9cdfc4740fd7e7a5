// Package users persists the identity records established by upstream
// logins. Records are keyed by the upstream subject and only ever created
// or refreshed, never deleted.
package users

import (
	"context"
	"errors"

	"github.com/finbridge/finbridge/internal/auth/models"
)

// ErrNotFound is returned when no user exists for the given subject.
var ErrNotFound = errors.New("users: not found")

// Store is the persistent user store consumed by the OAuth callback and
// the protected API.
type Store interface {
	// Upsert creates the user on first login or refreshes the denormalized
	// profile fields on subsequent logins. The existing record is never
	// replaced, only updated.
	Upsert(ctx context.Context, profile *models.UserInfo) (*models.User, error)

	// FindBySub looks up a user by the upstream subject.
	FindBySub(ctx context.Context, sub string) (*models.User, error)

	// Count returns the number of stored users.
	Count(ctx context.Context) (int64, error)

	// Close releases any resources held by the store.
	Close() error
}
