// Package bridge provides the ephemeral store backing the OAuth
// authorization bridge: one-time bridge codes and pending authorization
// requests, both with short TTLs.
package bridge

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when an entry does not exist or was already
	// consumed. The two cases are deliberately not distinguished.
	ErrNotFound = errors.New("bridge: entry not found")

	// ErrExpired is returned when an entry outlived its issuance window.
	ErrExpired = errors.New("bridge: entry expired")
)

// CodeEntry is the payload bound to a one-time bridge code.
type CodeEntry struct {
	AccessToken string    `json:"access_token"`
	Scope       string    `json:"scope"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// PendingAuth captures an authorize request until the upstream provider
// calls back, so the callback can recover the relying party's redirect
// target. Keyed by the relying party's state parameter.
type PendingAuth struct {
	ClientID    string    `json:"client_id"`
	RedirectURI string    `json:"redirect_uri"`
	Scope       string    `json:"scope"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store holds bridge codes and pending authorizations. Take operations are
// atomic: two concurrent takes of the same key yield exactly one success.
type Store interface {
	// PutCode stores a bridge code entry with the given TTL.
	PutCode(ctx context.Context, code string, entry CodeEntry, ttl time.Duration) error

	// TakeCode consumes a bridge code. A code can be taken at most once;
	// expired codes are purged and reported as ErrExpired.
	TakeCode(ctx context.Context, code string) (CodeEntry, error)

	// PutPending stores a pending authorization with the given TTL.
	PutPending(ctx context.Context, state string, pending PendingAuth, ttl time.Duration) error

	// TakePending consumes a pending authorization.
	TakePending(ctx context.Context, state string) (PendingAuth, error)

	// Close releases any resources held by the store.
	Close() error
}
