// Package store is the entity store client: list, create and delete
// world-building records scoped by their owner.
//
// Two backends implement Store:
//   - SupabaseStore talks to a Supabase project over PostgREST; row-level
//     security on the backend enforces ownership.
//   - SQLiteStore keeps records in a local SQLite file and enforces
//     ownership itself.
//
// Every call is attempted exactly once. Nothing is cached here; the
// controller's in-memory list is the only copy.
package store

import (
	"context"
	"fmt"

	"lorebook/internal/lore"
)

// Store is the entity store contract.
type Store interface {
	// List returns every entity owned by ownerID, newest first.
	List(ctx context.Context, ownerID string) ([]lore.Entity, error)
	// Create inserts a draft and returns the persisted entity with its
	// store-assigned id and creation time.
	Create(ctx context.Context, draft lore.Draft) (lore.Entity, error)
	// Delete removes the entity with the given id if the caller can see it.
	// Returns lore.ErrNotFound when nothing was removed.
	Delete(ctx context.Context, id string) error
}

// Credentials identify the caller to a backend.
type Credentials struct {
	UserID      string
	AccessToken string
}

// Principal supplies the caller's credentials for each call. The auth
// manager implements it from the current session.
type Principal interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// PrincipalFunc adapts a function to Principal.
type PrincipalFunc func(ctx context.Context) (Credentials, error)

// Credentials calls f.
func (f PrincipalFunc) Credentials(ctx context.Context) (Credentials, error) {
	return f(ctx)
}

// Unconfigured is the store used when the backend URL or key is missing.
// Every operation fails immediately without touching the network.
type Unconfigured struct {
	Reason string
}

func (u Unconfigured) err() error {
	reason := u.Reason
	if reason == "" {
		reason = "store URL or key not set"
	}
	return fmt.Errorf("%w: %w: %s", lore.ErrStoreUnavailable, lore.ErrMissingCredential, reason)
}

// List always fails.
func (u Unconfigured) List(context.Context, string) ([]lore.Entity, error) {
	return nil, u.err()
}

// Create always fails.
func (u Unconfigured) Create(context.Context, lore.Draft) (lore.Entity, error) {
	return lore.Entity{}, u.err()
}

// Delete always fails.
func (u Unconfigured) Delete(context.Context, string) error {
	return u.err()
}

var (
	_ Store = Unconfigured{}
	_ Store = (*SupabaseStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
