// Package identity issues the opaque per-page identities comment authors
// post under. Identities are anonymous by default; a pre-provisioned
// custom token can be exchanged for a fixed UID instead.
package identity

import (
	"context"
	"errors"
	"time"
)

// Identity is an opaque, unverified author identity.
type Identity struct {
	UID       string    `json:"uid"`
	Anonymous bool      `json:"anonymous"`
	IssuedAt  time.Time `json:"issuedAt"`
}

// Provider is the per-page identity collaborator. Implementations deliver
// at most one resolved identity per change event.
type Provider interface {
	ExchangeToken(ctx context.Context, token string) (Identity, error)
	AcquireAnonymous(ctx context.Context) (Identity, error)
	// OnIdentityChange registers fn for change events. fn receives nil
	// when the provider resolved without an identity.
	OnIdentityChange(fn func(*Identity)) (unsubscribe func())
}

// Record is what registries persist for an issued identity.
type Record struct {
	UID       string    `json:"uid"`
	Anonymous bool      `json:"anonymous"`
	CreatedAt time.Time `json:"created_at"`
}

// Registry persists issued identities until they expire.
type Registry interface {
	SaveIdentity(ctx context.Context, record Record, expiresAt time.Time) error
	LookupIdentity(ctx context.Context, uid string) (Record, error)
	Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("identity not found")
