// Package auth implements the sign-in handshake, bearer token verification
// and the scope gate that protect the catalog API.
package auth

import (
	"context"
	"net/http"
	"slices"
)

// Identity is the public profile of an authenticated principal. It never
// carries secret material.
type Identity struct {
	ID    string
	Name  string
	Email string
}

// Credential is a stored user record. The password hash is only reachable
// through this type; everything handed to callers is an Identity.
type Credential struct {
	Identity
	PasswordHash string
}

// NewUser holds the input for creating a user. Password is the raw password
// on the way in and the hash once it reaches a CredentialStore.
type NewUser struct {
	Name     string
	Email    string
	Password string
}

// APIKey is a secondary secret presented at sign-in. Its scopes are copied
// into every token issued with it.
type APIKey struct {
	ID      string
	OwnerID string
	Name    string
	Scopes  []string
}

// Principal is the identity and granted scopes attached to a single verified
// request.
type Principal struct {
	Identity Identity
	Scopes   []string
}

// Request is the part of an inbound request a Strategy needs.
type Request struct {
	Header http.Header
}

// CredentialStore provides user lookups and creation.
type CredentialStore interface {
	// FindByEmail returns ErrUserNotFound when no user has the email.
	FindByEmail(ctx context.Context, email string) (*Credential, error)
	Exists(ctx context.Context, email string) (bool, error)
	// Create stores u, whose Password is already hashed, and returns the new
	// id. It returns ErrUserExists when the email is taken.
	Create(ctx context.Context, u NewUser) (string, error)
}

// APIKeyStore resolves presented API key tokens.
type APIKeyStore interface {
	// Find returns ErrKeyNotFound for unknown or inactive keys.
	Find(ctx context.Context, token string) (*APIKey, error)
}

// PasswordHasher hashes new passwords and compares presented ones against
// stored hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare returns nil only when password matches hash.
	Compare(hash, password string) error
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by WithPrincipal.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// HasScope reports whether scope was granted to p.
func (p *Principal) HasScope(scope string) bool {
	want := NormalizeScope(scope)
	return slices.ContainsFunc(p.Scopes, func(s string) bool {
		return NormalizeScope(s) == want
	})
}
