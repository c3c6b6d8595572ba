package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// PasswordVerifier checks an email and password pair against a
// CredentialStore.
type PasswordVerifier struct {
	users  CredentialStore
	hasher PasswordHasher
}

// NewPasswordVerifier creates a PasswordVerifier.
func NewPasswordVerifier(users CredentialStore, hasher PasswordHasher) *PasswordVerifier {
	return &PasswordVerifier{users: users, hasher: hasher}
}

// Verify returns the identity of the user owning email when password matches
// the stored hash. Unknown users and wrong passwords are both reported as
// ErrUnauthorized with the same message.
func (v *PasswordVerifier) Verify(ctx context.Context, email, password string) (Identity, error) {
	if email == "" || password == "" {
		return Identity{}, Unauthorized("invalid credentials")
	}

	cred, err := v.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Identity{}, Unauthorized("invalid credentials")
		}
		return Identity{}, errors.Wrap(err, "find user")
	}

	if err := v.hasher.Compare(cred.PasswordHash, password); err != nil {
		return Identity{}, Unauthorized("invalid credentials")
	}

	return cred.Identity, nil
}
