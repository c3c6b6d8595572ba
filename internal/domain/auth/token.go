package auth

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the fixed lifetime of every issued token.
const TokenTTL = 15 * time.Minute

// Claims is the payload of an issued token.
type Claims struct {
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Scopes []string `json:"scopes"`
	jwt.RegisteredClaims
}

// Issuer signs tokens with an HMAC secret.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// NewIssuer creates an Issuer signing with secret.
func NewIssuer(secret []byte) *Issuer {
	return &Issuer{secret: secret, now: time.Now}
}

// Issue signs a token for id carrying a copy of scopes. The token expires
// TokenTTL after issuance.
func (i *Issuer) Issue(id Identity, scopes []string) (string, *Claims, error) {
	now := i.now().Truncate(time.Second)
	claims := &Claims{
		Name:   id.Name,
		Email:  id.Email,
		Scopes: slices.Clone(scopes),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	if claims.Scopes == nil {
		claims.Scopes = []string{}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", nil, errors.Wrap(err, "sign token")
	}
	return signed, claims, nil
}

// Verifier validates tokens produced by an Issuer sharing the same secret.
type Verifier struct {
	secret []byte
	users  CredentialStore
	now    func() time.Time
}

// NewVerifier creates a Verifier. users is used to refresh the display
// fields of the token subject.
func NewVerifier(secret []byte, users CredentialStore) *Verifier {
	return &Verifier{secret: secret, users: users, now: time.Now}
}

// Parse checks the signature and expiry of token and returns its claims.
func (v *Verifier) Parse(token string) (*Claims, error) {
	if token == "" {
		return nil, Unauthorized("missing token")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &Error{Kind: ErrUnauthorized, Message: "token expired", Err: err}
		}
		return nil, &Error{Kind: ErrUnauthorized, Message: "invalid token", Err: err}
	}
	if claims.Email == "" || claims.Subject == "" {
		return nil, Unauthorized("invalid token")
	}
	return claims, nil
}

// Verify validates token and resolves its subject. The returned principal
// carries the current name and email of the user but only the scopes
// embedded in the token.
func (v *Verifier) Verify(ctx context.Context, token string) (*Principal, error) {
	claims, err := v.Parse(token)
	if err != nil {
		return nil, err
	}

	cred, err := v.users.FindByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, unauthorizedCause(err)
		}
		return nil, errors.Wrap(err, "find token subject")
	}
	if cred.ID != claims.Subject {
		return nil, Unauthorized("invalid token")
	}

	scopes := slices.Clone(claims.Scopes)
	if scopes == nil {
		scopes = []string{}
	}
	return &Principal{Identity: cred.Identity, Scopes: scopes}, nil
}
