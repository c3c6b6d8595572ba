package auth

import (
	"context"
	"net/http"
	"strings"
)

// Strategy authenticates an inbound request.
type Strategy interface {
	Authenticate(ctx context.Context, req *Request) (*Principal, error)
}

// PasswordStrategy authenticates requests carrying Basic credentials. The
// returned principal has no scopes.
type PasswordStrategy struct {
	verifier *PasswordVerifier
}

// NewPasswordStrategy creates a PasswordStrategy.
func NewPasswordStrategy(v *PasswordVerifier) *PasswordStrategy {
	return &PasswordStrategy{verifier: v}
}

// Authenticate verifies the Basic credentials of req.
func (s *PasswordStrategy) Authenticate(ctx context.Context, req *Request) (*Principal, error) {
	// http.Request.BasicAuth does the header parsing.
	r := http.Request{Header: req.Header}
	email, password, ok := r.BasicAuth()
	if !ok {
		return nil, Unauthorized("basic credentials required")
	}

	id, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return &Principal{Identity: id, Scopes: []string{}}, nil
}

// BearerStrategy authenticates requests carrying a bearer token.
type BearerStrategy struct {
	verifier *Verifier
}

// NewBearerStrategy creates a BearerStrategy.
func NewBearerStrategy(v *Verifier) *BearerStrategy {
	return &BearerStrategy{verifier: v}
}

// Authenticate verifies the bearer token of req.
func (s *BearerStrategy) Authenticate(ctx context.Context, req *Request) (*Principal, error) {
	token, ok := BearerToken(req.Header)
	if !ok {
		return nil, Unauthorized("bearer token required")
	}
	return s.verifier.Verify(ctx, token)
}

// BearerToken extracts the token from an "Authorization: Bearer" header. The
// scheme is matched case-insensitively.
func BearerToken(h http.Header) (string, bool) {
	scheme, token, ok := strings.Cut(h.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
