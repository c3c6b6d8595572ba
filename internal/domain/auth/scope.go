package auth

import (
	"strings"
	"unicode"
)

// Scopes used by the catalog routes.
const (
	ScopeReadMovies       = "read:movies"
	ScopeCreateMovies     = "create:movies"
	ScopeUpdateMovies     = "update:movies"
	ScopeDeleteMovies     = "delete:movies"
	ScopeReadUserMovies   = "read:user-movies"
	ScopeCreateUserMovies = "create:user-movies"
	ScopeDeleteUserMovies = "delete:user-movies"
	ScopeSignIn           = "signin:auth"
	ScopeSignUp           = "signup:auth"
)

// NormalizeScope removes every whitespace rune from s, so "read: movies"
// and "read:movies" compare equal. Case is preserved.
func NormalizeScope(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Authorize allows the request only when every required scope is present in
// granted, compared after normalization. It returns an ErrForbidden failure
// naming the first missing scope. A required scope that is blank after
// normalization can never be satisfied.
func Authorize(required, granted []string) error {
	have := make(map[string]struct{}, len(granted))
	for _, s := range granted {
		if n := NormalizeScope(s); n != "" {
			have[n] = struct{}{}
		}
	}
	for _, s := range required {
		n := NormalizeScope(s)
		if n == "" {
			return Forbidden("invalid required scope")
		}
		if _, ok := have[n]; !ok {
			return Forbidden("missing scope " + n)
		}
	}
	return nil
}
