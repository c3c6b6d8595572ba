// Package handler implements the HTTP API on net/http.
package handler

import (
	"context"
	"net/http"

	"github.com/xenking/movies-api/internal/domain/auth"
	"github.com/xenking/movies-api/internal/domain/movie"
	"github.com/xenking/movies-api/internal/domain/usermovie"
)

// Cache lifetimes for catalog reads.
const (
	listMaxAge = 5 * 60
	getMaxAge  = 60 * 60
)

// AuthService runs sign-in and sign-up.
type AuthService interface {
	SignIn(ctx context.Context, req *auth.Request, apiKeyToken string) (*auth.SignInResult, error)
	SignUp(ctx context.Context, u auth.NewUser) (*auth.SignUpResult, error)
}

// MovieService manages the catalog.
type MovieService interface {
	List(ctx context.Context, tags []string) ([]movie.Movie, error)
	Get(ctx context.Context, id string) (*movie.Movie, error)
	Create(ctx context.Context, m movie.Movie) (string, error)
	Update(ctx context.Context, id string, patch movie.Patch) (string, error)
	Delete(ctx context.Context, id string) (string, error)
}

// UserMovieService manages saved movie lists.
type UserMovieService interface {
	List(ctx context.Context, userID string) ([]usermovie.UserMovie, error)
	Add(ctx context.Context, userID, movieID string) (string, error)
	Remove(ctx context.Context, userID, id string) (string, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// Dev disables Cache-Control headers on catalog reads.
	Dev bool
}

// Handler serves the API routes.
type Handler struct {
	auth       AuthService
	bearer     auth.Strategy
	movies     MovieService
	userMovies UserMovieService
	dev        bool
}

// New constructs a Handler. bearer authenticates every scoped route.
func New(
	cfg Config,
	authService AuthService,
	bearer auth.Strategy,
	movies MovieService,
	userMovies UserMovieService,
) *Handler {
	return &Handler{
		auth:       authService,
		bearer:     bearer,
		movies:     movies,
		userMovies: userMovies,
		dev:        cfg.Dev,
	}
}

// Register adds the API routes to mux, including the JSON 404 fallback.
func (h *Handler) Register(mux *http.ServeMux) {
	scoped := func(fn http.HandlerFunc, scopes ...string) http.Handler {
		return RequireScopes(h.bearer, scopes...)(fn)
	}

	mux.HandleFunc("POST /api/auth/sign-in", h.signIn)
	mux.HandleFunc("POST /api/auth/sign-up", h.signUp)

	mux.Handle("GET /api/movies", scoped(h.listMovies, auth.ScopeReadMovies))
	mux.Handle("GET /api/movies/{id}", scoped(h.getMovie, auth.ScopeReadMovies))
	mux.Handle("POST /api/movies", scoped(h.createMovie, auth.ScopeCreateMovies))
	mux.Handle("PUT /api/movies/{id}", scoped(h.updateMovie, auth.ScopeUpdateMovies))
	mux.Handle("DELETE /api/movies/{id}", scoped(h.deleteMovie, auth.ScopeDeleteMovies))

	mux.Handle("GET /api/user-movies", scoped(h.listUserMovies, auth.ScopeReadUserMovies))
	mux.Handle("POST /api/user-movies", scoped(h.createUserMovie, auth.ScopeCreateUserMovies))
	mux.Handle("DELETE /api/user-movies/{id}", scoped(h.deleteUserMovie, auth.ScopeDeleteUserMovies))

	mux.HandleFunc("/", notFound)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, errNotFound)
}
