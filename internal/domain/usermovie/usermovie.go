// Package usermovie manages the movies a user has saved to their list.
package usermovie

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/xenking/movies-api/internal/domain/movie"
)

// ErrNotFound is returned when a saved entry does not exist for the user.
var ErrNotFound = fmt.Errorf("user movie not found")

// UserMovie links a user to a saved movie.
type UserMovie struct {
	ID      string
	UserID  string
	MovieID string
}

// Repository defines persistence operations for saved movies.
type Repository interface {
	List(ctx context.Context, userID string) ([]UserMovie, error)
	Create(ctx context.Context, um *UserMovie) error
	// Delete removes the entry with id owned by userID, returning ErrNotFound
	// when there is none.
	Delete(ctx context.Context, userID, id string) error
}

// Service encapsulates the saved movie list logic.
type Service struct {
	items  Repository
	movies movie.Repository
}

// NewService creates a usermovie Service.
func NewService(items Repository, movies movie.Repository) *Service {
	return &Service{items: items, movies: movies}
}

// List returns the movies saved by userID.
func (s *Service) List(ctx context.Context, userID string) ([]UserMovie, error) {
	items, err := s.items.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user movies: %w", err)
	}
	if items == nil {
		items = []UserMovie{}
	}
	return items, nil
}

// Add saves movieID to the list of userID. The movie must exist.
func (s *Service) Add(ctx context.Context, userID, movieID string) (string, error) {
	if _, err := uuid.Parse(movieID); err != nil {
		return "", &movie.ValidationError{Field: "movieId", Reason: "must be a UUID"}
	}
	if _, err := s.movies.GetByID(ctx, movieID); err != nil {
		return "", fmt.Errorf("get movie: %w", err)
	}

	um := UserMovie{ID: uuid.New().String(), UserID: userID, MovieID: movieID}
	if err := s.items.Create(ctx, &um); err != nil {
		return "", fmt.Errorf("create user movie: %w", err)
	}
	return um.ID, nil
}

// Remove deletes the entry id from the list of userID.
func (s *Service) Remove(ctx context.Context, userID, id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", &movie.ValidationError{Field: "id", Reason: "must be a UUID"}
	}
	if err := s.items.Delete(ctx, userID, id); err != nil {
		return "", fmt.Errorf("delete user movie: %w", err)
	}
	return id, nil
}
