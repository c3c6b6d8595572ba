package movie

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Service encapsulates catalog business logic.
type Service struct {
	movies Repository
}

// NewService creates a movie Service backed by movies.
func NewService(movies Repository) *Service {
	return &Service{movies: movies}
}

// List returns movies tagged with any of tags, or all movies.
func (s *Service) List(ctx context.Context, tags []string) ([]Movie, error) {
	movies, err := s.movies.List(ctx, tags)
	if err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}
	if movies == nil {
		movies = []Movie{}
	}
	return movies, nil
}

// Get returns the movie with id.
func (s *Service) Get(ctx context.Context, id string) (*Movie, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	m, err := s.movies.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get movie: %w", err)
	}
	return m, nil
}

// Create validates m, assigns it a new id and stores it.
func (s *Service) Create(ctx context.Context, m Movie) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	m.ID = uuid.New().String()
	if err := s.movies.Create(ctx, &m); err != nil {
		return "", fmt.Errorf("create movie: %w", err)
	}
	return m.ID, nil
}

// Update applies the fields set in patch to the movie with id. The merged
// movie must pass the same checks as a new one.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}

	current, err := s.movies.GetByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get movie: %w", err)
	}

	updated := Merge(*current, patch)
	updated.ID = id
	if err := updated.Validate(); err != nil {
		return "", err
	}
	if err := s.movies.Update(ctx, &updated); err != nil {
		return "", fmt.Errorf("update movie: %w", err)
	}
	return id, nil
}

// Delete removes the movie with id.
func (s *Service) Delete(ctx context.Context, id string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	if err := s.movies.Delete(ctx, id); err != nil {
		return "", fmt.Errorf("delete movie: %w", err)
	}
	return id, nil
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return &ValidationError{Field: "id", Reason: "must be a UUID"}
	}
	return nil
}
