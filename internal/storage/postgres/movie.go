package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/movies-api/internal/domain/movie"
)

const (
	movieColumns = `id, title, year, cover, description, duration, content_rating, source, tags, rating`

	listMoviesSQL = `SELECT ` + movieColumns + `
		FROM movies WHERE cardinality($1::text[]) = 0 OR tags && $1::text[]
		ORDER BY title, year`

	getMovieByIDSQL = `SELECT ` + movieColumns + ` FROM movies WHERE id = $1`

	createMovieSQL = `INSERT INTO movies (` + movieColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	updateMovieSQL = `UPDATE movies SET title = $2, year = $3, cover = $4, description = $5,
		duration = $6, content_rating = $7, source = $8, tags = $9, rating = $10
		WHERE id = $1`

	deleteMovieSQL = `DELETE FROM movies WHERE id = $1`

	upsertMovieSQL = `INSERT INTO movies (` + movieColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (title, year) DO UPDATE SET cover = EXCLUDED.cover,
			description = EXCLUDED.description, duration = EXCLUDED.duration,
			content_rating = EXCLUDED.content_rating, source = EXCLUDED.source,
			tags = EXCLUDED.tags, rating = EXCLUDED.rating`
)

var _ movie.Repository = (*MovieRepository)(nil)

var errDuplicateMovie = &movie.ValidationError{Field: "title", Reason: "a movie with this title and year already exists"}

// MovieRepository implements movie.Repository backed by PostgreSQL.
type MovieRepository struct {
	pool *pgxpool.Pool
}

// NewMovieRepository returns a MovieRepository that uses the given pool.
func NewMovieRepository(pool *pgxpool.Pool) *MovieRepository {
	return &MovieRepository{pool: pool}
}

// List returns movies sharing at least one tag with tags, or every movie
// when tags is empty.
func (r *MovieRepository) List(ctx context.Context, tags []string) ([]movie.Movie, error) {
	if tags == nil {
		tags = []string{}
	}
	rows, err := r.pool.Query(ctx, listMoviesSQL, tags)
	if err != nil {
		return nil, fmt.Errorf("listing movies: %w", err)
	}
	return pgx.CollectRows(rows, scanMovie)
}

// GetByID returns a single movie by its identifier.
func (r *MovieRepository) GetByID(ctx context.Context, id string) (*movie.Movie, error) {
	rows, err := r.pool.Query(ctx, getMovieByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting movie %q: %w", id, err)
	}

	m, err := pgx.CollectExactlyOneRow(rows, scanMovie)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, movie.ErrNotFound
		}
		return nil, fmt.Errorf("getting movie %q: %w", id, err)
	}
	return &m, nil
}

// Create inserts m.
func (r *MovieRepository) Create(ctx context.Context, m *movie.Movie) error {
	if _, err := r.pool.Exec(ctx, createMovieSQL, movieArgs(m)...); err != nil {
		if isUniqueViolation(err) {
			return errDuplicateMovie
		}
		return fmt.Errorf("creating movie %q: %w", m.ID, err)
	}
	return nil
}

// Update overwrites the stored movie with m.
func (r *MovieRepository) Update(ctx context.Context, m *movie.Movie) error {
	tag, err := r.pool.Exec(ctx, updateMovieSQL, movieArgs(m)...)
	if err != nil {
		if isUniqueViolation(err) {
			return errDuplicateMovie
		}
		return fmt.Errorf("updating movie %q: %w", m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return movie.ErrNotFound
	}
	return nil
}

// Delete removes the movie with id.
func (r *MovieRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteMovieSQL, id)
	if err != nil {
		return fmt.Errorf("deleting movie %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return movie.ErrNotFound
	}
	return nil
}

// Upsert inserts movies in one batch, updating rows that already exist
// with the same title and year.
func (r *MovieRepository) Upsert(ctx context.Context, movies []movie.Movie) error {
	if len(movies) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range movies {
		batch.Queue(upsertMovieSQL, movieArgs(&movies[i])...)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting %d movies: %w", len(movies), err)
	}
	return nil
}

func movieArgs(m *movie.Movie) []any {
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	return []any{
		m.ID, m.Title, m.Year, m.Cover, m.Description,
		m.Duration, m.ContentRating, m.Source, tags, m.Rating,
	}
}

func scanMovie(row pgx.CollectableRow) (movie.Movie, error) {
	var m movie.Movie
	err := row.Scan(
		&m.ID, &m.Title, &m.Year, &m.Cover, &m.Description,
		&m.Duration, &m.ContentRating, &m.Source, &m.Tags, &m.Rating,
	)
	return m, err
}
