package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/movies-api/internal/domain/usermovie"
)

const (
	listUserMoviesSQL = `SELECT id, user_id, movie_id FROM user_movies
		WHERE user_id = $1 ORDER BY created_at, id`

	createUserMovieSQL = `INSERT INTO user_movies (id, user_id, movie_id) VALUES ($1, $2, $3)`

	deleteUserMovieSQL = `DELETE FROM user_movies WHERE id = $1 AND user_id = $2`
)

var _ usermovie.Repository = (*UserMovieRepository)(nil)

// UserMovieRepository implements usermovie.Repository backed by PostgreSQL.
type UserMovieRepository struct {
	pool *pgxpool.Pool
}

// NewUserMovieRepository returns a UserMovieRepository that uses the given pool.
func NewUserMovieRepository(pool *pgxpool.Pool) *UserMovieRepository {
	return &UserMovieRepository{pool: pool}
}

// List returns the entries saved by userID in insertion order.
func (r *UserMovieRepository) List(ctx context.Context, userID string) ([]usermovie.UserMovie, error) {
	rows, err := r.pool.Query(ctx, listUserMoviesSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing user movies: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (usermovie.UserMovie, error) {
		var um usermovie.UserMovie
		err := row.Scan(&um.ID, &um.UserID, &um.MovieID)
		return um, err
	})
}

// Create inserts um.
func (r *UserMovieRepository) Create(ctx context.Context, um *usermovie.UserMovie) error {
	if _, err := r.pool.Exec(ctx, createUserMovieSQL, um.ID, um.UserID, um.MovieID); err != nil {
		return fmt.Errorf("creating user movie %q: %w", um.ID, err)
	}
	return nil
}

// Delete removes the entry id owned by userID.
func (r *UserMovieRepository) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx, deleteUserMovieSQL, id, userID)
	if err != nil {
		return fmt.Errorf("deleting user movie %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return usermovie.ErrNotFound
	}
	return nil
}
