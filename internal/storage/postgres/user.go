package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/movies-api/internal/domain/auth"
)

const (
	findUserByEmailSQL = `SELECT id, name, email, password_hash FROM users WHERE email = $1`

	userExistsSQL = `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`

	createUserSQL = `INSERT INTO users (id, name, email, password_hash) VALUES ($1, $2, $3, $4)`
)

var _ auth.CredentialStore = (*UserRepository)(nil)

// UserRepository implements auth.CredentialStore backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// FindByEmail returns the credential of the user with the exact email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*auth.Credential, error) {
	var c auth.Credential
	err := r.pool.QueryRow(ctx, findUserByEmailSQL, email).Scan(
		&c.ID, &c.Name, &c.Email, &c.PasswordHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("finding user by email: %w", err)
	}
	return &c, nil
}

// Exists reports whether a user with email is registered.
func (r *UserRepository) Exists(ctx context.Context, email string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, userExistsSQL, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking user existence: %w", err)
	}
	return exists, nil
}

// Create inserts u, whose Password already holds the hash, and returns the
// new user id.
func (r *UserRepository) Create(ctx context.Context, u auth.NewUser) (string, error) {
	id := uuid.New().String()
	_, err := r.pool.Exec(ctx, createUserSQL, id, u.Name, u.Email, u.Password)
	if err != nil {
		if isUniqueViolation(err) {
			return "", auth.ErrUserExists
		}
		return "", fmt.Errorf("creating user: %w", err)
	}
	return id, nil
}
