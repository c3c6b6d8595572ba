package postgres

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/movies-api/internal/domain/auth"
)

const (
	getAPIKeyByHashSQL = `SELECT id, key_hash, owner_id, name, scopes
		FROM api_keys WHERE key_hash = $1 AND active = TRUE`

	createAPIKeySQL = `INSERT INTO api_keys (id, key_hash, owner_id, name, scopes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key_hash) DO UPDATE SET owner_id = EXCLUDED.owner_id, name = EXCLUDED.name,
			scopes = EXCLUDED.scopes, active = TRUE
		RETURNING id`
)

var _ auth.APIKeyStore = (*APIKeyRepository)(nil)

// APIKeyRepository implements auth.APIKeyStore backed by PostgreSQL. Raw
// tokens are never stored; rows are keyed by the HMAC-SHA256 of the token
// under a server-side pepper.
type APIKeyRepository struct {
	pool   *pgxpool.Pool
	pepper []byte
}

// NewAPIKeyRepository returns an APIKeyRepository that uses the given pool
// and HMAC pepper.
func NewAPIKeyRepository(pool *pgxpool.Pool, pepper []byte) *APIKeyRepository {
	return &APIKeyRepository{pool: pool, pepper: pepper}
}

// HashToken returns the hex HMAC-SHA256 of token under pepper.
func HashToken(pepper []byte, token string) string {
	return hex.EncodeToString(hashToken(pepper, token))
}

func hashToken(pepper []byte, token string) []byte {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(token))
	return mac.Sum(nil)
}

// Find resolves an active API key by its raw token.
func (r *APIKeyRepository) Find(ctx context.Context, token string) (*auth.APIKey, error) {
	hash := hashToken(r.pepper, token)

	var (
		key     auth.APIKey
		keyHash string
	)
	err := r.pool.QueryRow(ctx, getAPIKeyByHashSQL, hex.EncodeToString(hash)).Scan(
		&key.ID, &keyHash, &key.OwnerID, &key.Name, &key.Scopes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrKeyNotFound
		}
		return nil, fmt.Errorf("finding api key by hash: %w", err)
	}

	stored, err := hex.DecodeString(keyHash)
	if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
		return nil, auth.ErrKeyNotFound
	}
	if key.Scopes == nil {
		key.Scopes = []string{}
	}

	return &key, nil
}

// Create stores token for ownerID with scopes, replacing any key with the
// same token, and returns the key id.
func (r *APIKeyRepository) Create(ctx context.Context, token, ownerID, name string, scopes []string) (string, error) {
	if scopes == nil {
		scopes = []string{}
	}
	var id string
	err := r.pool.QueryRow(ctx, createAPIKeySQL,
		uuid.New().String(), HashToken(r.pepper, token), ownerID, name, scopes,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("creating api key %q: %w", name, err)
	}
	return id, nil
}
