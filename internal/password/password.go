// Package password hashes and verifies user passwords with bcrypt or
// argon2id.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Supported schemes.
const (
	SchemeBcrypt   = "bcrypt"
	SchemeArgon2id = "argon2id"
)

var (
	// ErrMismatch is returned when a password does not match its hash.
	ErrMismatch = errors.New("password mismatch")

	errInvalidHash = errors.New("invalid password hash")
)

// Bcrypt hashes with bcrypt at the given cost.
type Bcrypt struct {
	Cost int
}

// Hash returns a bcrypt hash of password.
func (b Bcrypt) Hash(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", errors.Wrap(err, "bcrypt")
	}
	return string(hash), nil
}

// Compare checks password against a bcrypt hash.
func (Bcrypt) Compare(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}
	return err
}

const (
	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 2
	argonKeyLen  uint32 = 32
	argonSaltLen        = 16
)

// Argon2id hashes with argon2id and encodes parameters and salt in the
// PHC string format.
type Argon2id struct{}

// Hash returns an encoded argon2id hash of password.
func (Argon2id) Hash(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Wrap(err, "generate salt")
	}

	sum := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory,
		argonTime,
		argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// Compare checks password against an encoded argon2id hash.
func (Argon2id) Compare(hash, password string) error {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != SchemeArgon2id {
		return errInvalidHash
	}

	version, err := parseParam(parts[2], "v=", 32)
	if err != nil || version != argon2.Version {
		return errInvalidHash
	}

	params := strings.Split(parts[3], ",")
	if len(params) != 3 {
		return errInvalidHash
	}
	mem, err := parseParam(params[0], "m=", 32)
	if err != nil {
		return errInvalidHash
	}
	timeCost, err := parseParam(params[1], "t=", 32)
	if err != nil {
		return errInvalidHash
	}
	threads, err := parseParam(params[2], "p=", 8)
	if err != nil {
		return errInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return errInvalidHash
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return errInvalidHash
	}

	actual := argon2.IDKey([]byte(password), salt, uint32(timeCost), uint32(mem), uint8(threads), uint32(len(expected)))
	if subtle.ConstantTimeCompare(actual, expected) != 1 {
		return ErrMismatch
	}
	return nil
}

func parseParam(value, prefix string, bitSize int) (uint64, error) {
	v, ok := strings.CutPrefix(value, prefix)
	if !ok {
		return 0, errInvalidHash
	}
	return strconv.ParseUint(v, 10, bitSize)
}

// hasher is the method set shared by Bcrypt and Argon2id.
type hasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// Hasher hashes new passwords with the configured scheme and compares
// against hashes of any supported scheme, chosen by the hash prefix.
type Hasher struct {
	primary hasher
	bcrypt  Bcrypt
}

// New returns a Hasher producing hashes with scheme. bcryptCost applies when
// scheme is bcrypt; zero selects the bcrypt default.
func New(scheme string, bcryptCost int) (*Hasher, error) {
	b := Bcrypt{Cost: bcryptCost}
	switch scheme {
	case SchemeBcrypt, "":
		return &Hasher{primary: b, bcrypt: b}, nil
	case SchemeArgon2id:
		return &Hasher{primary: Argon2id{}, bcrypt: b}, nil
	default:
		return nil, errors.Errorf("unsupported password scheme %q", scheme)
	}
}

// Hash hashes password with the configured scheme.
func (h *Hasher) Hash(password string) (string, error) {
	return h.primary.Hash(password)
}

// Compare checks password against hash.
func (h *Hasher) Compare(hash, password string) error {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		return Argon2id{}.Compare(hash, password)
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		return h.bcrypt.Compare(hash, password)
	default:
		return errInvalidHash
	}
}
