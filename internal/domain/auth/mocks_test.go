package auth

import (
	"context"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
)

// --- Mock implementations ---

type mockUsers struct {
	byEmail map[string]*Credential
	findErr error

	findCalls   int
	createCalls int
}

func newMockUsers(creds ...Credential) *mockUsers {
	m := &mockUsers{byEmail: make(map[string]*Credential, len(creds))}
	for i := range creds {
		m.byEmail[creds[i].Email] = &creds[i]
	}
	return m
}

func (m *mockUsers) FindByEmail(_ context.Context, email string) (*Credential, error) {
	m.findCalls++
	if m.findErr != nil {
		return nil, m.findErr
	}
	c, ok := m.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *c
	return &out, nil
}

func (m *mockUsers) Exists(_ context.Context, email string) (bool, error) {
	_, ok := m.byEmail[email]
	return ok, nil
}

func (m *mockUsers) Create(_ context.Context, u NewUser) (string, error) {
	m.createCalls++
	if _, ok := m.byEmail[u.Email]; ok {
		return "", ErrUserExists
	}
	id := "u" + strconv.Itoa(len(m.byEmail)+1)
	m.byEmail[u.Email] = &Credential{
		Identity:     Identity{ID: id, Name: u.Name, Email: u.Email},
		PasswordHash: u.Password,
	}
	return id, nil
}

type mockKeys struct {
	byToken map[string]*APIKey
	err     error
	calls   int
}

func (m *mockKeys) Find(_ context.Context, token string) (*APIKey, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	k, ok := m.byToken[token]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := *k
	return &out, nil
}

// plainHasher stores passwords with a fixed prefix.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (plainHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return errors.New("mismatch")
	}
	return nil
}

type countingStrategy struct {
	next  Strategy
	calls int
}

func (s *countingStrategy) Authenticate(ctx context.Context, req *Request) (*Principal, error) {
	s.calls++
	return s.next.Authenticate(ctx, req)
}

// --- Helpers ---

var testSecret = []byte("test-secret")

func alice() Credential {
	return Credential{
		Identity:     Identity{ID: "u1", Name: "Alice", Email: "alice@ex.com"},
		PasswordHash: "hashed:wonderland",
	}
}

func basicRequest(user, password string) *Request {
	h := http.Header{}
	h.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(user+":"+password)))
	return &Request{Header: h}
}

func bearerRequest(token string) *Request {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return &Request{Header: h}
}

// tamperSignature swaps the first character of the signature segment.
func tamperSignature(token string) string {
	i := strings.LastIndexByte(token, '.') + 1
	c := byte('A')
	if token[i] == 'A' {
		c = 'B'
	}
	return token[:i] + string(c) + token[i+1:]
}
