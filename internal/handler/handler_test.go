package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/movies-api/internal/domain/auth"
	"github.com/xenking/movies-api/internal/domain/movie"
	"github.com/xenking/movies-api/internal/domain/usermovie"
)

// --- In-memory collaborators ---

type memUsers struct {
	mu      sync.Mutex
	byEmail map[string]auth.Credential
	creates int
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*auth.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byEmail[email]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return &c, nil
}

func (m *memUsers) Exists(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byEmail[email]
	return ok, nil
}

func (m *memUsers) Create(_ context.Context, u auth.NewUser) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[u.Email]; ok {
		return "", auth.ErrUserExists
	}
	m.creates++
	id := "00000000-0000-4000-8000-00000000000" + strconv.Itoa(m.creates)
	m.byEmail[u.Email] = auth.Credential{
		Identity:     auth.Identity{ID: id, Name: u.Name, Email: u.Email},
		PasswordHash: u.Password,
	}
	return id, nil
}

type memKeys map[string]*auth.APIKey

func (m memKeys) Find(_ context.Context, token string) (*auth.APIKey, error) {
	k, ok := m[token]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	return k, nil
}

type plainHasher struct{}

func (plainHasher) Hash(pw string) (string, error) { return "hashed:" + pw, nil }

func (plainHasher) Compare(hash, pw string) error {
	if hash != "hashed:"+pw {
		return errors.New("mismatch")
	}
	return nil
}

type memMovies struct {
	byID map[string]movie.Movie
}

func (m *memMovies) List(_ context.Context, tags []string) ([]movie.Movie, error) {
	var out []movie.Movie
	for _, mv := range m.byID {
		if len(tags) == 0 || slices.ContainsFunc(mv.Tags, func(t string) bool { return slices.Contains(tags, t) }) {
			out = append(out, mv)
		}
	}
	return out, nil
}

func (m *memMovies) GetByID(_ context.Context, id string) (*movie.Movie, error) {
	mv, ok := m.byID[id]
	if !ok {
		return nil, movie.ErrNotFound
	}
	return &mv, nil
}

func (m *memMovies) Create(_ context.Context, mv *movie.Movie) error {
	m.byID[mv.ID] = *mv
	return nil
}

func (m *memMovies) Update(_ context.Context, mv *movie.Movie) error {
	if _, ok := m.byID[mv.ID]; !ok {
		return movie.ErrNotFound
	}
	m.byID[mv.ID] = *mv
	return nil
}

func (m *memMovies) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return movie.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type memUserMovies struct {
	byID map[string]usermovie.UserMovie
}

func (m *memUserMovies) List(_ context.Context, userID string) ([]usermovie.UserMovie, error) {
	var out []usermovie.UserMovie
	for _, um := range m.byID {
		if um.UserID == userID {
			out = append(out, um)
		}
	}
	return out, nil
}

func (m *memUserMovies) Create(_ context.Context, um *usermovie.UserMovie) error {
	m.byID[um.ID] = *um
	return nil
}

func (m *memUserMovies) Delete(_ context.Context, userID, id string) error {
	um, ok := m.byID[id]
	if !ok || um.UserID != userID {
		return usermovie.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

// --- Test environment ---

const (
	aliceID = "6f1d3c2a-1b2c-4d5e-8f90-a1b2c3d4e5f6"
	bobID   = "7a2e4d3b-2c3d-4e5f-9a01-b2c3d4e5f6a7"
)

var allScopes = []string{
	auth.ScopeReadMovies, auth.ScopeCreateMovies, auth.ScopeUpdateMovies, auth.ScopeDeleteMovies,
	auth.ScopeReadUserMovies, auth.ScopeCreateUserMovies, auth.ScopeDeleteUserMovies,
}

type testEnv struct {
	handler http.Handler
	users   *memUsers
	movies  *memMovies
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	secret := []byte("handler-test-secret")
	users := &memUsers{byEmail: map[string]auth.Credential{
		"alice@ex.com": {
			Identity:     auth.Identity{ID: aliceID, Name: "Alice", Email: "alice@ex.com"},
			PasswordHash: "hashed:wonderland",
		},
		"bob@ex.com": {
			Identity:     auth.Identity{ID: bobID, Name: "Bob", Email: "bob@ex.com"},
			PasswordHash: "hashed:builder",
		},
	}}
	keys := memKeys{
		"admin-key":   {ID: "k1", OwnerID: aliceID, Name: "admin", Scopes: allScopes},
		"limited-key": {ID: "k2", OwnerID: aliceID, Name: "limited", Scopes: []string{auth.ScopeReadMovies, auth.ScopeCreateMovies}},
		"bob-key":     {ID: "k3", OwnerID: bobID, Name: "bob", Scopes: allScopes},
	}

	password := auth.NewPasswordStrategy(auth.NewPasswordVerifier(users, plainHasher{}))
	authSvc, err := auth.NewService(password, keys, auth.NewIssuer(secret), users, plainHasher{})
	require.NoError(t, err)
	bearer := auth.NewBearerStrategy(auth.NewVerifier(secret, users))

	movies := &memMovies{byID: make(map[string]movie.Movie)}
	userMovies := &memUserMovies{byID: make(map[string]usermovie.UserMovie)}

	h := New(cfg, authSvc, bearer, movie.NewService(movies), usermovie.NewService(userMovies, movies))
	mux := http.NewServeMux()
	h.Register(mux)

	return &testEnv{handler: mux, users: users, movies: movies}
}

func (env *testEnv) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	return w
}

func (env *testEnv) signIn(t *testing.T, email, password, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/sign-in",
		strings.NewReader(`{"apiKeyToken":"`+apiKey+`"}`))
	req.SetBasicAuth(email, password)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	return w
}

func (env *testEnv) token(t *testing.T, apiKey string) string {
	t.Helper()
	w := env.signIn(t, "alice@ex.com", "wonderland", apiKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

type envelope struct {
	Data json.RawMessage `json:"data"`
	Msg  string          `json:"msg"`
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	assert.Equal(t, w.Code, body.Code)
	return body
}

const heatJSON = `{
	"title": "Heat",
	"year": 1995,
	"cover": "https://img.example.com/heat.jpg",
	"description": "A group of professional bank robbers.",
	"duration": 170,
	"contentRating": "R",
	"source": "https://stream.example.com/heat",
	"tags": ["crime", "drama"],
	"rating": 8.3
}`

func (env *testEnv) createHeat(t *testing.T, token string) string {
	t.Helper()
	w := env.do(http.MethodPost, "/api/movies", token, heatJSON)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var id string
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &id))
	return id
}

// --- Tests ---

func TestMessage(t *testing.T) {
	tests := []struct {
		entity, action, want string
	}{
		{"movie", "create", "movie created"},
		{"movie", "list", "movies listed"},
		{"movie", "retrieve", "movie retrieved"},
		{"movie", "update", "movie updated"},
		{"movie", "delete", "movie deleted"},
		{"user movie", "list", "user movies listed"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, message(tt.entity, tt.action))
	}
}

func TestSignIn_Success(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.signIn(t, "alice@ex.com", "wonderland", "admin-key")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, map[string]any{"id": aliceID, "name": "Alice", "email": "alice@ex.com"}, body["user"])
	assert.NotContains(t, w.Body.String(), "wonderland")
}

func TestSignIn_Failures(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		pass    string
		key     string
		message string
	}{
		{"missing api key token", "alice@ex.com", "wonderland", "", "apiKeyToken is required"},
		{"wrong password", "alice@ex.com", "nope", "admin-key", "invalid credentials"},
		{"unknown user", "carol@ex.com", "wonderland", "admin-key", "invalid credentials"},
		{"unknown api key", "alice@ex.com", "wonderland", "nope", "invalid api key"},
		{"api key of another user", "alice@ex.com", "wonderland", "bob-key", "invalid api key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Config{})

			w := env.signIn(t, tt.email, tt.pass, tt.key)

			require.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, basicChallenge, w.Header().Get("WWW-Authenticate"))
			assert.Equal(t, tt.message, decodeError(t, w).Message)
		})
	}
}

func TestSignIn_EmptyBody(t *testing.T) {
	env := newTestEnv(t, Config{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/sign-in", nil)
	req.SetBasicAuth("alice@ex.com", "wonderland")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "apiKeyToken is required", decodeError(t, w).Message)
}

func TestSignIn_MalformedBody(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.do(http.MethodPost, "/api/auth/sign-in", "", `{"apiKeyToken":`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	decodeError(t, w)
}

func TestScenario_ScopeGate(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.token(t, "limited-key")

	id := env.createHeat(t, token)

	w := env.do(http.MethodPut, "/api/movies/"+id, token, `{"duration": 175}`)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "missing scope update:movies", decodeError(t, w).Message)
	assert.Equal(t, 170, env.movies.byID[id].Duration, "forbidden update must not run")

	w = env.do(http.MethodGet, "/api/movies/"+id, token, "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestScopedRoutes_Unauthenticated(t *testing.T) {
	env := newTestEnv(t, Config{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/movies"},
		{http.MethodPost, "/api/movies"},
		{http.MethodGet, "/api/user-movies"},
		{http.MethodDelete, "/api/user-movies/" + aliceID},
	} {
		w := env.do(tc.method, tc.path, "", "")
		require.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", tc.method, tc.path)
		assert.Equal(t, bearerChallenge, w.Header().Get("WWW-Authenticate"))
		decodeError(t, w)
	}

	w := env.do(http.MethodGet, "/api/movies", "not.a.jwt", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid token", decodeError(t, w).Message)
}

func TestMovies_CRUD(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.token(t, "admin-key")

	id := env.createHeat(t, token)

	w := env.do(http.MethodGet, "/api/movies/"+id, token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=3600", w.Header().Get("Cache-Control"))
	got := decodeEnvelope(t, w)
	assert.Equal(t, "movie retrieved", got.Msg)
	assert.JSONEq(t, `{
		"id": "`+id+`",
		"title": "Heat",
		"year": 1995,
		"cover": "https://img.example.com/heat.jpg",
		"description": "A group of professional bank robbers.",
		"duration": 170,
		"contentRating": "R",
		"source": "https://stream.example.com/heat",
		"tags": ["crime", "drama"],
		"rating": 8.3
	}`, string(got.Data))

	w = env.do(http.MethodPut, "/api/movies/"+id, token, `{"duration": 175, "rating": "8.5"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "movie updated", decodeEnvelope(t, w).Msg)
	assert.Equal(t, 175, env.movies.byID[id].Duration)
	assert.Equal(t, "8.5", env.movies.byID[id].Rating.String())

	w = env.do(http.MethodGet, "/api/movies?tags=crime", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=300", w.Header().Get("Cache-Control"))
	list := decodeEnvelope(t, w)
	assert.Equal(t, "movies listed", list.Msg)
	var movies []map[string]any
	require.NoError(t, json.Unmarshal(list.Data, &movies))
	require.Len(t, movies, 1)

	w = env.do(http.MethodGet, "/api/movies?tags=comedy", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(decodeEnvelope(t, w).Data))

	w = env.do(http.MethodDelete, "/api/movies/"+id, token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "movie deleted", decodeEnvelope(t, w).Msg)

	w = env.do(http.MethodGet, "/api/movies/"+id, token, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "movie not found", decodeError(t, w).Message)
}

func TestMovies_UpdateAppliesPresentFields(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.token(t, "admin-key")
	id := env.createHeat(t, token)

	w := env.do(http.MethodPut, "/api/movies/"+id, token, `{"rating": 0, "tags": []}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stored := env.movies.byID[id]
	assert.True(t, stored.Rating.IsZero())
	assert.Empty(t, stored.Tags)
	assert.Equal(t, 170, stored.Duration)

	w = env.do(http.MethodPut, "/api/movies/"+id, token, `{"description": ""}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "description: is required", decodeError(t, w).Message)
}

func TestMovies_DevModeDisablesCache(t *testing.T) {
	env := newTestEnv(t, Config{Dev: true})
	token := env.token(t, "admin-key")

	w := env.do(http.MethodGet, "/api/movies", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Cache-Control"))
}

func TestMovies_BadInput(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.token(t, "admin-key")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"invalid id", http.MethodGet, "/api/movies/42", ""},
		{"year out of range", http.MethodPost, "/api/movies", strings.Replace(heatJSON, "1995", "1700", 1)},
		{"wrong type", http.MethodPost, "/api/movies", `{"year": "nineteen"}`},
		{"malformed json", http.MethodPost, "/api/movies", `{"title":`},
		{"empty body", http.MethodPost, "/api/movies", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(tt.method, tt.path, token, tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.NotEmpty(t, decodeError(t, w).Message)
		})
	}
	assert.Empty(t, env.movies.byID)
}

func TestSignUp(t *testing.T) {
	env := newTestEnv(t, Config{})
	body := `{"name":"Carol","email":"carol@ex.com","password":"s3cret-pass"}`

	w := env.do(http.MethodPost, "/api/auth/sign-up", "", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeEnvelope(t, w)
	assert.Equal(t, "user created", created.Msg)
	assert.NotEqual(t, "null", string(created.Data))

	w = env.do(http.MethodPost, "/api/auth/sign-up", "", body)
	require.Equal(t, http.StatusOK, w.Code)
	again := decodeEnvelope(t, w)
	assert.Equal(t, "user already exists", again.Msg)
	assert.Equal(t, "null", string(again.Data))

	assert.Equal(t, 1, env.users.creates)
	assert.Equal(t, "hashed:s3cret-pass", env.users.byEmail["carol@ex.com"].PasswordHash)
}

func TestSignUp_Validation(t *testing.T) {
	env := newTestEnv(t, Config{})

	for _, body := range []string{
		`{"email":"carol@ex.com","password":"s3cret-pass"}`,
		`{"name":"Carol","email":"not-an-email","password":"s3cret-pass"}`,
		`{"name":"Carol","email":"Carol <carol@ex.com>","password":"s3cret-pass"}`,
		`{"name":"Carol","email":"carol@ex.com","password":"short"}`,
		`[]`,
	} {
		w := env.do(http.MethodPost, "/api/auth/sign-up", "", body)
		require.Equal(t, http.StatusBadRequest, w.Code, body)
		decodeError(t, w)
	}
	assert.Zero(t, env.users.creates)
}

func TestUserMovies(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.token(t, "admin-key")
	movieID := env.createHeat(t, token)

	w := env.do(http.MethodPost, "/api/user-movies", token, `{"movieId":"`+movieID+`"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var entryID string
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &entryID))

	w = env.do(http.MethodGet, "/api/user-movies?userId="+aliceID, token, "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeEnvelope(t, w)
	assert.Equal(t, "user movies listed", list.Msg)
	assert.JSONEq(t, `[{"id":"`+entryID+`","userId":"`+aliceID+`","movieId":"`+movieID+`"}]`, string(list.Data))

	w = env.do(http.MethodGet, "/api/user-movies?userId="+bobID, token, "")
	require.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPost, "/api/user-movies", token, `{"userId":"`+bobID+`","movieId":"`+movieID+`"}`)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPost, "/api/user-movies", token, `{"movieId":"`+aliceID+`"}`)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodDelete, "/api/user-movies/"+entryID, token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user movie deleted", decodeEnvelope(t, w).Msg)

	w = env.do(http.MethodDelete, "/api/user-movies/"+entryID, token, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotFoundFallback(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.do(http.MethodGet, "/api/unknown", "", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, errorBody{Code: 404, Message: "not found"}, decodeError(t, w))
}

type failingStrategy struct{}

func (failingStrategy) Authenticate(context.Context, *auth.Request) (*auth.Principal, error) {
	return nil, errors.New("credential store unavailable")
}

func TestRequireScopes_StoreFailureIsServerError(t *testing.T) {
	h := RequireScopes(failingStrategy{}, auth.ScopeReadMovies)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("next must not run")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/movies", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Header().Get("WWW-Authenticate"))
	assert.Equal(t, "internal server error", decodeError(t, w).Message)
}

func TestRequireScopes_StoresPrincipal(t *testing.T) {
	want := &auth.Principal{
		Identity: auth.Identity{ID: aliceID},
		Scopes:   []string{"read: movies"},
	}
	strategy := staticStrategy{p: want}

	var got *auth.Principal
	h := RequireScopes(strategy, auth.ScopeReadMovies)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, _ = auth.PrincipalFrom(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Same(t, want, got)
}

func TestRequireScopes_BlankScopeForbids(t *testing.T) {
	strategy := staticStrategy{p: &auth.Principal{
		Identity: auth.Identity{ID: aliceID},
		Scopes:   []string{auth.ScopeReadMovies},
	}}
	h := RequireScopes(strategy, " ")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("next must not run")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "invalid required scope", decodeError(t, w).Message)
}

type staticStrategy struct {
	p *auth.Principal
}

func (s staticStrategy) Authenticate(context.Context, *auth.Request) (*auth.Principal, error) {
	return s.p, nil
}
