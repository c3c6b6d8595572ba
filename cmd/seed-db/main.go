package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/movies-api/internal/domain/auth"
	"github.com/xenking/movies-api/internal/domain/movie"
	"github.com/xenking/movies-api/internal/password"
	"github.com/xenking/movies-api/internal/storage/postgres"
)

type movieJSON struct {
	Title         string          `json:"title"`
	Year          int             `json:"year"`
	Cover         string          `json:"cover"`
	Description   string          `json:"description"`
	Duration      int             `json:"duration"`
	ContentRating string          `json:"contentRating"`
	Source        string          `json:"source"`
	Tags          []string        `json:"tags"`
	Rating        decimal.Decimal `json:"rating"`
}

// seedUser is a user account created with an API key it owns.
type seedUser struct {
	Name     string
	Email    string
	Password string
	KeyName  string
	KeyToken string
	Scopes   []string
}

var (
	adminScopes = []string{
		auth.ScopeSignIn, auth.ScopeSignUp,
		auth.ScopeReadMovies, auth.ScopeCreateMovies, auth.ScopeUpdateMovies, auth.ScopeDeleteMovies,
		auth.ScopeReadUserMovies, auth.ScopeCreateUserMovies, auth.ScopeDeleteUserMovies,
	}
	publicScopes = []string{
		auth.ScopeSignIn, auth.ScopeSignUp,
		auth.ScopeReadMovies,
		auth.ScopeReadUserMovies, auth.ScopeCreateUserMovies, auth.ScopeDeleteUserMovies,
	}
)

func main() {
	var (
		databaseURL    string
		moviesFile     string
		apiKeyPepper   string
		passwordScheme string
		admin          = seedUser{Name: "Admin", KeyName: "admin", Scopes: adminScopes}
		demo           = seedUser{Name: "Demo", KeyName: "public", Scopes: publicScopes}
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&moviesFile, "movies-file", "db/seed/movies.json", "path to movies JSON file")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or MOVIES_AUTH_API_KEY_PEPPER env)")
	flag.StringVar(&passwordScheme, "password-scheme", password.SchemeBcrypt, "hash scheme for seeded passwords")
	flag.StringVar(&admin.Email, "admin-email", "admin@movies.local", "admin user email")
	flag.StringVar(&admin.Password, "admin-password", "", "admin user password (or MOVIES_SEED_ADMIN_PASSWORD env)")
	flag.StringVar(&admin.KeyToken, "admin-api-key", "", "admin API key token (or MOVIES_SEED_ADMIN_API_KEY env)")
	flag.StringVar(&demo.Email, "demo-email", "demo@movies.local", "demo user email")
	flag.StringVar(&demo.Password, "demo-password", "", "demo user password (or MOVIES_SEED_DEMO_PASSWORD env)")
	flag.StringVar(&demo.KeyToken, "public-api-key", "", "public API key token (or MOVIES_SEED_PUBLIC_API_KEY env)")
	flag.Parse()

	envDefault(&databaseURL, "DATABASE_URL")
	envDefault(&apiKeyPepper, "MOVIES_AUTH_API_KEY_PEPPER")
	envDefault(&admin.Password, "MOVIES_SEED_ADMIN_PASSWORD")
	envDefault(&admin.KeyToken, "MOVIES_SEED_ADMIN_API_KEY")
	envDefault(&demo.Password, "MOVIES_SEED_DEMO_PASSWORD")
	envDefault(&demo.KeyToken, "MOVIES_SEED_PUBLIC_API_KEY")

	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	for _, u := range []seedUser{admin, demo} {
		if u.Password == "" || u.KeyToken == "" {
			slog.Error("password and API key are required for every seeded user", slog.String("user", u.Email))
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, moviesFile, apiKeyPepper, passwordScheme, []seedUser{admin, demo}); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func envDefault(v *string, key string) {
	if *v == "" {
		*v = os.Getenv(key)
	}
}

func run(ctx context.Context, databaseURL, moviesFile, pepper, scheme string, users []seedUser) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedMovies(ctx, postgres.NewMovieRepository(pool), moviesFile); err != nil {
		return errors.Wrap(err, "seed movies")
	}

	hasher, err := password.New(scheme, 0)
	if err != nil {
		return errors.Wrap(err, "create password hasher")
	}
	userRepo := postgres.NewUserRepository(pool)
	keyRepo := postgres.NewAPIKeyRepository(pool, []byte(pepper))

	for _, u := range users {
		if err := seedAccount(ctx, userRepo, keyRepo, hasher, u); err != nil {
			return errors.Wrapf(err, "seed user %s", u.Email)
		}
	}

	return nil
}

func loadMovies(path string) ([]movie.Movie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read movies file")
	}

	var raw []movieJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parse movies JSON")
	}

	movies := make([]movie.Movie, 0, len(raw))
	for _, r := range raw {
		m := movie.Movie{
			ID:            uuid.New().String(),
			Title:         r.Title,
			Year:          r.Year,
			Cover:         r.Cover,
			Description:   r.Description,
			Duration:      r.Duration,
			ContentRating: r.ContentRating,
			Source:        r.Source,
			Tags:          r.Tags,
			Rating:        r.Rating,
		}
		if err := m.Validate(); err != nil {
			return nil, errors.Wrapf(err, "movie %q", r.Title)
		}
		movies = append(movies, m)
	}
	return movies, nil
}

func seedMovies(ctx context.Context, repo *postgres.MovieRepository, path string) error {
	slog.Info("reading movies file", slog.String("path", path))

	movies, err := loadMovies(path)
	if err != nil {
		return err
	}

	slog.Info("upserting movies", slog.Int("count", len(movies)))

	return repo.Upsert(ctx, movies)
}

func seedAccount(
	ctx context.Context,
	users *postgres.UserRepository,
	keys *postgres.APIKeyRepository,
	hasher *password.Hasher,
	u seedUser,
) error {
	cred, err := users.FindByEmail(ctx, u.Email)
	var id string
	switch {
	case err == nil:
		id = cred.ID
		slog.Info("user exists", slog.String("email", u.Email), slog.String("id", id))
	case errors.Is(err, auth.ErrUserNotFound):
		hash, err := hasher.Hash(u.Password)
		if err != nil {
			return errors.Wrap(err, "hash password")
		}
		id, err = users.Create(ctx, auth.NewUser{Name: u.Name, Email: u.Email, Password: hash})
		if err != nil {
			return errors.Wrap(err, "create user")
		}
		slog.Info("created user", slog.String("email", u.Email), slog.String("id", id))
	default:
		return errors.Wrap(err, "find user")
	}

	keyID, err := keys.Create(ctx, u.KeyToken, id, u.KeyName, u.Scopes)
	if err != nil {
		return errors.Wrap(err, "upsert api key")
	}

	slog.Info("upserted API key",
		slog.String("id", keyID),
		slog.String("name", u.KeyName),
		slog.Any("scopes", u.Scopes),
	)
	return nil
}
