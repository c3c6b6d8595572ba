package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/movies-api/internal/password"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (MOVIES_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (MOVIES_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Dev         bool   `default:"false" usage:"Development mode: disables response caching"`
	Auth        AuthConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// AuthConfig holds token signing and credential hashing settings.
type AuthConfig struct {
	JWTSecret      string `usage:"HS256 signing secret for access tokens (MOVIES_AUTH_JWT_SECRET)" flag:"jwt-secret"`
	APIKeyPepper   string `usage:"HMAC pepper for API key hashing (MOVIES_AUTH_API_KEY_PEPPER)" flag:"api-key-pepper"`
	PasswordScheme string `default:"bcrypt" usage:"Hash scheme for new passwords: bcrypt or argon2id" flag:"password-scheme"`
	BcryptCost     int    `default:"10" usage:"bcrypt cost for new passwords" flag:"bcrypt-cost"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, flags and YAML
// config files, then applies platform defaults and validates it.
func LoadConfig() (*Config, error) {
	return loadConfig(false)
}

func loadConfig(skipFlags bool) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "MOVIES",
		SkipFlags: skipFlags,
		Files:     []string{"config.yaml", "/etc/movies/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports missing or inconsistent settings.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set MOVIES_DATABASE_URL or DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("jwt secret is required: set MOVIES_AUTH_JWT_SECRET")
	}
	switch c.Auth.PasswordScheme {
	case password.SchemeBcrypt, password.SchemeArgon2id:
	default:
		return errors.Errorf("unsupported password scheme %q", c.Auth.PasswordScheme)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) such as DATABASE_URL and PORT onto the configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
