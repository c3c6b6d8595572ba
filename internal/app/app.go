package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/movies-api/internal/domain/auth"
	"github.com/xenking/movies-api/internal/domain/movie"
	"github.com/xenking/movies-api/internal/domain/usermovie"
	"github.com/xenking/movies-api/internal/handler"
	"github.com/xenking/movies-api/internal/password"
	"github.com/xenking/movies-api/internal/storage/postgres"
	"github.com/xenking/movies-api/pkg/health"
	"github.com/xenking/movies-api/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.Bool("dev", cfg.Dev),
		zap.String("password_scheme", cfg.Auth.PasswordScheme),
	)

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.Add(health.Readiness, "postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.Add(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	users := postgres.NewUserRepository(pool)
	apiKeys := postgres.NewAPIKeyRepository(pool, []byte(cfg.Auth.APIKeyPepper))
	movies := postgres.NewMovieRepository(pool)
	userMovies := postgres.NewUserMovieRepository(pool)

	// Auth core.
	hasher, err := password.New(cfg.Auth.PasswordScheme, cfg.Auth.BcryptCost)
	if err != nil {
		return errors.Wrap(err, "create password hasher")
	}
	secret := []byte(cfg.Auth.JWTSecret)
	passwordStrategy := auth.NewPasswordStrategy(auth.NewPasswordVerifier(users, hasher))
	bearerStrategy := auth.NewBearerStrategy(auth.NewVerifier(secret, users))

	authService, err := auth.NewService(passwordStrategy, apiKeys, auth.NewIssuer(secret), users, hasher,
		auth.WithTracerProvider(m.TracerProvider()),
		auth.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create auth service")
	}

	// HTTP handlers.
	h := handler.New(
		handler.Config{Dev: cfg.Dev},
		authService,
		bearerStrategy,
		movie.NewService(movies),
		usermovie.NewService(userMovies, movies),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: otelhttp.NewHandler(
			httpmiddleware.Wrap(mux,
				httpmiddleware.RequestID(),
				httpmiddleware.InjectLogger(zctx.From(ctx)),
				httpmiddleware.Recovery(),
				httpmiddleware.CORS(httpmiddleware.CORSConfig{
					AllowOrigins:     cfg.CORS.Origins,
					AllowHeaders:     []string{"Content-Type", "Authorization"},
					ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
					AllowCredentials: cfg.CORS.AllowCredentials,
					MaxAge:           86400,
				}),
				httpmiddleware.LogRequests(),
			),
			"movies-api",
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
