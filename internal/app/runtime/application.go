// Package runtime assembles configuration, storage, services, and the HTTP
// stack into a runnable process.
package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"

	app "github.com/winddownhq/winddown/internal/app"
	"github.com/winddownhq/winddown/internal/app/httpapi"
	"github.com/winddownhq/winddown/internal/app/metrics"
	"github.com/winddownhq/winddown/internal/app/storage/postgres"
	"github.com/winddownhq/winddown/internal/config"
	"github.com/winddownhq/winddown/internal/logging"
	"github.com/winddownhq/winddown/internal/middleware"
	"github.com/winddownhq/winddown/internal/platform/database"
	"github.com/winddownhq/winddown/internal/platform/migrations"
	"github.com/winddownhq/winddown/pkg/logger"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg     *config.Config
	log     *logger.Logger
	app     *app.Application
	server  *http.Server
	handler http.Handler
	limiter *middleware.RateLimiter
	db      *sqlx.DB
}

// LoadConfig reads the service configuration from file and environment.
func LoadConfig() (*config.Config, error) {
	return config.Load()
}

// NewApplication constructs a fully wired application from cfg. The database
// is opened and migrated here when the postgres driver is selected.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}

	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})
	reqLog := logging.NewWith(log)

	var (
		db     *sqlx.DB
		stores app.Stores
	)
	if cfg.Database.Driver == "postgres" {
		opened, err := database.Open(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := migrations.Apply(context.Background(), opened.DB); err != nil {
			opened.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		db = opened
		store := postgres.New(db)
		stores = app.Stores{Routines: store, SleepLogs: store}
	}

	application, err := app.New(stores, log)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("build application: %w", err)
	}

	if cfg.Metrics.Enabled {
		var pool *sql.DB
		if db != nil {
			pool = db.DB
		}
		sampler := metrics.NewSampler(pool, cfg.Metrics.SampleSchedule, log)
		if err := application.Attach(sampler); err != nil {
			if db != nil {
				db.Close()
			}
			return nil, fmt.Errorf("attach metrics sampler: %w", err)
		}
	}

	handler, err := httpapi.NewHandler(application, httpapi.Config{
		DB:        db,
		Logger:    reqLog,
		AuditMax:  cfg.Audit.MaxEntries,
		AuditFile: cfg.Audit.File,
	})
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("build handler: %w", err)
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.RateLimit.RedisAddr, reqLog)
		limiter.StartCleanup(5 * time.Minute)
		handler = limiter.Handler(handler)
	}

	if cfg.Auth.JWTPublicKey != "" {
		key, err := parsePublicKey(cfg.Auth.JWTPublicKey)
		if err != nil {
			if db != nil {
				db.Close()
			}
			return nil, fmt.Errorf("parse jwt public key: %w", err)
		}
		handler = middleware.NewAuthMiddleware(key, reqLog, cfg.Auth.SkipPaths).Handler(handler)
	} else {
		log.Warn("no JWT public key configured; requests are anonymous")
	}

	handler = middleware.NewCORSMiddleware(cfg.Server.CORSOrigins).Handler(handler)
	handler = middleware.NewTracingMiddleware(reqLog).Handler(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Application{
		cfg:     cfg,
		log:     log,
		app:     application,
		server:  server,
		handler: handler,
		limiter: limiter,
		db:      db,
	}, nil
}

// App exposes the service container, mainly for tests.
func (a *Application) App() *app.Application {
	return a.app
}

// Handler exposes the fully chained HTTP handler, mainly for tests.
func (a *Application) Handler() http.Handler {
	return a.handler
}

// Run starts the background services and the HTTP server, blocking until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server, the background services, and the
// storage backend.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := a.app.Stop(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("error stopping services")
	}

	if a.limiter != nil {
		if err := a.limiter.Close(); err != nil {
			a.log.WithError(err).Warn("error closing rate limiter")
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}

	return nil
}

// parsePublicKey accepts an inline PEM block or the path of a PEM file.
func parsePublicKey(value string) (interface{}, error) {
	raw := []byte(value)
	if !strings.Contains(value, "BEGIN") {
		data, err := os.ReadFile(value)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		raw = data
	}
	return jwt.ParseRSAPublicKeyFromPEM(raw)
}
