package runtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-redis/redis/v8"

	app "github.com/R3E-Network/user_board/internal/app"
	"github.com/R3E-Network/user_board/internal/app/auth"
	"github.com/R3E-Network/user_board/internal/app/httpapi"
	"github.com/R3E-Network/user_board/internal/app/storage/postgres"
	"github.com/R3E-Network/user_board/internal/app/system"
	"github.com/R3E-Network/user_board/internal/config"
	"github.com/R3E-Network/user_board/internal/logging"
	"github.com/R3E-Network/user_board/internal/middleware"
	"github.com/R3E-Network/user_board/internal/platform/database"
	"github.com/R3E-Network/user_board/internal/platform/migrations"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logging.Logger
	app        *app.Application
	httpServer *http.Server
	limiter    *middleware.RateLimiter
	db         *sql.DB
	redis      *redis.Client
}

// NewApplication constructs the server from configuration.
func NewApplication(ctx context.Context, cfg *config.Config, log *logging.Logger) (*Application, error) {
	if log == nil {
		log = logging.New("userboard", cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, log: log}

	stores, err := a.buildStores(ctx)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	application, err := app.New(stores, auth.Config{
		Secret:     []byte(cfg.Auth.Secret),
		Issuer:     cfg.Auth.Issuer,
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
	}, log)
	if err != nil {
		a.closeResources()
		return nil, err
	}
	a.app = application

	a.limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)

	scheduler, err := system.NewScheduler(log, a.maintenanceJobs()...)
	if err != nil {
		a.closeResources()
		return nil, err
	}
	if err := application.Attach(scheduler); err != nil {
		a.closeResources()
		return nil, err
	}

	handler := httpapi.NewHandler(application, httpapi.Options{
		Logger:         log,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RateLimiter:    a.limiter,
		Health:         a.health,
	})
	a.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return a, nil
}

// App exposes the composed application.
func (a *Application) App() *app.Application { return a.app }

// Handler exposes the HTTP handler.
func (a *Application) Handler() http.Handler { return a.httpServer.Handler }

// Run starts services and the HTTP server and blocks until the context is
// cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// Shutdown gracefully shuts down the HTTP server, services and connections.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	a.closeResources()
	return errors.Join(errs...)
}

func (a *Application) buildStores(ctx context.Context) (app.Stores, error) {
	var stores app.Stores

	switch a.cfg.Database.Driver {
	case "postgres":
		db, err := database.Open(ctx, database.Config{
			DSN:             a.cfg.Database.DSN,
			MaxOpenConns:    a.cfg.Database.MaxOpenConns,
			MaxIdleConns:    a.cfg.Database.MaxIdleConns,
			ConnMaxLifetime: a.cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return stores, err
		}
		a.db = db
		if a.cfg.Database.Migrate {
			if err := migrations.Up(db); err != nil {
				return stores, fmt.Errorf("apply migrations: %w", err)
			}
			a.log.Info("database migrations applied")
		}
		stores.Users = postgres.New(db)
	case "memory", "":
		a.log.Warn("using in-memory user store; data is lost on restart")
	default:
		return stores, fmt.Errorf("unsupported database driver %q", a.cfg.Database.Driver)
	}

	if a.cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return stores, fmt.Errorf("ping redis: %w", err)
		}
		a.redis = client
		stores.Sessions = auth.NewRedisSessionStore(client, a.cfg.Redis.Prefix)
	}

	return stores, nil
}

func (a *Application) maintenanceJobs() []system.Job {
	m := a.cfg.Maintenance
	return []system.Job{
		{
			Name: "rate-limiter-cleanup",
			Spec: m.LimiterCleanup,
			Run: func(context.Context) error {
				if n := a.limiter.Cleanup(m.LimiterMaxIdle); n > 0 {
					a.log.WithField("removed", n).Debug("rate limiter entries pruned")
				}
				return nil
			},
		},
		{
			Name: "session-purge",
			Spec: m.SessionPurge,
			Run: func(ctx context.Context) error {
				n, err := a.app.Sessions.Purge(ctx)
				if err != nil {
					return err
				}
				if n > 0 {
					a.log.WithField("purged", n).Info("expired sessions purged")
				}
				return nil
			},
		},
	}
}

func (a *Application) health(ctx context.Context) error {
	if a.db != nil {
		if err := a.db.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (a *Application) closeResources() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
		a.db = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis connection")
		}
		a.redis = nil
	}
}
