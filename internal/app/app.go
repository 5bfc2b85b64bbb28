package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/klokku/consolecal/internal/config"
	"github.com/klokku/consolecal/internal/database"
	"github.com/klokku/consolecal/pkg/calendar"
	"github.com/klokku/consolecal/pkg/session"
	"github.com/robfig/cron/v3"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
)

// Application wires configuration, storage, router, and server lifecycle.
type Application struct {
	cfg     config.Application
	router  *mux.Router
	srv     *http.Server
	cron    *cron.Cron
	closers []func()
}

// NewApplication constructs the full HTTP application, ready to Run().
func NewApplication() (*Application, error) {
	cfg, err := config.Load("./config/application.yaml")
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	a := &Application{cfg: cfg}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	sessions, err := a.openSessions(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	// Build dependencies (services, handlers...)
	deps := BuildDependencies(store, sessions, cfg)

	if err := seed(ctx, deps, cfg); err != nil {
		a.Close()
		return nil, err
	}

	a.cron = cron.New()
	_, err = a.cron.AddFunc(cfg.Session.Sweep, func() {
		swept, err := deps.SessionService.Sweep(context.Background())
		if err != nil {
			log.Errorf("failed to sweep idle sessions: %v", err)
			return
		}
		deps.Metrics.ObserveSweep(swept)
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid session sweep schedule %q: %w", cfg.Session.Sweep, err)
	}

	r := mux.NewRouter()

	// Middleware chain
	SetupMiddleware(r)

	// Routes
	RegisterRoutes(r, deps)

	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Cors.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}).Handler(r)

	a.router = r
	a.srv = &http.Server{
		Handler:      handler,
		Addr:         cfg.Listen,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

func (a *Application) openStore(ctx context.Context) (calendar.Store, error) {
	switch a.cfg.Store.Backend {
	case config.BackendMemory:
		log.Info("using in-memory event store")
		return calendar.NewMemoryStore(), nil
	case config.BackendPostgres:
		if err := database.Migrate(a.cfg.Database); err != nil {
			return nil, err
		}
		pool, err := database.Open(ctx, a.cfg.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		return calendar.NewPostgresStore(pool), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", a.cfg.Store.Backend)
}

func (a *Application) openSessions(ctx context.Context) (session.Repository, error) {
	switch a.cfg.Session.Backend {
	case config.BackendMemory:
		return session.NewMemoryRepository(), nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", a.cfg.Redis.Addr, err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		log.Infof("storing sessions in redis at %s", a.cfg.Redis.Addr)
		return session.NewRedisRepository(client, a.cfg.Redis.KeyPrefix, a.cfg.Session.TTL), nil
	}
	return nil, fmt.Errorf("unknown session backend %q", a.cfg.Session.Backend)
}

// seed fills an empty store with the events of the configured seed file.
func seed(ctx context.Context, deps *Dependencies, cfg config.Application) error {
	if cfg.Calendar.SeedFile == "" {
		return nil
	}
	s, err := calendar.LoadSeed(cfg.Calendar.SeedFile)
	if err != nil {
		return err
	}
	events, err := s.Expand(deps.CalendarService.Horizon())
	if err != nil {
		return fmt.Errorf("invalid seed file %s: %w", cfg.Calendar.SeedFile, err)
	}
	if _, err := deps.CalendarService.Seed(ctx, events); err != nil {
		return err
	}
	stored, err := deps.CalendarService.GetEvents(ctx)
	if err != nil {
		return err
	}
	deps.Metrics.SetEventCount(len(stored))
	return nil
}

// Run starts the sweep job and the HTTP server and blocks.
func (a *Application) Run() error {
	a.cron.Start()
	defer a.Close()

	log.Infof("Starting server on %s", a.srv.Addr)
	return a.srv.ListenAndServe()
}

// Close stops the sweep job and releases the storage connections.
func (a *Application) Close() {
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
