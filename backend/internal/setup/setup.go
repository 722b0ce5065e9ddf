package setup

import (
	"context"
	"errors"
	"fmt"

	"github.com/itchan-dev/threads/backend/internal/handler"
	"github.com/itchan-dev/threads/backend/internal/service"
	"github.com/itchan-dev/threads/backend/internal/storage/mongo"
	"github.com/itchan-dev/threads/backend/internal/storage/pg"
	"github.com/itchan-dev/threads/backend/internal/utils"
	"github.com/itchan-dev/threads/shared/config"
	"github.com/itchan-dev/threads/shared/jwt"
	"github.com/itchan-dev/threads/shared/logger"
	mw "github.com/itchan-dev/threads/shared/middleware"
	rl "github.com/itchan-dev/threads/shared/middleware/ratelimiter"
	"github.com/itchan-dev/threads/shared/revalidate"
	sharedpg "github.com/itchan-dev/threads/shared/storage/pg"
)

// Store is what both backends implement
type Store interface {
	service.ThreadStorage
	service.ActivityStorage
	service.UserStorage
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Cleanup() error
}

// Limiters are shared by the router, Stop releases their sweeper goroutines
type Limiters struct {
	PerIP   *rl.UserRateLimiter
	PerUser *rl.UserRateLimiter
	Writes  *rl.UserRateLimiter
}

func newLimiters() Limiters {
	return Limiters{
		PerIP:   rl.Rps100(),
		PerUser: rl.Rps10(),
		Writes:  rl.OnceInSecond(),
	}
}

func (l Limiters) Stop() {
	for _, limiter := range []*rl.UserRateLimiter{l.PerIP, l.PerUser, l.Writes} {
		if limiter != nil {
			limiter.Stop()
		}
	}
}

// Dependencies struct to hold all initialized dependencies.
type Dependencies struct {
	Config         *config.Config
	Storage        Store
	Handler        *handler.Handler
	Jwt            jwt.JwtService
	AuthMiddleware *mw.Auth
	Invalidator    revalidate.Invalidator
	Limiters       Limiters
}

// OpenStorage connects to the configured backend and brings its schema up to date
func OpenStorage(ctx context.Context, cfg *config.Config) (Store, error) {
	return openStorage(ctx, cfg, sharedpg.DefaultConnectionConfig())
}

// OpenToolStorage is OpenStorage with a small pool for one-shot commands
func OpenToolStorage(ctx context.Context, cfg *config.Config) (Store, error) {
	return openStorage(ctx, cfg, sharedpg.LightweightConnectionConfig())
}

func openStorage(ctx context.Context, cfg *config.Config, pool sharedpg.ConnectionConfig) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.Public.Storage {
	case config.StoragePostgres:
		store, err = pg.NewWithPool(ctx, cfg, pool)
	case config.StorageMongo:
		store, err = mongo.New(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage %q", cfg.Public.Storage)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Public.Storage, err)
	}

	if err := store.Migrate(ctx); err != nil {
		store.Cleanup()
		return nil, fmt.Errorf("migrate %s storage: %w", cfg.Public.Storage, err)
	}
	return store, nil
}

// New wires services and handlers on top of an already opened store
func New(cfg *config.Config, store Store, invalidator revalidate.Invalidator) *Dependencies {
	jwtService := jwt.New(cfg.JwtKey(), cfg.JwtTTL())

	thread := service.NewThread(store, &utils.ThreadTextValidator{}, invalidator, cfg.Public)
	user := service.NewUser(store, &utils.UserValidator{}, invalidator, cfg.Public)
	activity := service.NewActivity(store)

	h := handler.New(thread, user, activity, store, cfg)

	return &Dependencies{
		Config:         cfg,
		Storage:        store,
		Handler:        h,
		Jwt:            jwtService,
		AuthMiddleware: mw.NewAuth(jwtService),
		Invalidator:    invalidator,
		Limiters:       newLimiters(),
	}
}

// SetupDependencies initializes all dependencies required for the application.
func SetupDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	store, err := OpenStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(cfg, store, newInvalidator(cfg)), nil
}

func newInvalidator(cfg *config.Config) revalidate.Invalidator {
	if cfg.Public.InvalidateTopic == "" || cfg.Private.Redis.Addr == "" {
		logger.Log.Info("no invalidation channel configured, invalidations are only logged")
		return revalidate.Log{}
	}
	logger.Log.Info("publishing invalidations", "channel", cfg.Public.InvalidateTopic, "redis", cfg.Private.Redis.Addr)
	return revalidate.NewRedis(cfg.Private.Redis, cfg.Public.InvalidateTopic)
}

// Cleanup releases everything SetupDependencies acquired
func (d *Dependencies) Cleanup() error {
	d.Limiters.Stop()

	var errs []error
	if closer, ok := d.Invalidator.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close invalidator: %w", err))
		}
	}
	if d.Storage != nil {
		if err := d.Storage.Cleanup(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	return errors.Join(errs...)
}
