package appbuilder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/cheese-reversi/internal/config"
	"github.com/park285/cheese-reversi/internal/engine"
	"github.com/park285/cheese-reversi/internal/engine/nboard"
	"github.com/park285/cheese-reversi/internal/engine/remote"
	"github.com/park285/cheese-reversi/internal/game"
	"github.com/park285/cheese-reversi/internal/repository"
	"github.com/park285/cheese-reversi/internal/store"
)

const pingTimeout = 5 * time.Second

type Deps struct {
	Engine   engine.Capability
	Store    store.Store
	Archive  repository.Repository
	Defaults game.Options

	logger  *zap.Logger
	redis   *redis.Client
	closers []func() error
}

// New wires the engine backend, the session store and the game archive.
// Redis and Postgres are optional; without them sessions cannot be resumed
// and finished games are archived in memory.
func New(cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PresetsFile != "" {
		if err := engine.LoadPresets(cfg.PresetsFile); err != nil {
			return nil, fmt.Errorf("load presets: %w", err)
		}
	}

	d := &Deps{
		logger: logger,
		Defaults: game.Options{
			Mode:        cfg.Mode,
			Level:       cfg.Level,
			HintEnabled: cfg.HintEnabled,
			HintLevel:   cfg.HintLevel,
			TimeBudget:  cfg.TimeBudget,
		},
	}
	ok := false
	defer func() {
		if !ok {
			_ = d.Close()
		}
	}()

	eng, err := buildEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	d.Engine = eng
	d.closers = append(d.closers, eng.Close)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		d.redis = redis.NewClient(opt)
		d.closers = append(d.closers, d.redis.Close)
		if err := d.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		d.Store = store.NewRedisStore(d.redis, cfg.SessionTTL)
	} else {
		logger.Warn("redis_disabled", zap.String("reason", "REDIS_URL not set; sessions cannot be resumed"))
	}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		d.closers = append(d.closers, db.Close)
		db.SetMaxOpenConns(16)
		db.SetMaxIdleConns(8)
		db.SetConnMaxLifetime(30 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		if err := repository.EnsureSchema(ctx, db); err != nil {
			return nil, err
		}
		d.Archive = repository.NewPostgres(db)
	} else {
		logger.Warn("archive_in_memory", zap.String("reason", "DATABASE_URL not set"))
		d.Archive = repository.NewMemory()
	}

	ok = true
	return d, nil
}

func buildEngine(cfg *config.AppConfig, logger *zap.Logger) (engine.Capability, error) {
	switch cfg.EngineKind {
	case config.EngineNBoard:
		pool, err := nboard.NewPool(nboard.PoolConfig{
			BinaryPath:       cfg.EnginePath,
			Args:             cfg.EngineArgs,
			PerDepthCapacity: cfg.EngineCapacity,
			Logger:           logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init nboard pool: %w", err)
		}
		return nboard.New(pool, logger), nil
	case config.EngineRemote:
		return remote.NewClient(cfg.EngineURL, remote.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unsupported engine kind %q", cfg.EngineKind)
	}
}

// NewSession builds a session sharing the process-wide engine and storage.
func (d *Deps) NewSession() (*game.Session, error) {
	return game.NewSession(game.Config{
		Engine:  d.Engine,
		Store:   d.Store,
		Archive: d.Archive,
		Logger:  d.logger,
	})
}

// Close releases resources in reverse order of acquisition.
func (d *Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
