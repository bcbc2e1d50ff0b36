package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sundayezeilo/linkregistry/internal/config"
	"github.com/sundayezeilo/linkregistry/internal/shortener"
	"github.com/sundayezeilo/linkregistry/internal/storage/memory"
	"github.com/sundayezeilo/linkregistry/internal/storage/postgres"
	"github.com/sundayezeilo/linkregistry/internal/storage/redis"
	"github.com/sundayezeilo/linkregistry/internal/storage/sqlite"
)

// Store is a storage backend the app owns and closes on shutdown.
type Store interface {
	shortener.Repository
	Close() error
}

// pgStore closes the pool it was built on.
type pgStore struct {
	*postgres.Store
	pool *pgxpool.Pool
}

func (s *pgStore) Close() error {
	s.pool.Close()
	return nil
}

// openStore opens the backend selected by STORAGE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		if cfg.Database.Migrate {
			if err := postgres.Migrate(cfg.Database.URL(), logger); err != nil {
				return nil, fmt.Errorf("failed to migrate database: %w", err)
			}
		}
		pool, err := connectDatabase(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return &pgStore{Store: postgres.New(pool), pool: pool}, nil

	case config.DriverSQLite:
		logger.Info("opening sqlite database", "path", cfg.SQLite.Path)
		return sqlite.Open(ctx, sqlite.Config{DSN: cfg.SQLite.Path})

	case config.DriverLibSQL:
		logger.Info("connecting to libsql database")
		return sqlite.Open(ctx, sqlite.Config{
			DSN:       cfg.SQLite.LibSQLURL,
			AuthToken: cfg.SQLite.LibSQLAuthToken,
		})

	case config.DriverRedis:
		logger.Info("connecting to redis",
			"addr", cfg.Redis.Addr,
			"db", cfg.Redis.DB,
			"prefix", cfg.Redis.KeyPrefix,
		)
		return redis.Connect(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.KeyPrefix,
		})

	case config.DriverMemory:
		logger.Warn("using in-memory storage, links are lost on restart")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// connectDatabase establishes a connection to the PostgreSQL database.
func connectDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Set pool configuration
	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")

	return pool, nil
}
