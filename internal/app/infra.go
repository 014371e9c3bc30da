package app

import (
	"context"
	"database/sql"

	"github.com/Mmckelve45/auth0-pizza42/internal/config"
	"github.com/Mmckelve45/auth0-pizza42/internal/db"
	"github.com/Mmckelve45/auth0-pizza42/internal/logger"
	"github.com/Mmckelve45/auth0-pizza42/internal/redis"

	_ "github.com/lib/pq"
)

type Infra struct {
	DB    *db.DB
	Redis *redis.Client
}

// setupInfra connects only what the configured session backend needs. The
// database is also opened when a DSN is present regardless of backend, so
// the advisory lock and audit trail stay available with Redis sessions.
func setupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	infra := &Infra{}

	if cfg.DatabaseDSN != "" {
		sqlDB, err := sql.Open("postgres", cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}

		if err := sqlDB.PingContext(ctx); err != nil {
			return nil, err
		}

		if err := db.RunLinkingMigration(ctx, sqlDB); err != nil {
			return nil, err
		}

		logger.Info("database ready", nil)

		infra.DB = &db.DB{DB: sqlDB}
	}

	if cfg.SessionBackend == "redis" {
		redisClient, err := redis.New(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}

		logger.Info("redis ready", nil)

		infra.Redis = redisClient
	}

	return infra, nil
}

func (i *Infra) Close() error {
	var firstErr error
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			firstErr = err
		}
	}
	if i.DB != nil {
		if err := i.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
