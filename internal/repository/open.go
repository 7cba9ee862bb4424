package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/config"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/database"
)

// Open builds the Storage selected by cfg.Storage.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Storage, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return NewMemoryStorage(), nil

	case config.StorageSQLite:
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		store, err := NewSQLiteStorage(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return store, nil

	case config.StoragePostgres:
		pool, err := database.NewPool(ctx, cfg.PostgresDSN, logger)
		if err != nil {
			return nil, err
		}
		store, err := NewPostgresStorage(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil

	case config.StorageRedis:
		client, err := database.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return NewRedisStorage(client, cfg.RedisPrefix), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage)
}
