// Package bootstrap opens the infrastructure shared by cmd/api and cmd/worker.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bruhbug-service/internal/config"
	"bruhbug-service/internal/llm"
	"bruhbug-service/internal/repository/postgresql"
	"bruhbug-service/internal/service"
)

func Postgres(ctx context.Context, cfg config.PostgresConfig, log *zap.Logger) (*pgxpool.Pool, error) {
	pool, err := postgresql.NewPool(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: %w", err)
	}
	if cfg.RunMigrationsOnStart {
		if err := postgresql.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("pg migrate: %w", err)
		}
		log.Info("schema migrated")
	}
	log.Info("postgres connected", zap.String("dsn", config.RedactDSN(cfg.DSN)))
	return pool, nil
}

func Redis(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	log.Info("redis connected", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return rdb, nil
}

func Queue(rdb redis.UniversalClient, cfg config.RedisConfig) service.Queue {
	return service.NewRedisTaskQueue(rdb, service.QueueKeys{
		QueueKey:      cfg.QueueKey,
		ProcessingKey: cfg.ProcessingKey,
		GuardPrefix:   cfg.KeyPrefix + "dispatched:",
	}, cfg.GuardTTL)
}

// Generator builds the configured text-generation client. A missing API key
// is not fatal: it returns nil and every task is then rejected by the worker.
func Generator(ctx context.Context, cfg config.LLMConfig, log *zap.Logger) (llm.Generator, error) {
	gen, err := llm.New(ctx, llm.Options{
		Provider:     cfg.Provider,
		GeminiAPIKey: cfg.GeminiAPIKey,
		GeminiModel:  cfg.GeminiModel,
		OpenAIAPIKey: cfg.OpenAIAPIKey,
		OpenAIModel:  cfg.OpenAIModel,
		OpenAIURL:    cfg.OpenAIURL,
	})
	if errors.Is(err, llm.ErrMissingCredential) {
		log.Warn("no llm credential configured, roasts will be rejected", zap.String("provider", cfg.Provider))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	log.Info("llm ready", zap.String("generator", gen.Name()))
	return gen, nil
}
