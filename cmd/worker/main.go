package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bruhbug-service/internal/bootstrap"
	"bruhbug-service/internal/config"
	"bruhbug-service/internal/logger"
	"bruhbug-service/internal/metrics"
	"bruhbug-service/internal/repository/postgresql"
	"bruhbug-service/internal/repository/redisstore"
	"bruhbug-service/internal/service"
	"bruhbug-service/internal/worker"
)

func main() {
	if err := run(); err != nil {
		zap.L().Fatal("worker failed", zap.Error(err))
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel, cfg.IsDev)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	pool, err := bootstrap.Postgres(ctx, cfg.Postgres, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	rdb, err := bootstrap.Redis(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	gen, err := bootstrap.Generator(ctx, cfg.LLM, log)
	if err != nil {
		return err
	}

	queue := bootstrap.Queue(rdb, cfg.Redis)
	if cfg.Worker.RecoverOnStart {
		// tasks a crashed worker left in processing
		n, err := queue.RequeueStale(ctx, 1000)
		if err != nil {
			log.Warn("requeue stale tasks failed", zap.Error(err))
		} else if n > 0 {
			log.Info("requeued tasks from processing", zap.Int64("count", n))
		}
	}

	processor := worker.NewProcessor(gen, postgresql.NewBugRepository(pool), worker.Options{
		Identity:       redisstore.NewSessionStore(rdb, cfg.Redis.KeyPrefix),
		Events:         service.NewEventBus(rdb, cfg.Redis.EventsChannel, log),
		Metrics:        m,
		Logger:         log,
		GenerateLimit:  cfg.LLM.Timeout,
		PersistTimeout: cfg.Worker.PersistTimeout,
	})
	workers := worker.NewPool(queue, processor, cfg.Worker.Count, cfg.Worker.ClaimTimeout, log)

	log.Info("worker config",
		zap.Int("workers", cfg.Worker.Count),
		zap.String("redis_addr", cfg.Redis.Addr),
		zap.String("queue_key", cfg.Redis.QueueKey),
		zap.String("processing_key", cfg.Redis.ProcessingKey),
		zap.String("postgres_dsn", config.RedactDSN(cfg.Postgres.DSN)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		workers.Run(gctx)
		return nil
	})

	if cfg.Worker.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.Worker.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	err = g.Wait()
	log.Info("worker stopped")
	return err
}
