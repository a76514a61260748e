package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bruhbug-service/internal/bootstrap"
	"bruhbug-service/internal/config"
	"bruhbug-service/internal/logger"
	"bruhbug-service/internal/metrics"
	"bruhbug-service/internal/repository/postgresql"
	"bruhbug-service/internal/repository/redisstore"
	"bruhbug-service/internal/service"
	httptransport "bruhbug-service/internal/transport/http"
	"bruhbug-service/internal/worker"
)

// @title bruhbug API
// @version 1.0
// @description Submit a bug, get it roasted.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := run(); err != nil {
		zap.L().Fatal("api failed", zap.Error(err))
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

	repo := postgresql.NewBugRepository(pool)
	sessions := redisstore.NewSessionStore(rdb, cfg.Redis.KeyPrefix)
	events := service.NewEventBus(rdb, cfg.Redis.EventsChannel, log)

	// the direct path (POST /roasts) runs the worker in-process
	var roaster service.Roaster
	gen, err := bootstrap.Generator(ctx, cfg.LLM, log)
	if err != nil {
		return err
	}
	if gen != nil {
		roaster = worker.NewProcessor(gen, repo, worker.Options{
			Identity:       sessions,
			Events:         events,
			Metrics:        m,
			Logger:         log,
			GenerateLimit:  cfg.LLM.Timeout,
			PersistTimeout: cfg.Worker.PersistTimeout,
		})
	}

	svc := service.NewRoastService(repo, bootstrap.Queue(rdb, cfg.Redis), roaster, m)
	h := httptransport.NewHandler(svc, sessions, events, httptransport.Options{
		DevLogin:       cfg.Auth.DevLogin,
		SessionTTL:     cfg.Auth.SessionTTL,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Metrics:        m,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      httptransport.Routes(h, reg),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("api listening",
			zap.String("addr", cfg.HTTP.Addr),
			zap.Bool("dev_login", cfg.Auth.DevLogin),
			zap.Bool("direct_roasts", roaster != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	err = g.Wait()
	log.Info("api stopped")
	return err
}
