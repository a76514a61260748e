package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"bruhbug-service/internal/client"
	"bruhbug-service/internal/config"
	"bruhbug-service/internal/entity"
	"bruhbug-service/internal/logger"
	"bruhbug-service/internal/session"
	"bruhbug-service/internal/watch"
)

type app struct {
	cfg  config.Client
	log  *zap.Logger
	sess *session.Context
	api  *client.Client
}

func newApp(flags *rootFlags) (*app, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	level := "warn"
	if flags.verbose {
		level = "debug"
	}
	log, err := logger.New(level, true)
	if err != nil {
		return nil, err
	}
	sess := session.New()
	api, err := client.New(cfg.APIURL, sess, cfg.RequestLimit, log)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, sess: sess, api: api}, nil
}

func (a *app) close() { _ = a.log.Sync() }

// signIn resolves BRUHBUG_TOKEN to a user. Without a token the session stays empty.
func (a *app) signIn(ctx context.Context) error {
	if a.cfg.Token == "" {
		return nil
	}
	a.sess.Populate(a.cfg.Token, nil)
	u, err := a.api.Me(ctx)
	if err != nil {
		a.sess.Clear()
		if errors.Is(err, entity.ErrAuthRequired) {
			return fmt.Errorf("BRUHBUG_TOKEN rejected: %w", err)
		}
		return err
	}
	a.sess.Populate(a.cfg.Token, u)
	return nil
}

func (a *app) requireUser(ctx context.Context) (*entity.User, error) {
	if err := a.signIn(ctx); err != nil {
		return nil, err
	}
	u := a.sess.Current()
	if u == nil {
		return nil, fmt.Errorf("%w: run `bruhbug login` and export BRUHBUG_TOKEN", entity.ErrAuthRequired)
	}
	return u, nil
}

// watchConfig applies mode (or BRUHBUG_WATCH_MODE when empty) to the configured timings.
func (a *app) watchConfig(mode string) (watch.Config, error) {
	if mode == "" {
		mode = a.cfg.Watch.Mode
	}
	m, err := watch.ParseMode(mode)
	if err != nil {
		return watch.Config{}, err
	}
	wc := a.cfg.Watch
	return watch.Config{
		Deadline:     wc.Deadline,
		PollGrace:    wc.PollGrace,
		PollInterval: wc.PollInterval,
		PollAttempts: wc.PollAttempts,
		FetchTimeout: wc.FetchTimeout,
	}.WithMode(m), nil
}
