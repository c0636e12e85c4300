package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/internal/config"
	"github.com/goliatone/go-formwizard/internal/logger"
	"github.com/goliatone/go-formwizard/pkg/configloader"
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/placeholder"
	"github.com/goliatone/go-formwizard/pkg/progress"
	"github.com/goliatone/go-formwizard/pkg/services"
	"github.com/goliatone/go-formwizard/pkg/steps"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

// engine holds everything a session needs, built once per process.
type engine struct {
	cfg        config.Config
	apps       *configloader.Store
	progress   *progress.Manager
	stash      progress.StashStore
	dispatcher *steps.Dispatcher
	closers    []func() error
}

func newEngine(ctx context.Context, cfg config.Config) (*engine, error) {
	apps, err := configloader.LoadFS(os.DirFS(cfg.ConfigDir))
	if err != nil {
		return nil, err
	}
	if apps.Empty() {
		return nil, fmt.Errorf("formwizard: no applications found in %s", cfg.ConfigDir)
	}

	e := &engine{cfg: cfg, apps: apps}
	if err := e.openStores(ctx); err != nil {
		return nil, multierr.Append(err, e.Close())
	}

	backends, err := newBackends(cfg)
	if err != nil {
		return nil, multierr.Append(err, e.Close())
	}

	options := []steps.Option{
		steps.WithBackends(backends),
		steps.WithReturnURL(cfg.ReturnURL),
		steps.WithEmailDefaults(cfg.EmailFrom, cfg.EmailStream),
	}
	if cfg.LayoutsDir != "" {
		layouts, err := placeholder.NewLayouts(os.DirFS(cfg.LayoutsDir), "")
		if err != nil {
			return nil, multierr.Append(err, e.Close())
		}
		options = append(options, steps.WithLayouts(layouts))
	}
	e.dispatcher = steps.New(options...)

	logger.Info("engine ready",
		zap.Strings("applications", apps.IDs()),
		zap.String("store", string(cfg.Store)),
		zap.String("codec", cfg.Codec),
		zap.Bool("services", cfg.ServicesURL != ""),
	)
	return e, nil
}

func (e *engine) openStores(ctx context.Context) error {
	snapshots, err := progress.NewCodec[progress.Snapshot](e.cfg.Codec)
	if err != nil {
		return err
	}
	stashes, err := progress.NewCodec[progress.Stash](e.cfg.Codec)
	if err != nil {
		return err
	}

	var store progress.Store
	switch e.cfg.Store {
	case config.StoreRedis:
		client := progress.NewRedisClient(progress.RedisConfig{
			Addrs:     e.cfg.RedisAddrs,
			Password:  e.cfg.RedisPass,
			DB:        e.cfg.RedisDB,
			Namespace: e.cfg.Namespace,
		})
		e.closers = append(e.closers, client.Close)
		store = progress.NewRedisStore(client, e.cfg.Namespace, snapshots)
		e.stash = progress.NewRedisStash(client, e.cfg.Namespace, stashes, e.cfg.StashTTL)
	case config.StoreSQLite:
		sqlStore, err := progress.OpenSQLite(ctx, e.cfg.SQLitePath, snapshots)
		if err != nil {
			return err
		}
		e.closers = append(e.closers, sqlStore.Close)
		store = sqlStore
		e.stash = progress.NewMemoryStash(e.cfg.StashTTL)
	default:
		store = progress.NewMemoryStore(snapshots)
		e.stash = progress.NewMemoryStash(e.cfg.StashTTL)
	}
	e.progress = progress.NewManager(store)
	return nil
}

func newBackends(cfg config.Config) (services.Backends, error) {
	if cfg.ServicesURL == "" {
		logger.Warn("no services url configured, backend steps will fail")
		return services.Backends{}, nil
	}
	client, err := services.NewClient(cfg.ServicesURL,
		services.WithToken(cfg.ServicesToken),
		services.WithUserAgent("formwizard"),
	)
	if err != nil {
		return services.Backends{}, err
	}
	return services.Backends{
		Leads:        client,
		Applications: client,
		Payments:     client,
		Email:        client,
		Decisions:    client,
		Campaigns:    client,
	}, nil
}

// newSession builds a session for app. An empty id lets the session mint
// one.
func (e *engine) newSession(app *model.Application, id, owner string) (*wizard.Session, error) {
	fallback := app.Wizard.PlaceholderFallback
	if fallback == "" {
		fallback = e.cfg.PlaceholderFallback
	}
	return wizard.NewSession(app, e.dispatcher,
		wizard.WithSessionID(id),
		wizard.WithOwner(owner),
		wizard.WithProgress(e.progress),
		wizard.WithStash(e.stash),
		wizard.WithResolver(placeholder.New(placeholder.WithFallback(fallback))),
	)
}

func (e *engine) Close() error {
	var err error
	for i := len(e.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, e.closers[i]())
	}
	e.closers = nil
	return err
}
