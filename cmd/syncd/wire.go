package main

import (
	"context"
	"errors"
	"io"

	"github.com/custodia-labs/syncd/internal/adapters/driven/config/file"
	"github.com/custodia-labs/syncd/internal/adapters/driven/storage"
	"github.com/custodia-labs/syncd/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/syncd/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/syncd/internal/adapters/driving/cli"
	"github.com/custodia-labs/syncd/internal/adapters/driving/webhook"
	"github.com/custodia-labs/syncd/internal/connectors"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
	"github.com/custodia-labs/syncd/internal/core/services"
	"github.com/custodia-labs/syncd/internal/logger"
)

// backends are the stores a set of services runs on.
type backends struct {
	state      driven.StateStore
	activities driven.ActivityStore
	tasks      driven.SchedulerStore
	closers    []io.Closer
}

func (b *backends) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// openServices is the composition root: it builds every adapter from the
// config file and wires them into the core services.
func openServices(_ context.Context, opts cli.OpenOptions) (*cli.Services, error) {
	cfgStore, err := file.NewStore(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg := cfgStore.Config()
	logger.Debug("config loaded from %s: %d connections", cfgStore.Path(), len(cfg.Connections))

	b, err := openBackends(cfg, opts.Ephemeral)
	if err != nil {
		return nil, err
	}

	callbacks := services.NewCallbackRegistry(b.state)
	services.NewActivitySink(b.activities, callbacks)
	scheduler := services.NewScheduler(cfg.SchedulerConfig(), b.tasks, callbacks)
	factory := connectors.NewDefaultFactory()

	svc := &cli.Services{
		Scheduler:   scheduler,
		Connections: cfgStore,
		Activities:  b.activities,
		Connectors:  factory,
		Editor:      cfgStore,
		ListenAddr:  cfg.ListenAddr(),
		Close:       b.Close,
	}

	// One-shot runs never receive notifications, so resources poll.
	var gateway driven.WebhookGateway
	if !opts.Ephemeral {
		gw := webhook.NewGateway(b.state, callbacks, cfg.BaseURL(),
			webhook.WithAllowedOrigins(cfg.Webhooks.AllowedOrigins))
		gateway = gw
		svc.Gateway = gw
		svc.Watch = func(ctx context.Context) error {
			return cfgStore.Watch(ctx, func(c file.Config) {
				logger.Info("configuration reloaded: %d connections", len(c.Connections))
			})
		}
	}

	svc.Engine = services.NewSyncEngine(
		cfgStore, factory, b.state, callbacks, scheduler, gateway, cfg.SyncConfig())
	return svc, nil
}

// openBackends opens SQLite (plus any separate state backend), or memory
// stores for an ephemeral run.
func openBackends(cfg file.Config, ephemeral bool) (*backends, error) {
	if ephemeral {
		return &backends{
			state:      memory.NewStateStore(),
			activities: memory.NewActivityStore(),
			tasks:      memory.NewSchedulerStore(),
		}, nil
	}

	db, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	b := &backends{
		activities: db.ActivityStore(),
		tasks:      db.SchedulerStore(),
		closers:    []io.Closer{db},
	}

	fallback := db.StateStore()
	state, err := storage.StateStoreFromDSN(cfg.StateDSN, fallback)
	if err != nil {
		db.Close()
		return nil, err
	}
	if c, ok := state.(io.Closer); ok && state != fallback {
		b.closers = append(b.closers, c)
	}
	b.state = state
	return b, nil
}
