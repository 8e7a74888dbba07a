package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/teddy"
	"github.com/vango-dev/teddy/internal/config"
	"github.com/vango-dev/teddy/internal/errors"
	"github.com/vango-dev/teddy/pkg/features/cache"
	"github.com/vango-dev/teddy/pkg/features/history"
	teddysync "github.com/vango-dev/teddy/pkg/features/sync"
	"github.com/vango-dev/teddy/pkg/middleware"
	"github.com/vango-dev/teddy/pkg/server"
	"github.com/vango-dev/teddy/pkg/storage"
)

func serveCmd() *cobra.Command {
	var (
		dir       string
		address   string
		stateFile string
		logLevel  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a store over HTTP",
		Long: `Serve a store over HTTP with the settings from teddy.json.

The store is persisted through the configured storage driver when
cache.enabled is set. history.enabled adds "undo" and "redo" actions.
sync.enabled mounts a websocket hub at /sync, and sync.url joins a
remote hub.

Examples:
  teddy serve
  teddy serve --config ./deploy --address :9000
  teddy serve --state seed.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(dir)
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Server.Address = address
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			var level slog.Level
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return errors.Newf(errors.CategoryCLI, "unknown log level %q", logLevel)
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			var initial any
			if stateFile != "" {
				if initial, _, err = readState(stateFile); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, initial, logger)
			if err != nil {
				return err
			}
			defer a.close()

			success(cmd.ErrOrStderr(), "Serving %s on %s", a.store.Definition(), cfg.Server.Address)
			if err := a.run(ctx); err != nil {
				return errors.New("T150").Wrap(err)
			}
			info(cmd.ErrOrStderr(), "Stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "config", "c", ".", "Directory containing teddy.json or teddy.yaml")
	cmd.Flags().StringVarP(&address, "address", "a", "", "Address to listen on (default from config)")
	cmd.Flags().StringVar(&stateFile, "state", "", "JSON or YAML file with the initial state")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")

	return cmd
}

// loadConfig reads the config in dir, falling back to defaults when there
// is none.
func loadConfig(dir string) (*config.Config, error) {
	if !config.Exists(dir) {
		return config.Default(), nil
	}
	return config.Load(dir)
}

// app is one served store with its features.
type app struct {
	t        *teddy.Teddy
	store    *teddy.Store
	storage  storage.Storage
	registry *prometheus.Registry
	hub      *teddysync.Hub
	peer     *teddysync.Feature
	history  *history.Feature
	server   *server.Server
	logger   *slog.Logger
}

func newApp(ctx context.Context, cfg *config.Config, initial any, logger *slog.Logger) (*app, error) {
	st, err := openStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	a := &app{
		storage:  st,
		registry: registry,
		logger:   logger,
		t: teddy.New(
			teddy.WithLogger(logger),
			teddy.WithMiddleware(
				middleware.Prometheus(middleware.WithRegistry(registry)),
				middleware.OpenTelemetry(),
			),
		),
	}

	var installErr error
	a.t.Exclusive(func() {
		a.store = a.t.SetStore(teddy.Def(cfg.Space, cfg.Name), teddy.Config{State: initial})
		installErr = a.install(ctx, cfg)
	})
	if installErr != nil {
		a.close()
		return nil, installErr
	}

	srvConfig := server.Config{
		Address:  cfg.Server.Address,
		Logger:   logger,
		Gatherer: registry,
	}
	if cfg.Sync.Enabled {
		a.hub = teddysync.NewHub(teddysync.WithHubLogger(logger))
		srvConfig.Hub = a.hub
	}
	a.server = server.New(a.t, srvConfig)
	return a, nil
}

// install adds the configured features to the store. Must run inside
// Exclusive.
func (a *app) install(ctx context.Context, cfg *config.Config) error {
	if cfg.Cache.Enabled {
		debounce, _ := cfg.CacheDebounce()
		opts := []cache.Option{cache.WithDebounce(debounce), cache.WithLogger(a.logger)}
		if cfg.Cache.Reload {
			opts = append(opts, cache.WithReload(ctx))
		}
		if err := a.store.Use(cache.New(a.storage, opts...)); err != nil {
			return err
		}
	}

	if cfg.History.Enabled {
		a.history = history.New(cfg.History.Limit)
		if err := a.store.Use(a.history); err != nil {
			return err
		}
		a.store.SetActions(map[string]teddy.ActionFunc{
			"undo": func(*teddy.Store, ...any) (any, error) { return a.history.Undo(), nil },
			"redo": func(*teddy.Store, ...any) (any, error) { return a.history.Redo(), nil },
		})
	}

	if cfg.Sync.URL != "" {
		opts := []teddysync.Option{teddysync.WithLogger(a.logger)}
		if cfg.Sync.Channel != "" {
			opts = append(opts, teddysync.WithChannel(cfg.Sync.Channel))
		}
		a.peer = teddysync.New(cfg.Sync.URL, opts...)
		if err := a.store.Use(a.peer); err != nil {
			return fmt.Errorf("join sync hub: %w", err)
		}
	}
	return nil
}

// run serves until ctx is done or the server fails.
func (a *app) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.server.Run(gctx)
	})
	if a.peer != nil {
		done := a.peer.Done(a.store)
		g.Go(func() error {
			select {
			case <-done:
				a.logger.Warn("sync peer disconnected", "space", a.store.Definition().Space, "name", a.store.Definition().Name)
			case <-gctx.Done():
			}
			return nil
		})
	}
	return g.Wait()
}

// close removes the store, which writes pending cache state, then releases
// the hub and the storage.
func (a *app) close() {
	a.t.Exclusive(func() { a.t.Close() })
	if a.hub != nil {
		a.hub.Close()
	}
	if err := a.storage.Close(); err != nil {
		a.logger.Warn("close storage", "error", err)
	}
}

func openStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	var (
		st  storage.Storage
		err error
	)
	switch cfg.Storage.Driver {
	case "memory":
		st = storage.NewMemory()
	case "file":
		st, err = storage.NewFile(cfg.StorageDir(), storage.WithFileLogger(logger))
	case "badger":
		st, err = storage.OpenBadger(storage.BadgerConfig{Path: cfg.StorageDir(), Logger: logger})
	case "s3":
		client := storage.NewS3Client(storage.S3Config{
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			PathStyle:       cfg.Storage.Endpoint != "",
		})
		st = storage.NewS3(client, cfg.Storage.Bucket, cfg.Storage.Prefix)
	default:
		err = fmt.Errorf("unknown driver %q", cfg.Storage.Driver)
	}
	if err != nil {
		return nil, errors.New("T140").Wrap(err)
	}
	return st, nil
}
