package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/themaluxis/MUM/builtin"
	"github.com/themaluxis/MUM/dispatch"
	"github.com/themaluxis/MUM/dynamic"
	"github.com/themaluxis/MUM/installer"
	"github.com/themaluxis/MUM/manifest"
	"github.com/themaluxis/MUM/media"
	"github.com/themaluxis/MUM/registry"
	"github.com/themaluxis/MUM/store"
	"github.com/themaluxis/MUM/syncer"
)

// app wires the core components together for one CLI invocation.
type app struct {
	cfg       Config
	db        *sql.DB
	reg       *registry.Registry
	instances *store.InstanceStore
	installer *installer.Installer
	disp      *dispatch.Dispatcher
	syncer    *syncer.Syncer
	logger    *slog.Logger
}

// openApp builds the full component graph: database, registry with
// persisted state, core adapters, community plugins from disk, dispatcher,
// and syncer.
func openApp(ctx context.Context, cfg Config) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	db, err := sql.Open("sqlite", cfg.databasePath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	stateStore, err := registry.NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	instances, err := store.New(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	reg := registry.New(registry.WithStateStore(stateStore), registry.WithLogger(logger))
	if err := builtin.RegisterAll(reg); err != nil {
		db.Close()
		return nil, err
	}

	validator, err := manifest.NewValidator(cfg.CoreVersion)
	if err != nil {
		db.Close()
		return nil, err
	}
	loader := dynamic.NewLoader(dynamic.NewInterpreterPool())
	inst, err := installer.New(cfg.pluginsDir(), validator, loader, reg, installer.WithLogger(logger))
	if err != nil {
		db.Close()
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		db:        db,
		reg:       reg,
		instances: instances,
		installer: inst,
		logger:    logger,
	}
	a.loadCommunityPlugins(ctx)

	if err := reg.RestoreState(); err != nil {
		logger.Warn("State restore incomplete", "error", err)
	}

	health := dispatch.NewHealthTracker(reg, dispatch.DefaultFailureThreshold)
	metrics := dispatch.NewMetrics(prometheus.NewRegistry())
	a.disp = dispatch.New(reg, dispatch.WithLogger(logger), dispatch.WithMetrics(metrics))
	a.syncer = syncer.New(a.disp, reg,
		syncer.WithHealthTracker(health),
		syncer.WithConcurrency(cfg.SyncConcurrency),
		syncer.WithLogger(logger),
	)
	return a, nil
}

// loadCommunityPlugins re-registers installed plugin directories found
// under the plugins root. A broken plugin is logged and skipped so one bad
// directory cannot take the CLI down.
func (a *app) loadCommunityPlugins(ctx context.Context) {
	entries, err := os.ReadDir(a.installer.Root())
	if err != nil {
		a.logger.Warn("Read plugins dir", "error", err)
		return
	}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dir := filepath.Join(a.installer.Root(), e.Name())
		if _, err := a.installer.Reinstall(ctx, dir); err != nil {
			a.logger.Warn("Plugin load failed", "dir", dir, "error", err)
		}
	}
}

func (a *app) Close() error {
	return a.db.Close()
}

// resolveInstance looks a server up by display name first, then by id.
func (a *app) resolveInstance(ref string) (media.Instance, error) {
	inst, err := a.instances.GetByName(ref)
	if err == nil {
		return inst, nil
	}
	return a.instances.Get(ref)
}
