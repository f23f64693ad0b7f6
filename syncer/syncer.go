// Package syncer reconciles configured server instances against their
// live servers: it tests each connection, activates plugins on first
// contact, and pulls the current user and library inventories.
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/themaluxis/MUM/dispatch"
	"github.com/themaluxis/MUM/media"
	"github.com/themaluxis/MUM/registry"
)

// DefaultConcurrency bounds how many instances sync at once.
const DefaultConcurrency = 4

// Report summarizes one instance's sync pass.
type Report struct {
	Instance  media.Instance
	Online    bool
	Version   string
	Users     []media.User
	Libraries []media.Library
	Sessions  []media.Session
	Duration  time.Duration
	Err       error
}

// Syncer fans sync passes out over the dispatcher.
type Syncer struct {
	dispatcher  *dispatch.Dispatcher
	reg         *registry.Registry
	health      *dispatch.HealthTracker
	logger      *slog.Logger
	concurrency int
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithConcurrency bounds parallel instance syncs.
func WithConcurrency(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithHealthTracker wires adapter-failure accounting into sync passes.
func WithHealthTracker(h *dispatch.HealthTracker) Option {
	return func(s *Syncer) { s.health = h }
}

// WithLogger sets the syncer logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) { s.logger = l }
}

// New creates a Syncer.
func New(d *dispatch.Dispatcher, reg *registry.Registry, opts ...Option) *Syncer {
	s := &Syncer{
		dispatcher:  d,
		reg:         reg,
		logger:      slog.Default(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync runs one pass over all instances concurrently and returns one
// report per instance, in input order. Individual failures land in their
// report; only a cancelled context aborts the pass.
func (s *Syncer) Sync(ctx context.Context, instances []media.Instance) ([]Report, error) {
	reports := make([]Report, len(instances))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, inst := range instances {
		i, inst := i, inst
		g.Go(func() error {
			reports[i] = s.syncOne(gctx, inst)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}
	return reports, ctx.Err()
}

// syncOne tests the connection, promotes the plugin to active on first
// contact, then pulls whatever inventories the plugin's capability set
// allows.
func (s *Syncer) syncOne(ctx context.Context, inst media.Instance) Report {
	start := time.Now()
	report := Report{Instance: inst}
	defer func() { report.Duration = time.Since(start) }()

	res, err := s.dispatcher.Invoke(ctx, inst, dispatch.OpTestConnection, dispatch.Args{})
	s.recordHealth(inst.PluginID, err)
	if err != nil {
		report.Err = err
		return report
	}
	report.Online = res.Connection.Online
	report.Version = res.Connection.Version
	if !res.Connection.Online {
		report.Err = errors.New("server offline: " + res.Connection.Message)
		return report
	}

	// First successful contact proves the adapter works against a real
	// server.
	if _, err := s.reg.MarkActive(inst.PluginID); err != nil && !errors.Is(err, registry.ErrInvalidTransition) {
		s.logger.Warn("Activation failed", "plugin", inst.PluginID, "error", err)
	}

	report.Users = s.pullUsers(ctx, inst)
	report.Libraries = s.pullLibraries(ctx, inst)
	report.Sessions = s.pullSessions(ctx, inst)

	s.logger.Info("Instance synced",
		"instance", inst.Name,
		"plugin", inst.PluginID,
		"users", len(report.Users),
		"libraries", len(report.Libraries),
		"sessions", len(report.Sessions),
	)
	return report
}

func (s *Syncer) pullUsers(ctx context.Context, inst media.Instance) []media.User {
	res, err := s.dispatcher.Invoke(ctx, inst, dispatch.OpListUsers, dispatch.Args{})
	s.recordHealth(inst.PluginID, err)
	if err != nil {
		s.logSkip(inst, dispatch.OpListUsers, err)
		return nil
	}
	return res.Users
}

func (s *Syncer) pullLibraries(ctx context.Context, inst media.Instance) []media.Library {
	res, err := s.dispatcher.Invoke(ctx, inst, dispatch.OpListLibraries, dispatch.Args{})
	s.recordHealth(inst.PluginID, err)
	if err != nil {
		s.logSkip(inst, dispatch.OpListLibraries, err)
		return nil
	}
	return res.Libraries
}

func (s *Syncer) pullSessions(ctx context.Context, inst media.Instance) []media.Session {
	res, err := s.dispatcher.Invoke(ctx, inst, dispatch.OpListSessions, dispatch.Args{})
	s.recordHealth(inst.PluginID, err)
	if err != nil {
		s.logSkip(inst, dispatch.OpListSessions, err)
		return nil
	}
	return res.Sessions
}

func (s *Syncer) recordHealth(pluginID string, err error) {
	if s.health == nil {
		return
	}
	if s.health.Record(pluginID, err) {
		s.logger.Error("Plugin errored after repeated failures", "plugin", pluginID)
	}
}

// logSkip keeps capability mismatches quiet; a plugin without a feature
// is not a sync failure.
func (s *Syncer) logSkip(inst media.Instance, op dispatch.Op, err error) {
	if kind, ok := dispatch.KindOf(err); ok && kind == dispatch.UnsupportedCapability {
		return
	}
	s.logger.Warn("Sync pull failed", "instance", inst.Name, "op", op, "error", err)
}
