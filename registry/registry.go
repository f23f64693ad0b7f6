// Package registry holds the process-wide table of media-service plugins
// and enforces their lifecycle state machine.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/themaluxis/MUM/manifest"
)

var (
	// ErrNotFound reports a lookup for an unregistered plugin identifier.
	ErrNotFound = errors.New("registry: plugin not found")

	// ErrDuplicate reports a registration over an existing identifier.
	// Upgrades go through Swap instead.
	ErrDuplicate = errors.New("registry: plugin already registered")

	// ErrCoreProtected reports an uninstall attempt on a core plugin.
	ErrCoreProtected = errors.New("registry: core plugins cannot be uninstalled")

	// ErrInvalidTransition reports a lifecycle transition the state machine
	// does not permit.
	ErrInvalidTransition = errors.New("registry: invalid state transition")
)

// snapshot is an immutable view of the registry. Readers load it without
// taking any lock; writers publish a replacement.
type snapshot struct {
	records map[string]*Record
	order   []string
}

var emptySnapshot = &snapshot{records: map[string]*Record{}}

// Registry maps plugin identifiers to records. Mutations on the same
// identifier serialize; mutations on different identifiers proceed in
// parallel. Reads are lock-free snapshots.
type Registry struct {
	mu      sync.Mutex // guards locks map and snapshot publication
	locks   map[string]*sync.Mutex
	snap    atomic.Pointer[snapshot]
	store   StateStore
	logger  *slog.Logger
	nextSeq int
}

// Option configures a Registry.
type Option func(*Registry)

// WithStateStore attaches a persistence collaborator for lifecycle state.
func WithStateStore(s StateStore) Option {
	return func(r *Registry) { r.store = s }
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		locks:  make(map[string]*sync.Mutex),
		logger: slog.Default(),
	}
	r.snap.Store(emptySnapshot)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// lockFor returns the mutation lock for one plugin identifier.
func (r *Registry) lockFor(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}
	return l
}

// publish installs a new snapshot derived from the current one by applying
// fn. Called with the per-identifier lock held.
func (r *Registry) publish(fn func(*snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.snap.Load()
	next := &snapshot{
		records: make(map[string]*Record, len(cur.records)+1),
		order:   append([]string(nil), cur.order...),
	}
	for k, v := range cur.records {
		next.records[k] = v
	}
	fn(next)
	r.snap.Store(next)
}

// Get retrieves a plugin record by identifier.
func (r *Registry) Get(id string) (*Record, bool) {
	rec, ok := r.snap.Load().records[id]
	return rec, ok
}

// List returns all records in registration order for reproducible listings.
func (r *Registry) List() []*Record {
	s := r.snap.Load()
	out := make([]*Record, 0, len(s.order))
	for _, id := range s.order {
		if rec, ok := s.records[id]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// Register adds a plugin at state disabled. The identifier must be new;
// reinstalling an existing plugin goes through Swap.
func (r *Registry) Register(m *manifest.Manifest, kind Kind, factory Factory, sourceDir string) (*Record, error) {
	if m == nil {
		return nil, fmt.Errorf("registry: manifest is required")
	}
	lock := r.lockFor(m.PluginID)
	lock.Lock()
	defer lock.Unlock()

	if _, exists := r.Get(m.PluginID); exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicate, m.PluginID)
	}

	now := time.Now().UTC()
	rec := &Record{
		Manifest:    m,
		Kind:        kind,
		State:       StateDisabled,
		SourceDir:   sourceDir,
		InstalledAt: now,
		UpdatedAt:   now,
		factory:     factory,
	}
	r.publish(func(s *snapshot) {
		r.nextSeq++
		rec.seq = r.nextSeq
		s.records[m.PluginID] = rec
		s.order = append(s.order, m.PluginID)
	})
	// Registration itself is not persisted: on boot plugins re-register at
	// disabled before RestoreState reapplies the stored lifecycle state, and
	// writing here would clobber that state.
	r.logger.Info("Plugin registered", "plugin", m.PluginID, "version", m.Version, "kind", kind)
	return rec, nil
}

// Swap atomically replaces an existing plugin's manifest and adapter
// factory. The record stays continuously visible; the new version lands at
// state disabled like a fresh install. Registration order is preserved.
func (r *Registry) Swap(m *manifest.Manifest, factory Factory, sourceDir string) (*Record, error) {
	if m == nil {
		return nil, fmt.Errorf("registry: manifest is required")
	}
	lock := r.lockFor(m.PluginID)
	lock.Lock()
	defer lock.Unlock()

	old, exists := r.Get(m.PluginID)
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, m.PluginID)
	}

	rec := old.clone()
	rec.Manifest = m
	rec.factory = factory
	rec.SourceDir = sourceDir
	rec.State = StateDisabled
	rec.LastError = ""
	rec.UpdatedAt = time.Now().UTC()
	r.publish(func(s *snapshot) {
		s.records[m.PluginID] = rec
	})
	r.persist(rec)
	r.logger.Info("Plugin upgraded", "plugin", m.PluginID, "version", m.Version)
	return rec, nil
}

// Enable transitions a plugin from disabled to enabled. Enabling an already
// enabled or active plugin is a no-op returning the current state. A plugin
// in the error state must be disabled first.
func (r *Registry) Enable(id string) (State, error) {
	return r.transition(id, func(rec *Record) (State, error) {
		switch rec.State {
		case StateEnabled, StateActive:
			return rec.State, nil // idempotent
		case StateDisabled:
			return StateEnabled, nil
		default:
			return "", fmt.Errorf("%w: cannot enable plugin in state %q", ErrInvalidTransition, rec.State)
		}
	})
}

// Disable transitions a plugin to disabled from any running state and
// clears its last error. Disabling a disabled plugin is a no-op.
func (r *Registry) Disable(id string) (State, error) {
	return r.transition(id, func(rec *Record) (State, error) {
		if rec.State == StateDisabled {
			return StateDisabled, nil // idempotent
		}
		return StateDisabled, nil
	})
}

// MarkActive records the first successful connection test against a
// configured instance, moving the plugin from enabled to active.
func (r *Registry) MarkActive(id string) (State, error) {
	return r.transition(id, func(rec *Record) (State, error) {
		switch rec.State {
		case StateActive:
			return StateActive, nil // idempotent
		case StateEnabled:
			return StateActive, nil
		default:
			return "", fmt.Errorf("%w: cannot activate plugin in state %q", ErrInvalidTransition, rec.State)
		}
	})
}

// MarkError records an unrecoverable load or runtime fault. The plugin
// stays registered so operators can inspect and retry without re-uploading.
func (r *Registry) MarkError(id string, detail string) (State, error) {
	return r.transitionWith(id, func(rec *Record) (State, error) {
		switch rec.State {
		case StateEnabled, StateActive, StateError:
			return StateError, nil
		default:
			return "", fmt.Errorf("%w: cannot fault plugin in state %q", ErrInvalidTransition, rec.State)
		}
	}, detail)
}

// Uninstall removes a plugin from the registry. Refused for core plugins
// and for plugins not in the disabled state.
func (r *Registry) Uninstall(id string) error {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	rec, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if rec.Kind == KindCore {
		return fmt.Errorf("%w: %q", ErrCoreProtected, id)
	}
	if rec.State != StateDisabled {
		return fmt.Errorf("%w: disable plugin %q before uninstalling", ErrInvalidTransition, id)
	}

	r.publish(func(s *snapshot) {
		delete(s.records, id)
		for i, oid := range s.order {
			if oid == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	})
	if r.store != nil {
		if err := r.store.Delete(id); err != nil {
			r.logger.Error("Failed to delete persisted plugin state", "plugin", id, "error", err)
		}
	}
	r.logger.Info("Plugin uninstalled", "plugin", id)
	return nil
}

// RestoreState reapplies persisted lifecycle states to registered plugins.
// Called after boot, once built-ins are registered. Persisted active states
// degrade to enabled; activation requires a fresh successful connection
// test.
func (r *Registry) RestoreState() error {
	if r.store == nil {
		return nil
	}
	states, err := r.store.Load()
	if err != nil {
		return fmt.Errorf("registry: load persisted state: %w", err)
	}
	for id, ps := range states {
		if _, ok := r.Get(id); !ok {
			continue
		}
		if ps.State == StateEnabled || ps.State == StateActive {
			if _, err := r.Enable(id); err != nil {
				r.logger.Warn("Failed to restore plugin state", "plugin", id, "error", err)
			}
		}
	}
	return nil
}

func (r *Registry) transition(id string, decide func(*Record) (State, error)) (State, error) {
	return r.transitionWith(id, decide, "")
}

// transitionWith applies one state transition under the plugin's mutation
// lock, so concurrent transitions on the same identifier serialize.
func (r *Registry) transitionWith(id string, decide func(*Record) (State, error), lastError string) (State, error) {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	rec, ok := r.Get(id)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	next, err := decide(rec)
	if err != nil {
		return "", err
	}
	if next == rec.State && lastError == rec.LastError {
		return next, nil // no-op transition, nothing to publish
	}

	updated := rec.clone()
	updated.State = next
	updated.LastError = lastError
	if next == StateDisabled {
		updated.LastError = ""
	}
	updated.UpdatedAt = time.Now().UTC()
	r.publish(func(s *snapshot) {
		s.records[id] = updated
	})
	r.persist(updated)
	r.logger.Info("Plugin state changed", "plugin", id, "state", next)
	return next, nil
}

func (r *Registry) persist(rec *Record) {
	if r.store == nil {
		return
	}
	if err := r.store.Save(rec); err != nil {
		r.logger.Error("Failed to persist plugin state", "plugin", rec.ID(), "error", err)
	}
}
