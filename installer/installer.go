// Package installer turns uploaded plugin archives into registered,
// loadable plugins with full rollback on any failure.
package installer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/themaluxis/MUM/dynamic"
	"github.com/themaluxis/MUM/manifest"
	"github.com/themaluxis/MUM/registry"
)

// Installer extracts, validates, and registers plugins under a single
// plugins root directory. Each plugin owns the subdirectory named after
// its identifier.
type Installer struct {
	root      string
	validator *manifest.Validator
	loader    *dynamic.Loader
	reg       *registry.Registry
	deps      DependencyInstaller
	logger    *slog.Logger
}

// Option configures an Installer.
type Option func(*Installer)

// WithDependencyInstaller sets the dependency collaborator. Defaults to
// NopInstaller.
func WithDependencyInstaller(d DependencyInstaller) Option {
	return func(i *Installer) { i.deps = d }
}

// WithLogger sets the installer logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Installer) { i.logger = l }
}

// New creates an Installer rooted at dir.
func New(dir string, validator *manifest.Validator, loader *dynamic.Loader, reg *registry.Registry, opts ...Option) (*Installer, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create plugins root: %w", err)
	}
	inst := &Installer{
		root:      dir,
		validator: validator,
		loader:    loader,
		reg:       reg,
		deps:      NopInstaller{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(inst)
	}
	return inst, nil
}

// Install processes an uploaded plugin archive end to end: extract into a
// staging directory, validate the manifest, install declared dependencies,
// load the adapter and verify it satisfies the capability contract, then
// move the directory into place and register the plugin at state disabled.
// Reinstalling an existing identifier is the upgrade path: the old adapter
// stays live until the new one has passed every step.
func (i *Installer) Install(ctx context.Context, archive []byte) (rec *registry.Record, err error) {
	staging, err := os.MkdirTemp(i.root, ".staging-")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(staging)
		}
	}()

	if err := extractArchive(archive, staging); err != nil {
		return nil, errKind(BadArchive, err)
	}

	m, prog, err := i.validateAndLoad(ctx, staging)
	if err != nil {
		return nil, err
	}

	// An existing record means upgrade; core plugins cannot be overridden
	// by an upload.
	existing, exists := i.reg.Get(m.PluginID)
	if exists && existing.Kind == registry.KindCore {
		return nil, errKind(CoreConflict, fmt.Errorf("plugin %q is a core plugin and cannot be overridden", m.PluginID))
	}

	finalDir := filepath.Join(i.root, m.PluginID)
	if err := i.guardUnder(finalDir, m.PluginID); err != nil {
		return nil, errKind(InvalidManifest, err)
	}

	if exists {
		rec, err = i.upgrade(m, prog, staging, finalDir)
	} else {
		rec, err = i.installFresh(m, prog, staging, finalDir)
	}
	if err != nil {
		return nil, err
	}
	committed = true
	i.logger.Info("Plugin installed", "plugin", m.PluginID, "version", m.Version, "upgrade", exists)
	return rec, nil
}

// Reinstall revalidates and reloads a plugin directory in place, swapping
// the adapter reference if the plugin is already registered. Used by the
// directory watcher for hot reloads.
func (i *Installer) Reinstall(ctx context.Context, pluginDir string) (*registry.Record, error) {
	m, prog, err := i.validateAndLoad(ctx, pluginDir)
	if err != nil {
		return nil, err
	}
	if existing, ok := i.reg.Get(m.PluginID); ok {
		if existing.Kind == registry.KindCore {
			return nil, errKind(CoreConflict, fmt.Errorf("plugin %q is a core plugin and cannot be overridden", m.PluginID))
		}
		rec, err := i.reg.Swap(m, registry.Factory(prog.NewService), pluginDir)
		if err != nil {
			return nil, errKind(InvalidManifest, err)
		}
		return rec, nil
	}
	rec, err := i.reg.Register(m, registry.KindCommunity, registry.Factory(prog.NewService), pluginDir)
	if err != nil {
		return nil, errKind(InvalidManifest, err)
	}
	return rec, nil
}

// Uninstall removes a community plugin: registry first (which enforces the
// core-plugin and lifecycle protections), then the plugin directory.
func (i *Installer) Uninstall(id string) error {
	rec, ok := i.reg.Get(id)
	if !ok {
		return registry.ErrNotFound
	}
	if err := i.reg.Uninstall(id); err != nil {
		return err
	}
	dir := filepath.Join(i.root, id)
	if rec.SourceDir != "" {
		dir = rec.SourceDir
	}
	if err := i.guardUnder(dir, id); err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove plugin dir: %w", err)
	}
	i.logger.Info("Plugin files removed", "plugin", id)
	return nil
}

// Root returns the plugins root directory.
func (i *Installer) Root() string {
	return i.root
}

// validateAndLoad runs manifest validation, dependency installation, and
// the structural contract check against a plugin directory.
func (i *Installer) validateAndLoad(ctx context.Context, dir string) (*manifest.Manifest, *dynamic.Program, error) {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, nil, errKind(InvalidManifest, err)
	}
	if err := i.validator.Validate(m); err != nil {
		if kind, ok := manifest.KindOf(err); ok && kind == manifest.IncompatibleVersion {
			return nil, nil, errKind(IncompatibleVersion, err)
		}
		return nil, nil, errKind(InvalidManifest, err)
	}

	if len(m.Dependencies) > 0 {
		if err := i.deps.Install(ctx, m.Dependencies); err != nil {
			return nil, nil, errKind(DependencyFailed, err)
		}
	}

	prog, err := i.loader.LoadFile(m.PluginID, filepath.Join(dir, m.ModulePath))
	if err != nil {
		return nil, nil, errKind(ContractViolation, err)
	}
	if err := prog.VerifyContract(m.Features()); err != nil {
		return nil, nil, errKind(ContractViolation, err)
	}
	return m, prog, nil
}

// installFresh moves the staged directory into place and registers the
// plugin. A registration failure removes the moved directory again.
func (i *Installer) installFresh(m *manifest.Manifest, prog *dynamic.Program, staging, finalDir string) (*registry.Record, error) {
	if err := os.Rename(staging, finalDir); err != nil {
		return nil, errKind(BadArchive, fmt.Errorf("move plugin into place: %w", err))
	}
	rec, err := i.reg.Register(m, registry.KindCommunity, registry.Factory(prog.NewService), finalDir)
	if err != nil {
		os.RemoveAll(finalDir)
		return nil, errKind(InvalidManifest, err)
	}
	return rec, nil
}

// upgrade swaps the new version in atomically: the old directory is set
// aside until the new one is in place and the registry swap succeeded, so
// there is never a moment without a working version of the plugin.
func (i *Installer) upgrade(m *manifest.Manifest, prog *dynamic.Program, staging, finalDir string) (*registry.Record, error) {
	backup := filepath.Join(i.root, ".old-"+m.PluginID)
	os.RemoveAll(backup)

	hadOld := false
	if _, err := os.Stat(finalDir); err == nil {
		hadOld = true
		if err := os.Rename(finalDir, backup); err != nil {
			return nil, errKind(BadArchive, fmt.Errorf("set aside old plugin dir: %w", err))
		}
	}
	restore := func() {
		os.RemoveAll(finalDir)
		if hadOld {
			_ = os.Rename(backup, finalDir)
		}
	}

	if err := os.Rename(staging, finalDir); err != nil {
		restore()
		return nil, errKind(BadArchive, fmt.Errorf("move plugin into place: %w", err))
	}
	rec, err := i.reg.Swap(m, registry.Factory(prog.NewService), finalDir)
	if err != nil {
		restore()
		return nil, errKind(InvalidManifest, err)
	}
	os.RemoveAll(backup)
	return rec, nil
}

// guardUnder rejects plugin identifiers that would resolve outside the
// plugins root.
func (i *Installer) guardUnder(dir, id string) error {
	absRoot, err := filepath.Abs(i.root)
	if err != nil {
		return fmt.Errorf("resolve plugins root: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve plugin dir: %w", err)
	}
	if absDir == absRoot || filepath.Dir(absDir) != absRoot {
		return fmt.Errorf("invalid plugin identifier %q", id)
	}
	return nil
}
