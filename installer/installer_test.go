package installer

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themaluxis/MUM/dynamic"
	"github.com/themaluxis/MUM/manifest"
	"github.com/themaluxis/MUM/registry"
)

const adapterSource = `package adapter

func TestConnection(cfg map[string]any) (bool, string, error) {
	return true, "ok", nil
}

func Libraries(cfg map[string]any) ([]map[string]any, error) {
	return []map[string]any{{"id": "1", "name": "Books"}}, nil
}

func Users(cfg map[string]any) ([]map[string]any, error) {
	return nil, nil
}
`

func manifestJSON(id, version string) string {
	return fmt.Sprintf(`{
		"plugin_id": %q,
		"name": "Test Plugin",
		"version": %q,
		"module_path": "adapter.go",
		"service_class": "New",
		"supported_features": ["library_access"]
	}`, id, version)
}

// tarGz builds an in-memory plugin archive.
func tarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

func validArchive(t *testing.T, id, version string) []byte {
	return tarGz(t, map[string]string{
		"plugin.json": manifestJSON(id, version),
		"adapter.go":  adapterSource,
	})
}

func newTestInstaller(t *testing.T, opts ...Option) (*Installer, *registry.Registry) {
	t.Helper()
	validator, err := manifest.NewValidator("1.0.0")
	require.NoError(t, err)
	reg := registry.New()
	loader := dynamic.NewLoader(dynamic.NewInterpreterPool())
	inst, err := New(filepath.Join(t.TempDir(), "plugins"), validator, loader, reg, opts...)
	require.NoError(t, err)
	return inst, reg
}

// pluginDirs lists non-hidden entries under the plugins root.
func pluginDirs(t *testing.T, inst *Installer) []string {
	t.Helper()
	entries, err := os.ReadDir(inst.Root())
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}

func TestInstallSuccess(t *testing.T) {
	inst, reg := newTestInstaller(t)

	rec, err := inst.Install(context.Background(), validArchive(t, "testplug", "1.0.0"))
	require.NoError(t, err)
	assert.Equal(t, "testplug", rec.ID())
	assert.Equal(t, registry.StateDisabled, rec.State, "fresh installs land disabled")
	assert.Equal(t, registry.KindCommunity, rec.Kind)

	if _, ok := reg.Get("testplug"); !ok {
		t.Fatal("plugin not registered")
	}
	if _, err := os.Stat(filepath.Join(inst.Root(), "testplug", "plugin.json")); err != nil {
		t.Errorf("plugin files not in place: %v", err)
	}
	assert.Equal(t, []string{"testplug"}, pluginDirs(t, inst))
}

func TestInstallBadArchive(t *testing.T) {
	inst, reg := newTestInstaller(t)

	_, err := inst.Install(context.Background(), []byte("not an archive"))
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, BadArchive, kind)
	assert.Empty(t, reg.List())
	assert.Empty(t, pluginDirs(t, inst), "failed install must leave no filesystem trace")
}

func TestInstallMissingManifest(t *testing.T) {
	inst, _ := newTestInstaller(t)

	archive := tarGz(t, map[string]string{"adapter.go": adapterSource})
	_, err := inst.Install(context.Background(), archive)
	kind, _ := KindOf(err)
	assert.Equal(t, InvalidManifest, kind)
	assert.Empty(t, pluginDirs(t, inst))
}

func TestInstallIncompatibleVersionLeavesNoTrace(t *testing.T) {
	inst, reg := newTestInstaller(t)

	archive := tarGz(t, map[string]string{
		"plugin.json": `{
			"plugin_id": "toonew",
			"name": "x", "version": "1.0.0",
			"module_path": "adapter.go", "service_class": "New",
			"supported_features": ["library_access"],
			"min_core_version": "9.0.0"
		}`,
		"adapter.go": adapterSource,
	})
	_, err := inst.Install(context.Background(), archive)
	kind, _ := KindOf(err)
	assert.Equal(t, IncompatibleVersion, kind)
	assert.Empty(t, reg.List())
	assert.Empty(t, pluginDirs(t, inst))
}

func TestInstallContractViolation(t *testing.T) {
	inst, _ := newTestInstaller(t)

	// Users is required unconditionally and is missing here.
	partial := `package adapter

func TestConnection(cfg map[string]any) (bool, string, error) { return true, "", nil }

func Libraries(cfg map[string]any) ([]map[string]any, error) { return nil, nil }
`
	archive := tarGz(t, map[string]string{
		"plugin.json": manifestJSON("partial", "1.0.0"),
		"adapter.go":  partial,
	})
	_, err := inst.Install(context.Background(), archive)
	kind, _ := KindOf(err)
	assert.Equal(t, ContractViolation, kind)
	assert.Empty(t, pluginDirs(t, inst))
}

func TestInstallForbiddenImport(t *testing.T) {
	inst, _ := newTestInstaller(t)

	evil := `package adapter

import "os/exec"

func TestConnection(cfg map[string]any) (bool, string, error) {
	exec.Command("rm").Run()
	return true, "", nil
}

func Libraries(cfg map[string]any) ([]map[string]any, error) { return nil, nil }

func Users(cfg map[string]any) ([]map[string]any, error) { return nil, nil }
`
	archive := tarGz(t, map[string]string{
		"plugin.json": manifestJSON("evil", "1.0.0"),
		"adapter.go":  evil,
	})
	_, err := inst.Install(context.Background(), archive)
	kind, _ := KindOf(err)
	assert.Equal(t, ContractViolation, kind)
}

func TestInstallCoreConflict(t *testing.T) {
	inst, reg := newTestInstaller(t)

	coreManifest := &manifest.Manifest{
		PluginID: "plexlike", Name: "Plexlike", Version: "1.0.0",
		ModulePath: "builtin", ServiceClass: "New",
	}
	_, err := reg.Register(coreManifest, registry.KindCore, nil, "")
	require.NoError(t, err)

	_, err = inst.Install(context.Background(), validArchive(t, "plexlike", "2.0.0"))
	kind, _ := KindOf(err)
	assert.Equal(t, CoreConflict, kind)
	assert.Empty(t, pluginDirs(t, inst))
}

func TestInstallDependencyFailure(t *testing.T) {
	failing := depFunc(func(ctx context.Context, reqs []string) error {
		return errors.New("resolver offline")
	})
	inst, reg := newTestInstaller(t, WithDependencyInstaller(failing))

	archive := tarGz(t, map[string]string{
		"plugin.json": `{
			"plugin_id": "needy", "name": "Needy", "version": "1.0.0",
			"module_path": "adapter.go", "service_class": "New",
			"supported_features": ["library_access"],
			"dependency_list": ["somepkg>=1.0"]
		}`,
		"adapter.go": adapterSource,
	})
	_, err := inst.Install(context.Background(), archive)
	kind, _ := KindOf(err)
	assert.Equal(t, DependencyFailed, kind)
	assert.Empty(t, reg.List())
	assert.Empty(t, pluginDirs(t, inst))
}

type depFunc func(ctx context.Context, reqs []string) error

func (f depFunc) Install(ctx context.Context, reqs []string) error { return f(ctx, reqs) }

func TestUpgradeReplacesVersion(t *testing.T) {
	inst, reg := newTestInstaller(t)

	_, err := inst.Install(context.Background(), validArchive(t, "up", "1.0.0"))
	require.NoError(t, err)
	_, err = reg.Enable("up")
	require.NoError(t, err)

	rec, err := inst.Install(context.Background(), validArchive(t, "up", "2.0.0"))
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", rec.Manifest.Version)
	assert.Equal(t, registry.StateDisabled, rec.State, "upgrades land disabled")

	assert.Equal(t, []string{"up"}, pluginDirs(t, inst), "backup dir must be cleaned up")
}

func TestUpgradeFailureKeepsOldVersion(t *testing.T) {
	inst, reg := newTestInstaller(t)

	_, err := inst.Install(context.Background(), validArchive(t, "up", "1.0.0"))
	require.NoError(t, err)

	// The new archive fails contract verification; the old version must
	// survive untouched.
	broken := tarGz(t, map[string]string{
		"plugin.json": manifestJSON("up", "2.0.0"),
		"adapter.go":  "package adapter\n",
	})
	_, err = inst.Install(context.Background(), broken)
	require.Error(t, err)

	rec, ok := reg.Get("up")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", rec.Manifest.Version)
	assert.Equal(t, []string{"up"}, pluginDirs(t, inst))
}

func TestUninstall(t *testing.T) {
	inst, reg := newTestInstaller(t)

	_, err := inst.Install(context.Background(), validArchive(t, "gone", "1.0.0"))
	require.NoError(t, err)

	require.NoError(t, inst.Uninstall("gone"))
	if _, ok := reg.Get("gone"); ok {
		t.Error("record survived uninstall")
	}
	assert.Empty(t, pluginDirs(t, inst))

	assert.ErrorIs(t, inst.Uninstall("gone"), registry.ErrNotFound)
}

func TestUninstallEnabledRefused(t *testing.T) {
	inst, reg := newTestInstaller(t)

	_, err := inst.Install(context.Background(), validArchive(t, "busy", "1.0.0"))
	require.NoError(t, err)
	_, err = reg.Enable("busy")
	require.NoError(t, err)

	assert.ErrorIs(t, inst.Uninstall("busy"), registry.ErrInvalidTransition)
	assert.Equal(t, []string{"busy"}, pluginDirs(t, inst), "files must remain when uninstall is refused")
}

func TestReinstallRegistersAndSwaps(t *testing.T) {
	inst, reg := newTestInstaller(t)

	dir := filepath.Join(inst.Root(), "hot")
	require.NoError(t, os.MkdirAll(dir, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.json"), []byte(manifestJSON("hot", "1.0.0")), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "adapter.go"), []byte(adapterSource), 0644))

	rec, err := inst.Reinstall(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", rec.Manifest.Version)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.json"), []byte(manifestJSON("hot", "1.1.0")), 0644))
	rec, err = inst.Reinstall(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", rec.Manifest.Version)

	got, _ := reg.Get("hot")
	assert.Equal(t, "1.1.0", got.Manifest.Version)
}
