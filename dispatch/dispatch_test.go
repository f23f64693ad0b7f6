package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themaluxis/MUM/capability"
	"github.com/themaluxis/MUM/manifest"
	"github.com/themaluxis/MUM/media"
	"github.com/themaluxis/MUM/registry"
)

// spyService counts adapter calls and plays back configured results.
type spyService struct {
	calls int

	connection media.ConnectionTestResult
	users      []media.User
	libraries  []media.Library
	sessions   []media.Session
	err        error
	panicMsg   string
	block      bool
}

func (s *spyService) bump(ctx context.Context) error {
	s.calls++
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

func (s *spyService) TestConnection(ctx context.Context) (media.ConnectionTestResult, error) {
	if err := s.bump(ctx); err != nil {
		return media.ConnectionTestResult{}, err
	}
	return s.connection, nil
}

func (s *spyService) Libraries(ctx context.Context) ([]media.Library, error) {
	if err := s.bump(ctx); err != nil {
		return nil, err
	}
	return s.libraries, nil
}

func (s *spyService) Users(ctx context.Context) ([]media.User, error) {
	if err := s.bump(ctx); err != nil {
		return nil, err
	}
	return s.users, nil
}

func (s *spyService) CreateUser(ctx context.Context, u media.NewUser) (media.User, error) {
	if err := s.bump(ctx); err != nil {
		return media.User{}, err
	}
	return media.User{ID: "new", Username: u.Username}, nil
}

func (s *spyService) UpdateUserAccess(ctx context.Context, userID string, access media.UserAccess) error {
	return s.bump(ctx)
}

func (s *spyService) DeleteUser(ctx context.Context, userID string) error {
	return s.bump(ctx)
}

func (s *spyService) ActiveSessions(ctx context.Context) ([]media.Session, error) {
	if err := s.bump(ctx); err != nil {
		return nil, err
	}
	return s.sessions, nil
}

func (s *spyService) TerminateSession(ctx context.Context, sessionID, reason string) error {
	return s.bump(ctx)
}

func spyManifest(id string, features ...capability.Capability) *manifest.Manifest {
	return &manifest.Manifest{
		PluginID:          id,
		Name:              id,
		Version:           "1.0.0",
		ModulePath:        "adapter.go",
		ServiceClass:      "New",
		SupportedFeatures: features,
	}
}

// setup registers a spy-backed plugin and enables it.
func setup(t *testing.T, spy *spyService, features ...capability.Capability) (*Dispatcher, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	factory := func(inst media.Instance) (media.Service, error) { return spy, nil }
	_, err := reg.Register(spyManifest("spy", features...), registry.KindCommunity, factory, "")
	require.NoError(t, err)
	_, err = reg.Enable("spy")
	require.NoError(t, err)
	return New(reg), reg
}

func instance() media.Instance {
	return media.Instance{ID: "i1", Name: "test server", PluginID: "spy"}
}

func TestInvokeUnknownPlugin(t *testing.T) {
	d := New(registry.New())
	_, err := d.Invoke(context.Background(), instance(), OpTestConnection, Args{})
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, UnknownPlugin, kind)
}

func TestInvokeDisabledPlugin(t *testing.T) {
	spy := &spyService{}
	d, reg := setup(t, spy, capability.LibraryAccess)
	_, err := reg.Disable("spy")
	require.NoError(t, err)

	_, err = d.Invoke(context.Background(), instance(), OpTestConnection, Args{})
	kind, _ := KindOf(err)
	assert.Equal(t, PluginDisabled, kind)
	assert.Zero(t, spy.calls, "adapter must not run for a disabled plugin")
}

func TestInvokeErroredPluginIsGated(t *testing.T) {
	spy := &spyService{}
	d, reg := setup(t, spy, capability.LibraryAccess)
	_, err := reg.MarkError("spy", "broken")
	require.NoError(t, err)

	_, err = d.Invoke(context.Background(), instance(), OpListLibraries, Args{})
	kind, _ := KindOf(err)
	assert.Equal(t, PluginDisabled, kind)
	assert.Zero(t, spy.calls)
}

func TestCapabilityGateFiresBeforeAdapter(t *testing.T) {
	spy := &spyService{}
	d, _ := setup(t, spy, capability.LibraryAccess) // no active_sessions

	_, err := d.Invoke(context.Background(), instance(), OpListSessions, Args{})
	kind, _ := KindOf(err)
	assert.Equal(t, UnsupportedCapability, kind)
	assert.Zero(t, spy.calls, "gate must fire before any adapter code")
}

func TestConnectionTestIsUngated(t *testing.T) {
	spy := &spyService{connection: media.ConnectionTestResult{Online: true, Version: "9.1"}}
	d, _ := setup(t, spy) // no capabilities at all

	res, err := d.Invoke(context.Background(), instance(), OpTestConnection, Args{})
	require.NoError(t, err)
	assert.True(t, res.Connection.Online)
	assert.Equal(t, "9.1", res.Connection.Version)
}

func TestInvalidInstanceConfig(t *testing.T) {
	spy := &spyService{}
	d, _ := setup(t, spy, capability.LibraryAccess)

	inst := instance()
	inst.Config = map[string]any{"undeclared": true}
	_, err := d.Invoke(context.Background(), inst, OpListLibraries, Args{})
	kind, _ := KindOf(err)
	assert.Equal(t, InvalidConfig, kind)
	assert.Zero(t, spy.calls)
}

func TestResultNormalization(t *testing.T) {
	spy := &spyService{
		users:    []media.User{{ID: "1", Username: "alice"}}, // nil LibraryIDs
		sessions: []media.Session{{SessionID: "s", ProgressPercent: 150}},
	}
	d, _ := setup(t, spy, capability.UserManagement, capability.ActiveSessions)

	res, err := d.Invoke(context.Background(), instance(), OpListUsers, Args{})
	require.NoError(t, err)
	require.Len(t, res.Users, 1)
	assert.NotNil(t, res.Users[0].LibraryIDs, "library ids must normalize to an empty slice")

	res, err = d.Invoke(context.Background(), instance(), OpListSessions, Args{})
	require.NoError(t, err)
	require.Len(t, res.Sessions, 1)
	assert.Equal(t, 100.0, res.Sessions[0].ProgressPercent, "progress must clamp to 100")
	assert.Equal(t, "unknown", res.Sessions[0].State)
}

func TestAdapterErrorIsContained(t *testing.T) {
	cause := errors.New("connection reset")
	spy := &spyService{err: cause}
	d, _ := setup(t, spy, capability.LibraryAccess)

	_, err := d.Invoke(context.Background(), instance(), OpListLibraries, Args{})
	kind, _ := KindOf(err)
	assert.Equal(t, AdapterFailure, kind)
	assert.ErrorIs(t, err, cause, "the cause must stay reachable through the wrap")
}

func TestAdapterPanicIsContained(t *testing.T) {
	spy := &spyService{panicMsg: "nil map write"}
	d, _ := setup(t, spy, capability.LibraryAccess)

	_, err := d.Invoke(context.Background(), instance(), OpListLibraries, Args{})
	kind, ok := KindOf(err)
	require.True(t, ok, "panic must surface as a dispatch error, got %v", err)
	assert.Equal(t, AdapterFailure, kind)
	assert.Contains(t, err.Error(), "nil map write")
}

func TestNotSupportedBecomesUnsupportedCapability(t *testing.T) {
	spy := &spyService{err: media.ErrNotSupported}
	d, _ := setup(t, spy, capability.UserManagement)

	_, err := d.Invoke(context.Background(), instance(), OpDeleteUser, Args{UserID: "u"})
	kind, _ := KindOf(err)
	assert.Equal(t, UnsupportedCapability, kind)
}

func TestInvokeTimeout(t *testing.T) {
	spy := &spyService{block: true}
	reg := registry.New()
	factory := func(inst media.Instance) (media.Service, error) { return spy, nil }
	_, err := reg.Register(spyManifest("spy", capability.LibraryAccess), registry.KindCommunity, factory, "")
	require.NoError(t, err)
	_, err = reg.Enable("spy")
	require.NoError(t, err)
	d := New(reg, WithTimeout(30*time.Millisecond))

	start := time.Now()
	_, err = d.Invoke(context.Background(), instance(), OpListLibraries, Args{})
	kind, _ := KindOf(err)
	assert.Equal(t, AdapterFailure, kind)
	assert.Less(t, time.Since(start), 5*time.Second, "a stuck adapter must not block past the timeout")
}

func TestInvokeRecordsMetrics(t *testing.T) {
	spy := &spyService{connection: media.ConnectionTestResult{Online: true}}
	reg := registry.New()
	factory := func(inst media.Instance) (media.Service, error) { return spy, nil }
	_, err := reg.Register(spyManifest("spy", capability.LibraryAccess), registry.KindCommunity, factory, "")
	require.NoError(t, err)
	_, err = reg.Enable("spy")
	require.NoError(t, err)

	promReg := prometheus.NewRegistry()
	d := New(reg, WithMetrics(NewMetrics(promReg)))

	_, err = d.Invoke(context.Background(), instance(), OpTestConnection, Args{})
	require.NoError(t, err)
	_, err = d.Invoke(context.Background(), instance(), OpListSessions, Args{})
	require.Error(t, err)

	families, err := promReg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["mum_dispatch_invocations_total"])
	assert.True(t, names["mum_dispatch_duration_seconds"])
	assert.Equal(t, 2, testutil.CollectAndCount(promReg, "mum_dispatch_invocations_total"),
		"one series per outcome")
}

func TestMutatingOpsRequireArgs(t *testing.T) {
	spy := &spyService{}
	d, _ := setup(t, spy, capability.UserManagement)

	_, err := d.Invoke(context.Background(), instance(), OpCreateUser, Args{})
	kind, _ := KindOf(err)
	assert.Equal(t, AdapterFailure, kind)

	res, err := d.Invoke(context.Background(), instance(), OpCreateUser, Args{
		NewUser: &media.NewUser{Username: "carol"},
	})
	require.NoError(t, err)
	assert.Equal(t, "carol", res.User.Username)

	res, err = d.Invoke(context.Background(), instance(), OpUpdateUserAccess, Args{
		UserID: "u1",
		Access: &media.UserAccess{LibraryIDs: []string{"l1"}},
	})
	require.NoError(t, err)
	assert.True(t, res.OK)
}
