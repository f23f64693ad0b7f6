package syncer

import (
	"context"
	"errors"
	"testing"

	"github.com/themaluxis/MUM/capability"
	"github.com/themaluxis/MUM/dispatch"
	"github.com/themaluxis/MUM/manifest"
	"github.com/themaluxis/MUM/media"
	"github.com/themaluxis/MUM/registry"
)

// fakeService plays back fixed inventories.
type fakeService struct {
	online  bool
	users   []media.User
	failAll bool
}

func (f *fakeService) TestConnection(ctx context.Context) (media.ConnectionTestResult, error) {
	if f.failAll {
		return media.ConnectionTestResult{}, errors.New("dial tcp: refused")
	}
	return media.ConnectionTestResult{Online: f.online, Message: "ok", Version: "3.1"}, nil
}

func (f *fakeService) Libraries(ctx context.Context) ([]media.Library, error) {
	return []media.Library{{ID: "l1", Name: "Movies"}}, nil
}

func (f *fakeService) Users(ctx context.Context) ([]media.User, error) {
	return f.users, nil
}

func (f *fakeService) CreateUser(ctx context.Context, u media.NewUser) (media.User, error) {
	return media.User{}, media.ErrNotSupported
}

func (f *fakeService) UpdateUserAccess(ctx context.Context, userID string, access media.UserAccess) error {
	return media.ErrNotSupported
}

func (f *fakeService) DeleteUser(ctx context.Context, userID string) error {
	return media.ErrNotSupported
}

func (f *fakeService) ActiveSessions(ctx context.Context) ([]media.Session, error) {
	return nil, media.ErrNotSupported
}

func (f *fakeService) TerminateSession(ctx context.Context, sessionID, reason string) error {
	return media.ErrNotSupported
}

func syncSetup(t *testing.T, svc media.Service, features ...capability.Capability) (*Syncer, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	m := &manifest.Manifest{
		PluginID: "fake", Name: "Fake", Version: "1.0.0",
		ModulePath: "adapter.go", ServiceClass: "New",
		SupportedFeatures: features,
	}
	factory := func(inst media.Instance) (media.Service, error) { return svc, nil }
	if _, err := reg.Register(m, registry.KindCommunity, factory, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Enable("fake"); err != nil {
		t.Fatal(err)
	}
	d := dispatch.New(reg)
	health := dispatch.NewHealthTracker(reg, 3)
	return New(d, reg, WithHealthTracker(health)), reg
}

func TestSyncActivatesOnFirstContact(t *testing.T) {
	svc := &fakeService{online: true, users: []media.User{{ID: "1", Username: "alice"}}}
	s, reg := syncSetup(t, svc, capability.UserManagement, capability.LibraryAccess)

	instances := []media.Instance{{ID: "i1", Name: "box", PluginID: "fake"}}
	reports, err := s.Sync(context.Background(), instances)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("reports = %d", len(reports))
	}
	r := reports[0]
	if !r.Online || r.Version != "3.1" {
		t.Errorf("report = %+v", r)
	}
	if len(r.Users) != 1 || len(r.Libraries) != 1 {
		t.Errorf("inventories = %d users, %d libraries", len(r.Users), len(r.Libraries))
	}
	if r.Sessions != nil {
		t.Errorf("sessions should be skipped for a plugin without the feature, got %v", r.Sessions)
	}

	rec, _ := reg.Get("fake")
	if rec.State != registry.StateActive {
		t.Errorf("state = %q, want active after first successful contact", rec.State)
	}
}

func TestSyncReportsOfflineServer(t *testing.T) {
	svc := &fakeService{online: false}
	s, reg := syncSetup(t, svc, capability.LibraryAccess)

	reports, err := s.Sync(context.Background(), []media.Instance{{Name: "down", PluginID: "fake"}})
	if err != nil {
		t.Fatal(err)
	}
	if reports[0].Online {
		t.Error("offline server reported online")
	}
	if reports[0].Err == nil {
		t.Error("offline server must carry an error in its report")
	}

	rec, _ := reg.Get("fake")
	if rec.State != registry.StateEnabled {
		t.Errorf("state = %q, offline contact must not activate", rec.State)
	}
}

func TestSyncRepeatedFailuresTripHealth(t *testing.T) {
	svc := &fakeService{failAll: true}
	s, reg := syncSetup(t, svc, capability.LibraryAccess)

	inst := []media.Instance{{Name: "flaky", PluginID: "fake"}}
	for i := 0; i < 3; i++ {
		if _, err := s.Sync(context.Background(), inst); err != nil {
			t.Fatal(err)
		}
	}

	rec, _ := reg.Get("fake")
	if rec.State != registry.StateError {
		t.Errorf("state = %q, want error after three consecutive adapter failures", rec.State)
	}
}

func TestSyncPerInstanceIsolation(t *testing.T) {
	svc := &fakeService{online: true}
	s, _ := syncSetup(t, svc, capability.LibraryAccess)

	instances := []media.Instance{
		{Name: "good", PluginID: "fake"},
		{Name: "ghost", PluginID: "no-such-plugin"},
	}
	reports, err := s.Sync(context.Background(), instances)
	if err != nil {
		t.Fatal(err)
	}
	if reports[0].Err != nil {
		t.Errorf("good instance failed: %v", reports[0].Err)
	}
	if reports[1].Err == nil {
		t.Error("unknown plugin must fail its own report only")
	}
}
