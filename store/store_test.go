package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/themaluxis/MUM/media"
)

func openTestStore(t *testing.T) *InstanceStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "instances.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddAssignsID(t *testing.T) {
	s := openTestStore(t)
	inst, err := s.Add(media.Instance{Name: "living room", PluginID: "plex", URL: "http://plex:32400"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if inst.ID == "" {
		t.Fatal("Add must assign an id")
	}

	got, err := s.Get(inst.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "living room" || got.PluginID != "plex" {
		t.Errorf("Get = %+v", got)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	s := openTestStore(t)
	inst, err := s.Add(media.Instance{
		Name:     "books",
		PluginID: "kavita",
		URL:      "http://kavita:5000",
		APIKey:   "secret",
		Config:   map[string]any{"timeout": 30.0, "verify": true},
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.GetByName("books")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if got.ID != inst.ID || got.APIKey != "secret" {
		t.Errorf("got = %+v", got)
	}
	if got.Config["timeout"] != 30.0 || got.Config["verify"] != true {
		t.Errorf("config = %+v", got.Config)
	}
}

func TestDuplicateNameRejected(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Add(media.Instance{Name: "dup", PluginID: "emby", URL: "http://a"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add(media.Instance{Name: "dup", PluginID: "emby", URL: "http://b"}); err == nil {
		t.Error("duplicate name accepted")
	}
}

func TestListOrderedByName(t *testing.T) {
	s := openTestStore(t)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := s.Add(media.Instance{Name: name, PluginID: "emby", URL: "http://x"}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"alpha", "mid", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("List = %d entries", len(got))
	}
	for i, inst := range got {
		if inst.Name != want[i] {
			t.Errorf("List[%d] = %q, want %q", i, inst.Name, want[i])
		}
	}
}

func TestUpdateAndRemove(t *testing.T) {
	s := openTestStore(t)
	inst, err := s.Add(media.Instance{Name: "box", PluginID: "jellyfin", URL: "http://old"})
	if err != nil {
		t.Fatal(err)
	}

	inst.URL = "http://new"
	if err := s.Update(inst); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := s.Get(inst.ID)
	if got.URL != "http://new" {
		t.Errorf("URL = %q", got.URL)
	}

	if err := s.Remove(inst.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := s.Get(inst.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after remove = %v, want ErrNotFound", err)
	}
	if err := s.Remove(inst.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove = %v, want ErrNotFound", err)
	}
	if err := s.Update(inst); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update after remove = %v, want ErrNotFound", err)
	}
}
