package media

import (
	"reflect"
	"testing"
)

func TestUserNormalizeDefaults(t *testing.T) {
	u := User{ID: "1", Username: "alice"}.Normalize()
	if u.LibraryIDs == nil {
		t.Fatal("LibraryIDs should default to an empty slice")
	}
	if len(u.LibraryIDs) != 0 {
		t.Errorf("LibraryIDs = %v, want empty", u.LibraryIDs)
	}
	if u.Email != "" || u.AvatarURL != "" || u.IsAdmin || u.IsHomeUser {
		t.Error("missing fields must keep zero defaults")
	}
}

func TestLibraryNormalizeExternalIDFallback(t *testing.T) {
	l := Library{ID: "lib-1", Name: "Movies"}.Normalize()
	if l.ExternalID != "lib-1" {
		t.Errorf("ExternalID = %q, want fallback to id", l.ExternalID)
	}
	l = Library{ID: "lib-1", ExternalID: "uuid-9"}.Normalize()
	if l.ExternalID != "uuid-9" {
		t.Errorf("ExternalID = %q, want explicit value kept", l.ExternalID)
	}
}

func TestSessionNormalizeClampsProgress(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{-5, 0},
		{0, 0},
		{42.5, 42.5},
		{100, 100},
		{180, 100},
	}
	for _, c := range cases {
		got := Session{ProgressPercent: c.in}.Normalize().ProgressPercent
		if got != c.want {
			t.Errorf("progress %v normalized to %v, want %v", c.in, got, c.want)
		}
	}
	if s := (Session{}).Normalize(); s.State != "unknown" {
		t.Errorf("State = %q, want unknown default", s.State)
	}
}

func TestUserFromMap(t *testing.T) {
	u := UserFromMap(map[string]any{
		"id":          "7",
		"username":    "bob",
		"is_admin":    true,
		"library_ids": []any{"a", "b"},
	})
	want := User{ID: "7", Username: "bob", IsAdmin: true, LibraryIDs: []string{"a", "b"}}
	if !reflect.DeepEqual(u, want) {
		t.Errorf("UserFromMap = %+v, want %+v", u, want)
	}
}

func TestSessionFromMapNumericWidening(t *testing.T) {
	s := SessionFromMap(map[string]any{
		"session_id":       "s1",
		"progress_percent": 37, // interpreted adapters may return int
	})
	if s.ProgressPercent != 37 {
		t.Errorf("ProgressPercent = %v, want 37", s.ProgressPercent)
	}
}

func TestLibraryFromMapMissingFields(t *testing.T) {
	l := LibraryFromMap(map[string]any{"id": "x"})
	if l.ExternalID != "x" {
		t.Errorf("ExternalID = %q, want id fallback", l.ExternalID)
	}
	if l.ItemCount != 0 {
		t.Errorf("ItemCount = %d, want 0", l.ItemCount)
	}
}
