package capability

import "testing"

func TestIsKnown(t *testing.T) {
	for _, c := range All() {
		if !IsKnown(c) {
			t.Errorf("IsKnown(%q) = false, want true", c)
		}
	}
	if IsKnown("time_travel") {
		t.Error("IsKnown accepted an unknown capability")
	}
}

func TestAllIsSorted(t *testing.T) {
	all := All()
	if len(all) != 7 {
		t.Fatalf("expected 7 capabilities, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1] >= all[i] {
			t.Errorf("All() not sorted at %d: %q >= %q", i, all[i-1], all[i])
		}
	}
}

func TestSet(t *testing.T) {
	s := NewSet(UserManagement, LibraryAccess)
	if !s.Has(UserManagement) || !s.Has(LibraryAccess) {
		t.Error("set missing declared members")
	}
	if s.Has(ActiveSessions) {
		t.Error("set reports undeclared member")
	}
	if got := s.List(); len(got) != 2 {
		t.Errorf("List() = %v, want 2 entries", got)
	}
}

func TestSetValidate(t *testing.T) {
	if err := NewSet(Downloads, Transcoding).Validate(); err != nil {
		t.Errorf("valid set rejected: %v", err)
	}
	if err := NewSet(Capability("warp_drive")).Validate(); err == nil {
		t.Error("unknown capability accepted")
	}
}
