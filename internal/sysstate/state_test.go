package sysstate

import "testing"

func TestNewHasRootAdministrator(t *testing.T) {
	s := New()
	root := s.User(RootSlotIndex)
	if root.Role != RoleAdministrator {
		t.Fatalf("root role = %v, want Administrator", root.Role)
	}
	if root.Empty() {
		t.Fatal("root slot must not be empty")
	}
}

func TestClearUserNeverVacatesRoot(t *testing.T) {
	s := New()
	s.ClearUser(RootSlotIndex)
	if s.User(RootSlotIndex).Empty() {
		t.Fatal("ClearUser must not vacate the root slot")
	}
}

func TestFindByCredentials(t *testing.T) {
	s := New()
	s.SetUser(0, User{Username: "alice", Password: "hunter2", Role: RoleModifyPorts})

	slot, u, ok := s.FindByCredentials("alice", "hunter2")
	if !ok || slot != 0 || u.Username != "alice" {
		t.Fatalf("FindByCredentials: got (%d, %+v, %v)", slot, u, ok)
	}

	if _, _, ok := s.FindByCredentials("alice", "wrong"); ok {
		t.Fatal("wrong password must not match")
	}
}

func TestLoginLogout(t *testing.T) {
	s := New()
	slot, u, ok := s.FindByCredentials("admin", "1234")
	if !ok {
		t.Fatal("default root credentials must authenticate")
	}
	s.Login(slot, u)
	if !s.Authenticated() {
		t.Fatal("expected authenticated session")
	}
	role, ok := s.ActiveRole()
	if !ok || role != RoleAdministrator {
		t.Fatalf("ActiveRole = (%v, %v)", role, ok)
	}
	s.Logout()
	if s.Authenticated() {
		t.Fatal("expected logged out")
	}
}

func TestRolePermissionOrder(t *testing.T) {
	if !RoleAdministrator.Allows(RoleModifySystem) {
		t.Fatal("Administrator must satisfy ModifySystem requirement")
	}
	if RoleReadOnly.Allows(RoleModifyPorts) {
		t.Fatal("ReadOnly must not satisfy ModifyPorts requirement")
	}
}

func TestUserEncodeDecodeRoundTrip(t *testing.T) {
	u := User{Username: "bob", FirstName: "Bob", LastName: "Builder", Password: "pw", Role: RoleModifySystem}
	enc := EncodeUser(u)
	got := DecodeUser(enc[:])
	if got != u {
		t.Fatalf("round trip: got %+v, want %+v", got, u)
	}
}

func TestDecodeEmptyUser(t *testing.T) {
	var buf [RecordStride]byte
	got := DecodeUser(buf[:])
	if !got.Empty() {
		t.Fatalf("expected empty user, got %+v", got)
	}
}

func TestFlagsSetClearTest(t *testing.T) {
	f := NewFlags(0)
	f.SetBits(FlagConfigSaved | FlagVLANSaved)
	if !f.Test(FlagConfigSaved) {
		t.Fatal("expected config-saved bit set")
	}
	f.ClearBits(FlagConfigSaved)
	if f.Test(FlagConfigSaved) {
		t.Fatal("expected config-saved bit cleared")
	}
	if !f.Test(FlagVLANSaved) {
		t.Fatal("expected vlan-saved bit untouched")
	}
}
