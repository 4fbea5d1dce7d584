// Package sysstate owns the process-wide mutable state shared across
// tasks: the user table, the active-session record, and the
// authentication flag. It is modeled as a single shared device --
// one mutex-guarded struct with narrow accessor methods -- rather
// than as message-passing, since every caller here is a plain method
// call, not an interrupt handler.
package sysstate

import "sync"

// Role is the CLI/I2C permission level, totally ordered:
// ReadOnly < ModifyPorts < ModifySystem < Administrator.
type Role int

const (
	RoleReadOnly Role = iota
	RoleModifyPorts
	RoleModifySystem
	RoleAdministrator
)

func (r Role) String() string {
	switch r {
	case RoleReadOnly:
		return "ReadOnly"
	case RoleModifyPorts:
		return "ModifyPorts"
	case RoleModifySystem:
		return "ModifySystem"
	case RoleAdministrator:
		return "Administrator"
	default:
		return "Unknown"
	}
}

// Allows reports whether a user holding r may invoke a command that
// requires need (permission monotonicity: higher roles can do
// everything lower roles can).
func (r Role) Allows(need Role) bool { return r >= need }

// PendingAction is the user-slot mutation queued by the delete-users /
// admin-users checkbox menu until a confirm gesture commits it.
type PendingAction int

const (
	PendingNone PendingAction = iota
	PendingAdd
	PendingUpdate
	PendingDelete
)

// UserSlots is the number of addressable non-root slots: up to 15
// user slots plus one built-in root slot.
const UserSlots = 15

// RootSlotIndex is the fixed index of the built-in root account.
const RootSlotIndex = 15

// TotalSlots is UserSlots plus the root slot.
const TotalSlots = UserSlots + 1

// FieldWidth is the fixed byte width of each text field in a user
// record (username, first_name, last_name, password).
const FieldWidth = 16

// User is one user-table record. Fixed-width string fields are kept as
// Go strings at this layer; EEPROM encode/decode (EncodeUser/DecodeUser
// in this package) pads and truncates to FieldWidth bytes.
type User struct {
	Username   string
	FirstName  string
	LastName   string
	Password   string
	Role       Role
	MarkedFor  PendingAction
}

// Empty reports whether this slot is unoccupied: a slot with
// username[0]=0 is empty.
func (u User) Empty() bool { return u.Username == "" }

// defaultRoot matches the firmware's documented built-in administrator
// credential, reproduced deliberately as shipped -- production
// deployments are expected to change it immediately after first boot.
var defaultRoot = User{
	Username: "admin",
	Password: "1234",
	Role:     RoleAdministrator,
}

// State is the single process-wide owner of the user table and the
// active-session bookkeeping. Every field is guarded by mu; callers
// never see the table's backing array directly.
type State struct {
	mu sync.Mutex

	users [TotalSlots]User

	authenticated bool
	active        User
	activeSlot    int
}

// New returns a State with the root slot preloaded with the built-in
// administrator account and every other slot empty.
func New() *State {
	s := &State{}
	s.users[RootSlotIndex] = defaultRoot
	return s
}

// User returns a copy of the record at slot (0..TotalSlots-1).
func (s *State) User(slot int) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[slot]
}

// SetUser installs u at slot, overwriting whatever was there. Root
// (RootSlotIndex) may be updated in place but the slot itself is never
// vacated by Delete.
func (s *State) SetUser(slot int, u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[slot] = u
}

// ClearUser empties slot unless it is the root slot, in which case the
// call is a no-op.
func (s *State) ClearUser(slot int) {
	if slot == RootSlotIndex {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[slot] = User{}
}

// AllUsers returns a snapshot copy of the whole table, for the
// save-config writer and for admin-menu rendering.
func (s *State) AllUsers() [TotalSlots]User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users
}

// RestoreUsers overwrites the whole table at once, used by boot
// restore's final step.
func (s *State) RestoreUsers(users [TotalSlots]User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = users
}

// FindByCredentials scans non-empty slots for a username/password
// match, root slot included. Returns the matching slot index and user,
// or ok=false.
func (s *State) FindByCredentials(username, password string) (slot int, u User, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		cand := s.users[i]
		if cand.Empty() {
			continue
		}
		if cand.Username == username && cand.Password == password {
			return i, cand, true
		}
	}
	return 0, User{}, false
}

// Login marks slot as the active session and sets the authentication
// flag. Callers are expected to have already validated credentials via
// FindByCredentials.
func (s *State) Login(slot int, u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = true
	s.active = u
	s.activeSlot = slot
}

// Logout clears the authentication flag. A DTR-edge ISR resetting the
// authentication flag on cable disconnect funnels through this same
// method.
func (s *State) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = false
	s.active = User{}
	s.activeSlot = -1
}

// Authenticated reports whether a session is currently active.
func (s *State) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// ActiveUser returns the currently logged-in user and whether a session
// is active.
func (s *State) ActiveUser() (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.authenticated
}

// ActiveRole returns the active session's role, or RoleReadOnly with
// ok=false if no one is logged in.
func (s *State) ActiveRole() (Role, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.authenticated {
		return RoleReadOnly, false
	}
	return s.active.Role, true
}
