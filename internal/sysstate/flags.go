package sysstate

import "sync"

// System-flags bits (EEPROM byte 0x1E).
const (
	FlagReinitRequest byte = 1 << 7
	FlagConfigSaved   byte = 1 << 6
	FlagVLANSaved     byte = 1 << 5
	FlagUsersSaved    byte = 1 << 4
)

// Flags is the mutex-guarded holder for the system-flags byte. It is
// process-wide state separate from User/session bookkeeping because it
// has different owners: the log fields are mutated only by the logger
// task and by the save-config handler, while this top-level flags byte
// is mutated by boot restore and by config save.
type Flags struct {
	mu    sync.Mutex
	value byte
}

// NewFlags returns a Flags holder initialized to v, normally the byte
// read from EEPROM 0x1E at boot.
func NewFlags(v byte) *Flags {
	return &Flags{value: v}
}

// Get returns the current flags byte.
func (f *Flags) Get() byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Set overwrites the flags byte wholesale.
func (f *Flags) Set(v byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = v
}

// Test reports whether every bit in mask is set.
func (f *Flags) Test(mask byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value&mask == mask
}

// SetBits ORs mask into the flags byte.
func (f *Flags) SetBits(mask byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value |= mask
}

// ClearBits ANDs out mask from the flags byte.
func (f *Flags) ClearBits(mask byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value &^= mask
}
