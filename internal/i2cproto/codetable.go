// Package i2cproto implements the binary I²C command protocol: ISR-side
// packet reassembly, a 256-entry code table, and the dispatcher task
// that looks packets up and invokes the shared handlers.Registry.
// Modeled on a register-dispatch device lookup, adapted here from an
// I/O-port space to a code-table space.
package i2cproto

import "switchfw/internal/handlers"

// CodeEntry is one row of the 256-entry code table.
type CodeEntry struct {
	Code             byte
	StaticParamCount int
	CustomParamCount int
	ReturnCount      int
	StaticParams     []byte // len == StaticParamCount; Register truncates to maxStaticParams
	Handler          handlers.I2CHandler
}

// maxStaticParams bounds static_params to 20 entries.
const maxStaticParams = 20

// CodeTable is the fixed 256-entry lookup table. used[] records which
// slots have been Registered; the dispatcher drops a packet whose code
// slot is unused or whose stored entry's Code field doesn't match, so
// an unregistered slot (code 0x00 included) is always a drop without
// being populated.
type CodeTable struct {
	entries [256]CodeEntry
	used    [256]bool
}

// NewCodeTable returns an empty table; Register must be called for
// every code the dispatcher should accept.
func NewCodeTable() *CodeTable {
	return &CodeTable{}
}

// Register installs entry at its own Code slot.
func (t *CodeTable) Register(entry CodeEntry) {
	if len(entry.StaticParams) > maxStaticParams {
		entry.StaticParams = entry.StaticParams[:maxStaticParams]
	}
	t.entries[entry.Code] = entry
	t.used[entry.Code] = true
}

// Lookup returns the entry at code and whether the slot is registered.
// If the entry's code field does not match the received code,
// including unused slots, the caller drops the packet -- an
// unregistered slot's zero-value Code trivially fails to match unless
// code==0, which used[] disambiguates.
func (t *CodeTable) Lookup(code byte) (CodeEntry, bool) {
	if !t.used[code] {
		return CodeEntry{}, false
	}
	entry := t.entries[code]
	return entry, entry.Code == code
}
