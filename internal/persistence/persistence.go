// Package persistence implements boot-time configuration restore,
// save-running-config, and the VLAN indirect-table pack/unpack it
// shares with internal/handlers. Boot restore reads fixed EEPROM
// offsets into device state and controller registers, the same shape
// a constructor uses to read a fixed firmware image into a device set.
package persistence

import (
	"encoding/binary"
	"fmt"

	"switchfw/internal/eventlog"
	"switchfw/internal/hal"
	"switchfw/internal/sysstate"
)

// flagBit0 is a fourth flags bit set alongside config/VLAN/users-saved
// on every save-config, with no documented meaning of its own beyond
// that it is always asserted there. Preserved literally.
const flagBit0 byte = 0x01

// ProgressReporter is the narrow surface long-running operations here
// publish progress through; handlers.ProgressHandle satisfies it. Kept
// as an interface (rather than importing internal/handlers directly)
// to avoid a persistence<->handlers import cycle, since handlers in
// turn calls into persistence for VLAN pack/unpack.
type ProgressReporter interface {
	Reset(total int)
	Step()
	Fill()
	FillError()
}

type noopProgress struct{}

func (noopProgress) Reset(int)   {}
func (noopProgress) Step()       {}
func (noopProgress) Fill()       {}
func (noopProgress) FillError()  {}

// NoProgress is a ProgressReporter that discards all updates, for
// callers (tests, the boot path before a UI exists) that don't need
// one.
var NoProgress ProgressReporter = noopProgress{}

// Engine wires the HAL devices and process-wide state together for
// boot restore and save-config. It holds no state of its own beyond
// its collaborators -- a thin wiring struct over device instances
// rather than an owner of additional data.
type Engine struct {
	EEPROM     *hal.EEPROM
	Controller *hal.Controller
	Logger     *eventlog.Logger
	State      *sysstate.State
	Flags      *sysstate.Flags
}

// NewEngine bundles the collaborators boot restore and save-config need.
func NewEngine(ee *hal.EEPROM, ctrl *hal.Controller, logger *eventlog.Logger, state *sysstate.State, flags *sysstate.Flags) *Engine {
	return &Engine{EEPROM: ee, Controller: ctrl, Logger: logger, State: state, Flags: flags}
}

// BootRestore runs the four-step boot sequence: flags, controller
// registers, VLAN table, users. It is invoked once before the
// scheduler starts, UART echo suppressed by the caller (internal/cli
// has not yet accepted a session).
func (e *Engine) BootRestore(progress ProgressReporter) error {
	if progress == nil {
		progress = NoProgress
	}
	flagsByte, err := e.EEPROM.SingleRead(flagsAddr)
	if err != nil {
		return fmt.Errorf("persistence: boot restore: read flags: %w", err)
	}
	e.Flags.Set(flagsByte)

	if e.Flags.Test(sysstate.FlagReinitRequest) {
		progress.Reset(1)
		if err := e.EEPROM.ChipErase(); err != nil {
			return fmt.Errorf("persistence: boot restore: chip erase: %w", err)
		}
		progress.Fill()
		return nil
	}

	if e.Flags.Test(sysstate.FlagConfigSaved) {
		if err := e.restoreControllerRegisters(progress); err != nil {
			return err
		}
		if err := e.restoreLogCursor(); err != nil {
			return err
		}
	}
	if e.Flags.Test(sysstate.FlagVLANSaved) {
		if err := e.restoreVLANTable(progress); err != nil {
			return err
		}
	}
	if e.Flags.Test(sysstate.FlagUsersSaved) {
		if err := e.restoreUsers(progress); err != nil {
			return err
		}
	}
	return nil
}

// restoreControllerRegisters implements boot step 2: for every
// register 0x00..0xFF, write back the mirrored byte read from
// EEPROM offset 0x100+reg.
func (e *Engine) restoreControllerRegisters(progress ProgressReporter) error {
	progress.Reset(controllerRegs)
	for reg := 0; reg < controllerRegs; reg++ {
		b, err := e.EEPROM.SingleRead(controllerBase + uint32(reg))
		if err != nil {
			return fmt.Errorf("persistence: restore controller reg %#x: %w", reg, err)
		}
		if err := e.Controller.CtrlWrite(byte(reg), b); err != nil {
			return fmt.Errorf("persistence: restore controller reg %#x: %w", reg, err)
		}
		progress.Step()
	}
	progress.Fill()
	return nil
}

func (e *Engine) restoreLogCursor() error {
	var buf [8]byte
	if err := e.EEPROM.BulkRead(logFlagsAddr, buf[:]); err != nil {
		return fmt.Errorf("persistence: restore log cursor: %w", err)
	}
	logFlags := binary.BigEndian.Uint32(buf[0:4])
	nextSlot := binary.BigEndian.Uint32(buf[4:8])
	e.Logger.Restore(logFlags, nextSlot)
	return nil
}

// restoreVLANTable implements step 3: scan the EEPROM VLAN mirror and
// program every valid entry into the controller's indirect table.
func (e *Engine) restoreVLANTable(progress ProgressReporter) error {
	progress.Reset(vlanIDMax)
	for vlanID := 1; vlanID <= vlanIDMax; vlanID++ {
		b, err := e.EEPROM.SingleRead(VLANEEPROMAddr(vlanID))
		if err != nil {
			return fmt.Errorf("persistence: restore vlan %d: %w", vlanID, err)
		}
		entry := DecodeVLANMirror(b)
		if entry.Valid {
			if err := WriteVLANEntry(e.Controller, vlanID, entry); err != nil {
				return fmt.Errorf("persistence: restore vlan %d: %w", vlanID, err)
			}
		}
		progress.Step()
	}
	progress.Fill()
	return nil
}

// restoreUsers implements step 4: bulk-read each user-slot record.
func (e *Engine) restoreUsers(progress ProgressReporter) error {
	progress.Reset(sysstate.UserSlots)
	var users [sysstate.TotalSlots]User
	users[sysstate.RootSlotIndex] = e.State.User(sysstate.RootSlotIndex)
	for slot := 0; slot < sysstate.UserSlots; slot++ {
		var rec [sysstate.RecordStride]byte
		if err := e.EEPROM.BulkRead(usersAddr(slot), rec[:]); err != nil {
			return fmt.Errorf("persistence: restore user slot %d: %w", slot, err)
		}
		users[slot] = sysstate.DecodeUser(rec[:])
		progress.Step()
	}
	e.State.RestoreUsers(users)
	progress.Fill()
	return nil
}

// User is a local alias kept for readability inside this package; it
// is exactly sysstate.User.
type User = sysstate.User

// SaveConfig runs the save-running-config sequence: controller
// registers to EEPROM, VLAN table (gated by the literal
// global_control_3 test, see DESIGN.md's OQ2), user table, then the
// log cursor and flags.
func (e *Engine) SaveConfig(progress ProgressReporter) error {
	if progress == nil {
		progress = NoProgress
	}
	if err := e.saveControllerRegisters(progress); err != nil {
		return err
	}

	g3, err := e.Controller.CtrlRead(globalControl3)
	if err != nil {
		return fmt.Errorf("persistence: save config: read global_control_3: %w", err)
	}
	savedVLAN := false
	if vlanSaveGateSet(g3) {
		if err := e.saveVLANTable(progress); err != nil {
			return err
		}
		savedVLAN = true
	}

	if err := e.saveUsers(progress); err != nil {
		return err
	}

	logFlags, nextSlot := e.Logger.Snapshot()
	var buf [8]byte
	binary.BigEndian.PutUint32(buf[0:4], logFlags)
	binary.BigEndian.PutUint32(buf[4:8], nextSlot)
	if err := e.EEPROM.BulkWrite(logFlagsAddr, buf[:]); err != nil {
		return fmt.Errorf("persistence: save config: write log cursor: %w", err)
	}

	e.Flags.SetBits(sysstate.FlagConfigSaved | sysstate.FlagUsersSaved | flagBit0)
	if savedVLAN {
		e.Flags.SetBits(sysstate.FlagVLANSaved)
	}
	if err := e.EEPROM.SingleWrite(flagsAddr, e.Flags.Get()); err != nil {
		return fmt.Errorf("persistence: save config: write flags: %w", err)
	}
	e.Logger.Enqueue(eventlog.CodeConfigSaved)
	return nil
}

// ClearSavedFlags clears the config/VLAN/users-saved bits in both the
// in-memory Flags holder and their EEPROM backing byte; this backs the
// `config delete` command: boot restore will then skip every restore
// step until the next `config save`.
func (e *Engine) ClearSavedFlags() error {
	e.Flags.ClearBits(sysstate.FlagConfigSaved | sysstate.FlagVLANSaved | sysstate.FlagUsersSaved)
	if err := e.EEPROM.SingleWrite(flagsAddr, e.Flags.Get()); err != nil {
		return fmt.Errorf("persistence: clear saved flags: %w", err)
	}
	return nil
}

func (e *Engine) saveControllerRegisters(progress ProgressReporter) error {
	progress.Reset(controllerRegs)
	for reg := 0; reg < controllerRegs; reg++ {
		b, err := e.Controller.CtrlRead(byte(reg))
		if err != nil {
			return fmt.Errorf("persistence: save controller reg %#x: %w", reg, err)
		}
		if err := e.EEPROM.SingleWrite(controllerBase+uint32(reg), b); err != nil {
			return fmt.Errorf("persistence: save controller reg %#x: %w", reg, err)
		}
		progress.Step()
	}
	progress.Fill()
	return nil
}

// saveVLANTable page-erases the VLAN mirror region then reconstructs
// and writes one byte per vlan_id from the controller's live indirect
// table (the reverse of restoreVLANTable).
func (e *Engine) saveVLANTable(progress ProgressReporter) error {
	progress.Reset(vlanIDMax)
	base := VLANEEPROMAddr(1)
	for pageAddr := base - base%hal.PageSize; pageAddr < VLANEEPROMAddr(vlanIDMax)+1; pageAddr += hal.PageSize {
		if err := e.EEPROM.PageErase(pageAddr); err != nil {
			return fmt.Errorf("persistence: save vlan table: erase page %#x: %w", pageAddr, err)
		}
	}
	for vlanID := 1; vlanID <= vlanIDMax; vlanID++ {
		entry, err := ReadVLANEntry(e.Controller, vlanID)
		if err != nil {
			return fmt.Errorf("persistence: save vlan %d: %w", vlanID, err)
		}
		if err := e.EEPROM.SingleWrite(VLANEEPROMAddr(vlanID), EncodeVLANMirror(entry)); err != nil {
			return fmt.Errorf("persistence: save vlan %d: %w", vlanID, err)
		}
		progress.Step()
	}
	progress.Fill()
	return nil
}

// saveUsers writes every non-root slot with its current field values,
// or zeros for slots marked for deletion, compacting the remainder so
// occupied slots stay contiguous from slot 0.
func (e *Engine) saveUsers(progress ProgressReporter) error {
	progress.Reset(sysstate.UserSlots)
	all := e.State.AllUsers()

	compacted := make([]User, 0, sysstate.UserSlots)
	for slot := 0; slot < sysstate.UserSlots; slot++ {
		u := all[slot]
		if u.Empty() || u.MarkedFor == sysstate.PendingDelete {
			continue
		}
		u.MarkedFor = sysstate.PendingNone
		compacted = append(compacted, u)
	}

	for slot := 0; slot < sysstate.UserSlots; slot++ {
		var rec [sysstate.RecordStride]byte
		if slot < len(compacted) {
			rec = sysstate.EncodeUser(compacted[slot])
		}
		if err := e.EEPROM.BulkWrite(usersAddr(slot), rec[:]); err != nil {
			return fmt.Errorf("persistence: save user slot %d: %w", slot, err)
		}
		progress.Step()
	}

	var newTable [sysstate.TotalSlots]User
	copy(newTable[:], compacted)
	newTable[sysstate.RootSlotIndex] = all[sysstate.RootSlotIndex]
	e.State.RestoreUsers(newTable)

	progress.Fill()
	return nil
}
