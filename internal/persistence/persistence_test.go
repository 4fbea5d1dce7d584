package persistence

import (
	"testing"

	"switchfw/internal/eventlog"
	"switchfw/internal/hal"
	"switchfw/internal/sysstate"
)

// memSPI is a minimal in-memory fake of transport.SPIConn shared by
// both the EEPROM and controller fixtures in this test file.
type memSPI struct {
	eeprom [hal.EEPROMSize]byte
	ctrl   [256]byte
}

func newMemSPI() *memSPI {
	m := &memSPI{}
	for i := range m.eeprom {
		m.eeprom[i] = 0xFF // inverted-zero, matches an erased device
	}
	return m
}

type eepromSPI struct{ m *memSPI }

func (s eepromSPI) Tx(w, r []byte) error {
	if len(w) == 0 {
		return nil
	}
	switch w[0] {
	case 0x06, 0x52, 0x60: // write-enable, page-erase, chip-erase: no-ops on the fake
		return nil
	case 0x02: // write
		addr := uint32(w[1])<<16 | uint32(w[2])<<8 | uint32(w[3])
		s.m.eeprom[addr] = w[4]
	case 0x03: // read
		addr := uint32(w[1])<<16 | uint32(w[2])<<8 | uint32(w[3])
		if len(r) > 0 {
			r[len(r)-1] = s.m.eeprom[addr]
		}
	case 0x05: // read status: WIP always clear
		if len(r) > 1 {
			r[1] = 0
		}
	}
	return nil
}

type ctrlSPI struct{ m *memSPI }

func (s ctrlSPI) Tx(w, r []byte) error {
	if len(w) == 0 {
		return nil
	}
	switch w[0] {
	case 0x02: // write
		s.m.ctrl[w[1]] = w[2]
	case 0x03: // read (bulk-capable: n = len(w)-2)
		n := len(w) - 2
		for i := 0; i < n; i++ {
			r[2+i] = s.m.ctrl[int(w[1])+i]
		}
	}
	return nil
}

func newTestEngine() *Engine {
	m := newMemSPI()
	ee := hal.NewEEPROM(eepromSPI{m}, nil)
	ee.SetTiming(0, 0)
	ctrl := hal.NewController(ctrlSPI{m}, nil)
	logger := eventlog.NewLogger(ee, nil, 64)
	logger.SetRunning(true)
	state := sysstate.New()
	flags := sysstate.NewFlags(0)
	return NewEngine(ee, ctrl, logger, state, flags)
}

func TestSaveThenBootRestoreReproducesControllerRegs(t *testing.T) {
	eng := newTestEngine()

	for reg := 0; reg < controllerRegs; reg++ {
		if err := eng.Controller.CtrlWrite(byte(reg), byte(reg^0x5A)); err != nil {
			t.Fatalf("seed ctrl reg %d: %v", reg, err)
		}
	}
	// Set global_control_3 non-zero so the VLAN branch is exercised too.
	if err := eng.Controller.CtrlWrite(globalControl3, 0x01); err != nil {
		t.Fatalf("seed global_control_3: %v", err)
	}
	if err := WriteVLANEntry(eng.Controller, 4000, VLANEntry{Valid: true, Membership: 0x13}); err != nil {
		t.Fatalf("seed vlan entry: %v", err)
	}

	if err := eng.SaveConfig(nil); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	// Zero the controller registers to prove restore actually repopulates
	// them rather than the assertion passing by coincidence.
	for reg := 0; reg < controllerRegs; reg++ {
		_ = eng.Controller.CtrlWrite(byte(reg), 0)
	}

	fresh := newTestEngine()
	fresh.EEPROM = eng.EEPROM
	fresh.Logger = eng.Logger
	if err := fresh.BootRestore(nil); err != nil {
		t.Fatalf("BootRestore: %v", err)
	}

	for reg := 0; reg < controllerRegs; reg++ {
		if reg == int(globalControl3) {
			continue
		}
		got, err := fresh.Controller.CtrlRead(byte(reg))
		if err != nil {
			t.Fatalf("read back reg %d: %v", reg, err)
		}
		want := byte(reg ^ 0x5A)
		if got != want {
			t.Fatalf("reg %d: got %#x want %#x", reg, got, want)
		}
	}

	entry, err := ReadVLANEntry(fresh.Controller, 4000)
	if err != nil {
		t.Fatalf("read back vlan entry: %v", err)
	}
	if !entry.Valid || entry.Membership != 0x13 {
		t.Fatalf("vlan entry not restored: got %+v", entry)
	}
}

func TestSaveConfigCompactsDeletedUsers(t *testing.T) {
	eng := newTestEngine()
	eng.State.SetUser(0, sysstate.User{Username: "alice", Password: "x", Role: sysstate.RoleModifyPorts})
	eng.State.SetUser(1, sysstate.User{Username: "bob", Password: "y", Role: sysstate.RoleModifySystem, MarkedFor: sysstate.PendingDelete})
	eng.State.SetUser(2, sysstate.User{Username: "carol", Password: "z", Role: sysstate.RoleReadOnly})

	if err := eng.SaveConfig(nil); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	all := eng.State.AllUsers()
	if all[0].Username != "alice" || all[1].Username != "carol" {
		t.Fatalf("expected compaction to slide carol into slot 1, got %+v / %+v", all[0], all[1])
	}
	if !all[2].Empty() {
		t.Fatalf("expected slot 2 empty after compaction, got %+v", all[2])
	}
}

func TestSaveConfigSkipsVLANWhenGlobalControl3Zero(t *testing.T) {
	eng := newTestEngine()
	if err := eng.Controller.CtrlWrite(globalControl3, 0x00); err != nil {
		t.Fatalf("seed global_control_3: %v", err)
	}
	if err := eng.SaveConfig(nil); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	if eng.Flags.Test(sysstate.FlagVLANSaved) {
		t.Fatal("expected vlan-saved flag to remain clear when global_control_3 == 0")
	}
	if !eng.Flags.Test(sysstate.FlagConfigSaved) {
		t.Fatal("expected config-saved flag to be set regardless")
	}
}
