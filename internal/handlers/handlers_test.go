package handlers

import (
	"testing"

	"switchfw/internal/hal"
	"switchfw/internal/sysstate"
)

type fakeCtrlSPI struct {
	regs [256]byte
	// selfClearAfter, if set, makes the register at selfClearReg report
	// cleared after this many reads (simulates a self-clearing bit).
	selfClearAfter int
	selfClearReg   byte
	reads          int
}

func (f *fakeCtrlSPI) Tx(w, r []byte) error {
	if len(w) == 0 {
		return nil
	}
	switch w[0] {
	case 0x02:
		f.regs[w[1]] = w[2]
	case 0x03:
		n := len(w) - 2
		for i := 0; i < n; i++ {
			reg := w[1] + byte(i)
			val := f.regs[reg]
			if reg == f.selfClearReg {
				f.reads++
				if f.reads <= f.selfClearAfter {
					val |= 0x01
				} else {
					val &^= 0x01
				}
			}
			r[2+i] = val
		}
	}
	return nil
}

func newFakeController() (*hal.Controller, *fakeCtrlSPI) {
	f := &fakeCtrlSPI{}
	return hal.NewController(f, nil), f
}

func TestSetBitAndClearBit(t *testing.T) {
	c, _ := newFakeController()
	if err := SetBit(c, 0x10, 0x04); err != nil {
		t.Fatalf("SetBit: %v", err)
	}
	got, _ := c.CtrlRead(0x10)
	if got&0x04 == 0 {
		t.Fatal("expected bit set")
	}
	if err := ClearBit(c, 0x10, 0x04); err != nil {
		t.Fatalf("ClearBit: %v", err)
	}
	got, _ = c.CtrlRead(0x10)
	if got&0x04 != 0 {
		t.Fatal("expected bit cleared")
	}
}

func TestSelfClearingBit(t *testing.T) {
	c, f := newFakeController()
	f.selfClearReg = 0x0A
	f.selfClearAfter = 2
	if err := SelfClearingBit(c, 0x0A, 0x01); err != nil {
		t.Fatalf("SelfClearingBit: %v", err)
	}
}

func TestSelfClearingBitExhaustsRetries(t *testing.T) {
	c, f := newFakeController()
	f.selfClearReg = 0x0A
	f.selfClearAfter = 1000 // never clears within the retry budget
	if err := SelfClearingBit(c, 0x0A, 0x01); err == nil {
		t.Fatal("expected poll-exhausted error")
	}
}

func TestLinkMDDistanceFormula(t *testing.T) {
	cases := []struct{ raw, want int }{
		{26, 0},
		{76, 20},
		{1, -10},
	}
	for _, c := range cases {
		if got := distanceFromRaw(c.raw); got != c.want {
			t.Errorf("distanceFromRaw(%d) = %d, want %d", c.raw, got, c.want)
		}
	}
}

func TestRunLinkMDRestoresAutoNegState(t *testing.T) {
	c, f := newFakeController()
	f.regs[0x02] = bitAutoNegEnable | bitAutoMDIXEnable
	f.selfClearReg = 0x0A
	f.selfClearAfter = 1

	result, err := RunLinkMD(c, 0x00)
	if err != nil {
		t.Fatalf("RunLinkMD: %v", err)
	}
	if result.State != CableNormal {
		t.Errorf("expected CableNormal (state bits clear), got %v", result.State)
	}
	got, _ := c.CtrlRead(0x02)
	if got&(bitAutoNegEnable|bitAutoMDIXEnable) != (bitAutoNegEnable | bitAutoMDIXEnable) {
		t.Fatal("expected auto-neg/auto-mdix restored after diagnostic")
	}
}

func TestPromoteUserActions(t *testing.T) {
	s := sysstate.New()
	s.SetUser(0, sysstate.User{Username: "alice", Role: sysstate.RoleReadOnly, MarkedFor: sysstate.PendingDelete})
	s.SetUser(1, sysstate.User{Username: "bob", Role: sysstate.RoleModifyPorts, MarkedFor: sysstate.PendingAdd})

	PromoteUserActions(s)

	if !s.User(0).Empty() {
		t.Fatal("expected slot 0 deleted")
	}
	bob := s.User(1)
	if bob.MarkedFor != sysstate.PendingNone {
		t.Fatalf("expected slot 1 pending action cleared, got %v", bob.MarkedFor)
	}
}

func TestPortConfigMappingRender(t *testing.T) {
	m := StandardPortMappings[0]
	lines := m.Render(0x26) // link up, full duplex, 100BT
	if len(lines) != len(m.Options)+1 {
		t.Fatalf("expected %d lines, got %d", len(m.Options)+1, len(lines))
	}
}

func TestI2CPortOffsetMapping(t *testing.T) {
	if I2CPortOffset(1) != 0x40 {
		t.Fatalf("port1 offset = %#x, want 0x40", I2CPortOffset(1))
	}
	if I2CPortOffset(4) != 0x10 {
		t.Fatalf("port4 offset = %#x, want 0x10", I2CPortOffset(4))
	}
}

func TestCLIPortOffsetMapping(t *testing.T) {
	if PortF0.CLIOffset() != 0x40 || PortF3.CLIOffset() != 0x10 {
		t.Fatalf("unexpected CLI offsets: f0=%#x f3=%#x", PortF0.CLIOffset(), PortF3.CLIOffset())
	}
}
