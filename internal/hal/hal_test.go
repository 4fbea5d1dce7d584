package hal

import (
	"errors"
	"testing"
)

// fakeSPI is a hand-written in-memory fake of transport.SPIConn rather
// than a generated mock.
type fakeSPI struct {
	mem    [EEPROMSize]byte
	status byte
	failTx bool
	// ctrl selects switch-controller framing (opcode, register, data)
	// instead of EEPROM framing; the two parts share read/write opcodes.
	ctrl bool
}

func newFakeSPI() *fakeSPI {
	f := &fakeSPI{}
	for i := range f.mem {
		f.mem[i] = invert(0x00) // erased EEPROM reads back as inverted-zero
	}
	return f
}

func (f *fakeSPI) Tx(w, r []byte) error {
	if f.failTx {
		return errors.New("fake spi failure")
	}
	if len(w) == 0 {
		return nil
	}
	if f.ctrl {
		switch w[0] {
		case ctrlOpRead:
			n := len(w) - 2
			for i := 0; i < n; i++ {
				r[2+i] = f.mem[int(w[1])+i]
			}
		case ctrlOpWrite:
			f.mem[w[1]] = w[2]
		}
		return nil
	}
	switch w[0] {
	case opWriteEnable:
		return nil
	case opWrite:
		addr := uint32(w[1])<<16 | uint32(w[2])<<8 | uint32(w[3])
		f.mem[addr] = w[4]
		return nil
	case opRead:
		addr := uint32(w[1])<<16 | uint32(w[2])<<8 | uint32(w[3])
		if len(r) > 0 {
			r[len(r)-1] = f.mem[addr]
		}
		return nil
	case opReadStatus:
		if len(r) > 1 {
			r[1] = f.status
		}
		return nil
	case opErasePage, opEraseChip:
		return nil
	}
	return nil
}

type fakeSink struct {
	codes []byte
}

func (s *fakeSink) Enqueue(code byte) { s.codes = append(s.codes, code) }

func TestEEPROMSingleWriteReadRoundTrip(t *testing.T) {
	conn := newFakeSPI()
	sink := &fakeSink{}
	e := NewEEPROM(conn, sink)
	e.SetTiming(0, 0)

	if err := e.SingleWrite(0x100, 0xAB); err != nil {
		t.Fatalf("SingleWrite: %v", err)
	}
	got, err := e.SingleRead(0x100)
	if err != nil {
		t.Fatalf("SingleRead: %v", err)
	}
	if got != 0xAB {
		t.Fatalf("got %#x, want 0xAB", got)
	}
	// Underlying storage must hold the inverted byte.
	if conn.mem[0x100] != invert(0xAB) {
		t.Fatalf("stored byte not inverted: %#x", conn.mem[0x100])
	}
}

func TestEEPROMSingleWriteOutOfRange(t *testing.T) {
	e := NewEEPROM(newFakeSPI(), nil)
	err := e.SingleWrite(EEPROMSize, 0x00)
	var de *DeviceError
	if !errors.As(err, &de) || de.Kind != KindOutOfRange {
		t.Fatalf("expected out-of-range DeviceError, got %v", err)
	}
}

func TestEEPROMBulkWriteRead(t *testing.T) {
	e := NewEEPROM(newFakeSPI(), &fakeSink{})
	e.SetTiming(0, 0)
	data := []byte{1, 2, 3, 4, 5}
	if err := e.BulkWrite(0x200, data); err != nil {
		t.Fatalf("BulkWrite: %v", err)
	}
	out := make([]byte, len(data))
	if err := e.BulkRead(0x200, out); err != nil {
		t.Fatalf("BulkRead: %v", err)
	}
	for i := range data {
		if out[i] != data[i] {
			t.Fatalf("byte %d: got %d want %d", i, out[i], data[i])
		}
	}
}

func TestEEPROMBulkWriteRejectsOverrun(t *testing.T) {
	e := NewEEPROM(newFakeSPI(), nil)
	err := e.BulkWrite(EEPROMSize-2, []byte{1, 2, 3})
	var de *DeviceError
	if !errors.As(err, &de) || de.Kind != KindOutOfRange {
		t.Fatalf("expected out-of-range error, got %v", err)
	}
}

func TestEEPROMWriteVerifyMismatch(t *testing.T) {
	conn := newFakeSPI()
	sink := &fakeSink{}
	e := NewEEPROM(conn, sink)
	e.SetTiming(0, 0)

	// Force the post-write readback to disagree by tampering with
	// storage directly after the write lands but "before" verify --
	// simplest way to provoke this deterministically is to special-case
	// the opRead path via a corrupting wrapper.
	corrupt := &corruptingSPI{fakeSPI: conn}
	e2 := NewEEPROM(corrupt, sink)
	e2.SetTiming(0, 0)
	err := e2.SingleWrite(0x10, 0x55)
	var de *DeviceError
	if !errors.As(err, &de) || !errors.Is(err, ErrVerifyMismatch) {
		t.Fatalf("expected verify mismatch, got %v", err)
	}
	found := false
	for _, c := range sink.codes {
		if c == 0x01 { // eventlog.CodeIOException, avoided importing to keep fake standalone
			found = true
		}
	}
	if !found {
		t.Fatalf("expected IOException enqueued, got %v", sink.codes)
	}
}

type corruptingSPI struct {
	*fakeSPI
}

func (c *corruptingSPI) Tx(w, r []byte) error {
	if err := c.fakeSPI.Tx(w, r); err != nil {
		return err
	}
	if len(w) > 0 && w[0] == opRead && len(r) > 0 {
		r[len(r)-1] ^= 0xFF
	}
	return nil
}

func TestEEPROMPageErasePollsStatus(t *testing.T) {
	conn := newFakeSPI()
	conn.status = statusWIP
	e := NewEEPROM(conn, &fakeSink{})
	e.SetTiming(0, 0)
	done := make(chan error, 1)
	go func() { done <- e.PageErase(0x300) }()
	conn.status = 0x00
	if err := <-done; err != nil {
		t.Fatalf("PageErase: %v", err)
	}
}

func TestControllerReadWrite(t *testing.T) {
	conn := newFakeSPI()
	conn.ctrl = true
	c := NewController(conn, &fakeSink{})
	if err := c.CtrlWrite(0x40, 0x08); err != nil {
		t.Fatalf("CtrlWrite: %v", err)
	}
	got, err := c.CtrlRead(0x40)
	if err != nil {
		t.Fatalf("CtrlRead: %v", err)
	}
	if got != 0x08 {
		t.Fatalf("got %#x, want 0x08", got)
	}
}

func TestControllerBulkRead(t *testing.T) {
	conn := newFakeSPI()
	conn.ctrl = true
	conn.mem[0x10], conn.mem[0x11], conn.mem[0x12] = 1, 2, 3
	c := NewController(conn, &fakeSink{})
	out := make([]byte, 3)
	if err := c.CtrlBulkRead(0x10, 3, out); err != nil {
		t.Fatalf("CtrlBulkRead: %v", err)
	}
	if out[0] != 1 || out[1] != 2 || out[2] != 3 {
		t.Fatalf("got %v", out)
	}
}

func TestControllerBulkReadBufferTooSmall(t *testing.T) {
	c := NewController(newFakeSPI(), nil)
	out := make([]byte, 1)
	if err := c.CtrlBulkRead(0x10, 3, out); err == nil {
		t.Fatal("expected error for undersized buffer")
	}
}
