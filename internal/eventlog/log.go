// Package eventlog implements the bounded event queue and the circular
// 400-entry EEPROM ring. It is a leaf package: it depends only on an
// EEPROMWriter abstraction so internal/hal can sit below it without an
// import cycle (the HAL enqueues IOException and read/write-op codes
// into this log, and persistence reads the log's cursor back out of
// the HAL-backed EEPROM at boot).
package eventlog

import (
	"sync"

	"switchfw/internal/transport"
)

// Event codes. The taxonomy is open-ended: codes are opaque bytes
// gated by LogStatusFlags bits; these are the codes this module
// itself raises.
const (
	CodeIOException     byte = 0x01
	CodeReadOp          byte = 0x02
	CodeWriteOp         byte = 0x03
	CodeUserLoggedIn    byte = 0x04
	CodeUserLoggedOut   byte = 0x05
	CodeLinkUp          byte = 0x06
	CodeLinkDown        byte = 0x07
	CodeConfigSaved     byte = 0x08
	CodeStackOverflow    byte = 0xFF
)

// RecordSize is the on-disk size of one log record: 4-byte big-endian
// tick timestamp + 1-byte code.
const RecordSize = 5

// RingCapacity is the number of records the circular log region holds.
const RingCapacity = 400

// RegionBase is the byte offset of the log region within the EEPROM
// address space (0x1600-0x1DCF).
const RegionBase = 0x1600

// RegionEnd is one past the last valid byte of the log region.
const RegionEnd = RegionBase + RingCapacity*RecordSize

// EEPROMWriter is the narrow slice of the HAL's EEPROM surface the
// logger task needs: a single inverted-byte write at an absolute
// address. internal/hal.EEPROM satisfies this directly.
type EEPROMWriter interface {
	SingleWrite(addr uint32, b byte) error
}

// Record is the logical view of one log entry.
type Record struct {
	Tick uint32
	Code byte
}

// Encode packs a Record into its 5-byte on-disk form (big-endian tick,
// then code).
func (r Record) Encode() [RecordSize]byte {
	var buf [RecordSize]byte
	buf[0] = byte(r.Tick >> 24)
	buf[1] = byte(r.Tick >> 16)
	buf[2] = byte(r.Tick >> 8)
	buf[3] = byte(r.Tick)
	buf[4] = r.Code
	return buf
}

// DecodeRecord unpacks a 5-byte on-disk record.
func DecodeRecord(buf []byte) Record {
	return Record{
		Tick: uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3]),
		Code: buf[4],
	}
}

// Logger drains a bounded code queue into the EEPROM ring. It owns the
// LogStatusFlags test, same-as-previous suppression, and the
// next-log-slot cursor, mutated only by the logger task and by the
// save-config handler.
type Logger struct {
	mu sync.Mutex

	writer EEPROMWriter
	clock  transport.Clock

	queue    []byte // bounded, drained FIFO
	queueCap int

	running bool

	flags    uint32 // LogStatusFlags, mutated only by the logger task and by save-config
	nextSlot uint32 // absolute EEPROM address of the next write
	lastCode byte
	haveLast bool
}

// StatusFlagBit maps an event code to the LogStatusFlags bit that must
// be set for it to be recorded. Codes with no explicit mapping fall
// back to bit 0 ("general"), so every future code tests a bit without
// requiring pre-registration.
func StatusFlagBit(code byte) uint {
	switch code {
	case CodeIOException:
		return 1
	case CodeReadOp, CodeWriteOp:
		return 2
	case CodeUserLoggedIn, CodeUserLoggedOut:
		return 3
	case CodeLinkUp, CodeLinkDown:
		return 4
	case CodeConfigSaved:
		return 5
	case CodeStackOverflow:
		return 31
	default:
		return 0
	}
}

// NewLogger creates a Logger. nextSlot and flags are normally restored
// by internal/persistence at boot; NewLogger defaults them to an empty
// log so unit tests don't need a full boot-restore cycle.
func NewLogger(writer EEPROMWriter, clock transport.Clock, queueCap int) *Logger {
	return &Logger{
		writer:   writer,
		clock:    clock,
		queueCap: queueCap,
		flags:    0xFFFFFFFF, // all categories enabled until restore says otherwise
		nextSlot: RegionBase,
	}
}

// SetWriter installs the EEPROM writer a Logger constructed before its
// backing EEPROM existed needs before Drain is first called -- boot
// wiring constructs the Logger and the HAL's EEPROM in each other's
// terms (the EEPROM logs through this Logger; this Logger writes
// through that EEPROM), so one side is necessarily set after
// construction.
func (l *Logger) SetWriter(writer EEPROMWriter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer = writer
}

// Restore sets the flags and cursor read back from EEPROM at boot.
// next is clamped to the region if it falls outside it.
func (l *Logger) Restore(flags, next uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flags = flags
	if next < RegionBase || next >= RegionEnd {
		next = RegionBase
	}
	l.nextSlot = next
}

// Snapshot returns the flags and next-slot cursor for the save-config
// handler to persist back to EEPROM as the final save step.
func (l *Logger) Snapshot() (flags, next uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flags, l.nextSlot
}

// SetRunning marks whether the logger task is actively draining. While
// false, Enqueue silently drops codes: if the task is not running, the
// code is dropped rather than queued indefinitely.
func (l *Logger) SetRunning(running bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = running
}

// Enqueue offers a code to the bounded queue without blocking. Writers
// (HAL, handlers, port monitor) call this; a full queue or a stopped
// task both silently drop the code. The queue is sized generously
// enough in practice that dropping on a full queue is a backstop, not
// a steady-state condition.
func (l *Logger) Enqueue(code byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	if len(l.queue) >= l.queueCap {
		return
	}
	l.queue = append(l.queue, code)
}

// Drain processes every code currently queued, writing accepted records
// to EEPROM and advancing the ring cursor. It is meant to be called in a
// loop by the logger task; it also doubles as the drain step of the
// stack-overflow halt sequence.
func (l *Logger) Drain() error {
	for {
		code, ok := l.pop()
		if !ok {
			return nil
		}
		if err := l.record(code); err != nil {
			return err
		}
	}
}

func (l *Logger) pop() (byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return 0, false
	}
	code := l.queue[0]
	l.queue = l.queue[1:]
	return code, true
}

func (l *Logger) record(code byte) error {
	l.mu.Lock()
	bit := StatusFlagBit(code)
	gated := (l.flags & (1 << bit)) == 0
	suppressed := l.haveLast && l.lastCode == code
	if gated || suppressed {
		l.haveLast = true
		l.lastCode = code
		l.mu.Unlock()
		return nil
	}
	slot := l.nextSlot
	next := slot + RecordSize
	if next >= RegionEnd {
		next = RegionBase
	}
	l.nextSlot = next
	l.lastCode = code
	l.haveLast = true
	l.mu.Unlock()

	rec := Record{Tick: l.tick(), Code: code}
	enc := rec.Encode()
	for i, b := range enc {
		if err := l.writer.SingleWrite(slot+uint32(i), b); err != nil {
			return err
		}
	}
	return nil
}

func (l *Logger) tick() uint32 {
	if l.clock == nil {
		return 0
	}
	return l.clock.TicksSinceBoot()
}
