// Package hal serializes SPI access to the EEPROM and the switch
// controller under per-channel mutual exclusion. Both EEPROM and
// Controller are singletons in practice; HandleIO-style device models
// are deliberately not used here because the HAL is not a port-mapped
// I/O target of a CPU, it is the single caller-facing surface every
// other component in this module funnels device access through.
package hal

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"switchfw/internal/eventlog"
	"switchfw/internal/transport"
)

// DeviceErrorKind distinguishes the device error taxonomy so callers
// can branch without string matching.
type DeviceErrorKind int

const (
	// KindTransient covers SPI verify mismatches and retry-exhausted
	// polls.
	KindTransient DeviceErrorKind = iota
	// KindOutOfRange covers addresses beyond device capacity.
	KindOutOfRange
)

// DeviceError is the HAL's sentinel-comparable error type.
type DeviceError struct {
	Kind DeviceErrorKind
	Op   string
	Err  error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("hal: %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// ErrVerifyMismatch is returned (wrapped in a *DeviceError) when a
// readback-verify after a write disagrees with the original byte.
var ErrVerifyMismatch = errors.New("spi verify mismatch")

// ErrPollExhausted is returned when a self-clearing condition fails to
// clear within the bounded retry budget.
var ErrPollExhausted = errors.New("poll retries exhausted")

// ErrOutOfRange is returned for addresses beyond device capacity.
var ErrOutOfRange = errors.New("address out of range")

func invert(b byte) byte { return ^b }

// EventSink is the narrow logging surface the HAL needs: enqueue an
// event code, non-blockingly. internal/eventlog.Logger satisfies this.
type EventSink interface {
	Enqueue(code byte)
}

// EEPROM serializes all access to the serial EEPROM behind a single
// mutex held for the full duration of each transaction, including the
// post-write settle and readback-verify.
type EEPROM struct {
	mu   sync.Mutex
	conn transport.SPIConn
	log  EventSink

	settleDelay time.Duration // overridable by tests
	erasePoll   time.Duration
}

// NewEEPROM wires an EEPROM HAL instance around a raw SPI connection.
func NewEEPROM(conn transport.SPIConn, sink EventSink) *EEPROM {
	return &EEPROM{
		conn:        conn,
		log:         sink,
		settleDelay: SettleDelay,
		erasePoll:   PollInterval,
	}
}

// SetTiming overrides the settle/poll delays; used by tests to avoid
// real sleeps.
func (e *EEPROM) SetTiming(settle, poll time.Duration) {
	e.settleDelay = settle
	e.erasePoll = poll
}

func addrBytes(addr uint32) [3]byte {
	return [3]byte{byte(addr >> 16), byte(addr >> 8), byte(addr)}
}

func inRange(addr uint32) bool { return addr < EEPROMSize }

// SingleWrite writes one inverted byte at addr, settles, reads back and
// verifies. On mismatch it enqueues an IOException record and returns a
// *DeviceError wrapping ErrVerifyMismatch.
func (e *EEPROM) SingleWrite(addr uint32, b byte) error {
	if !inRange(addr) {
		return &DeviceError{Kind: KindOutOfRange, Op: "SingleWrite", Err: ErrOutOfRange}
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	ab := addrBytes(addr)
	if err := e.conn.Tx([]byte{opWriteEnable}, nil); err != nil {
		return &DeviceError{Kind: KindTransient, Op: "SingleWrite/WREN", Err: err}
	}
	w := []byte{opWrite, ab[0], ab[1], ab[2], invert(b)}
	if err := e.conn.Tx(w, nil); err != nil {
		return &DeviceError{Kind: KindTransient, Op: "SingleWrite", Err: err}
	}
	time.Sleep(e.settleDelay)

	got, err := e.readLocked(addr)
	if err != nil {
		return &DeviceError{Kind: KindTransient, Op: "SingleWrite/readback", Err: err}
	}
	if got != b {
		e.logEvent(eventlog.CodeIOException)
		return &DeviceError{Kind: KindTransient, Op: "SingleWrite/verify", Err: ErrVerifyMismatch}
	}
	e.logEvent(eventlog.CodeWriteOp)
	return nil
}

// SingleRead returns the logical (un-inverted) byte stored at addr.
func (e *EEPROM) SingleRead(addr uint32) (byte, error) {
	if !inRange(addr) {
		return 0, &DeviceError{Kind: KindOutOfRange, Op: "SingleRead", Err: ErrOutOfRange}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.readLocked(addr)
	if err != nil {
		return 0, &DeviceError{Kind: KindTransient, Op: "SingleRead", Err: err}
	}
	e.logEvent(eventlog.CodeReadOp)
	return b, nil
}

// readLocked performs the raw read transaction; caller holds e.mu.
func (e *EEPROM) readLocked(addr uint32) (byte, error) {
	ab := addrBytes(addr)
	w := []byte{opRead, ab[0], ab[1], ab[2], 0x00}
	r := make([]byte, len(w))
	if err := e.conn.Tx(w, r); err != nil {
		return 0, err
	}
	return invert(r[len(r)-1]), nil
}

// BulkWrite writes data starting at start as a sequence of single
// writes, rejecting if start or start+len exceeds the device and
// stopping at the first write failure (logging happens inside
// SingleWrite itself).
func (e *EEPROM) BulkWrite(start uint32, data []byte) error {
	if !inRange(start) || uint64(start)+uint64(len(data)) > EEPROMSize {
		return &DeviceError{Kind: KindOutOfRange, Op: "BulkWrite", Err: ErrOutOfRange}
	}
	for i, b := range data {
		if err := e.SingleWrite(start+uint32(i), b); err != nil {
			return err
		}
	}
	return nil
}

// BulkRead reads len(out) bytes starting at start into out.
func (e *EEPROM) BulkRead(start uint32, out []byte) error {
	if !inRange(start) || uint64(start)+uint64(len(out)) > EEPROMSize {
		return &DeviceError{Kind: KindOutOfRange, Op: "BulkRead", Err: ErrOutOfRange}
	}
	for i := range out {
		b, err := e.SingleRead(start + uint32(i))
		if err != nil {
			return err
		}
		out[i] = b
	}
	return nil
}

// PageErase erases the page containing pageAddr, polling the status
// register's WIP bit until it clears.
func (e *EEPROM) PageErase(pageAddr uint32) error {
	if !inRange(pageAddr) {
		return &DeviceError{Kind: KindOutOfRange, Op: "PageErase", Err: ErrOutOfRange}
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.conn.Tx([]byte{opWriteEnable}, nil); err != nil {
		return &DeviceError{Kind: KindTransient, Op: "PageErase/WREN", Err: err}
	}
	ab := addrBytes(pageAddr)
	if err := e.conn.Tx([]byte{opErasePage, ab[0], ab[1], ab[2]}, nil); err != nil {
		return &DeviceError{Kind: KindTransient, Op: "PageErase", Err: err}
	}
	if err := e.pollWIPLocked(); err != nil {
		return err
	}
	e.logEvent(eventlog.CodeWriteOp)
	return nil
}

// ChipErase erases the entire device and waits a conservative settle.
func (e *EEPROM) ChipErase() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.conn.Tx([]byte{opWriteEnable}, nil); err != nil {
		return &DeviceError{Kind: KindTransient, Op: "ChipErase/WREN", Err: err}
	}
	if err := e.conn.Tx([]byte{opEraseChip}, nil); err != nil {
		return &DeviceError{Kind: KindTransient, Op: "ChipErase", Err: err}
	}
	time.Sleep(ChipEraseSettle)
	e.logEvent(eventlog.CodeWriteOp)
	return nil
}

func (e *EEPROM) pollWIPLocked() error {
	for i := 0; i < ErasePollRetries; i++ {
		r := make([]byte, 2)
		if err := e.conn.Tx([]byte{opReadStatus, 0x00}, r); err != nil {
			return &DeviceError{Kind: KindTransient, Op: "PageErase/status", Err: err}
		}
		if r[1]&statusWIP == 0 {
			return nil
		}
		time.Sleep(e.erasePoll)
	}
	return &DeviceError{Kind: KindTransient, Op: "PageErase/poll", Err: ErrPollExhausted}
}

func (e *EEPROM) logEvent(code byte) {
	if e.log != nil {
		e.log.Enqueue(code)
	}
}

// Controller serializes access to the switch controller's 8-bit
// register space. Unlike EEPROM writes, controller writes are not
// readback-verified: some controller bits self-clear or reflect status,
// so a verify loop is caller responsibility.
type Controller struct {
	mu   sync.Mutex
	conn transport.SPIConn
	log  EventSink
}

// NewController wires a Controller HAL instance around a raw SPI
// connection.
func NewController(conn transport.SPIConn, sink EventSink) *Controller {
	return &Controller{conn: conn, log: sink}
}

// CtrlRead reads one 8-bit controller register.
func (c *Controller) CtrlRead(reg byte) (byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := []byte{ctrlOpRead, reg, 0x00}
	r := make([]byte, len(w))
	if err := c.conn.Tx(w, r); err != nil {
		return 0, &DeviceError{Kind: KindTransient, Op: "CtrlRead", Err: err}
	}
	c.logEvent(eventlog.CodeReadOp)
	return r[2], nil
}

// CtrlBulkRead reads n consecutive registers starting at start into out
// (len(out) must be >= n).
func (c *Controller) CtrlBulkRead(start byte, n int, out []byte) error {
	if len(out) < n {
		return fmt.Errorf("hal: CtrlBulkRead: out buffer too small (%d < %d)", len(out), n)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	w := make([]byte, 2+n)
	w[0], w[1] = ctrlOpRead, start
	r := make([]byte, len(w))
	if err := c.conn.Tx(w, r); err != nil {
		return &DeviceError{Kind: KindTransient, Op: "CtrlBulkRead", Err: err}
	}
	copy(out, r[2:2+n])
	c.logEvent(eventlog.CodeReadOp)
	return nil
}

// CtrlWrite writes one 8-bit controller register without verification.
func (c *Controller) CtrlWrite(reg byte, b byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.Tx([]byte{ctrlOpWrite, reg, b}, nil); err != nil {
		return &DeviceError{Kind: KindTransient, Op: "CtrlWrite", Err: err}
	}
	c.logEvent(eventlog.CodeWriteOp)
	return nil
}

func (c *Controller) logEvent(code byte) {
	if c.log != nil {
		c.log.Enqueue(code)
	}
}

// Devices bundles the EEPROM and Controller HAL handles.
// cmd/switchfwd does not use it; it passes the two handles separately.
type Devices struct {
	EEPROM     *EEPROM
	Controller *Controller
}
