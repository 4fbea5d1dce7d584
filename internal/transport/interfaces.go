// Package transport defines the chip-level byte primitives the firmware
// core runs on. Every interface here is a collaborator, not a
// responsibility of this module: GPIO toggling, SPI byte exchange, I2C
// master/slave byte primitives, UART byte I/O and the watchdog kick are
// all implemented by board support code. platform/linux supplies one
// concrete realization for bring-up on a Linux host; tests supply another
// with in-memory fakes.
package transport

import "time"

// SPIConn performs one full-duplex SPI exchange: w is clocked out while r
// is clocked in, len(r) bytes are returned. This mirrors
// periph.io/x/periph/conn/spi.Conn.Tx exactly so platform/linux can hand
// the HAL a real spireg.Conn without an adapter.
type SPIConn interface {
	Tx(w, r []byte) error
}

// UARTPort is the byte-level serial transport the CLI session runs over.
type UARTPort interface {
	ReadByte() (byte, error)
	WriteByte(b byte) error
	// IsTerminal reports whether the underlying descriptor is an
	// interactive tty capable of raw mode and escape sequences. The CLI
	// session uses this to gate ANSI/term features.
	IsTerminal() bool
}

// I2CSlaveISR delivers bytes reassembled by the I2C slave controller's
// START/DATA/STOP interrupts. Implementations must never block: this is
// the ISR-safe enqueue path an interrupt handler is confined to.
type I2CSlaveISR interface {
	OnStart()
	OnData(b byte)
	OnStop()
}

// Watchdog models the hardware watchdog kick. Out of scope for behavior,
// present only so tasks that must periodically pet it compile against a
// real interface instead of a bare func value.
type Watchdog interface {
	Kick()
}

// Clock abstracts the tick counter since boot: there is no real-time
// clock on this board, so timestamps are tick counts since power-on.
type Clock interface {
	TicksSinceBoot() uint32
}

// SystemClock is a Clock backed by the host monotonic clock, used by
// cmd/switchfwd and by tests that don't care about exact tick values.
type SystemClock struct {
	boot time.Time
}

// NewSystemClock returns a Clock whose epoch is "now".
func NewSystemClock() *SystemClock {
	return &SystemClock{boot: time.Now()}
}

func (c *SystemClock) TicksSinceBoot() uint32 {
	return uint32(time.Since(c.boot).Milliseconds())
}
