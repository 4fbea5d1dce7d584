// Package linux wires the firmware core's transport interfaces
// (internal/transport) to real Linux devices for bring-up on a host
// with a SPI-attached EEPROM/switch-controller pair, an I²C slave
// controller, and a UART. Each device opens a real device node and
// wraps it behind this module's own interface, the same host-
// integration shape used for any real Linux chip transport.
package linux

import (
	"fmt"

	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"
)

// defaultSPISpeed matches the periph smoke test's conservative default
// for boards sharing a bus with other peripherals.
const defaultSPISpeed = 4 * physic.MegaHertz

// SPIDevice wraps a periph spi.Conn so it satisfies
// transport.SPIConn directly -- Tx has the identical signature, so no
// adapter shim is needed (periph.io/x/periph/conn/spi smoke test
// confirms this is exactly how production code calls it).
type SPIDevice struct {
	port spi.PortCloser
	conn spi.Conn
}

// OpenSPIDevice initializes the periph host drivers once per process
// and opens the named SPI port (e.g. "/dev/spidev0.0") in Mode0 at
// defaultSPISpeed, 8 bits per word.
func OpenSPIDevice(name string) (*SPIDevice, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("platform/linux: init periph host drivers: %w", err)
	}
	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("platform/linux: open spi port %s: %w", name, err)
	}
	conn, err := port.Connect(defaultSPISpeed, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("platform/linux: connect spi port %s: %w", name, err)
	}
	return &SPIDevice{port: port, conn: conn}, nil
}

// Tx performs one full-duplex exchange, satisfying transport.SPIConn.
func (d *SPIDevice) Tx(w, r []byte) error {
	return d.conn.Tx(w, r)
}

// Close releases the underlying SPI port.
func (d *SPIDevice) Close() error {
	return d.port.Close()
}
