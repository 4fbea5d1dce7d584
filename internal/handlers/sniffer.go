package handlers

import (
	"fmt"

	"switchfw/internal/hal"
)

// Port-mirroring ("sniffer port") control registers: one global
// register naming the designated monitor port, plus two global
// membership bitmasks selecting which ports' TX/RX traffic mirrors to
// it. Numbering is invented and documented here rather than recovered
// from any datasheet, the same caveat as the VLAN indirect-table
// registers in internal/persistence/vlan.go; see DESIGN.md.
const (
	regGlobalMonitorPort byte = 0x72
	regGlobalSniffTX     byte = 0x73
	regGlobalSniffRX     byte = 0x74

	noMonitorPort byte = 0xFF
)

// DisableSniffer clears the designated monitor port and both mirror
// bitmasks, turning port mirroring off entirely.
func DisableSniffer(c *hal.Controller) error {
	if err := c.CtrlWrite(regGlobalMonitorPort, noMonitorPort); err != nil {
		return fmt.Errorf("handlers: disable-sniffer: %w", err)
	}
	if err := c.CtrlWrite(regGlobalSniffTX, 0); err != nil {
		return fmt.Errorf("handlers: disable-sniffer: %w", err)
	}
	if err := c.CtrlWrite(regGlobalSniffRX, 0); err != nil {
		return fmt.Errorf("handlers: disable-sniffer: %w", err)
	}
	return nil
}

// DesignateSniffer marks the port at baseOffset as the monitor port
// that receives mirrored traffic from whatever sources sniff-tx/
// sniff-rx select.
func DesignateSniffer(c *hal.Controller, baseOffset byte) error {
	if err := c.CtrlWrite(regGlobalMonitorPort, baseOffset); err != nil {
		return fmt.Errorf("handlers: designate-sniffer: %w", err)
	}
	return nil
}

// SetSniffTXSources programs the set of ports (a PortMembershipBit
// mask) whose transmitted traffic mirrors to the designated monitor
// port.
func SetSniffTXSources(c *hal.Controller, ports byte) error {
	if err := c.CtrlWrite(regGlobalSniffTX, ports&0x1F); err != nil {
		return fmt.Errorf("handlers: set-sniff-tx-sources: %w", err)
	}
	return nil
}

// SetSniffRXSources programs the set of ports (a PortMembershipBit
// mask) whose received traffic mirrors to the designated monitor port.
func SetSniffRXSources(c *hal.Controller, ports byte) error {
	if err := c.CtrlWrite(regGlobalSniffRX, ports&0x1F); err != nil {
		return fmt.Errorf("handlers: set-sniff-rx-sources: %w", err)
	}
	return nil
}
