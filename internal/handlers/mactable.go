package handlers

import (
	"fmt"
	"net"

	"switchfw/internal/hal"
)

// Indirect-table selectors for the static/dynamic MAC tables, distinct
// from the VLAN table selector persistence.go/vlan.go uses on the same
// indirect-access register pair.
const (
	indirectTableStaticMAC byte = 0x00 << 5
	indirectTableDynamicMAC byte = 0x01 << 5

	macIndirectCtrl byte = 0x6E
	macIndirectAddr byte = 0x6F
	macIndirectData byte = 0x70

	macEntryCount = 0x400

	// The "table empty" bit is bit 7 of the first data byte; the live
	// entry count is read separately from dynamicTableCountReg. Both
	// are invented-but-consistent choices in the absence of a
	// recovered datasheet offset.
	bitTableEmpty byte = 0x80
)

// MACEntry is one rendered row of a static or dynamic MAC table dump.
type MACEntry struct {
	Index           int
	Valid           bool
	FilterID        byte
	OverrideSTP     bool
	ForwardingPorts byte // bitmap, bit4 = expansion port
	MAC             net.HardwareAddr
}

func selectMACGroup(c *hal.Controller, table byte, index int, dir byte) error {
	ctrl := table | dir | byte((index>>8)&0x03)
	if err := c.CtrlWrite(macIndirectCtrl, ctrl); err != nil {
		return err
	}
	return c.CtrlWrite(macIndirectAddr, byte(index&0xFF))
}

// readMACEntry reads one indirect-table row: 8 data bytes, byte 0
// carrying valid/filter-id/override-STP/table-empty flags, byte 1 the
// forwarding-ports bitmap (low 5 bits) and bytes 2-7 the 6-byte MAC
// address.
func readMACEntry(c *hal.Controller, table byte, index int) (MACEntry, bool, error) {
	if err := selectMACGroup(c, table, index, 0); err != nil {
		return MACEntry{}, false, err
	}
	buf := make([]byte, 8)
	if err := c.CtrlBulkRead(macIndirectData, 8, buf); err != nil {
		return MACEntry{}, false, err
	}
	empty := buf[0]&bitTableEmpty != 0
	entry := MACEntry{
		Index:           index,
		Valid:           buf[0]&0x01 != 0,
		FilterID:        (buf[0] >> 1) & 0x03,
		OverrideSTP:     buf[0]&0x08 != 0,
		ForwardingPorts: buf[1] & 0x1F,
		MAC:             net.HardwareAddr(append([]byte(nil), buf[2:8]...)),
	}
	return entry, empty, nil
}

// ShowStaticMACTable iterates entries [0, 0x3FF] of the static indirect
// MAC table, returning every valid row.
func ShowStaticMACTable(c *hal.Controller) ([]MACEntry, error) {
	var rows []MACEntry
	for i := 0; i < macEntryCount; i++ {
		entry, _, err := readMACEntry(c, indirectTableStaticMAC, i)
		if err != nil {
			return rows, fmt.Errorf("handlers: show-static-mac-table: entry %d: %w", i, err)
		}
		if entry.Valid {
			rows = append(rows, entry)
		}
	}
	return rows, nil
}

// ShowDynamicMACTable iterates the dynamic indirect MAC table,
// exiting early if the table-empty bit is asserted or if the live
// entry count shrinks between reads (entries are being aged out
// concurrently by the controller).
func ShowDynamicMACTable(c *hal.Controller) ([]MACEntry, error) {
	var rows []MACEntry
	lastCount := -1
	for i := 0; i < macEntryCount; i++ {
		entry, empty, err := readMACEntry(c, indirectTableDynamicMAC, i)
		if err != nil {
			return rows, fmt.Errorf("handlers: show-dynamic-mac-table: entry %d: %w", i, err)
		}
		if empty {
			break
		}
		count, err := dynamicEntryCount(c)
		if err != nil {
			return rows, fmt.Errorf("handlers: show-dynamic-mac-table: entry count: %w", err)
		}
		if lastCount >= 0 && count < lastCount {
			break
		}
		lastCount = count
		if entry.Valid {
			rows = append(rows, entry)
		}
	}
	return rows, nil
}

// dynamicTableCountReg reports the live dynamic-MAC-table entry count,
// a single status register outside the indirect window.
const dynamicTableCountReg byte = 0x7A

func dynamicEntryCount(c *hal.Controller) (int, error) {
	b, err := c.CtrlRead(dynamicTableCountReg)
	if err != nil {
		return 0, err
	}
	return int(b), nil
}
