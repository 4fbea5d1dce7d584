package handlers

import (
	"fmt"

	"switchfw/internal/hal"
	"switchfw/internal/persistence"
)

// Port-control register offsets (relative to a port's base offset)
// used for default-VLAN programming; see DESIGN.md for the same
// invented-numbering caveat as linkmd.go.
const (
	regPortControl1    byte = 0x01 // tag-insertion enable bit
	regPortControl8Hi  byte = 0x08 // default VLAN, high 4 bits
	regPortControl9Lo  byte = 0x09 // default VLAN, low 8 bits
	bitTagInsertion    byte = 0x04
)

// SetVLANTagInsertion enables or disables 802.1Q tag insertion on the
// port at baseOffset without touching its programmed default VLAN id.
func SetVLANTagInsertion(c *hal.Controller, baseOffset byte, enabled bool) error {
	if enabled {
		return SetBit(c, baseOffset+regPortControl1, bitTagInsertion)
	}
	return ClearBit(c, baseOffset+regPortControl1, bitTagInsertion)
}

// SetPortVLAN enables tag insertion on the port at baseOffset, programs
// its 12-bit default VLAN id, and returns the assertion mask computed
// by scanning the other three user ports for a matching default VLAN.
func SetPortVLAN(c *hal.Controller, baseOffset byte, vlanID int) (assertionMask byte, err error) {
	if vlanID < 1 || vlanID > 4095 {
		return 0, fmt.Errorf("handlers: set-port-vlan: vlan id %d out of range", vlanID)
	}
	if err := SetBit(c, baseOffset+regPortControl1, bitTagInsertion); err != nil {
		return 0, fmt.Errorf("handlers: set-port-vlan: enable tag insertion: %w", err)
	}
	if err := c.CtrlWrite(baseOffset+regPortControl8Hi, byte((vlanID>>8)&0x0F)); err != nil {
		return 0, fmt.Errorf("handlers: set-port-vlan: write vlan hi: %w", err)
	}
	if err := c.CtrlWrite(baseOffset+regPortControl9Lo, byte(vlanID&0xFF)); err != nil {
		return 0, fmt.Errorf("handlers: set-port-vlan: write vlan lo: %w", err)
	}

	for _, other := range UserPortOffsets {
		if other == baseOffset {
			continue
		}
		hi, err := c.CtrlRead(other + regPortControl8Hi)
		if err != nil {
			return 0, fmt.Errorf("handlers: set-port-vlan: scan port %#x: %w", other, err)
		}
		lo, err := c.CtrlRead(other + regPortControl9Lo)
		if err != nil {
			return 0, fmt.Errorf("handlers: set-port-vlan: scan port %#x: %w", other, err)
		}
		otherVLAN := int(hi&0x0F)<<8 | int(lo)
		if otherVLAN == vlanID {
			assertionMask |= PortMembershipBit(other)
		}
	}

	return assertionMask, nil
}

// PortMembershipBit maps a port's base offset to its membership bit (5
// bits: four user ports plus expansion), matching the CLI-offset-to-
// port ordering: 0x10->bit0, 0x20->bit1, 0x30->bit2, 0x40->bit3,
// expansion->bit4.
func PortMembershipBit(baseOffset byte) byte {
	switch baseOffset {
	case 0x10:
		return 1 << 0
	case 0x20:
		return 1 << 1
	case 0x30:
		return 1 << 2
	case 0x40:
		return 1 << 3
	case ExpansionPortOffset:
		return 1 << 4
	default:
		return 0
	}
}

// SetVLANEntry programs the controller's indirect VLAN table and
// mirrors the result into EEPROM with the valid bit set.
func SetVLANEntry(c *hal.Controller, ee *hal.EEPROM, vlanID int, membership byte) error {
	if vlanID < 1 || vlanID > 4095 {
		return fmt.Errorf("handlers: set-vlan-entry: vlan id %d out of range", vlanID)
	}
	entry := persistence.VLANEntry{Valid: true, Membership: membership & 0x1F}
	if err := persistence.WriteVLANEntry(c, vlanID, entry); err != nil {
		return fmt.Errorf("handlers: set-vlan-entry: %w", err)
	}
	if err := ee.SingleWrite(persistence.VLANEEPROMAddr(vlanID), persistence.EncodeVLANMirror(entry)); err != nil {
		return fmt.Errorf("handlers: set-vlan-entry: mirror write: %w", err)
	}
	return nil
}

// AddPortToVLAN adds the port at baseOffset to vlanID's membership set
// without disturbing ports already members: the existing entry is read
// back first and the port's bit is OR'd in before the read-modify-write
// in SetVLANEntry.
func AddPortToVLAN(c *hal.Controller, ee *hal.EEPROM, baseOffset byte, vlanID int) error {
	existing, err := persistence.ReadVLANEntry(c, vlanID)
	if err != nil {
		return fmt.Errorf("handlers: add-port-to-vlan: %w", err)
	}
	membership := existing.Membership | PortMembershipBit(baseOffset)
	return SetVLANEntry(c, ee, vlanID, membership)
}

// VLANTablePage is one page of show-vlan-table output.
type VLANTablePage struct {
	Entries  []VLANRow
	HasMore  bool
}

// VLANRow is one rendered line of the VLAN table.
type VLANRow struct {
	VLANID     int
	Valid      bool
	Membership byte
}

const vlanPageSize = 10

// ShowVLANTablePage walks the EEPROM VLAN mirror starting at
// startVLANID and returns up to one page (10 entries) of rows.
// Pagination itself (the N/E prompt loop) lives in internal/cli, which
// calls this repeatedly, advancing startVLANID.
func ShowVLANTablePage(ee *hal.EEPROM, startVLANID int) (VLANTablePage, error) {
	page := VLANTablePage{Entries: make([]VLANRow, 0, vlanPageSize)}
	vlanID := startVLANID
	for len(page.Entries) < vlanPageSize && vlanID <= 4095 {
		b, err := ee.SingleRead(persistence.VLANEEPROMAddr(vlanID))
		if err != nil {
			return page, fmt.Errorf("handlers: show-vlan-table: read vlan %d: %w", vlanID, err)
		}
		entry := persistence.DecodeVLANMirror(b)
		page.Entries = append(page.Entries, VLANRow{VLANID: vlanID, Valid: entry.Valid, Membership: entry.Membership})
		vlanID++
	}
	page.HasMore = vlanID <= 4095
	return page, nil
}
