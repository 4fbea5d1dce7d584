package handlers

import (
	"fmt"
	"math"

	"switchfw/internal/hal"
)

// Register offsets relative to a port's base offset, chosen to be
// internally consistent (see DESIGN.md) in the absence of a recovered
// datasheet to take exact offsets from.
const (
	regPortControl2   byte = 0x02 // auto-neg / auto-MDIX enable bits
	regLinkMDControl  byte = 0x0A // diagnostic-start + cable-state bits
	regLinkMDResultHi byte = 0x0B // distance-to-fault, high byte
	regLinkMDResultLo byte = 0x0C // distance-to-fault, low byte
)

const (
	bitAutoNegEnable  byte = 0x80
	bitAutoMDIXEnable byte = 0x40
	bitDiagStart      byte = 0x01
)

// CableState is one of the four states LinkMD reports.
type CableState int

const (
	CableNormal CableState = iota
	CableOpen
	CableShort
	CableFail
)

func (s CableState) String() string {
	switch s {
	case CableNormal:
		return "Normal"
	case CableOpen:
		return "Open"
	case CableShort:
		return "Short"
	default:
		return "Fail"
	}
}

// LinkMDResult is the diagnostic outcome for one port.
type LinkMDResult struct {
	State    CableState
	Distance int // meters, rounded
}

// RunLinkMD runs the cable diagnostic on the port at baseOffset:
// disable auto-neg/auto-MDIX, start the self-clearing diagnostic bit,
// poll for completion, read the 2-bit cable-state and the distance
// registers, compute the distance formula, then restore auto-neg/
// auto-MDIX to their prior state.
func RunLinkMD(c *hal.Controller, baseOffset byte) (LinkMDResult, error) {
	ctrlReg := baseOffset + regPortControl2
	prior, err := c.CtrlRead(ctrlReg)
	if err != nil {
		return LinkMDResult{}, fmt.Errorf("handlers: linkmd read port-control-2: %w", err)
	}
	if err := c.CtrlWrite(ctrlReg, prior&^(bitAutoNegEnable|bitAutoMDIXEnable)); err != nil {
		return LinkMDResult{}, fmt.Errorf("handlers: linkmd disable auto-neg/auto-mdix: %w", err)
	}

	diagReg := baseOffset + regLinkMDControl
	if err := SelfClearingBit(c, diagReg, bitDiagStart); err != nil {
		_ = c.CtrlWrite(ctrlReg, prior)
		return LinkMDResult{}, fmt.Errorf("handlers: linkmd diagnostic did not complete: %w", err)
	}

	stateReg, err := c.CtrlRead(diagReg)
	if err != nil {
		_ = c.CtrlWrite(ctrlReg, prior)
		return LinkMDResult{}, fmt.Errorf("handlers: linkmd read cable state: %w", err)
	}
	hi, err := c.CtrlRead(baseOffset + regLinkMDResultHi)
	if err != nil {
		_ = c.CtrlWrite(ctrlReg, prior)
		return LinkMDResult{}, fmt.Errorf("handlers: linkmd read distance hi: %w", err)
	}
	lo, err := c.CtrlRead(baseOffset + regLinkMDResultLo)
	if err != nil {
		_ = c.CtrlWrite(ctrlReg, prior)
		return LinkMDResult{}, fmt.Errorf("handlers: linkmd read distance lo: %w", err)
	}

	if err := c.CtrlWrite(ctrlReg, prior); err != nil {
		return LinkMDResult{}, fmt.Errorf("handlers: linkmd restore port-control-2: %w", err)
	}

	raw := int(hi)<<8 | int(lo)
	return LinkMDResult{
		State:    CableState((stateReg >> 1) & 0x03),
		Distance: distanceFromRaw(raw),
	}, nil
}

// distanceFromRaw converts a raw distance-to-fault register value into
// meters: fault_distance = round(0.4 * (distance_value - 26)).
func distanceFromRaw(raw int) int {
	return int(math.Round(0.4 * float64(raw-26)))
}
