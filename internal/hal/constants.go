package hal

import "time"

// EEPROM SPI opcodes. The physical device is a 128 KiB page-structured
// serial EEPROM addressed with a 3-byte (17 bits significant) address
// field, in the style of the 25AA1024/5080 family referenced across the
// corpus's SPI EEPROM drivers.
const (
	opWriteEnable byte = 0x06
	opWrite       byte = 0x02
	opRead        byte = 0x03
	opReadStatus  byte = 0x05
	opErasePage   byte = 0x52
	opEraseChip   byte = 0x60
)

// statusWIP is the write-in-progress bit of the EEPROM status register,
// polled by PageErase (ChipErase waits ChipEraseSettle instead).
const statusWIP byte = 0x01

// EEPROMSize is the total addressable EEPROM capacity in bytes
// (128 KiB).
const EEPROMSize = 131072

// PageSize is the EEPROM's page-erase granularity.
const PageSize = 256

// Switch-controller opcodes: simple 8-bit-register read/write framing.
const (
	ctrlOpRead  byte = 0x03
	ctrlOpWrite byte = 0x02
)

// Timing constants for post-write settle and poll cadence.
const (
	// SettleDelay is the minimum post-write settle interval (>=5ms)
	// before a readback-verify.
	SettleDelay = 5 * time.Millisecond

	// ChipEraseSettle is the conservative fixed wait after issuing a
	// chip-erase before the device is assumed ready.
	ChipEraseSettle = 50 * time.Millisecond

	// PollInterval is the short cooperative delay tasks must yield at
	// while polling a self-clearing bit.
	PollInterval = 5 * time.Millisecond

	// ErasePollRetries bounds how long PageErase waits for WIP to clear.
	ErasePollRetries = 200
)
