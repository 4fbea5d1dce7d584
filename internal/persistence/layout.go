package persistence

import "switchfw/internal/sysstate"

// Fixed EEPROM byte offsets for persisted configuration.
const (
	flagsAddr        uint32 = 0x1E
	logFlagsAddr     uint32 = 0x1F // 4 bytes, big-endian
	logNextSlotAddr  uint32 = 0x23 // 4 bytes, big-endian
	controllerBase   uint32 = 0x100
	controllerRegs          = 256
	vlanEEPROMBase   uint32 = 0x200
	vlanIDMax               = 4095
	usersBase        uint32 = 0x1200
)

// usersAddr returns the EEPROM offset of user slot's record (slot
// 0..sysstate.UserSlots-1; the root slot is not persisted -- it is a
// firmware-builtin constant restored by sysstate.New, not EEPROM data).
func usersAddr(slot int) uint32 {
	return usersBase + uint32(slot)*sysstate.RecordStride
}
