package linux

import (
	"bufio"
	"fmt"
	"os"

	"switchfw/internal/transport"
)

// I2CSlaveDevice drives a transport.I2CSlaveISR off a Linux I2C slave
// character device (as exposed by the kernel's i2c-slave-eeprom-class
// sample drivers: each byte read from the node is one bus event).
// There is no standard in-kernel framing for "start/data/stop" over
// such a device, so this driver uses a fixed one-byte-per-event
// convention (0x02=START, 0x03=STOP, anything else=DATA) it owns end
// to end; see DESIGN.md for why this is invented rather than
// recovered from a spec source.
type I2CSlaveDevice struct {
	file *os.File
	r    *bufio.Reader
}

// OpenI2CSlave opens path (e.g. "/dev/i2c-slave-0") for reading bus
// events.
func OpenI2CSlave(path string) (*I2CSlaveDevice, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("platform/linux: open i2c slave device %s: %w", path, err)
	}
	return &I2CSlaveDevice{file: f, r: bufio.NewReader(f)}, nil
}

// Run blocks, translating each incoming event byte into the
// corresponding ISR call on sink until the device closes or stop is
// signaled. It never blocks the sink itself: OnData/OnStart/OnStop are
// all required by transport.I2CSlaveISR to be non-blocking, so this
// loop is the only goroutine touching the descriptor.
func (d *I2CSlaveDevice) Run(sink transport.I2CSlaveISR, stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return nil
		default:
		}
		b, err := d.r.ReadByte()
		if err != nil {
			return fmt.Errorf("platform/linux: i2c slave read: %w", err)
		}
		switch b {
		case 0x02:
			sink.OnStart()
		case 0x03:
			sink.OnStop()
		default:
			sink.OnData(b)
		}
	}
}

// Close releases the underlying device node.
func (d *I2CSlaveDevice) Close() error {
	return d.file.Close()
}
