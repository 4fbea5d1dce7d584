package linux

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// UARTDevice is a transport.UARTPort backed by a real Linux tty
// (e.g. "/dev/ttyS0" or a pty for local bring-up). Baud/parity/stop
// bits are configured once via termios, using golang.org/x/sys/unix
// ioctl calls rather than hand-rolled syscall numbers.
type UARTDevice struct {
	file *os.File
	fd   int
}

// OpenUART opens path and configures it 8N1 at baud, disabling the
// kernel line discipline's local echo and canonical mode so every byte
// reaches internal/cli.Session's own tokenizer and password-masking
// logic untouched.
func OpenUART(path string, baud uint32) (*UARTDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("platform/linux: open uart %s: %w", path, err)
	}
	fd := int(f.Fd())

	if term.IsTerminal(fd) {
		t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("platform/linux: get termios for %s: %w", path, err)
		}
		t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
		t.Oflag &^= unix.OPOST
		t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
		t.Cflag &^= unix.CSIZE | unix.PARENB
		t.Cflag |= unix.CS8
		t.Cc[unix.VMIN] = 1
		t.Cc[unix.VTIME] = 0
		if err := setBaud(t, baud); err != nil {
			f.Close()
			return nil, err
		}
		if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
			f.Close()
			return nil, fmt.Errorf("platform/linux: set termios for %s: %w", path, err)
		}
	}

	return &UARTDevice{file: f, fd: fd}, nil
}

func setBaud(t *unix.Termios, baud uint32) error {
	rate, ok := map[uint32]uint32{
		9600:   unix.B9600,
		19200:  unix.B19200,
		38400:  unix.B38400,
		57600:  unix.B57600,
		115200: unix.B115200,
	}[baud]
	if !ok {
		return fmt.Errorf("platform/linux: unsupported baud rate %d", baud)
	}
	t.Ispeed = rate
	t.Ospeed = rate
	return nil
}

// ReadByte reads exactly one byte, satisfying transport.UARTPort.
func (u *UARTDevice) ReadByte() (byte, error) {
	var buf [1]byte
	if _, err := u.file.Read(buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// WriteByte writes exactly one byte, satisfying transport.UARTPort.
func (u *UARTDevice) WriteByte(b byte) error {
	_, err := u.file.Write([]byte{b})
	return err
}

// IsTerminal reports whether the underlying descriptor is an
// interactive tty.
func (u *UARTDevice) IsTerminal() bool {
	return term.IsTerminal(u.fd)
}

// Fd exposes the raw descriptor so internal/cli.Session can hand it to
// golang.org/x/term for raw-mode password masking.
func (u *UARTDevice) Fd() uintptr {
	return u.file.Fd()
}

// Close releases the underlying tty.
func (u *UARTDevice) Close() error {
	return u.file.Close()
}
