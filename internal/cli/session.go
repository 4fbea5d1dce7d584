package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"switchfw/internal/eventlog"
	"switchfw/internal/sysstate"
	"switchfw/internal/transport"
)

// Session binds one authenticated UART conversation to the command
// tree: it reads lines, masks the password prompt, logs in against
// sysstate.State, and dispatches recognized lines.
//
// Session implements handlers.ConsoleWriter and portmon.Notifier
// structurally so the same value can be threaded through both without
// either package importing cli.
type Session struct {
	port   transport.UARTPort
	state  *sysstate.State
	disp   *Dispatcher
	logger *eventlog.Logger
	reader *bufio.Reader

	rawFD       int
	rawOldState *term.State
}

// NewSession wires a Session over port against root, persisting
// authentication in state. logger may be nil, in which case login and
// logout are simply not recorded (tests constructing a Session without
// a full boot-restored Logger don't need one).
func NewSession(port transport.UARTPort, state *sysstate.State, root *Node, logger *eventlog.Logger) *Session {
	return &Session{
		port:   port,
		state:  state,
		disp:   NewDispatcher(root),
		logger: logger,
		// bufio.Reader here only buffers ReadByte calls from the
		// transport; it never bypasses the port, so tests using an
		// in-memory UARTPort still see every byte requested.
		reader: bufio.NewReader(byteReaderFunc(port.ReadByte)),
	}
}

// byteReaderFunc adapts a ReadByte func to io.Reader for bufio.
type byteReaderFunc func() (byte, error)

func (f byteReaderFunc) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	b, err := f()
	if err != nil {
		return 0, err
	}
	p[0] = b
	return 1, nil
}

// ConsoleMode reports whether the underlying UART is an interactive
// tty; progress bars and ANSI menus gate on this.
func (s *Session) ConsoleMode() bool { return s.port.IsTerminal() }

// WriteString writes raw bytes to the UART, satisfying
// handlers.ConsoleWriter.
func (s *Session) WriteString(str string) error {
	for i := 0; i < len(str); i++ {
		if err := s.port.WriteByte(str[i]); err != nil {
			return err
		}
	}
	return nil
}

// Notify satisfies portmon.Notifier: an unsolicited link-event line,
// printed only to an active authenticated console.
func (s *Session) Notify(message string) {
	if !s.state.Authenticated() {
		return
	}
	_ = s.WriteString("\r\n" + message + "\r\n")
}

// Run blocks, serving one login then an interactive command loop until
// the UART closes or the user logs out and re-logs-in indefinitely;
// the session survives logout, re-prompting for credentials.
func (s *Session) Run() error {
	for {
		if err := s.login(); err != nil {
			return err
		}
		if err := s.commandLoop(); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func (s *Session) login() error {
	for {
		if err := s.WriteString("\r\nusername: "); err != nil {
			return err
		}
		username, err := s.readLine(false)
		if err != nil {
			return err
		}
		if err := s.WriteString("password: "); err != nil {
			return err
		}
		password, err := s.readLine(true)
		if err != nil {
			return err
		}
		slot, u, ok := s.state.FindByCredentials(username, password)
		if !ok {
			if err := s.WriteString("\r\nlogin incorrect\r\n"); err != nil {
				return err
			}
			continue
		}
		s.state.Login(slot, u)
		if s.logger != nil {
			s.logger.Enqueue(eventlog.CodeUserLoggedIn)
		}
		return s.WriteString(fmt.Sprintf("\r\nwelcome, %s (%s)\r\n", u.Username, u.Role))
	}
}

func (s *Session) commandLoop() error {
	for s.state.Authenticated() {
		if err := s.WriteString("\r\n> "); err != nil {
			return err
		}
		line, err := s.readLine(false)
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}
		if line == "logout" {
			s.state.Logout()
			if s.logger != nil {
				s.logger.Enqueue(eventlog.CodeUserLoggedOut)
			}
			return s.WriteString("\r\nlogged out\r\n")
		}
		tokens := Tokenize(line)
		role, _ := s.state.ActiveRole()
		res, dispatchErr := s.disp.Dispatch(tokens, role)
		if dispatchErr != nil {
			if err := s.WriteString("\r\n" + dispatchErr.Error() + "\r\n"); err != nil {
				return err
			}
			continue
		}
		if res.HelpText != "" {
			if err := s.WriteString("\r\n" + res.HelpText); err != nil {
				return err
			}
			continue
		}
		if res.HandlerRan && !res.Success {
			if err := s.WriteString("\r\ncommand failed\r\n"); err != nil {
				return err
			}
		}
	}
	return nil
}

// readLine reads one CR/LF-terminated line. When mask is
// set and the UART is a real tty, it uses term.ReadPassword so nothing
// is echoed; over a plain (non-tty) UART it falls back to reading bytes
// directly and echoing '*' in place of each byte itself, since there is
// no local line discipline to rely on.
func (s *Session) readLine(mask bool) (string, error) {
	if mask && s.port.IsTerminal() {
		if f, ok := terminalFile(s.port); ok {
			pw, err := term.ReadPassword(int(f.Fd()))
			if err != nil {
				return "", err
			}
			return string(pw), nil
		}
	}

	var buf []byte
	for {
		b, err := s.reader.ReadByte()
		if err != nil {
			return "", err
		}
		if b == '\n' || b == '\r' {
			if len(buf) == 0 {
				continue
			}
			break
		}
		if mask {
			_ = s.port.WriteByte('*')
		} else {
			_ = s.port.WriteByte(b)
		}
		buf = append(buf, b)
	}
	return stripLineEnding(string(buf)), nil
}

// terminalFile recovers an *os.File from port when it is backed by a
// real descriptor, so golang.org/x/term can operate on its fd. Fake
// UARTPorts used in tests never satisfy this and fall back to manual
// echo suppression above.
func terminalFile(port transport.UARTPort) (*os.File, bool) {
	type fdPort interface {
		Fd() uintptr
	}
	fp, ok := port.(fdPort)
	if !ok {
		return nil, false
	}
	return os.NewFile(fp.Fd(), "uart"), true
}
