package cli

import (
	"fmt"
	"strings"

	"github.com/eiannone/keyboard"
)

// CheckboxItem is one selectable row of an event menu or delete-users
// menu.
type CheckboxItem struct {
	Label    string
	Selected bool
}

// CheckboxMenu renders a list of CheckboxItem, moves a cursor on
// ANSI up/down, toggles the cursor row on Enter, and exits on 'C'
// (confirm) or 'E' (cancel).
type CheckboxMenu struct {
	session *Session
	items   []CheckboxItem
	cursor  int
}

// NewCheckboxMenu builds a menu over labels, all initially unselected.
func NewCheckboxMenu(s *Session, labels []string) *CheckboxMenu {
	items := make([]CheckboxItem, len(labels))
	for i, l := range labels {
		items[i] = CheckboxItem{Label: l}
	}
	return &CheckboxMenu{session: s, items: items}
}

// Run drives the menu to completion, returning whether the user
// confirmed (vs. exited) and the indices left selected at that point.
func (m *CheckboxMenu) Run() (confirmed bool, selected []int, err error) {
	if err := m.render(); err != nil {
		return false, nil, err
	}
	if m.session.port.IsTerminal() {
		confirmed, err = m.runKeyboard()
	} else {
		confirmed, err = m.runRawUART()
	}
	if err != nil {
		return false, nil, err
	}
	return confirmed, m.selectedIndices(), nil
}

func (m *CheckboxMenu) selectedIndices() []int {
	var out []int
	for i, it := range m.items {
		if it.Selected {
			out = append(out, i)
		}
	}
	return out
}

// runKeyboard drives the menu through github.com/eiannone/keyboard when
// the session is backed by a real terminal, polling one keypress at a
// time via keyboard.GetSingleKey.
func (m *CheckboxMenu) runKeyboard() (bool, error) {
	for {
		ch, key, err := keyboard.GetSingleKey()
		if err != nil {
			return false, err
		}
		switch key {
		case keyboard.KeyArrowUp:
			m.moveCursor(-1)
		case keyboard.KeyArrowDown:
			m.moveCursor(1)
		case keyboard.KeyEnter:
			m.toggleCursor()
		case keyboard.KeyCtrlC:
			return false, nil
		default:
			switch ch {
			case 'c', 'C':
				return true, nil
			case 'e', 'E':
				return false, nil
			}
		}
		if err := m.render(); err != nil {
			return false, err
		}
	}
}

// runRawUART parses the same gestures by hand over a plain byte
// stream: ESC '[' 'A'/'B' for up/down, CR/LF for toggle, 'C'/'E' for
// confirm/exit. Over the raw UART transport the same escape-sequence
// bytes are parsed by hand since there is no tty to delegate to.
func (m *CheckboxMenu) runRawUART() (bool, error) {
	for {
		b, err := m.session.reader.ReadByte()
		if err != nil {
			return false, err
		}
		switch b {
		case 0x1B: // ESC
			b2, err := m.session.reader.ReadByte()
			if err != nil {
				return false, err
			}
			if b2 != '[' {
				continue
			}
			b3, err := m.session.reader.ReadByte()
			if err != nil {
				return false, err
			}
			switch b3 {
			case 0x41: // 'A' cursor up
				m.moveCursor(-1)
			case 0x42: // 'B' cursor down
				m.moveCursor(1)
			}
		case '\r', '\n':
			m.toggleCursor()
		case 'c', 'C':
			return true, nil
		case 'e', 'E':
			return false, nil
		default:
			continue
		}
		if err := m.render(); err != nil {
			return false, err
		}
	}
}

func (m *CheckboxMenu) moveCursor(delta int) {
	if len(m.items) == 0 {
		return
	}
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(m.items) {
		m.cursor = len(m.items) - 1
	}
}

func (m *CheckboxMenu) toggleCursor() {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return
	}
	m.items[m.cursor].Selected = !m.items[m.cursor].Selected
}

func (m *CheckboxMenu) render() error {
	var b strings.Builder
	b.WriteString("\r\n")
	for i, it := range m.items {
		mark := " "
		if it.Selected {
			mark = "x"
		}
		arrow := " "
		if i == m.cursor {
			arrow = ">"
		}
		b.WriteString(fmt.Sprintf("%s [%s] %s\r\n", arrow, mark, it.Label))
	}
	b.WriteString("(Enter=toggle, C=confirm, E=exit)\r\n")
	return m.session.WriteString(b.String())
}
