// Package portmon implements the periodic link-event monitor: polls
// the controller's interrupt-status register and flushes the dynamic
// MAC table across link transitions, in the same "read pending, clear
// by writeback, notify" shape used for interrupt controller emulation,
// adapted here from interrupt vectoring to link-state polling.
package portmon

import (
	"fmt"
	"time"

	"switchfw/internal/eventlog"
	"switchfw/internal/hal"
	"switchfw/internal/sysstate"
)

// Register offsets, chosen to be internally consistent; see DESIGN.md
// for the same invented-but-consistent numbering caveat as
// internal/handlers.
const (
	regInterruptStatus byte = 0x7B // 5 bits: expansion + 4 user ports
	regStatus1         byte = 0x00 // relative to a port's base offset; bit5 = link up
	regPortControl2    byte = 0x02 // relative offset; learning-disable bit lives here
	regGlobalControl1  byte = 0x01 // global register; dynamic-MAC-flush bit

	bitLinkUp        byte = 0x20
	bitLearningDisable byte = 0x10
	bitMACFlush      byte = 0x01
)

// scanInterval is the port monitor's periodic cadence, the long-task
// cooperative delay class (~40ms).
const scanInterval = 40 * time.Millisecond

// portOrder is the fixed iteration order: expansion first, then the
// four user ports in declared order.
var portOrder = []struct {
	bit    byte
	offset byte
	name   string
}{
	{bit: 1 << 4, offset: 0x00, name: "expansion"},
	{bit: 1 << 0, offset: 0x10, name: "port4"},
	{bit: 1 << 1, offset: 0x20, name: "port3"},
	{bit: 1 << 2, offset: 0x30, name: "port2"},
	{bit: 1 << 3, offset: 0x40, name: "port1"},
}

// Notifier prints connect/disconnect notices; internal/cli.Session
// (or any io.Writer-backed console) can implement it. Interface rather
// than a direct import to keep portmon below cli in the dependency
// graph.
type Notifier interface {
	Notify(message string)
}

type stdoutNotifier struct{}

func (stdoutNotifier) Notify(message string) { fmt.Println(message) }

// StdoutNotifier is a Notifier that prints to stdout, used when no
// richer console session is wired in (e.g. headless bring-up).
var StdoutNotifier Notifier = stdoutNotifier{}

// Monitor runs the periodic port-scan task.
type Monitor struct {
	Controller *hal.Controller
	Logger     *eventlog.Logger
	State      *sysstate.State
	Notifier   Notifier

	Interval    time.Duration
	pollDelay   time.Duration
	pollRetries int
}

// NewMonitor wires a Monitor with the default scan interval.
func NewMonitor(c *hal.Controller, logger *eventlog.Logger, state *sysstate.State, notifier Notifier) *Monitor {
	if notifier == nil {
		notifier = StdoutNotifier
	}
	return &Monitor{
		Controller:  c,
		Logger:      logger,
		State:       state,
		Notifier:    notifier,
		Interval:    scanInterval,
		pollDelay:   5 * time.Millisecond,
		pollRetries: 10,
	}
}

// Run loops Scan forever at m.Interval, idling while no session is
// authenticated.
func (m *Monitor) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !m.State.Authenticated() {
				continue
			}
			if err := m.Scan(); err != nil {
				m.Notifier.Notify(fmt.Sprintf("port monitor: %v", err))
			}
		}
	}
}

// Scan performs exactly one interrupt-status read and per-port handle
// pass.
func (m *Monitor) Scan() error {
	status, err := m.Controller.CtrlRead(regInterruptStatus)
	if err != nil {
		return fmt.Errorf("portmon: read interrupt status: %w", err)
	}
	if status == 0 {
		return nil
	}
	for _, p := range portOrder {
		if status&p.bit == 0 {
			continue
		}
		if err := m.handlePort(p.bit, p.offset, p.name); err != nil {
			return err
		}
	}
	return nil
}

func (m *Monitor) handlePort(bit, offset byte, name string) error {
	if err := m.Controller.CtrlWrite(regInterruptStatus, bit); err != nil {
		return fmt.Errorf("portmon: clear interrupt bit for %s: %w", name, err)
	}

	status1, err := m.Controller.CtrlRead(offset + regStatus1)
	if err != nil {
		return fmt.Errorf("portmon: read status-1 for %s: %w", name, err)
	}
	linkUp := status1&bitLinkUp != 0
	if linkUp {
		m.Notifier.Notify(fmt.Sprintf("%s: link connected", name))
		m.Logger.Enqueue(eventlog.CodeLinkUp)
	} else {
		m.Notifier.Notify(fmt.Sprintf("%s: link disconnected", name))
		m.Logger.Enqueue(eventlog.CodeLinkDown)
	}

	if err := m.disableLearning(offset); err != nil {
		return fmt.Errorf("portmon: disable learning on %s: %w", name, err)
	}
	if err := m.flushDynamicMAC(); err != nil {
		return fmt.Errorf("portmon: flush dynamic mac: %w", err)
	}
	if err := m.enableLearning(offset); err != nil {
		return fmt.Errorf("portmon: re-enable learning on %s: %w", name, err)
	}
	return nil
}

func (m *Monitor) disableLearning(portOffset byte) error {
	cur, err := m.Controller.CtrlRead(portOffset + regPortControl2)
	if err != nil {
		return err
	}
	return m.Controller.CtrlWrite(portOffset+regPortControl2, cur|bitLearningDisable)
}

func (m *Monitor) enableLearning(portOffset byte) error {
	cur, err := m.Controller.CtrlRead(portOffset + regPortControl2)
	if err != nil {
		return err
	}
	return m.Controller.CtrlWrite(portOffset+regPortControl2, cur&^bitLearningDisable)
}

func (m *Monitor) flushDynamicMAC() error {
	cur, err := m.Controller.CtrlRead(regGlobalControl1)
	if err != nil {
		return err
	}
	if err := m.Controller.CtrlWrite(regGlobalControl1, cur|bitMACFlush); err != nil {
		return err
	}
	for i := 0; i < m.pollRetries; i++ {
		got, err := m.Controller.CtrlRead(regGlobalControl1)
		if err != nil {
			return err
		}
		if got&bitMACFlush == 0 {
			return nil
		}
		time.Sleep(m.pollDelay)
	}
	return &hal.DeviceError{Kind: hal.KindTransient, Op: "flushDynamicMAC/poll", Err: hal.ErrPollExhausted}
}
