package portmon

import (
	"testing"

	"switchfw/internal/eventlog"
	"switchfw/internal/hal"
	"switchfw/internal/sysstate"
)

type fakeCtrlSPI struct {
	regs [256]byte
}

func (f *fakeCtrlSPI) Tx(w, r []byte) error {
	if len(w) == 0 {
		return nil
	}
	switch w[0] {
	case 0x02:
		if w[1] == regInterruptStatus {
			f.regs[w[1]] &^= w[2] // write-1-to-clear
			break
		}
		f.regs[w[1]] = w[2]
	case 0x03:
		n := len(w) - 2
		for i := 0; i < n; i++ {
			reg := w[1] + byte(i)
			r[2+i] = f.regs[reg]
			// The flush bit self-clears once it has been read back set.
			if reg == regGlobalControl1 {
				f.regs[reg] &^= bitMACFlush
			}
		}
	}
	return nil
}

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) Notify(msg string) { n.messages = append(n.messages, msg) }

func TestScanExpansionLinkUpSequence(t *testing.T) {
	f := &fakeCtrlSPI{}
	f.regs[regInterruptStatus] = 0x10 // expansion bit pending
	f.regs[0x00+regStatus1] = bitLinkUp

	c := hal.NewController(f, nil)
	logger := eventlog.NewLogger(nil, nil, 8)
	logger.SetRunning(true)
	notifier := &recordingNotifier{}
	m := NewMonitor(c, logger, sysstate.New(), notifier)
	m.pollDelay = 0

	if err := m.Scan(); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if f.regs[regInterruptStatus]&0x10 != 0 {
		t.Fatal("expected interrupt bit cleared by writeback")
	}
	if f.regs[regGlobalControl1]&bitMACFlush != 0 {
		t.Fatal("expected mac-flush bit cleared after poll")
	}
	if f.regs[0x00+regPortControl2]&bitLearningDisable != 0 {
		t.Fatal("expected learning re-enabled on expansion port after flush")
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("expected exactly one connect notice, got %v", notifier.messages)
	}
}

func TestScanNoPendingInterruptsIsNoop(t *testing.T) {
	f := &fakeCtrlSPI{}
	c := hal.NewController(f, nil)
	logger := eventlog.NewLogger(nil, nil, 8)
	logger.SetRunning(true)
	notifier := &recordingNotifier{}
	m := NewMonitor(c, logger, sysstate.New(), notifier)

	if err := m.Scan(); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(notifier.messages) != 0 {
		t.Fatal("expected no notices when interrupt status is zero")
	}
}

func TestScanProcessesPortsInDeclaredOrder(t *testing.T) {
	f := &fakeCtrlSPI{}
	f.regs[regInterruptStatus] = 0x10 | 0x08 // expansion + port1
	c := hal.NewController(f, nil)
	logger := eventlog.NewLogger(nil, nil, 8)
	logger.SetRunning(true)
	notifier := &recordingNotifier{}
	m := NewMonitor(c, logger, sysstate.New(), notifier)

	if err := m.Scan(); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(notifier.messages) != 2 {
		t.Fatalf("expected two notices, got %v", notifier.messages)
	}
	if notifier.messages[0][:10] != "expansion:" {
		t.Fatalf("expected expansion port handled first, got %v", notifier.messages)
	}
}
