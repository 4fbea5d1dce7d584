// Package handlers implements the command bodies shared by the CLI
// tree (internal/cli) and the I²C code table (internal/i2cproto): bit
// operations, LinkMD diagnostics, VLAN programming, MAC table dumps,
// and progress handles. Handlers are registered once and
// looked up by both transports, which converge on the same handler
// set before reaching the HAL.
package handlers

import (
	"fmt"
	"sync"
)

// ProgressAction enumerates the named-handle actions available for
// progress reporting.
type ProgressAction int

const (
	ActionIncrement ProgressAction = iota
	ActionDecrement
	ActionReset
	ActionFill
	ActionFillError
)

// ConsoleWriter is the minimal surface a progress bar renders ANSI
// escapes through; internal/cli.Session implements it. Kept as an
// interface here (instead of importing internal/cli) since cli in turn
// depends on handlers for command bodies.
type ConsoleWriter interface {
	WriteString(s string) error
	ConsoleMode() bool
}

// ProgressHandle is a named progress-bar instance. It stores the last
// reported percentage so an update only ever renders the delta.
type ProgressHandle struct {
	mu      sync.Mutex
	name    string
	out     ConsoleWriter
	total   int
	current int
	lastPct int
	errored bool
}

// NewProgressHandle creates a named handle bound to a console. out may
// be nil, in which case progress updates are computed but not rendered
// (used by persistence.Engine.BootRestore/SaveConfig calls that happen
// before a session exists).
func NewProgressHandle(name string, out ConsoleWriter) *ProgressHandle {
	return &ProgressHandle{name: name, out: out}
}

// Reset implements persistence.ProgressReporter: establishes a new
// total and zeroes the counters.
func (p *ProgressHandle) Reset(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.current = 0
	p.lastPct = -1
	p.errored = false
	p.renderLocked(0)
}

// Step implements persistence.ProgressReporter: increments by one unit
// and renders only if the displayed percentage changed.
func (p *ProgressHandle) Step() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current < p.total {
		p.current++
	}
	p.renderLocked(p.percentLocked())
}

// Fill implements persistence.ProgressReporter: jumps straight to 100%.
func (p *ProgressHandle) Fill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = p.total
	p.renderLocked(100)
}

// FillError implements persistence.ProgressReporter: marks the bar as
// having failed, still rendering 100% of the attempted span but with
// an error marker.
func (p *ProgressHandle) FillError() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errored = true
	p.current = p.total
	p.renderLocked(100)
}

// Apply dispatches a ProgressAction the way a CLI/I2C command handler
// would (Increment/Decrement/Reset/Fill/FillError).
func (p *ProgressHandle) Apply(action ProgressAction, amount int) {
	switch action {
	case ActionIncrement:
		p.mu.Lock()
		p.current += amount
		if p.current > p.total {
			p.current = p.total
		}
		p.renderLocked(p.percentLocked())
		p.mu.Unlock()
	case ActionDecrement:
		p.mu.Lock()
		p.current -= amount
		if p.current < 0 {
			p.current = 0
		}
		p.renderLocked(p.percentLocked())
		p.mu.Unlock()
	case ActionReset:
		p.Reset(p.total)
	case ActionFill:
		p.Fill()
	case ActionFillError:
		p.FillError()
	}
}

func (p *ProgressHandle) percentLocked() int {
	if p.total <= 0 {
		return 100
	}
	return p.current * 100 / p.total
}

// renderLocked writes only when pct differs from the last rendered
// value, and only when bound to a console in ConsoleMode.
func (p *ProgressHandle) renderLocked(pct int) {
	if pct == p.lastPct {
		return
	}
	p.lastPct = pct
	if p.out == nil || !p.out.ConsoleMode() {
		return
	}
	marker := "="
	if p.errored {
		marker = "!"
	}
	_ = p.out.WriteString(fmt.Sprintf("\r%s [%3d%%] %s", p.name, pct, repeat(marker, pct/5)))
}

func repeat(s string, n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, 0, n*len(s))
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
