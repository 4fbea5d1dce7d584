package handlers

import (
	"fmt"
	"time"

	"switchfw/internal/hal"
)

// pollRetries and pollDelay bound poll-verify loops to 10 retries
// separated by the task layer's short cooperative delay.
const (
	pollRetries = 10
	pollDelay   = 5 * time.Millisecond
)

// SetBit reads ctrl register at reg, ORs in mask, writes back, then
// polls until the readback agrees.
func SetBit(c *hal.Controller, reg, mask byte) error {
	return writeAndVerifyBit(c, reg, mask, mask)
}

// ClearBit is SetBit's complement: it polls until the targeted bits
// read back as clear.
func ClearBit(c *hal.Controller, reg, mask byte) error {
	return writeAndVerifyBit(c, reg, mask, 0)
}

func writeAndVerifyBit(c *hal.Controller, reg, mask, want byte) error {
	cur, err := c.CtrlRead(reg)
	if err != nil {
		return fmt.Errorf("handlers: bitop read reg %#x: %w", reg, err)
	}
	var next byte
	if want != 0 {
		next = cur | mask
	} else {
		next = cur &^ mask
	}
	if err := c.CtrlWrite(reg, next); err != nil {
		return fmt.Errorf("handlers: bitop write reg %#x: %w", reg, err)
	}
	for i := 0; i < pollRetries; i++ {
		got, err := c.CtrlRead(reg)
		if err != nil {
			return fmt.Errorf("handlers: bitop verify reg %#x: %w", reg, err)
		}
		if got&mask == want {
			return nil
		}
		time.Sleep(pollDelay)
	}
	return &hal.DeviceError{Kind: hal.KindTransient, Op: "bitop/verify", Err: hal.ErrPollExhausted}
}

// SelfClearingBit reads reg, sets mask, writes it back, then polls
// until the device clears mask on its own.
func SelfClearingBit(c *hal.Controller, reg, mask byte) error {
	cur, err := c.CtrlRead(reg)
	if err != nil {
		return fmt.Errorf("handlers: self-clearing-bit read reg %#x: %w", reg, err)
	}
	if err := c.CtrlWrite(reg, cur|mask); err != nil {
		return fmt.Errorf("handlers: self-clearing-bit write reg %#x: %w", reg, err)
	}
	for i := 0; i < pollRetries; i++ {
		got, err := c.CtrlRead(reg)
		if err != nil {
			return fmt.Errorf("handlers: self-clearing-bit poll reg %#x: %w", reg, err)
		}
		if got&mask == 0 {
			return nil
		}
		time.Sleep(pollDelay)
	}
	return &hal.DeviceError{Kind: hal.KindTransient, Op: "self-clearing-bit/poll", Err: hal.ErrPollExhausted}
}
