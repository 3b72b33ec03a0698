// Package pcf8574 talks to the PCF8574 8-bit I/O expander found on most
// HD44780 "I2C backpacks". The expander has a single quasi-bidirectional
// register: every byte written to it is latched onto pins P0..P7.
package pcf8574

import (
	"errors"

	"tinygo.org/x/drivers"
)

// Common backpack addresses. Boards with the PCF8574A answer on 0x3F.
const (
	DefaultAddress uint8 = 0x27
	AltAddress     uint8 = 0x3F
)

var (
	ErrAddress  = errors.New("pcf8574: address must be 0..0x7F")
	ErrLength   = errors.New("pcf8574: length must be > 0")
	ErrNotFound = errors.New("pcf8574: no expander answered")
)

// Bridge is the write/read capability over the physical I2C link.
// It is implemented on top of any drivers.I2C, which covers
// machine.I2C on TinyGo and periph's i2c.Bus on Linux hosts.
type Bridge struct {
	bus drivers.I2C
}

// New returns a Bridge over bus.
func New(bus drivers.I2C) *Bridge {
	return &Bridge{bus: bus}
}

// Write sends p to the device at the 7-bit address addr.
// Bus errors are returned as-is.
func (b *Bridge) Write(addr uint8, p []byte) error {
	if addr > 0x7F {
		return ErrAddress
	}
	if len(p) == 0 {
		return ErrLength
	}
	return b.bus.Tx(uint16(addr), p, nil)
}

// Read reads n bytes from the device at the 7-bit address addr.
func (b *Bridge) Read(addr uint8, n int) ([]byte, error) {
	if addr > 0x7F {
		return nil, ErrAddress
	}
	if n <= 0 {
		return nil, ErrLength
	}
	buf := make([]byte, n)
	if err := b.bus.Tx(uint16(addr), nil, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Detect returns the first of addrs (DefaultAddress then AltAddress when
// empty) where a device acknowledges a one byte read.
func (b *Bridge) Detect(addrs ...uint8) (uint8, error) {
	if len(addrs) == 0 {
		addrs = []uint8{DefaultAddress, AltAddress}
	}
	for _, a := range addrs {
		if _, err := b.Read(a, 1); err == nil {
			return a, nil
		}
	}
	return 0, ErrNotFound
}
