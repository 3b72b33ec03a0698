package pcf8574

import (
	"errors"
	"strconv"
)

var ErrPin = errors.New("pcf8574: invalid pin map")

// PinMap assigns each HD44780 signal to an expander bit (0..7).
type PinMap struct {
	RS        uint8
	RW        uint8
	E         uint8
	Backlight uint8
	D4        uint8
	D5        uint8
	D6        uint8
	D7        uint8

	// BacklightActiveHigh is true when a set bit turns the backlight on.
	BacklightActiveHigh bool
}

var (
	// VariantA is the most common wiring: P0=RS, P1=RW, P2=E, P3=BL, P4..P7=D4..D7.
	VariantA = PinMap{RS: 0, RW: 1, E: 2, Backlight: 3, D4: 4, D5: 5, D6: 6, D7: 7, BacklightActiveHigh: true}
	// VariantB swaps RW and E.
	VariantB = PinMap{RS: 0, RW: 2, E: 1, Backlight: 3, D4: 4, D5: 5, D6: 6, D7: 7, BacklightActiveHigh: true}
	// VariantC puts the data lines on the low nibble.
	VariantC = PinMap{RS: 4, RW: 5, E: 6, Backlight: 7, D4: 0, D5: 1, D6: 2, D7: 3, BacklightActiveHigh: true}
)

// Variant returns the named wiring variant ("A", "B" or "C").
func Variant(name string) (PinMap, bool) {
	switch name {
	case "A", "a":
		return VariantA, true
	case "B", "b":
		return VariantB, true
	case "C", "c":
		return VariantC, true
	}
	return PinMap{}, false
}

// PinError reports a signal that is out of range or shares its bit.
type PinError struct {
	Signal string
	Bit    uint8
	Shared bool
}

func (e *PinError) Error() string {
	if e.Shared {
		return ErrPin.Error() + ": " + e.Signal + " shares bit " + strconv.Itoa(int(e.Bit))
	}
	return ErrPin.Error() + ": " + e.Signal + " on bit " + strconv.Itoa(int(e.Bit))
}

func (e *PinError) Unwrap() error { return ErrPin }

// Validate checks that every signal sits on its own bit in 0..7.
func (p PinMap) Validate() error {
	var seen uint8
	for i, bit := range p.bits() {
		if bit > 7 {
			return &PinError{Signal: signalNames[i], Bit: bit}
		}
		if seen&(1<<bit) != 0 {
			return &PinError{Signal: signalNames[i], Bit: bit, Shared: true}
		}
		seen |= 1 << bit
	}
	return nil
}

var signalNames = [8]string{"RS", "RW", "E", "BL", "D4", "D5", "D6", "D7"}

func (p PinMap) bits() [8]uint8 {
	return [8]uint8{p.RS, p.RW, p.E, p.Backlight, p.D4, p.D5, p.D6, p.D7}
}

// Mask returns the register mask for bit. bit must be 0..7.
func Mask(bit uint8) byte {
	return 1 << (bit & 7)
}
