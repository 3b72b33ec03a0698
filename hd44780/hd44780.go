// Package hd44780 drives an HD44780 character LCD in 4-bit mode through a
// PCF8574 I/O expander. Each register write on the expander sets RS, RW, E,
// the backlight and D4..D7 at once; a nibble is latched by pulsing E.
//
// The controller's DDRAM is not linear across rows, so the driver keeps its
// own linear cursor index over the cols*rows cells and re-addresses the
// controller whenever a move cannot be expressed as "next cell".
//
// A Device is not safe for concurrent use.
package hd44780

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/harveysanders/picolcd/pcf8574"
)

// Commands and their option bits.
const (
	cmdClear       = 0x01
	cmdHome        = 0x02
	cmdEntryMode   = 0x04
	optIncrement   = 0x02
	cmdDisplay     = 0x08
	optDisplayOn   = 0x04
	optCursorOn    = 0x02
	optBlinkOn     = 0x01
	cmdFunctionSet = 0x20
	opt2Lines      = 0x08
	cmdCGRAMAddr   = 0x40
	cmdDDRAMAddr   = 0x80
)

// Settle times from the datasheet, rounded up.
const (
	powerUpDelay   = 50 * time.Millisecond
	initDelay1     = 5 * time.Millisecond
	initDelay2     = 150 * time.Microsecond
	enablePulse    = 1 * time.Microsecond
	nibbleSettle   = 50 * time.Microsecond
	clearHomeDelay = 2 * time.Millisecond
)

// MaxRows is the largest geometry the row address table covers.
const MaxRows = 4

var rowOffsets = [MaxRows]byte{0x00, 0x40, 0x14, 0x54}

var (
	ErrGeometry = errors.New("hd44780: invalid geometry")
	ErrSlot     = errors.New("hd44780: CGRAM slot must be 0..7")
	ErrPattern  = errors.New("hd44780: glyph pattern must be 8 bytes")
	ErrPosition = errors.New("hd44780: position out of range")
)

// Bus writes bytes to a 7-bit I2C address. *pcf8574.Bridge implements it.
type Bus interface {
	Write(addr uint8, p []byte) error
}

// Config holds the display geometry and wiring. Zero fields take the
// defaults of a 16x2 backpack at 0x27 wired as pcf8574.VariantA.
type Config struct {
	Cols    int
	Rows    int
	Address uint8
	Pins    pcf8574.PinMap

	// Sleep blocks for the controller's settle times. Defaults to time.Sleep.
	Sleep  func(time.Duration)
	Logger *slog.Logger
}

// Device is an HD44780 behind a PCF8574.
type Device struct {
	bus   Bus
	addr  uint8
	cols  int
	rows  int
	pins  pcf8574.PinMap
	sleep func(time.Duration)
	log   *slog.Logger

	rs, rw, e, bl byte
	data          [4]byte // D4..D7
	state         byte    // register value between nibble writes
	backlight     bool
	it            int // linear cursor index
	buf           [1]byte
}

// New returns a Device for cfg. It does not touch the bus; call Configure.
func New(bus Bus, cfg Config) (*Device, error) {
	if cfg.Cols == 0 {
		cfg.Cols = 16
	}
	if cfg.Rows == 0 {
		cfg.Rows = 2
	}
	if cfg.Cols < 0 || cfg.Cols > 40 || cfg.Rows < 0 || cfg.Rows > MaxRows {
		return nil, ErrGeometry
	}
	if cfg.Address == 0 {
		cfg.Address = pcf8574.DefaultAddress
	}
	if cfg.Address > 0x7F {
		return nil, pcf8574.ErrAddress
	}
	if cfg.Pins == (pcf8574.PinMap{}) {
		cfg.Pins = pcf8574.VariantA
	}
	if err := cfg.Pins.Validate(); err != nil {
		return nil, err
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	d := &Device{
		bus:   bus,
		addr:  cfg.Address,
		cols:  cfg.Cols,
		rows:  cfg.Rows,
		pins:  cfg.Pins,
		sleep: cfg.Sleep,
		log:   cfg.Logger,
	}
	d.rs = pcf8574.Mask(cfg.Pins.RS)
	d.rw = pcf8574.Mask(cfg.Pins.RW)
	d.e = pcf8574.Mask(cfg.Pins.E)
	d.bl = pcf8574.Mask(cfg.Pins.Backlight)
	d.data = [4]byte{
		pcf8574.Mask(cfg.Pins.D4),
		pcf8574.Mask(cfg.Pins.D5),
		pcf8574.Mask(cfg.Pins.D6),
		pcf8574.Mask(cfg.Pins.D7),
	}
	return d, nil
}

// Cols returns the number of columns.
func (d *Device) Cols() int { return d.cols }

// Rows returns the number of rows.
func (d *Device) Rows() int { return d.rows }

// Position returns the linear cursor index, row*cols+col.
func (d *Device) Position() int { return d.it }

// Configure runs the 4-bit initialization sequence. It must run to
// completion; on error the controller state is undefined and Configure has
// to be called again.
func (d *Device) Configure() error {
	d.log.Debug("hd44780:init",
		slog.Int("cols", d.cols),
		slog.Int("rows", d.rows),
		slog.Int("addr", int(d.addr)),
	)
	d.state = 0
	if err := d.SetBacklight(true); err != nil {
		return err
	}
	d.sleep(powerUpDelay)

	// Three 0x3 nibbles force 8-bit mode from any state, then 0x2 selects 4-bit.
	if err := d.write4(0x03, false); err != nil {
		return err
	}
	d.sleep(initDelay1)
	if err := d.write4(0x03, false); err != nil {
		return err
	}
	d.sleep(initDelay2)
	if err := d.write4(0x03, false); err != nil {
		return err
	}
	d.sleep(initDelay2)
	if err := d.write4(0x02, false); err != nil {
		return err
	}

	fn := byte(cmdFunctionSet)
	if d.rows > 1 {
		fn |= opt2Lines
	}
	steps := []func() error{
		func() error { return d.Command(fn) },
		func() error { return d.Command(cmdDisplay) },
		d.Clear,
		func() error { return d.Command(cmdEntryMode | optIncrement) },
		func() error { return d.Command(cmdDisplay | optDisplayOn) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	d.it = 0
	return nil
}

// SetBacklight switches the backlight, honoring the pin map polarity.
func (d *Device) SetBacklight(on bool) error {
	d.backlight = on
	if on == d.pins.BacklightActiveHigh {
		d.state |= d.bl
	} else {
		d.state &^= d.bl
	}
	return d.writeReg(d.state)
}

// Command sends an instruction byte.
func (d *Device) Command(b byte) error {
	return d.send(b, false)
}

// WriteData sends a data byte to DDRAM or CGRAM, whichever was addressed last.
// It does not move the linear cursor; see PutChar.
func (d *Device) WriteData(b byte) error {
	return d.send(b, true)
}

// Clear clears DDRAM and returns the cursor home.
func (d *Device) Clear() error {
	if err := d.Command(cmdClear); err != nil {
		return err
	}
	d.sleep(clearHomeDelay)
	d.it = 0
	return nil
}

// Home returns the cursor to the first cell without clearing.
func (d *Device) Home() error {
	if err := d.Command(cmdHome); err != nil {
		return err
	}
	d.sleep(clearHomeDelay)
	d.it = 0
	return nil
}

// CursorOn shows the underline cursor, optionally blinking.
func (d *Device) CursorOn(blink bool) error {
	cmd := byte(cmdDisplay | optDisplayOn | optCursorOn)
	if blink {
		cmd |= optBlinkOn
	}
	return d.Command(cmd)
}

// CursorOff hides the cursor.
func (d *Device) CursorOff() error {
	return d.Command(cmdDisplay | optDisplayOn)
}

// ProgramGlyph stores an 8-row bitmap in CGRAM slot 0..7. The controller's
// address counter is left in CGRAM: callers must set the cursor before
// writing text again.
func (d *Device) ProgramGlyph(slot int, pattern []byte) error {
	if slot < 0 || slot > 7 {
		return ErrSlot
	}
	if len(pattern) != 8 {
		return ErrPattern
	}
	if err := d.Command(cmdCGRAMAddr | byte(slot<<3)); err != nil {
		return err
	}
	for _, b := range pattern {
		if err := d.WriteData(b); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) send(b byte, data bool) error {
	if err := d.write4(b>>4, data); err != nil {
		return err
	}
	return d.write4(b&0x0F, data)
}

// write4 puts nibble on D4..D7 and strobes E.
func (d *Device) write4(nibble byte, data bool) error {
	reg := d.state &^ d.rw
	if data {
		reg |= d.rs
	} else {
		reg &^= d.rs
	}
	for i, m := range d.data {
		if nibble&(1<<i) != 0 {
			reg |= m
		} else {
			reg &^= m
		}
	}
	if err := d.writeReg(reg); err != nil {
		return err
	}
	if err := d.writeReg(reg | d.e); err != nil {
		return err
	}
	d.sleep(enablePulse)
	if err := d.writeReg(reg &^ d.e); err != nil {
		return err
	}
	d.sleep(nibbleSettle)
	return nil
}

func (d *Device) writeReg(v byte) error {
	d.buf[0] = v
	return d.bus.Write(d.addr, d.buf[:])
}
