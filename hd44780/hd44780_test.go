package hd44780

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/harveysanders/picolcd/pcf8574"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

type nibble struct {
	rs bool
	v  byte
}

type frame struct {
	rs bool
	b  byte
}

type harness struct {
	dev    *Device
	rec    *i2ctest.Record
	sleeps []time.Duration
	pins   pcf8574.PinMap
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{rec: &i2ctest.Record{}}
	cfg.Sleep = func(d time.Duration) { h.sleeps = append(h.sleeps, d) }
	dev, err := New(pcf8574.New(h.rec), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.dev = dev
	h.pins = dev.pins
	return h
}

func (h *harness) reset() {
	h.rec.Ops = nil
	h.sleeps = nil
}

// nibbles returns what the controller latched: the register value on every
// rising edge of E.
func (h *harness) nibbles(t *testing.T) []nibble {
	t.Helper()
	e := pcf8574.Mask(h.pins.E)
	rs := pcf8574.Mask(h.pins.RS)
	data := []uint8{h.pins.D4, h.pins.D5, h.pins.D6, h.pins.D7}
	var out []nibble
	for _, op := range h.rec.Ops {
		if len(op.W) != 1 {
			t.Fatalf("register write of %d bytes", len(op.W))
		}
		reg := op.W[0]
		if reg&e == 0 {
			continue
		}
		if reg&pcf8574.Mask(h.pins.RW) != 0 {
			t.Fatalf("RW high in %#02x", reg)
		}
		var v byte
		for i, bit := range data {
			if reg&pcf8574.Mask(bit) != 0 {
				v |= 1 << i
			}
		}
		out = append(out, nibble{rs: reg&rs != 0, v: v})
	}
	return out
}

func (h *harness) frames(t *testing.T) []frame {
	t.Helper()
	return pair(t, h.nibbles(t))
}

func pair(t *testing.T, n []nibble) []frame {
	t.Helper()
	if len(n)%2 != 0 {
		t.Fatalf("odd nibble count %d", len(n))
	}
	var out []frame
	for i := 0; i < len(n); i += 2 {
		if n[i].rs != n[i+1].rs {
			t.Fatalf("RS changed inside byte %d", i/2)
		}
		out = append(out, frame{rs: n[i].rs, b: n[i].v<<4 | n[i+1].v})
	}
	return out
}

func commands(fs []frame) []byte {
	var out []byte
	for _, f := range fs {
		if !f.rs {
			out = append(out, f.b)
		}
	}
	return out
}

func TestConfigure(t *testing.T) {
	tests := []struct {
		name    string
		rows    int
		funcSet byte
	}{
		{"two rows", 2, 0x28},
		{"one row", 1, 0x20},
		{"four rows", 4, 0x28},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Config{Cols: 20, Rows: tt.rows})
			if err := h.dev.Configure(); err != nil {
				t.Fatalf("Configure: %v", err)
			}
			if got := h.rec.Ops[0].W[0]; got != 0x08 {
				t.Errorf("first write %#02x, want backlight only 0x08", got)
			}
			n := h.nibbles(t)
			want := []nibble{{false, 3}, {false, 3}, {false, 3}, {false, 2}}
			for i, w := range want {
				if n[i] != w {
					t.Fatalf("init nibble %d = %+v, want %+v", i, n[i], w)
				}
			}
			got := commands(pair(t, n[4:]))
			wantCmds := []byte{tt.funcSet, 0x08, 0x01, 0x06, 0x0C}
			if !bytes.Equal(got, wantCmds) {
				t.Errorf("commands %x, want %x", got, wantCmds)
			}
			if h.dev.Position() != 0 {
				t.Errorf("Position %d after init", h.dev.Position())
			}
		})
	}
}

func TestConfigureDelays(t *testing.T) {
	h := newHarness(t, Config{})
	if err := h.dev.Configure(); err != nil {
		t.Fatal(err)
	}
	var long []time.Duration
	for _, d := range h.sleeps {
		if d > nibbleSettle {
			long = append(long, d)
		}
	}
	want := []time.Duration{powerUpDelay, initDelay1, initDelay2, initDelay2, clearHomeDelay}
	if len(long) != len(want) {
		t.Fatalf("long delays %v, want %v", long, want)
	}
	for i := range want {
		if long[i] != want[i] {
			t.Errorf("delay %d = %v, want %v", i, long[i], want[i])
		}
	}
}

func TestWriteDataStrobe(t *testing.T) {
	h := newHarness(t, Config{})
	if err := h.dev.SetBacklight(true); err != nil {
		t.Fatal(err)
	}
	h.reset()
	if err := h.dev.WriteData('A'); err != nil {
		t.Fatal(err)
	}
	var got []byte
	for _, op := range h.rec.Ops {
		got = append(got, op.W...)
	}
	// RS=0x01, BL=0x08, E=0x04; 'A' = 0x4 then 0x1 on P4..P7.
	want := []byte{0x49, 0x4D, 0x49, 0x19, 0x1D, 0x19}
	if !bytes.Equal(got, want) {
		t.Errorf("register writes %x, want %x", got, want)
	}
	wantSleeps := []time.Duration{enablePulse, nibbleSettle, enablePulse, nibbleSettle}
	if len(h.sleeps) != len(wantSleeps) {
		t.Fatalf("sleeps %v", h.sleeps)
	}
	for i := range wantSleeps {
		if h.sleeps[i] != wantSleeps[i] {
			t.Errorf("sleep %d = %v, want %v", i, h.sleeps[i], wantSleeps[i])
		}
	}
}

func TestVariantCBits(t *testing.T) {
	h := newHarness(t, Config{Pins: pcf8574.VariantC})
	if err := h.dev.SetBacklight(true); err != nil {
		t.Fatal(err)
	}
	h.reset()
	if err := h.dev.WriteData('A'); err != nil {
		t.Fatal(err)
	}
	// BL=0x80, RS=0x10, E=0x40, D4..D7 on P0..P3.
	want := []byte{0x94, 0xD4, 0x94, 0x91, 0xD1, 0x91}
	var got []byte
	for _, op := range h.rec.Ops {
		got = append(got, op.W...)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("register writes %x, want %x", got, want)
	}
}

func TestBacklightPolarity(t *testing.T) {
	pins := pcf8574.VariantA
	pins.BacklightActiveHigh = false
	h := newHarness(t, Config{Pins: pins})
	if err := h.dev.SetBacklight(true); err != nil {
		t.Fatal(err)
	}
	if err := h.dev.SetBacklight(false); err != nil {
		t.Fatal(err)
	}
	if h.rec.Ops[0].W[0] != 0x00 || h.rec.Ops[1].W[0] != 0x08 {
		t.Errorf("writes %x %x", h.rec.Ops[0].W, h.rec.Ops[1].W)
	}
	if h.dev.Backlight() {
		t.Error("Backlight() = true after SetBacklight(false)")
	}
}

func TestSetCursorAddresses(t *testing.T) {
	h := newHarness(t, Config{Cols: 20, Rows: 4})
	tests := []struct {
		col, row int
		cmd      byte
		pos      int
	}{
		{0, 0, 0x80, 0},
		{0, 1, 0xC0, 20},
		{0, 2, 0x94, 40},
		{5, 3, 0xD9, 65},
		{99, -1, 0x93, 19}, // clamped
	}
	for _, tt := range tests {
		h.reset()
		if err := h.dev.SetCursor(tt.col, tt.row); err != nil {
			t.Fatal(err)
		}
		fs := h.frames(t)
		if len(fs) != 1 || fs[0].rs || fs[0].b != tt.cmd {
			t.Errorf("SetCursor(%d,%d) sent %+v, want command %#02x", tt.col, tt.row, fs, tt.cmd)
		}
		if h.dev.Position() != tt.pos {
			t.Errorf("SetCursor(%d,%d) position %d, want %d", tt.col, tt.row, h.dev.Position(), tt.pos)
		}
	}
}

func TestGoToRejects(t *testing.T) {
	h := newHarness(t, Config{})
	for _, p := range [][2]int{{-1, 0}, {16, 0}, {0, 2}, {0, -1}} {
		if err := h.dev.GoTo(p[0], p[1]); !errors.Is(err, ErrPosition) {
			t.Errorf("GoTo(%d,%d) = %v", p[0], p[1], err)
		}
	}
	if len(h.rec.Ops) != 0 {
		t.Errorf("rejected GoTo reached the bus")
	}
}

func TestCursorRightWrap(t *testing.T) {
	h := newHarness(t, Config{Cols: 16, Rows: 2})
	var sets []byte
	for i := 1; i <= 32; i++ {
		h.reset()
		if err := h.dev.CursorRight(); err != nil {
			t.Fatal(err)
		}
		fs := h.frames(t)
		switch i {
		case 16:
			if len(fs) != 1 || fs[0].b != 0xC0 {
				t.Errorf("crossing into row 1 sent %+v, want 0xC0", fs)
			}
		case 32:
			if len(fs) != 1 || fs[0].b != 0x80 {
				t.Errorf("wrapping to cell 0 sent %+v, want 0x80", fs)
			}
		default:
			if len(fs) != 0 {
				t.Errorf("step %d sent %+v, want nothing", i, fs)
			}
		}
		for _, f := range fs {
			sets = append(sets, f.b)
		}
	}
	if h.dev.Position() != 0 {
		t.Errorf("Position %d after full wrap", h.dev.Position())
	}
	if len(sets) != 2 {
		t.Errorf("address sets %x", sets)
	}
}

func TestCursorLeftUpDown(t *testing.T) {
	h := newHarness(t, Config{Cols: 16, Rows: 2})
	if err := h.dev.CursorLeft(); err != nil {
		t.Fatal(err)
	}
	if h.dev.Position() != 31 {
		t.Fatalf("left from 0 -> %d, want 31", h.dev.Position())
	}
	h.reset()
	if err := h.dev.CursorDown(); err != nil {
		t.Fatal(err)
	}
	if len(h.rec.Ops) != 0 || h.dev.Position() != 31 {
		t.Errorf("down on last row moved: pos %d ops %d", h.dev.Position(), len(h.rec.Ops))
	}
	if err := h.dev.CursorUp(); err != nil {
		t.Fatal(err)
	}
	if h.dev.Position() != 15 {
		t.Errorf("up -> %d, want 15", h.dev.Position())
	}
	h.reset()
	if err := h.dev.CursorUp(); err != nil {
		t.Fatal(err)
	}
	if len(h.rec.Ops) != 0 {
		t.Error("up on first row reached the bus")
	}
}

func TestWriteStringLatin1(t *testing.T) {
	h := newHarness(t, Config{})
	n, err := h.dev.WriteString("Hé€")
	if err != nil {
		t.Fatal(err)
	}
	if n != len("Hé€") {
		t.Errorf("n = %d", n)
	}
	var data []byte
	for _, f := range h.frames(t) {
		if f.rs {
			data = append(data, f.b)
		}
	}
	if !bytes.Equal(data, []byte{'H', 0xE9, '?'}) {
		t.Errorf("data %x", data)
	}
	if h.dev.Position() != 3 {
		t.Errorf("Position %d", h.dev.Position())
	}
}

func TestProgramGlyph(t *testing.T) {
	h := newHarness(t, Config{})
	pattern := []byte{0x06, 0x09, 0x09, 0x06, 0, 0, 0, 0}
	if err := h.dev.ProgramGlyph(3, pattern); err != nil {
		t.Fatal(err)
	}
	fs := h.frames(t)
	if len(fs) != 9 || fs[0].rs || fs[0].b != 0x58 {
		t.Fatalf("frames %+v", fs)
	}
	for i, f := range fs[1:] {
		if !f.rs || f.b != pattern[i] {
			t.Errorf("row %d = %+v", i, f)
		}
	}

	h.reset()
	if err := h.dev.ProgramGlyph(8, pattern); !errors.Is(err, ErrSlot) {
		t.Errorf("slot 8: %v", err)
	}
	if err := h.dev.ProgramGlyph(-1, pattern); !errors.Is(err, ErrSlot) {
		t.Errorf("slot -1: %v", err)
	}
	if err := h.dev.ProgramGlyph(0, pattern[:7]); !errors.Is(err, ErrPattern) {
		t.Errorf("short pattern: %v", err)
	}
	if len(h.rec.Ops) != 0 {
		t.Error("rejected glyph reached the bus")
	}
}

type flakyBus struct {
	left int
	err  error
}

func (f *flakyBus) Write(addr uint8, p []byte) error {
	if f.left == 0 {
		return f.err
	}
	f.left--
	return nil
}

func TestBusErrorPropagates(t *testing.T) {
	busErr := errors.New("i2c: nack")
	for _, left := range []int{0, 1, 5, 20} {
		dev, err := New(&flakyBus{left: left, err: busErr}, Config{Sleep: func(time.Duration) {}})
		if err != nil {
			t.Fatal(err)
		}
		if err := dev.Configure(); err != busErr {
			t.Errorf("fail after %d writes: got %v", left, err)
		}
	}
}

func TestNewValidation(t *testing.T) {
	bus := &flakyBus{}
	bad := pcf8574.VariantA
	bad.D4 = bad.D5
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"rows", Config{Rows: 5}, ErrGeometry},
		{"negative cols", Config{Cols: -1}, ErrGeometry},
		{"address", Config{Address: 0x80}, pcf8574.ErrAddress},
		{"pins", Config{Pins: bad}, pcf8574.ErrPin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(bus, tt.cfg); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
	dev, err := New(bus, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if dev.Cols() != 16 || dev.Rows() != 2 || dev.addr != pcf8574.DefaultAddress {
		t.Errorf("defaults: %dx%d @%#x", dev.Cols(), dev.Rows(), dev.addr)
	}
}
