package screen

import (
	"io"
	"log/slog"
)

// Slots is the number of programmable CGRAM glyphs on an HD44780.
const Slots = 8

// Glyph is a 5x8 bitmap (one byte per pixel row, low 5 bits used) plus the
// character printed when the glyph cannot be loaded.
type Glyph struct {
	Pattern [8]byte
	Alt     byte
}

// Catalog maps non-ASCII runes to glyphs.
type Catalog map[rune]Glyph

func g(alt byte, rows ...byte) Glyph {
	var gl Glyph
	for i, r := range rows {
		gl.Pattern[i] = r & 0x1F
	}
	gl.Alt = alt
	return gl
}

// DefaultCatalog returns the Polish letters, a few symbols and a backslash
// (many HD44780 ROMs print a yen sign at 0x5C).
func DefaultCatalog() Catalog {
	return Catalog{
		'ą':  g('a', 0x00, 0x0E, 0x01, 0x0F, 0x11, 0x0F, 0x02, 0x01),
		'Ą':  g('A', 0x0E, 0x11, 0x11, 0x1F, 0x11, 0x11, 0x02, 0x01),
		'ć':  g('c', 0x02, 0x04, 0x0E, 0x10, 0x10, 0x11, 0x0E, 0x00),
		'Ć':  g('C', 0x02, 0x04, 0x0E, 0x11, 0x10, 0x11, 0x0E, 0x00),
		'ę':  g('e', 0x00, 0x0E, 0x11, 0x1F, 0x10, 0x0E, 0x02, 0x01),
		'Ę':  g('E', 0x1F, 0x10, 0x1C, 0x10, 0x10, 0x1F, 0x02, 0x01),
		'ł':  g('l', 0x0C, 0x04, 0x06, 0x04, 0x0C, 0x04, 0x0E, 0x00),
		'Ł':  g('L', 0x08, 0x08, 0x0A, 0x0C, 0x18, 0x08, 0x0F, 0x00),
		'ń':  g('n', 0x02, 0x04, 0x16, 0x19, 0x11, 0x11, 0x11, 0x00),
		'Ń':  g('N', 0x02, 0x15, 0x11, 0x19, 0x15, 0x13, 0x11, 0x00),
		'ó':  g('o', 0x02, 0x04, 0x0E, 0x11, 0x11, 0x11, 0x0E, 0x00),
		'Ó':  g('O', 0x02, 0x04, 0x0E, 0x11, 0x11, 0x11, 0x0E, 0x00),
		'ś':  g('s', 0x02, 0x04, 0x0E, 0x10, 0x0E, 0x01, 0x1E, 0x00),
		'Ś':  g('S', 0x02, 0x04, 0x0F, 0x10, 0x1E, 0x01, 0x1E, 0x00),
		'ż':  g('z', 0x02, 0x04, 0x1F, 0x02, 0x04, 0x08, 0x1F, 0x00),
		'Ż':  g('Z', 0x02, 0x04, 0x1F, 0x02, 0x04, 0x08, 0x1F, 0x00),
		'ź':  g('z', 0x04, 0x00, 0x1F, 0x02, 0x04, 0x08, 0x1F, 0x00),
		'Ź':  g('Z', 0x04, 0x00, 0x1F, 0x02, 0x04, 0x08, 0x1F, 0x00),
		'±':  g(' ', 0x04, 0x04, 0x1F, 0x04, 0x04, 0x00, 0x1F, 0x00),
		'»':  g('>', 0x00, 0x14, 0x0A, 0x05, 0x0A, 0x14, 0x00, 0x00),
		'°':  g('*', 0x06, 0x09, 0x09, 0x06, 0x00, 0x00, 0x00, 0x00),
		'\\': g('/', 0x10, 0x08, 0x04, 0x02, 0x01, 0x00, 0x00, 0x00),
	}
}

// Programmer loads a bitmap into a CGRAM slot.
type Programmer interface {
	ProgramGlyph(slot int, pattern []byte) error
}

// Cache tracks which catalog runes currently live in the 8 CGRAM slots.
//
// A rune maps to a slot iff the slot maps back to the rune, and the used
// mask has one bit per live mapping. When all slots are in use, the slot
// under the rotation pointer is evicted and the pointer advances; it does
// not move on allocations into free slots.
type Cache struct {
	catalog Catalog
	log     *slog.Logger

	live   map[rune]int
	slots  [Slots]rune
	used   uint8
	rotate int
}

// NewCache returns an empty cache over catalog.
func NewCache(catalog Catalog, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	return &Cache{
		catalog: catalog,
		log:     logger,
		live:    make(map[rune]int, Slots),
	}
}

// Lookup returns the glyph for r and whether r is in the catalog.
func (c *Cache) Lookup(r rune) (Glyph, bool) {
	gl, ok := c.catalog[r]
	return gl, ok
}

// Slot returns the slot r is loaded in.
func (c *Cache) Slot(r rune) (int, bool) {
	s, ok := c.live[r]
	return s, ok
}

// Len returns the number of live mappings.
func (c *Cache) Len() int { return len(c.live) }

// Acquire returns a slot holding r's glyph, loading it through p when r is
// not already live. loaded reports whether p was called, which leaves the
// controller addressing CGRAM. r must be in the catalog.
func (c *Cache) Acquire(p Programmer, r rune) (slot int, loaded bool, err error) {
	if s, ok := c.live[r]; ok {
		return s, false, nil
	}
	gl, ok := c.catalog[r]
	if !ok {
		return -1, false, nil
	}
	if c.used == 0xFF {
		c.evict()
	}
	slot = c.free()
	if slot < 0 {
		return -1, false, nil
	}
	if err := p.ProgramGlyph(slot, gl.Pattern[:]); err != nil {
		return -1, true, err
	}
	c.live[r] = slot
	c.slots[slot] = r
	c.used |= 1 << slot
	c.log.Debug("screen:glyph-load", slog.Int("slot", slot), slog.String("rune", string(r)))
	return slot, true, nil
}

// Reset forgets every mapping, as after the controller was re-initialized.
func (c *Cache) Reset() {
	clear(c.live)
	c.slots = [Slots]rune{}
	c.used = 0
	c.rotate = 0
}

func (c *Cache) evict() {
	slot := c.rotate
	old := c.slots[slot]
	delete(c.live, old)
	c.slots[slot] = 0
	c.used &^= 1 << slot
	c.rotate = (c.rotate + 1) % Slots
	c.log.Debug("screen:glyph-evict", slog.Int("slot", slot), slog.String("rune", string(old)))
}

func (c *Cache) free() int {
	for s := 0; s < Slots; s++ {
		if c.used&(1<<s) == 0 {
			return s
		}
	}
	return -1
}
