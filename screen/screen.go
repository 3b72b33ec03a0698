// Package screen keeps an in-memory copy of a character LCD and refreshes
// the hardware by writing only the cells that changed. Runes from a glyph
// catalog (Polish letters, degree sign, ...) are mapped onto the
// controller's 8 programmable CGRAM slots on demand.
//
// Example usage:
//
//	scr, err := screen.New(dev, screen.Config{Cols: 16, Rows: 2})
//	scr.WriteAt(0, 0, "Temp 21°C")
//	err = scr.Refresh()
package screen

import (
	"errors"
	"io"
	"log/slog"
)

// unset never matches a real rune, so the first Refresh writes every cell.
const unset rune = -1

var (
	ErrGeometry = errors.New("screen: cols and rows must be positive")
	ErrRow      = errors.New("screen: row out of range")
)

// Driver is what Screen needs from the controller. *hd44780.Device
// implements it.
type Driver interface {
	SetCursor(col, row int) error
	WriteData(b byte) error
	ProgramGlyph(slot int, pattern []byte) error
}

// Config describes the surface. Catalog defaults to DefaultCatalog.
type Config struct {
	Cols    int
	Rows    int
	Catalog Catalog
	// NoGlyphs renders catalog runes with their ASCII fallback instead of
	// loading CGRAM.
	NoGlyphs bool
	Logger   *slog.Logger
}

// Screen is a buffered character surface. It is not safe for concurrent use.
type Screen struct {
	drv      Driver
	cols     int
	rows     int
	buf      []rune // requested content
	shadow   []rune // content last written to the controller
	line     int    // row used by Puts
	glyphs   *Cache
	noGlyphs bool
	log      *slog.Logger
}

// New returns a blank Screen drawing through drv.
func New(drv Driver, cfg Config) (*Screen, error) {
	if cfg.Cols <= 0 || cfg.Rows <= 0 {
		return nil, ErrGeometry
	}
	if cfg.Catalog == nil {
		cfg.Catalog = DefaultCatalog()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	size := cfg.Cols * cfg.Rows
	s := &Screen{
		drv:      drv,
		cols:     cfg.Cols,
		rows:     cfg.Rows,
		buf:      make([]rune, size),
		shadow:   make([]rune, size),
		glyphs:   NewCache(cfg.Catalog, cfg.Logger),
		noGlyphs: cfg.NoGlyphs,
		log:      cfg.Logger,
	}
	s.Clear()
	s.invalidate()
	return s, nil
}

// Cols returns the number of columns.
func (s *Screen) Cols() int { return s.cols }

// Rows returns the number of rows.
func (s *Screen) Rows() int { return s.rows }

// Glyphs exposes the CGRAM slot cache.
func (s *Screen) Glyphs() *Cache { return s.glyphs }

// Clear blanks the whole buffer.
func (s *Screen) Clear() {
	for i := range s.buf {
		s.buf[i] = ' '
	}
}

// ClearLine blanks one row of the buffer.
func (s *Screen) ClearLine(row int) error {
	if row < 0 || row >= s.rows {
		return ErrRow
	}
	s.clearLine(row)
	return nil
}

func (s *Screen) clearLine(row int) {
	start := row * s.cols
	for i := start; i < start+s.cols; i++ {
		s.buf[i] = ' '
	}
}

// WriteAt puts text at (col, row). Rows out of range are ignored, a negative
// col starts at 0, and text is cut at the end of the row.
func (s *Screen) WriteAt(col, row int, text string) {
	if row < 0 || row >= s.rows {
		return
	}
	if col < 0 {
		col = 0
	}
	i := row*s.cols + col
	end := (row + 1) * s.cols
	for _, r := range text {
		if i >= end {
			return
		}
		s.buf[i] = r
		i++
	}
}

// Puts writes text line by line. Screen remembers one row between calls;
// each call clears only that row, then writes from column 0. Running past
// the last column wraps to column 0 of the same row. A '\n' moves to the
// next row (wrapping to the first) at column 0 without clearing it.
func (s *Screen) Puts(text string) {
	if text == "" {
		return
	}
	line, col := s.line, 0
	s.clearLine(line)
	for _, r := range text {
		if r == '\n' {
			line = (line + 1) % s.rows
			col = 0
			continue
		}
		s.buf[line*s.cols+col] = r
		col = (col + 1) % s.cols
	}
	s.line = line
}

// Line returns the buffered text of row.
func (s *Screen) Line(row int) string {
	if row < 0 || row >= s.rows {
		return ""
	}
	return string(s.buf[row*s.cols : (row+1)*s.cols])
}

// Cell returns the buffered rune at (col, row).
func (s *Screen) Cell(col, row int) rune {
	if col < 0 || col >= s.cols || row < 0 || row >= s.rows {
		return 0
	}
	return s.buf[row*s.cols+col]
}

// Reset forgets what the controller shows and which glyphs it holds. Call
// it after re-initializing the controller; the next Refresh redraws all.
func (s *Screen) Reset() {
	s.invalidate()
	s.glyphs.Reset()
}

func (s *Screen) invalidate() {
	for i := range s.shadow {
		s.shadow[i] = unset
	}
}

// Refresh writes every cell that differs from what was last written.
//
// The controller auto-increments its address after each data write, so a
// run of adjacent changed cells needs a single cursor set. The cursor is set
// again when a cell is not the next one after the previous write, when it
// starts a new row (DDRAM rows are not contiguous), and after a glyph load
// (which leaves the address counter in CGRAM).
//
// On error the remaining cells keep their old shadow and are retried by the
// next Refresh, but the controller should be re-initialized first.
func (s *Screen) Refresh() error {
	last := -1
	for i, r := range s.buf {
		if s.shadow[i] == r {
			continue
		}
		code, loaded, err := s.encode(r)
		if err != nil {
			return err
		}
		row := i / s.cols
		if loaded || last < 0 || i-last != 1 || row != last/s.cols {
			if err := s.drv.SetCursor(i%s.cols, row); err != nil {
				return err
			}
		}
		if err := s.drv.WriteData(code); err != nil {
			return err
		}
		s.shadow[i] = r
		last = i
	}
	return nil
}

// encode returns the character code for r, loading a glyph if needed.
func (s *Screen) encode(r rune) (code byte, loaded bool, err error) {
	if gl, ok := s.glyphs.Lookup(r); ok {
		if !s.noGlyphs {
			slot, loaded, err := s.glyphs.Acquire(s.drv, r)
			if err != nil {
				return 0, loaded, err
			}
			if slot >= 0 {
				return byte(slot), loaded, nil
			}
		}
		return gl.Alt, false, nil
	}
	if r >= 0 && r <= 0xFF {
		return byte(r), false, nil
	}
	return '?', false, nil
}
