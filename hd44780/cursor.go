package hd44780

// Backlight reports the last backlight state set.
func (d *Device) Backlight() bool { return d.backlight }

// SetCursor moves the controller's address counter to (col, row), clamping
// both into range.
func (d *Device) SetCursor(col, row int) error {
	col = clamp(col, 0, d.cols-1)
	row = clamp(row, 0, d.rows-1)
	if err := d.Command(cmdDDRAMAddr | (rowOffsets[row] + byte(col))); err != nil {
		return err
	}
	d.it = row*d.cols + col
	return nil
}

// GoTo is SetCursor without clamping: positions off the screen are rejected.
func (d *Device) GoTo(col, row int) error {
	if col < 0 || col >= d.cols || row < 0 || row >= d.rows {
		return ErrPosition
	}
	return d.SetCursor(col, row)
}

// CursorLeft moves one cell back, wrapping from the first cell to the last.
func (d *Device) CursorLeft() error {
	it := d.it - 1
	if it < 0 {
		it = d.size() - 1
	}
	return d.SetCursor(it%d.cols, it/d.cols)
}

// CursorRight accounts for one cell the controller already auto-incremented
// over, as after WriteData. Inside a row nothing is sent; when the index
// wraps into the next row (or back to the first cell) the address is set
// explicitly, since DDRAM rows are not contiguous.
func (d *Device) CursorRight() error {
	d.it++
	if d.it >= d.size() {
		d.it = 0
	}
	if d.it%d.cols == 0 {
		return d.SetCursor(0, d.it/d.cols)
	}
	return nil
}

// CursorUp moves one row up, staying put on the first row.
func (d *Device) CursorUp() error {
	row := d.it / d.cols
	if row <= 0 {
		return nil
	}
	return d.SetCursor(d.it%d.cols, row-1)
}

// CursorDown moves one row down, staying put on the last row.
func (d *Device) CursorDown() error {
	row := d.it / d.cols
	if row >= d.rows-1 {
		return nil
	}
	return d.SetCursor(d.it%d.cols, row+1)
}

// PutChar writes b at the cursor and advances it, wrapping across rows.
func (d *Device) PutChar(b byte) error {
	if err := d.WriteData(b); err != nil {
		return err
	}
	return d.CursorRight()
}

// Back erases the cell before the cursor and leaves the cursor on it.
func (d *Device) Back() error {
	if err := d.CursorLeft(); err != nil {
		return err
	}
	if err := d.WriteData(' '); err != nil {
		return err
	}
	return d.CursorLeft()
}

// Write implements io.Writer. Each byte is a character code.
func (d *Device) Write(p []byte) (n int, err error) {
	for _, b := range p {
		if err := d.PutChar(b); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// WriteString writes s as Latin-1; runes above 0xFF are written as '?'.
func (d *Device) WriteString(s string) (n int, err error) {
	for i, r := range s {
		if r > 0xFF {
			r = '?'
		}
		if err := d.PutChar(byte(r)); err != nil {
			return i, err
		}
	}
	return len(s), nil
}

func (d *Device) size() int { return d.cols * d.rows }

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
