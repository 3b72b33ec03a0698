package menu

import (
	"errors"
	"strconv"
	"strings"
)

var (
	ErrRange     = errors.New("menu: value out of range")
	ErrNoOptions = errors.New("menu: enumeration needs at least one option")
)

// brackets returns the value delimiters: angle brackets on the focused row.
func brackets(focused bool) (open, close string) {
	if focused {
		return "<", ">"
	}
	return "[", "]"
}

// labelled right-aligns value after name within width.
func labelled(name, value string, width int) string {
	vw := len([]rune(value))
	if vw >= width {
		return fit(value, width)
	}
	return fit(name, width-vw) + value
}

// focus tracks Enter/Leave for widgets that draw differently when focused.
type focus struct{ focused bool }

func (f *focus) track(a Action) {
	switch a {
	case Enter:
		f.focused = true
	case Leave:
		f.focused = false
	}
}

// Switch is an on/off item toggled by Left or Right.
type Switch struct {
	Name string
	On   bool
	// OnChange, if set, is called with the new state after a toggle.
	OnChange func(on bool)
	focus
}

func (s *Switch) Label(width int) string {
	if width < 4 {
		return ""
	}
	o, c := brackets(s.focused)
	mark := " "
	if s.On {
		mark = "*"
	}
	return fit(s.Name, width-3) + o + mark + c
}

func (s *Switch) Handle(a Action) Action {
	s.track(a)
	if a == Left || a == Right {
		s.On = !s.On
		if s.OnChange != nil {
			s.OnChange(s.On)
		}
	}
	return a
}

func (s *Switch) Submenu() *Menu { return nil }
func (s *Switch) Grab() bool     { return false }

// NamedSwitch is a Switch whose name can be edited in place: OK opens an
// editor over the name, a second OK keeps the edit and Break on an empty
// editor throws it away.
type NamedSwitch struct {
	Switch
	// MaxName bounds the edited name. Zero means DefaultEditorLen.
	MaxName int
	edit    *Editor
}

func (s *NamedSwitch) Label(width int) string {
	if s.edit != nil {
		return s.edit.Label(width)
	}
	return s.Switch.Label(width)
}

func (s *NamedSwitch) Handle(a Action) Action {
	if s.edit != nil {
		switch a {
		case OK:
			s.Name = s.edit.String()
			s.edit = nil
		case Leave:
			s.edit = nil
			s.track(a)
		default:
			if s.edit.Handle(a) == Break && len(s.edit.Bytes()) == 0 {
				s.edit = nil
			}
		}
		return None
	}
	if a == OK {
		s.edit = NewEditor(s.MaxName)
		s.edit.SetText(s.Name)
		s.edit.Handle(Enter)
		return a
	}
	return s.Switch.Handle(a)
}

// Editing reports whether the rename editor is open.
func (s *NamedSwitch) Editing() bool { return s.edit != nil }

func (s *NamedSwitch) Grab() bool { return s.edit != nil }

// Range is an integer in [Min, Max] stepped by Left and Right. It clamps at
// the bounds.
type Range struct {
	Name     string
	Min, Max int
	value    int
	focus
}

// NewRange returns a Range starting at value.
func NewRange(name string, min, max, value int) (*Range, error) {
	if min > max || value < min || value > max {
		return nil, ErrRange
	}
	return &Range{Name: name, Min: min, Max: max, value: value}, nil
}

// Value returns the current value.
func (r *Range) Value() int { return r.value }

// Set changes the value, rejecting values outside [Min, Max].
func (r *Range) Set(v int) error {
	if v < r.Min || v > r.Max {
		return ErrRange
	}
	r.value = v
	return nil
}

func (r *Range) Label(width int) string {
	o, c := brackets(r.focused)
	return labelled(r.Name, o+strconv.Itoa(r.value)+c, width)
}

func (r *Range) Handle(a Action) Action {
	r.track(a)
	switch a {
	case Right:
		if r.value < r.Max {
			r.value++
		}
	case Left:
		if r.value > r.Min {
			r.value--
		}
	}
	return a
}

func (r *Range) Submenu() *Menu { return nil }
func (r *Range) Grab() bool     { return false }

// Enum picks one of a fixed list of options. Left and Right wrap.
type Enum struct {
	Name    string
	options []string
	pos     int
	focus
}

// NewEnum returns an Enum on the first option.
func NewEnum(name string, options ...string) (*Enum, error) {
	if len(options) == 0 {
		return nil, ErrNoOptions
	}
	return &Enum{Name: name, options: options}, nil
}

// Pos returns the index of the selected option.
func (e *Enum) Pos() int { return e.pos }

// Value returns the selected option.
func (e *Enum) Value() string { return e.options[e.pos] }

// Set selects option pos.
func (e *Enum) Set(pos int) error {
	if pos < 0 || pos >= len(e.options) {
		return ErrRange
	}
	e.pos = pos
	return nil
}

func (e *Enum) Label(width int) string {
	o, c := brackets(e.focused)
	return labelled(e.Name, o+e.options[e.pos]+c, width)
}

func (e *Enum) Handle(a Action) Action {
	e.track(a)
	n := len(e.options)
	switch a {
	case Right:
		e.pos = (e.pos + 1) % n
	case Left:
		e.pos = (e.pos + n - 1) % n
	}
	return a
}

func (e *Enum) Submenu() *Menu { return nil }
func (e *Enum) Grab() bool     { return false }

// Time is an hh:mm:ss value. OK moves between hours, minutes and seconds;
// Left and Right step the selected field, wrapping around.
type Time struct {
	Name    string
	h, m, s int
	field   int
	focus
}

var timeLimits = [3]int{24, 60, 60}

// Value returns hours, minutes and seconds.
func (t *Time) Value() (h, m, s int) { return t.h, t.m, t.s }

// Set sets the time; each field is reduced modulo its range.
func (t *Time) Set(h, m, s int) {
	t.h = mod(h, 24)
	t.m = mod(m, 60)
	t.s = mod(s, 60)
}

// Field returns the field Left and Right act on: 0 hours, 1 minutes,
// 2 seconds.
func (t *Time) Field() int { return t.field }

func (t *Time) fields() [3]*int { return [3]*int{&t.h, &t.m, &t.s} }

func (t *Time) Label(width int) string {
	var b strings.Builder
	if !t.focused {
		b.WriteString("[")
	}
	for i, p := range t.fields() {
		if i > 0 {
			b.WriteString(":")
		}
		if t.focused && i == t.field {
			b.WriteString("<" + two(*p) + ">")
		} else {
			b.WriteString(two(*p))
		}
	}
	if !t.focused {
		b.WriteString("]")
	}
	return labelled(t.Name, b.String(), width)
}

func (t *Time) Handle(a Action) Action {
	t.track(a)
	p := t.fields()[t.field]
	lim := timeLimits[t.field]
	switch a {
	case OK:
		t.field = (t.field + 1) % 3
	case Right:
		*p = (*p + 1) % lim
	case Left:
		*p = (*p + lim - 1) % lim
	}
	return a
}

func (t *Time) Submenu() *Menu { return nil }
func (t *Time) Grab() bool     { return false }

func two(v int) string {
	return string([]byte{'0' + byte(v/10%10), '0' + byte(v%10)})
}

func mod(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}

// Label is a static row.
type Label struct{ Text string }

func (l *Label) Label(int) string       { return l.Text }
func (l *Label) Handle(a Action) Action { return a }
func (l *Label) Submenu() *Menu         { return nil }
func (l *Label) Grab() bool             { return false }

// Dynamic is a row whose text is computed on every render.
type Dynamic struct {
	Text func(width int) string
}

func (d *Dynamic) Label(width int) string { return d.Text(width) }
func (d *Dynamic) Handle(a Action) Action { return a }
func (d *Dynamic) Submenu() *Menu         { return nil }
func (d *Dynamic) Grab() bool             { return false }

// Separator is a row of dashes.
type Separator struct{}

func (Separator) Label(width int) string { return strings.Repeat("-", max(width, 0)) }
func (Separator) Handle(a Action) Action { return a }
func (Separator) Submenu() *Menu         { return nil }
func (Separator) Grab() bool             { return false }

// Indicator shows a read-only on/off state, such as an input pin.
type Indicator struct {
	Name  string
	State func() bool
}

func (in *Indicator) Label(width int) string {
	if width < 4 {
		return ""
	}
	mark := " "
	if in.State != nil && in.State() {
		mark = "*"
	}
	return fit(in.Name, width-3) + "(" + mark + ")"
}

func (in *Indicator) Handle(a Action) Action { return a }
func (in *Indicator) Submenu() *Menu         { return nil }
func (in *Indicator) Grab() bool             { return false }

// Launcher is a row that opens Target on OK.
type Launcher struct {
	Name   string
	Target *Menu
}

func (l *Launcher) Label(width int) string { return labelled(l.Name, ">", width) }

// Handle passes focus changes through to the target, which receives Enter
// when it is opened.
func (l *Launcher) Handle(a Action) Action {
	if a == Enter || a == Leave {
		return l.Target.HandleAction(a)
	}
	return a
}

func (l *Launcher) Submenu() *Menu { return l.Target }
func (l *Launcher) Grab() bool     { return false }

// Commit runs Do on OK and then reports Break, closing the submenu it sits in.
type Commit struct {
	// Text defaults to "Save".
	Text string
	Do   func()
}

func (c *Commit) Label(int) string {
	if c.Text == "" {
		return "Save"
	}
	return c.Text
}

func (c *Commit) Handle(a Action) Action {
	if a != OK {
		return a
	}
	if c.Do != nil {
		c.Do()
	}
	return Break
}

func (c *Commit) Submenu() *Menu { return nil }
func (c *Commit) Grab() bool     { return false }
