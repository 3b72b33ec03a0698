// Package menu is a small navigation engine for character displays. A Menu
// holds widgets (switches, ranges, editors, nested menus, ...), moves focus
// between them on Up/Down, hands other actions to the focused widget and
// renders a scrolling window of rows.
//
// Nothing here touches hardware: Draw writes through a Surface such as
// *screen.Screen.
package menu

import "strings"

// Widget is one row of a menu.
type Widget interface {
	// Label renders the row body; the menu pads or cuts it to width.
	Label(width int) string
	// Handle applies a and returns the action to report upward. Actions a
	// widget does not use come back unchanged.
	Handle(a Action) Action
	// Submenu returns the menu OK opens, or nil.
	Submenu() *Menu
	// Grab reports whether the widget currently keeps Up/Down for itself.
	Grab() bool
}

// Surface is a character display the menu can draw on.
type Surface interface {
	Cols() int
	Rows() int
	WriteAt(col, row int, text string)
	Refresh() error
}

// EventFunc observes a menu after it handled an action. focus is the index
// of the focused item at that point.
type EventFunc func(m *Menu, a Action, focus int)

const defaultHeight = 2

// Menu is a list of widgets with one focused item. A Menu is also a Widget,
// so menus nest: OK on a nested menu opens it and further actions go to it
// until it reports Break.
type Menu struct {
	Name string
	// OnEvent, if set, is called after actions this menu handled itself.
	OnEvent EventFunc

	items  []Widget
	focus  int
	row    int // window row of the focused item
	height int
	sub    *Menu
}

// NewMenu returns a menu named name holding items.
func NewMenu(name string, items ...Widget) *Menu {
	return &Menu{Name: name, items: items, height: defaultHeight}
}

// Add appends w.
func (m *Menu) Add(w Widget) { m.items = append(m.items, w) }

// Len returns the number of items.
func (m *Menu) Len() int { return len(m.items) }

// Item returns item i.
func (m *Menu) Item(i int) Widget { return m.items[i] }

// Focus returns the index of the focused item.
func (m *Menu) Focus() int { return m.focus }

// Row returns the window row the focused item is drawn on.
func (m *Menu) Row() int { return m.row }

// SetHeight sets the window height used to bound scrolling. Render and Draw
// set it from the surface.
func (m *Menu) SetHeight(h int) {
	if h < 1 {
		h = 1
	}
	m.height = h
}

// Active returns the innermost open menu: the one receiving actions.
func (m *Menu) Active() *Menu {
	cur := m
	for cur.sub != nil {
		cur = cur.sub
	}
	return cur
}

// Label implements Widget.
func (m *Menu) Label(int) string { return m.Name }

// Handle implements Widget.
func (m *Menu) Handle(a Action) Action { return m.HandleAction(a) }

// Submenu implements Widget: a nested menu opens itself.
func (m *Menu) Submenu() *Menu { return m }

// Grab implements Widget.
func (m *Menu) Grab() bool { return false }

// HandleAction applies a to the menu tree.
//
// An open submenu gets every action; when it answers Break it is closed and
// the action is swallowed. Otherwise Up/Down move focus cyclically (unless
// the focused widget grabs them) and send Leave/Enter to the widgets
// involved. OK opens the focused item's submenu or is handed to the item.
// Everything else goes to the focused item and its answer is returned, so
// an unused Break travels up as "back".
func (m *Menu) HandleAction(a Action) Action {
	if m.sub != nil {
		rv := m.sub.HandleAction(a)
		if rv == Break {
			m.sub = nil
			return None
		}
		return rv
	}
	if len(m.items) == 0 {
		return a
	}
	cur := m.items[m.focus]
	rv := a

	switch a {
	case None:
	case Down:
		if cur.Grab() {
			break
		}
		cur.Handle(Leave)
		m.focus = (m.focus + 1) % len(m.items)
		m.items[m.focus].Handle(Enter)
		if m.row < m.height-1 && m.row < len(m.items)-1 {
			m.row++
		}
	case Up:
		if cur.Grab() {
			break
		}
		cur.Handle(Leave)
		m.focus = (m.focus + len(m.items) - 1) % len(m.items)
		m.items[m.focus].Handle(Enter)
		if m.row > 0 {
			m.row--
		}
	case Left, Right, Enter, Leave:
		if cur.Submenu() == nil {
			rv = cur.Handle(a)
		}
	case OK:
		if sub := cur.Submenu(); sub != nil {
			m.sub = sub
			sub.height = m.height
			cur.Handle(Enter)
			break
		}
		rv = cur.Handle(a)
		if rv != Break && m.OnEvent != nil {
			m.OnEvent(m, a, m.focus)
		}
		return rv
	default:
		if cur.Submenu() == nil || cur.Grab() {
			rv = cur.Handle(a)
		} else {
			m.sub = nil
		}
	}

	if m.OnEvent != nil {
		m.OnEvent(m, a, m.focus)
	}
	return rv
}

// Render returns exactly height lines of exactly width runes. An open
// submenu renders instead of m. The focused row is marked with "> ".
func (m *Menu) Render(width, height int) []string {
	if width <= 0 || height <= 0 {
		return nil
	}
	m.height = height
	if m.sub != nil {
		return m.sub.Render(width, height)
	}
	n := len(m.items)
	out := make([]string, height)
	for i := range out {
		prefix, body := "  ", ""
		if i < n {
			idx := (m.focus + i + n - m.row) % n
			body = fit(m.items[idx].Label(width-2), width-2)
			if i == m.row {
				prefix = "> "
			}
		}
		out[i] = fit(prefix+body, width)
	}
	return out
}

// Draw renders the menu onto s and refreshes it.
func (m *Menu) Draw(s Surface) error {
	for y, line := range m.Render(s.Cols(), s.Rows()) {
		s.WriteAt(0, y, line)
	}
	return s.Refresh()
}

// fit pads or cuts text to exactly size runes.
func fit(text string, size int) string {
	if size <= 0 {
		return ""
	}
	r := []rune(text)
	if len(r) >= size {
		return string(r[:size])
	}
	return text + strings.Repeat(" ", size-len(r))
}
