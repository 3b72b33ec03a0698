package menu

// DefaultEditorLen is the capacity of an Editor created with NewEditor(0).
const DefaultEditorLen = 48

// defaultView is the assumed window width before the first render.
const defaultView = 12

// Editor is a single-line text field of Latin-1 bytes. Digit actions insert
// at the cursor, Break deletes before it, Left and Right move it. Break at
// the start reports Break to the owner and leaves edit mode. The view
// scrolls only when the cursor would leave it. OK toggles edit mode, during
// which the editor grabs Up and Down.
type Editor struct {
	buf     []byte
	max     int
	cur     int
	scroll  int
	view    int // inner width of the last render
	editing bool
	focus
}

// NewEditor returns an empty Editor holding at most max bytes.
func NewEditor(max int) *Editor {
	if max <= 0 {
		max = DefaultEditorLen
	}
	return &Editor{buf: make([]byte, 0, max), max: max, view: defaultView}
}

// SetText replaces the content and puts the cursor at its end. Runes above
// 0xFF are stored as '?'.
func (e *Editor) SetText(s string) {
	e.buf = e.buf[:0]
	for _, r := range s {
		if len(e.buf) == e.max {
			break
		}
		if r > 0xFF {
			r = '?'
		}
		e.buf = append(e.buf, byte(r))
	}
	e.cur = len(e.buf)
	e.scroll = max(0, e.cur-(e.view-1))
}

// String returns the content.
func (e *Editor) String() string {
	r := make([]rune, len(e.buf))
	for i, b := range e.buf {
		r[i] = rune(b)
	}
	return string(r)
}

// Bytes returns the content as raw codes. The slice is only valid until the
// next action.
func (e *Editor) Bytes() []byte { return e.buf }

// Cursor returns the insertion index.
func (e *Editor) Cursor() int { return e.cur }

// Editing reports whether the editor is in edit mode.
func (e *Editor) Editing() bool { return e.editing }

func (e *Editor) Label(width int) string {
	if width < 2 {
		return fit("", width)
	}
	inner := width - 2
	e.view = max(inner, 1)

	end := min(len(e.buf), e.scroll+inner)
	var vis []rune
	for _, b := range e.buf[min(e.scroll, end):end] {
		vis = append(vis, rune(b))
	}
	at := min(max(e.cur-e.scroll, 0), len(vis))
	content := string(vis[:at]) + "|" + string(vis[at:])

	o, c := brackets(e.focused)
	return o + fit(content, inner) + c
}

func (e *Editor) Handle(a Action) Action {
	e.track(a)
	switch a {
	case Leave:
		e.editing = false
	case OK:
		e.editing = !e.editing
	case Right:
		if e.cur < len(e.buf) {
			e.cur++
			e.follow()
		}
	case Left:
		if e.cur > 0 {
			e.cur--
			e.follow()
		}
	case Break:
		if e.cur == 0 {
			e.editing = false
			return Break
		}
		copy(e.buf[e.cur-1:], e.buf[e.cur:])
		e.buf = e.buf[:len(e.buf)-1]
		e.cur--
		if e.scroll > 0 {
			e.scroll--
		}
		return None
	default:
		c, ok := a.Code()
		if !ok {
			return a
		}
		if len(e.buf) < e.max {
			e.buf = append(e.buf, 0)
			copy(e.buf[e.cur+1:], e.buf[e.cur:])
			e.buf[e.cur] = c
			e.cur++
			e.follow()
		}
		return None
	}
	return a
}

// follow scrolls the view just enough to keep the cursor inside it.
func (e *Editor) follow() {
	if e.cur < e.scroll {
		e.scroll = e.cur
	}
	if e.cur-e.scroll > e.view-1 {
		e.scroll = e.cur - (e.view - 1)
	}
}

func (e *Editor) Submenu() *Menu { return nil }
func (e *Editor) Grab() bool     { return e.editing }
