// Package buttons turns polled push buttons into menu actions, with
// auto-repeat for buttons that are held down.
package buttons

import (
	"time"

	"github.com/harveysanders/picolcd/menu"
)

// Button is one input. Pressed reports the current level, already inverted
// for pull-up wiring by the caller.
type Button struct {
	Pressed func() bool
	Action  menu.Action
	// Repeat makes a held button fire again every RepeatEvery after
	// RepeatDelay.
	Repeat bool
}

type state struct {
	down bool
	next time.Time
}

// Pad polls a set of buttons.
type Pad struct {
	RepeatDelay time.Duration // Defaults to 400ms.
	RepeatEvery time.Duration // Defaults to 150ms.

	buttons []Button
	state   []state
}

func New(buttons ...Button) *Pad {
	return &Pad{
		RepeatDelay: 400 * time.Millisecond,
		RepeatEvery: 150 * time.Millisecond,
		buttons:     buttons,
		state:       make([]state, len(buttons)),
	}
}

// Poll samples every button once and appends the actions fired at now to
// out: one on each press, and repeats while a Repeat button stays down.
func (p *Pad) Poll(now time.Time, out []menu.Action) []menu.Action {
	for i, b := range p.buttons {
		st := &p.state[i]
		pressed := b.Pressed()
		switch {
		case !pressed:
			st.down = false
		case !st.down:
			st.down = true
			st.next = now.Add(p.RepeatDelay)
			out = append(out, b.Action)
		case b.Repeat && !now.Before(st.next):
			st.next = now.Add(p.RepeatEvery)
			out = append(out, b.Action)
		}
	}
	return out
}

// Run polls every interval and sends the actions, blocking while the
// receiver is busy. It never returns.
func (p *Pad) Run(actions chan<- menu.Action, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	// Preallocated so polling doesn't allocate.
	buf := make([]menu.Action, 0, len(p.buttons))
	for now := range ticker.C {
		buf = p.Poll(now, buf[:0])
		for _, a := range buf {
			actions <- a
		}
	}
}
