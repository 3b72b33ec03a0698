package buttons

import (
	"reflect"
	"testing"
	"time"

	"github.com/harveysanders/picolcd/menu"
)

type level struct{ on bool }

func (l *level) pressed() bool { return l.on }

func TestPollFiresOncePerPress(t *testing.T) {
	ok := &level{}
	p := New(Button{Pressed: ok.pressed, Action: menu.OK})
	t0 := time.Unix(0, 0)

	if got := p.Poll(t0, nil); len(got) != 0 {
		t.Fatalf("idle poll fired %v", got)
	}
	ok.on = true
	if got := p.Poll(t0, nil); !reflect.DeepEqual(got, []menu.Action{menu.OK}) {
		t.Fatalf("press fired %v", got)
	}
	if got := p.Poll(t0.Add(time.Second), nil); len(got) != 0 {
		t.Errorf("held non-repeating button fired %v", got)
	}
	ok.on = false
	p.Poll(t0.Add(time.Second), nil)
	ok.on = true
	if got := p.Poll(t0.Add(time.Second), nil); len(got) != 1 {
		t.Errorf("second press fired %v", got)
	}
}

func TestPollRepeats(t *testing.T) {
	down := &level{on: true}
	p := New(Button{Pressed: down.pressed, Action: menu.Down, Repeat: true})
	t0 := time.Unix(0, 0)

	var got []menu.Action
	for _, ms := range []int{0, 100, 399, 400, 500, 550, 700} {
		got = p.Poll(t0.Add(time.Duration(ms)*time.Millisecond), got)
	}
	// press at 0, repeats at 400 and 550, then due again at 700
	if len(got) != 4 {
		t.Errorf("got %d actions, want 4", len(got))
	}
}

func TestPollSeveralButtons(t *testing.T) {
	up, down := &level{on: true}, &level{on: true}
	p := New(
		Button{Pressed: up.pressed, Action: menu.Up},
		Button{Pressed: down.pressed, Action: menu.Down},
	)
	got := p.Poll(time.Unix(0, 0), nil)
	if !reflect.DeepEqual(got, []menu.Action{menu.Up, menu.Down}) {
		t.Errorf("got %v", got)
	}
}
