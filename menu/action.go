package menu

import "strconv"

// Action is an input event fed to a menu. Values from digitBase up carry a
// literal character code; see Digit.
type Action int

const (
	None Action = iota
	OK
	Left
	Right
	Up
	Down
	// Enter and Leave tell a widget it gained or lost focus.
	Enter
	Leave
	// Break deletes in editors and means "back" everywhere else.
	Break
	digitBase
)

// Digit returns the action that inserts character code c.
func Digit(c byte) Action { return digitBase + Action(c) }

// Code returns the character code carried by a Digit action.
func (a Action) Code() (byte, bool) {
	if a < digitBase || a > digitBase+0xFF {
		return 0, false
	}
	return byte(a - digitBase), true
}

var actionNames = [...]string{
	None:  "none",
	OK:    "ok",
	Left:  "left",
	Right: "right",
	Up:    "up",
	Down:  "down",
	Enter: "enter",
	Leave: "leave",
	Break: "break",
}

func (a Action) String() string {
	if c, ok := a.Code(); ok {
		return "digit(" + strconv.Quote(string(rune(c))) + ")"
	}
	if a >= 0 && int(a) < len(actionNames) {
		return actionNames[a]
	}
	return "action(" + strconv.Itoa(int(a)) + ")"
}
