package main

import (
	"io"
	"log/slog"
	"unicode/utf8"

	"github.com/harveysanders/picolcd/menu"
)

const (
	keyCtrlC     = 0x03
	keyCtrlD     = 0x04
	keyBackspace = 0x08
	keyTab       = 0x09
	keyLF        = 0x0A
	keyCR        = 0x0D
	keyEsc       = 0x1B
	keyDelete    = 0x7F
)

// parseKeys decodes raw terminal input. Arrows move, Enter is OK, Backspace
// is Break, Tab is Down and printable characters up to U+00FF are digits.
// A lone Esc, Ctrl-C or Ctrl-D sets quit. rest holds an incomplete sequence
// to prepend to the next read.
func parseKeys(p []byte) (acts []menu.Action, quit bool, rest []byte) {
	for i := 0; i < len(p); {
		b := p[i]
		switch {
		case b == keyEsc:
			if i+1 == len(p) {
				return acts, true, nil
			}
			if p[i+1] != '[' && p[i+1] != 'O' {
				// Alt+key: drop the prefix.
				i++
				continue
			}
			// CSI or SS3: parameters end at a byte in 0x40..0x7E.
			j := i + 2
			for j < len(p) && (p[j] < 0x40 || p[j] > 0x7E) {
				j++
			}
			if j == len(p) {
				return acts, false, p[i:]
			}
			if a, ok := escapeAction(p[i+2 : j+1]); ok {
				acts = append(acts, a)
			}
			i = j + 1
		case b == keyCtrlC || b == keyCtrlD:
			return acts, true, nil
		case b == keyCR || b == keyLF:
			acts = append(acts, menu.OK)
			i++
		case b == keyBackspace || b == keyDelete:
			acts = append(acts, menu.Break)
			i++
		case b == keyTab:
			acts = append(acts, menu.Down)
			i++
		case b < 0x20:
			i++
		default:
			if !utf8.FullRune(p[i:]) {
				return acts, false, p[i:]
			}
			r, n := utf8.DecodeRune(p[i:])
			if r != utf8.RuneError && r <= 0xFF {
				acts = append(acts, menu.Digit(byte(r)))
			}
			i += n
		}
	}
	return acts, false, nil
}

func escapeAction(seq []byte) (menu.Action, bool) {
	switch string(seq) {
	case "A":
		return menu.Up, true
	case "B":
		return menu.Down, true
	case "C":
		return menu.Right, true
	case "D":
		return menu.Left, true
	case "3~":
		return menu.Break, true
	}
	return menu.None, false
}

// readKeys feeds actions from r until quit or EOF, then closes actions.
func readKeys(r io.Reader, actions chan<- menu.Action, logger *slog.Logger) {
	defer close(actions)
	buf := make([]byte, 64)
	var pending []byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			acts, quit, rest := parseKeys(append(pending, buf[:n]...))
			for _, a := range acts {
				actions <- a
			}
			if quit {
				logger.Info("keys:quit")
				return
			}
			pending = append(pending[:0], rest...)
		}
		if err != nil {
			if err != io.EOF {
				logger.Error("keys:read-failed", slog.Any("reason", err))
			}
			return
		}
	}
}
