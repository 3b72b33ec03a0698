// Package lcd runs the display loop: a single goroutine that owns the screen
// (and through it the driver and the bus), applies menu actions and shows
// short status messages from other goroutines.
//
// Example usage:
//
//	actions := make(chan menu.Action, 8)
//	lcdMessages := make(chan lcd.Message, 10)
//	handler := lcd.NewHandler(scr, root, actions, lcdMessages, logger)
//	go handler.Run()
//
//	// Send messages non-blocking
//	lcd.Send(lcdMessages, "Status", "OK")
package lcd

import (
	"io"
	"log/slog"
	"time"

	"github.com/harveysanders/picolcd/menu"
)

// maxRecover bounds the Recover attempts after one failed refresh.
const maxRecover = 3

// Message represents a two-line LCD message.
type Message struct {
	Line1 []byte
	Line2 []byte
}

// Send queues a message without blocking. It reports false when the
// channel is full and the message was dropped.
func Send(ch chan<- Message, line1, line2 string) bool {
	select {
	case ch <- Message{Line1: []byte(line1), Line2: []byte(line2)}:
		return true
	default:
		return false
	}
}

// Display is the buffered screen the handler draws on. *screen.Screen
// implements it.
type Display interface {
	menu.Surface
	Clear()
}

// Handler processes menu actions and LCD messages from channels.
type Handler struct {
	display  Display
	root     *menu.Menu
	actions  <-chan menu.Action
	messages <-chan Message
	logger   *slog.Logger

	// Redraw, if set, redraws the menu on every tick so dynamic rows stay
	// current. Ticks are ignored while a message is shown.
	Redraw <-chan time.Time
	// Recover, if set, is called after a failed refresh to bring the
	// display back (re-run the controller init and reset the screen).
	Recover func() error

	showing bool // a message covers the menu
}

// NewHandler creates a display loop for root on display.
func NewHandler(display Display, root *menu.Menu, actions <-chan menu.Action, messages <-chan Message, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	return &Handler{
		display:  display,
		root:     root,
		actions:  actions,
		messages: messages,
		logger:   logger,
	}
}

// Run draws the menu, then applies actions and messages in arrival order
// until the actions channel is closed. Run should be called in a separate
// goroutine. It returns the refresh error that Recover could not clear.
func (h *Handler) Run() error {
	if err := h.draw(); err != nil {
		return err
	}
	messages := h.messages
	for {
		select {
		case a, ok := <-h.actions:
			if !ok {
				return nil
			}
			rv := h.root.HandleAction(a)
			h.logger.Debug("lcd:action",
				slog.String("action", a.String()),
				slog.String("result", rv.String()),
				slog.String("menu", h.root.Active().Name),
			)
			h.showing = false
			if err := h.draw(); err != nil {
				return err
			}
		case msg, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			h.showing = true
			if err := h.show(msg); err != nil {
				return err
			}
		case <-h.Redraw:
			if h.showing {
				continue
			}
			if err := h.draw(); err != nil {
				return err
			}
		}
	}
}

func (h *Handler) draw() error {
	return h.retry(func() error { return h.root.Draw(h.display) })
}

// show prints msg over the whole display.
func (h *Handler) show(msg Message) error {
	return h.retry(func() error {
		h.display.Clear()
		h.display.WriteAt(0, 0, string(msg.Line1))
		h.display.WriteAt(0, 1, string(msg.Line2))
		return h.display.Refresh()
	})
}

func (h *Handler) retry(render func() error) error {
	err := render()
	for i := 0; err != nil && h.Recover != nil && i < maxRecover; i++ {
		h.logger.Error("lcd:refresh-failed", slog.Int("attempt", i+1), slog.Any("reason", err))
		if rerr := h.Recover(); rerr != nil {
			err = rerr
			continue
		}
		err = render()
	}
	if err != nil {
		h.logger.Error("lcd:giving-up", slog.Any("reason", err))
	}
	return err
}
