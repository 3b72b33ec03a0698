package main

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/harveysanders/picolcd/clock"
	"github.com/harveysanders/picolcd/menu"
	"github.com/harveysanders/picolcd/mqtt"
)

// backlighter is the part of the LCD driver the menu controls.
type backlighter interface {
	SetBacklight(on bool) error
	Backlight() bool
}

// buildMenu assembles the demo tree. Save rows queue an mqtt.Event with the
// values of their submenu; events are dropped when nobody drains the queue.
func buildMenu(lcd backlighter, clk *clock.Clock, events chan<- mqtt.Event, logger *slog.Logger) *menu.Menu {
	publish := func(m *menu.Menu, values map[string]string) {
		ev := mqtt.Event{Menu: m.Name, Item: "Save", Values: values, At: time.Now()}
		select {
		case events <- ev:
		default:
			logger.Warn("lcdmenu:event-dropped", slog.String("menu", m.Name))
		}
	}

	backlight := &menu.Switch{Name: "Backlight", On: lcd.Backlight()}
	backlight.OnChange = func(on bool) {
		if err := lcd.SetBacklight(on); err != nil {
			logger.Error("lcdmenu:backlight-failed", slog.Any("reason", err))
		}
	}
	units, _ := menu.NewEnum("Units", "°C", "°F")
	brightness, _ := menu.NewRange("Level", 0, 9, 5)
	display := menu.NewMenu("Display", backlight, units, brightness)
	display.Add(&menu.Commit{Do: func() {
		publish(display, map[string]string{
			"backlight":  strconv.FormatBool(backlight.On),
			"units":      units.Value(),
			"brightness": strconv.Itoa(brightness.Value()),
		})
	}})

	relay1 := &menu.NamedSwitch{Switch: menu.Switch{Name: "Relay 1"}}
	relay2 := &menu.NamedSwitch{Switch: menu.Switch{Name: "Relay 2"}}
	outputs := menu.NewMenu("Outputs", relay1, relay2,
		&menu.Indicator{Name: "Light", State: lcd.Backlight},
	)
	outputs.Add(&menu.Commit{Do: func() {
		publish(outputs, map[string]string{
			relay1.Name: strconv.FormatBool(relay1.On),
			relay2.Name: strconv.FormatBool(relay2.On),
		})
	}})

	alarmAt := &menu.Time{Name: "At"}
	alarmAt.Set(7, 30, 0)
	snooze, _ := menu.NewRange("Snooze", 1, 30, 10)
	note := menu.NewEditor(32)
	note.SetText("Zażółć")
	alarm := menu.NewMenu("Alarm", alarmAt, snooze, &menu.Label{Text: "Note:"}, note)
	alarm.Add(&menu.Commit{Do: func() {
		h, m, s := alarmAt.Value()
		publish(alarm, map[string]string{
			"at":     pad2(h) + ":" + pad2(m) + ":" + pad2(s),
			"snooze": strconv.Itoa(snooze.Value()),
			"note":   note.String(),
		})
	}})

	root := menu.NewMenu("picolcd",
		&menu.Dynamic{Text: clk.Label},
		&menu.Launcher{Name: "Display", Target: display},
		&menu.Launcher{Name: "Outputs", Target: outputs},
		alarm,
		menu.Separator{},
	)
	root.OnEvent = func(m *menu.Menu, a menu.Action, focus int) {
		logger.Debug("lcdmenu:event", slog.String("menu", m.Name), slog.String("action", a.String()), slog.Int("focus", focus))
	}
	return root
}

func pad2(v int) string {
	if v < 10 {
		return "0" + strconv.Itoa(v)
	}
	return strconv.Itoa(v)
}
