//go:build tinygo

// Command picomenu runs the LCD menu on a Pico W: six push buttons navigate,
// a DHT11 reading is shown on the first row and saved settings are
// published over MQTT when WiFi credentials are linked in:
//
//	tinygo flash -target pico-w -ldflags="-X github.com/harveysanders/picolcd/wifi.ssid=... \
//	  -X github.com/harveysanders/picolcd/wifi.pass=... -X main.brokerAddr=10.0.0.9:1883" ./picomenu
package main

import (
	"log/slog"
	"machine"
	"strconv"
	"time"

	"github.com/harveysanders/picolcd/buttons"
	"github.com/harveysanders/picolcd/hd44780"
	"github.com/harveysanders/picolcd/lcd"
	"github.com/harveysanders/picolcd/menu"
	"github.com/harveysanders/picolcd/mqtt"
	"github.com/harveysanders/picolcd/pcf8574"
	"github.com/harveysanders/picolcd/screen"
	"github.com/harveysanders/picolcd/weather"
	"github.com/harveysanders/picolcd/wifi"
	"tinygo.org/x/drivers/dht"
)

var (
	brokerAddr = "10.0.0.9:1883"
	topic      = "picolcd/events"
)

func main() {
	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	err := machine.I2C0.Configure(machine.I2CConfig{
		SDA: machine.GP4,
		SCL: machine.GP5,
	})
	if err != nil {
		printErrForever(logger, "configure I2C", slog.Any("reason", err))
	}
	bridge := pcf8574.New(machine.I2C0)
	addr, err := bridge.Detect()
	if err != nil {
		printErrForever(logger, "find LCD", slog.Any("reason", err))
	}
	dev, err := hd44780.New(bridge, hd44780.Config{Cols: 16, Rows: 2, Address: addr, Logger: logger})
	if err == nil {
		err = dev.Configure()
	}
	if err != nil {
		printErrForever(logger, "configure LCD", slog.Any("reason", err))
	}
	scr, err := screen.New(dev, screen.Config{Cols: 16, Rows: 2, Logger: logger})
	if err != nil {
		printErrForever(logger, "screen", slog.Any("reason", err))
	}

	// Buffered so a slow or absent broker doesn't stall the menu.
	events := make(chan mqtt.Event, 10)
	lcdMessages := make(chan lcd.Message, 10)
	root := buildMenu(dev, weather.NewDHT11(machine.GP15, dht.C), events, logger)

	if ssid := wifi.SSID(); ssid != "" {
		go publish(ssid, events, lcdMessages, logger)
	} else {
		go drain(events, logger)
	}

	actions := make(chan menu.Action, 8)
	pad := buttons.New(
		button(machine.GP10, menu.Up, true),
		button(machine.GP11, menu.Down, true),
		button(machine.GP12, menu.Left, true),
		button(machine.GP13, menu.Right, true),
		button(machine.GP14, menu.OK, false),
		button(machine.GP16, menu.Break, false),
	)
	go pad.Run(actions, 20*time.Millisecond)

	handler := lcd.NewHandler(scr, root, actions, lcdMessages, logger)
	handler.Recover = func() error {
		if err := dev.Configure(); err != nil {
			return err
		}
		scr.Reset()
		return nil
	}
	redraw := time.NewTicker(time.Second)
	handler.Redraw = redraw.C
	if err := handler.Run(); err != nil {
		printErrForever(logger, "LCD stopped", slog.Any("reason", err))
	}
}

// button wires an input pin with the pull-up enabled; pressing connects it
// to ground.
func button(pin machine.Pin, a menu.Action, repeat bool) buttons.Button {
	pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return buttons.Button{
		Pressed: func() bool { return !pin.Get() },
		Action:  a,
		Repeat:  repeat,
	}
}

func buildMenu(dev *hd44780.Device, sensor *weather.Sensor, events chan<- mqtt.Event, logger *slog.Logger) *menu.Menu {
	relay := &menu.NamedSwitch{Switch: menu.Switch{Name: "Relay"}, MaxName: 12}
	interval, _ := menu.NewRange("Every", 1, 60, 5)
	settings := menu.NewMenu("Settings", relay, interval)
	settings.Add(&menu.Commit{Do: func() {
		ev := mqtt.Event{
			Menu: settings.Name,
			Item: "Save",
			Values: map[string]string{
				"relay":        relay.Name,
				"relay_on":     strconv.FormatBool(relay.On),
				"interval_min": strconv.Itoa(interval.Value()),
			},
			At: time.Now(),
		}
		select {
		case events <- ev:
		default:
			logger.Warn("picomenu:event-dropped")
		}
	}})

	backlight := &menu.Switch{Name: "Light", On: dev.Backlight()}
	backlight.OnChange = func(on bool) {
		if err := dev.SetBacklight(on); err != nil {
			logger.Error("picomenu:backlight-failed", slog.Any("reason", err))
		}
	}

	items := []menu.Widget{&menu.Dynamic{Text: sensor.Label}, backlight}
	if setLED, err := ledDimmer(machine.GP21); err != nil {
		logger.Error("picomenu:pwm-failed", slog.Any("reason", err))
	} else {
		level := &dimmer{set: setLED}
		level.Range, _ = menu.NewRange("LED", 0, 9, 0)
		items = append(items, level)
	}
	items = append(items, &menu.Launcher{Name: "Settings", Target: settings})
	return menu.NewMenu("picomenu", items...)
}

// ledDimmer drives pin with a 500Hz PWM and returns a setter taking a
// level from 0 (off) to 9 (full).
func ledDimmer(pin machine.Pin) (func(level int), error) {
	// GP20/GP21 are driven by PWM slice 2 on the RP2040/RP2350.
	pwm := machine.PWM2
	err := pwm.Configure(machine.PWMConfig{
		Period: uint64(1*time.Second) / 500,
	})
	if err != nil {
		return nil, err
	}
	ch, err := pwm.Channel(pin)
	if err != nil {
		return nil, err
	}
	pwm.Set(ch, 0)
	return func(level int) {
		pwm.Set(ch, uint32(level)*pwm.Top()/9)
	}, nil
}

// dimmer is a Range that applies its value on every change.
type dimmer struct {
	*menu.Range
	set func(level int)
}

func (d *dimmer) Handle(a menu.Action) menu.Action {
	rv := d.Range.Handle(a)
	if a == menu.Left || a == menu.Right {
		d.set(d.Value())
	}
	return rv
}

func publish(ssid string, events <-chan mqtt.Event, lcdMessages chan<- lcd.Message, logger *slog.Logger) {
	lcd.Send(lcdMessages, "WiFi joining", ssid)
	stack, err := wifi.Join(ssid, wifi.Password(), wifi.Config{Hostname: "picolcd", Logger: logger})
	if err != nil {
		lcd.Send(lcdMessages, "WiFi failed", err.Error())
		printErrForever(logger, "join WiFi", slog.Any("reason", err))
	}
	lcd.Send(lcdMessages, "WiFi ready", stack.Addr().String())

	dial, err := stack.Dialer(brokerAddr)
	if err != nil {
		printErrForever(logger, "MQTT address", slog.Any("reason", err))
	}
	c := &mqtt.Client{
		ID:      "picolcd",
		Topic:   topic,
		Timeout: 5 * time.Second,
		Logger:  logger,
	}
	if err := c.ConnectAndPublish(dial, events, lcdMessages); err != nil {
		// Print error in a loop in case the serial monitor is not
		// ready before the inital messages
		printErrForever(logger, "connect to MQTT broker", slog.Any("reason", err))
	}
}

// drain logs events when there is no network to publish them on.
func drain(events <-chan mqtt.Event, logger *slog.Logger) {
	for ev := range events {
		logger.Info("picomenu:event", slog.String("menu", ev.Menu), slog.String("item", ev.Item))
	}
}

// printErrForever prints a string to serial @ 1hz. It
// blocks forever.
func printErrForever(logger *slog.Logger, msg string, args ...any) {
	for {
		logger.Error(msg, args...)
		time.Sleep(time.Second)
	}
}
