// Command lcdmenu drives a menu on an HD44780 LCD attached through a PCF8574
// backpack to a Linux I2C bus, controlled from the keyboard of the terminal
// it runs in.
//
// Keys: arrows or Tab navigate, Enter is OK, Backspace goes back or deletes,
// other characters are typed into editors, Esc or Ctrl-C quits.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"golang.org/x/term"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/harveysanders/picolcd/clock"
	"github.com/harveysanders/picolcd/config"
	"github.com/harveysanders/picolcd/hd44780"
	"github.com/harveysanders/picolcd/lcd"
	"github.com/harveysanders/picolcd/menu"
	"github.com/harveysanders/picolcd/mqtt"
	"github.com/harveysanders/picolcd/pcf8574"
	"github.com/harveysanders/picolcd/screen"
)

var (
	configPath = flag.String("config", "", "path to a TOML config file")
	logPath    = flag.String("log", "", "append logs to this file instead of stderr")
)

func main() {
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var logOut io.Writer = os.Stderr
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		defer f.Close()
		logOut = f
	}
	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{
		Level: level,
	}))

	if err := run(cfg, logger); err != nil {
		logger.Error("lcdmenu:exit", slog.Any("reason", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return fmt.Errorf("open I2C bus %q: %w", cfg.Bus, err)
	}
	defer bus.Close()

	bridge := pcf8574.New(bus)
	addr := uint8(cfg.Address)
	if addr == 0 {
		if addr, err = bridge.Detect(); err != nil {
			return err
		}
	}
	logger.Info("lcdmenu:found-expander", slog.Int("addr", int(addr)))

	pins, err := cfg.PinMap()
	if err != nil {
		return err
	}
	dev, err := hd44780.New(bridge, hd44780.Config{
		Cols:    cfg.Cols,
		Rows:    cfg.Rows,
		Address: addr,
		Pins:    pins,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	if err := dev.Configure(); err != nil {
		return fmt.Errorf("init LCD: %w", err)
	}
	scr, err := screen.New(dev, screen.Config{
		Cols:     cfg.Cols,
		Rows:     cfg.Rows,
		NoGlyphs: cfg.NoGlyphs,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	clk := clock.New(cfg.NTP.Server, logger)
	if cfg.NTP.Server != "" {
		stop := make(chan struct{})
		defer close(stop)
		go clk.Run(cfg.NTP.Interval, stop)
	}

	events := make(chan mqtt.Event, 8)
	root := buildMenu(dev, clk, events, logger)

	actions := make(chan menu.Action, 16)
	lcdMessages := make(chan lcd.Message, 10)
	handler := lcd.NewHandler(scr, root, actions, lcdMessages, logger)
	handler.Recover = func() error {
		if err := dev.Configure(); err != nil {
			return err
		}
		scr.Reset()
		return nil
	}
	redraw := time.NewTicker(time.Second)
	defer redraw.Stop()
	handler.Redraw = redraw.C

	if cfg.MQTT.Broker != "" {
		c := &mqtt.Client{
			ID:                cfg.MQTT.ClientID,
			Topic:             cfg.MQTT.Topic,
			Timeout:           cfg.MQTT.Timeout,
			HeartbeatInterval: cfg.MQTT.Heartbeat,
			Username:          cfg.MQTT.Username,
			Password:          cfg.MQTT.Password,
			Logger:            logger,
		}
		dial := func() (mqtt.Conn, error) {
			return net.DialTimeout("tcp", cfg.MQTT.Broker, c.Timeout)
		}
		go func() {
			if err := c.ConnectAndPublish(dial, events, lcdMessages); err != nil {
				logger.Error("mqtt:stopped", slog.Any("reason", err))
			}
		}()
	}
	defer close(events)

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("stdin is not a terminal")
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("raw terminal: %w", err)
	}
	defer term.Restore(fd, oldState)

	go readKeys(os.Stdin, actions, logger)
	err = handler.Run()

	scr.Clear()
	scr.WriteAt(0, 0, "Bye")
	if rerr := scr.Refresh(); err == nil {
		err = rerr
	}
	return err
}
