// Package config loads the host program's settings from a TOML file.
//
//	bus = "1"
//	address = 0x27
//	cols = 20
//	rows = 4
//	variant = "A"
//	log_level = "debug"
//
//	[mqtt]
//	broker = "10.0.0.9:1883"
//	topic = "picolcd/events"
//
//	[ntp]
//	server = "pool.ntp.org"
//	interval = "1h"
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/harveysanders/picolcd/pcf8574"
)

var (
	ErrGeometry = errors.New("config: cols must be 1..40 and rows 1..4")
	ErrAddress  = errors.New("config: address must be 0 (detect) or 0x03..0x77")
	ErrVariant  = errors.New("config: unknown pin variant")
	ErrTopic    = errors.New("config: mqtt.topic is required with mqtt.broker")
	ErrInterval = errors.New("config: ntp.interval must be positive")
)

// Config is the host program configuration.
type Config struct {
	Bus     string `toml:"bus"`     // periph I2C bus name; empty opens the first bus
	Address int    `toml:"address"` // expander address; 0 probes 0x27 then 0x3F
	Cols    int    `toml:"cols"`
	Rows    int    `toml:"rows"`

	Variant            string `toml:"variant"` // "A", "B" or "C"
	Pins               *Pins  `toml:"pins"`    // explicit wiring, overrides Variant
	BacklightActiveLow bool   `toml:"backlight_active_low"`

	NoGlyphs bool   `toml:"no_glyphs"` // print ASCII fallbacks instead of loading CGRAM
	LogLevel string `toml:"log_level"`

	MQTT MQTT `toml:"mqtt"`
	NTP  NTP  `toml:"ntp"`
}

// Pins is an explicit expander wiring: the P0..P7 bit of each signal.
type Pins struct {
	RS        uint8 `toml:"rs"`
	RW        uint8 `toml:"rw"`
	E         uint8 `toml:"e"`
	Backlight uint8 `toml:"backlight"`
	D4        uint8 `toml:"d4"`
	D5        uint8 `toml:"d5"`
	D6        uint8 `toml:"d6"`
	D7        uint8 `toml:"d7"`
}

// MQTT configures the optional event publisher. It is off when Broker is empty.
type MQTT struct {
	Broker    string        `toml:"broker"` // host:port
	Topic     string        `toml:"topic"`
	ClientID  string        `toml:"client_id"`
	Username  string        `toml:"username"`
	Password  string        `toml:"password"`
	Timeout   time.Duration `toml:"timeout"`
	Heartbeat time.Duration `toml:"heartbeat"`
}

// NTP configures clock correction for the clock row. It is off when Server
// is empty.
type NTP struct {
	Server   string        `toml:"server"`
	Interval time.Duration `toml:"interval"` // between syncs
}

// Default returns the settings for a 16x2 backpack wired as variant A.
func Default() Config {
	return Config{
		Cols:     16,
		Rows:     2,
		Variant:  "A",
		LogLevel: "info",
		MQTT: MQTT{
			ClientID: "picolcd",
			Timeout:  5 * time.Second,
		},
		NTP: NTP{Interval: time.Hour},
	}
}

// Parse decodes a TOML document over Default and validates the result.
// Unknown keys are an error.
func Parse(doc string) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(doc, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("config: unknown keys %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the file at path. An empty path yields Default.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(string(b))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks geometry, address, wiring, log level, MQTT and NTP settings.
func (c Config) Validate() error {
	if c.Cols < 1 || c.Cols > 40 || c.Rows < 1 || c.Rows > 4 {
		return ErrGeometry
	}
	if c.Address != 0 && (c.Address < 0x03 || c.Address > 0x77) {
		return ErrAddress
	}
	if _, err := c.PinMap(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		return ErrTopic
	}
	if c.NTP.Server != "" && c.NTP.Interval <= 0 {
		return ErrInterval
	}
	return nil
}

// PinMap returns the wiring: Pins when set, otherwise the named variant.
func (c Config) PinMap() (pcf8574.PinMap, error) {
	var pm pcf8574.PinMap
	if c.Pins != nil {
		p := c.Pins
		pm = pcf8574.PinMap{
			RS: p.RS, RW: p.RW, E: p.E, Backlight: p.Backlight,
			D4: p.D4, D5: p.D5, D6: p.D6, D7: p.D7,
		}
	} else {
		v, ok := pcf8574.Variant(strings.ToUpper(c.Variant))
		if !ok {
			return pcf8574.PinMap{}, fmt.Errorf("%w %q", ErrVariant, c.Variant)
		}
		pm = v
	}
	pm.BacklightActiveHigh = !c.BacklightActiveLow
	if err := pm.Validate(); err != nil {
		return pcf8574.PinMap{}, err
	}
	return pm, nil
}

// Level parses LogLevel ("debug", "info", "warn", "error").
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log_level: %w", err)
	}
	return l, nil
}
