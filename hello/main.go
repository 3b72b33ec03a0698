//go:build tinygo

// Command hello is a bring-up check for an LCD backpack on I2C0: it finds
// the expander, initializes the display and prints two lines, one of them
// using programmable glyphs.
package main

import (
	"machine"
	"time"

	"github.com/harveysanders/picolcd/hd44780"
	"github.com/harveysanders/picolcd/pcf8574"
	"github.com/harveysanders/picolcd/screen"
)

func main() {
	err := machine.I2C0.Configure(machine.I2CConfig{
		SDA: machine.GP4,
		SCL: machine.GP5,
	})
	if err != nil {
		for {
			println("could not configure I2C", err.Error())
			time.Sleep(time.Second)
		}
	}

	bridge := pcf8574.New(machine.I2C0)
	addr, err := bridge.Detect()
	if err != nil {
		for {
			println("LCD not found at 0x27/0x3F")
			time.Sleep(time.Second)
		}
	}

	dev, err := hd44780.New(bridge, hd44780.Config{Cols: 16, Rows: 2, Address: addr})
	if err == nil {
		err = dev.Configure()
	}
	if err != nil {
		for {
			println("could not initialize LCD:", err.Error())
			time.Sleep(time.Second)
		}
	}

	scr, _ := screen.New(dev, screen.Config{Cols: 16, Rows: 2})
	scr.WriteAt(0, 0, "Hello from TinyGo")
	scr.WriteAt(0, 1, "Zażółć 21°C")
	if err := scr.Refresh(); err != nil {
		println("refresh:", err.Error())
	}

	// Keep main() running
	for {
		println("done..")
		time.Sleep(time.Second * 5)
	}
}
