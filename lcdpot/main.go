//go:build tinygo

// Command lcdpot shows the voltage on ADC0 as a number and a bar graph. The
// bar uses glyphs for partly filled cells.
package main

import (
	"machine"
	"strconv"
	"time"

	"github.com/harveysanders/picolcd/hd44780"
	"github.com/harveysanders/picolcd/pcf8574"
	"github.com/harveysanders/picolcd/screen"
)

const (
	max16Bit uint16  = 65535 // Max ADC value. The Pico has an onboard 16-bit ADC.
	sysV     float32 = 3.3   // Logic level in volts. Pico runs at 3.3VDC.
	cols             = 16
)

// Bar cells from one to four columns lit, in the private use area so they
// never collide with text.
var bars = [...]rune{'\uE000', '\uE001', '\uE002', '\uE003'}

func barCatalog() screen.Catalog {
	cat := screen.DefaultCatalog()
	for i, r := range bars {
		var row byte
		for c := 0; c <= i; c++ {
			row |= 0x10 >> c
		}
		var g screen.Glyph
		for y := range g.Pattern {
			g.Pattern[y] = row
		}
		g.Alt = '#'
		cat[r] = g
	}
	return cat
}

func main() {
	debugLED := machine.GP21
	debugLED.Configure(machine.PinConfig{Mode: machine.PinOutput})

	machine.InitADC()
	sensor := machine.ADC{Pin: machine.ADC0}
	sensor.Configure(machine.ADCConfig{})

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
	dev, err := hd44780.New(bridge, hd44780.Config{Cols: cols, Rows: 2, Address: addr})
	if err == nil {
		err = dev.Configure()
	}
	if err != nil {
		for {
			println("could not initialize LCD:", err.Error())
			time.Sleep(time.Second)
		}
	}
	scr, _ := screen.New(dev, screen.Config{Cols: cols, Rows: 2, Catalog: barCatalog()})

	// We need a preallocated buffer so the heap isn't exhausted
	// by many calls to fmt functions.
	printBuf := make([]byte, 0, 40)
	barBuf := make([]rune, 0, cols)
	const floatNoExp = 'f'
	for {
		val := sensor.Get()
		percentage := (float32(val) / float32(max16Bit))
		voltage := percentage * sysV

		// reslice the buffer to zero-length so append continues to work
		printBuf = printBuf[:0]
		printBuf = append(printBuf, "V: "...)
		printBuf = strconv.AppendFloat(printBuf, float64(voltage), floatNoExp, 2, 32)
		printBuf = append(printBuf, "  "...)
		printBuf = strconv.AppendFloat(printBuf, float64(percentage*100), floatNoExp, 0, 32)
		printBuf = append(printBuf, '%')
		scr.ClearLine(0)
		scr.WriteAt(0, 0, string(printBuf))

		// Five columns per cell.
		fill := int(percentage * cols * 5)
		barBuf = barBuf[:0]
		for ; fill >= 5; fill -= 5 {
			barBuf = append(barBuf, '\xFF')
		}
		if fill > 0 {
			barBuf = append(barBuf, bars[fill-1])
		}
		scr.ClearLine(1)
		scr.WriteAt(0, 1, string(barBuf))

		if err := scr.Refresh(); err != nil {
			println("refresh:", err.Error())
		}

		debugLED.High()
		time.Sleep(250 * time.Millisecond)
		debugLED.Low()
		time.Sleep(250 * time.Millisecond)
	}
}
