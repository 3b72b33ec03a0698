//go:build tinygo

package weather

import (
	"machine"

	"tinygo.org/x/drivers/dht"
)

// dhtReader adapts a DHT device to Reader.
type dhtReader struct {
	dev   dht.Device
	scale dht.TemperatureScale
}

func (d dhtReader) Read() error { return d.dev.ReadMeasurements() }

func (d dhtReader) Temperature() (float32, error) { return d.dev.TemperatureFloat(d.scale) }

func (d dhtReader) Humidity() (float32, error) { return d.dev.HumidityFloat() }

// NewDHT11 returns a Sensor reading a DHT11 on pin.
func NewDHT11(pin machine.Pin, scale dht.TemperatureScale) *Sensor {
	s := New(dhtReader{dev: dht.New(pin, dht.DHT11), scale: scale})
	if scale == dht.F {
		s.Unit = "F"
	}
	return s
}
