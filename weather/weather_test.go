package weather

import (
	"errors"
	"testing"
	"time"
)

type fakeReader struct {
	temp, hum float32
	err       error
	reads     int
}

func (f *fakeReader) Read() error {
	f.reads++
	return f.err
}

func (f *fakeReader) Temperature() (float32, error) { return f.temp, nil }
func (f *fakeReader) Humidity() (float32, error)    { return f.hum, nil }

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newSensor(dev Reader) (*Sensor, *clock) {
	c := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	s := New(dev)
	s.Clock = c.now
	return s, c
}

func TestReadMeasurementsThrottles(t *testing.T) {
	dev := &fakeReader{temp: 21.5, hum: 40}
	s, clk := newSensor(dev)

	temp, hum, cached, err := s.ReadMeasurements()
	if err != nil || cached || temp != 21.5 || hum != 40 {
		t.Fatalf("first read: %v %v %v %v", temp, hum, cached, err)
	}

	dev.temp = 30
	clk.t = clk.t.Add(time.Second)
	temp, _, cached, _ = s.ReadMeasurements()
	if !cached || temp != 21.5 || dev.reads != 1 {
		t.Errorf("within interval: temp %v cached %v reads %d", temp, cached, dev.reads)
	}

	clk.t = clk.t.Add(time.Second)
	temp, _, cached, _ = s.ReadMeasurements()
	if cached || temp != 30 || dev.reads != 2 {
		t.Errorf("after interval: temp %v cached %v reads %d", temp, cached, dev.reads)
	}
}

func TestReadMeasurementsErrors(t *testing.T) {
	boom := errors.New("checksum")
	dev := &fakeReader{err: boom}
	s, clk := newSensor(dev)

	if _, _, cached, err := s.ReadMeasurements(); !errors.Is(err, boom) || cached {
		t.Fatalf("no cache: cached %v err %v", cached, err)
	}

	dev.err = nil
	dev.temp, dev.hum = 19, 55
	if _, _, _, err := s.ReadMeasurements(); err != nil {
		t.Fatal(err)
	}

	dev.err = boom
	clk.t = clk.t.Add(5 * time.Second)
	temp, hum, cached, err := s.ReadMeasurements()
	if !errors.Is(err, boom) || !cached || temp != 19 || hum != 55 {
		t.Errorf("cache on error: %v %v %v %v", temp, hum, cached, err)
	}
}

func TestLabel(t *testing.T) {
	dev := &fakeReader{err: errors.New("timeout")}
	s, clk := newSensor(dev)
	if got := s.Label(16); got != "--.-°C --%" {
		t.Errorf("Label without reading = %q", got)
	}
	dev.err = nil
	dev.temp, dev.hum = 21.46, 40.2
	clk.t = clk.t.Add(3 * time.Second)
	if got := s.Label(16); got != "21.5°C 40%" {
		t.Errorf("Label = %q", got)
	}
}
