// Package weather provides temperature and humidity sensing, throttled and
// cached to handle the DHT11's minimum 2-second sampling interval.
package weather

import (
	"strconv"
	"time"
)

// Reader is a temperature and humidity sensor. Read samples the sensor; the
// getters return the last sample.
type Reader interface {
	Read() error
	Temperature() (float32, error)
	Humidity() (float32, error)
}

// Sensor wraps a Reader with throttling and caching.
// It automatically limits queries to respect the sensor's minimum read interval.
type Sensor struct {
	dev             Reader        // Underlying sensor.
	cachedTemp      float32       // Last successfully read temperature value.
	cachedHumidity  float32       // Last successfully read humidity value.
	lastReadTime    time.Time     // Timestamp of the last successful sensor read.
	minReadInterval time.Duration // Minimum time between sensor reads. Cached values are returned within the interval.
	hasValidCache   bool          // Indicates whether cached values are available.

	// Unit is printed after the temperature by Label, e.g. "C" or "F".
	Unit string
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// New returns a Sensor over dev with the DHT11's 2s read interval.
func New(dev Reader) *Sensor {
	return &Sensor{
		dev:  dev,
		Unit: "C",
		// DHT11 requires minimum 2s between reads
		minReadInterval: 2 * time.Second,
		Clock:           time.Now,
	}
}

// ReadMeasurements returns temperature, humidity, whether data is from cache,
// and any error. The sensor is only queried if minReadInterval has passed
// since the last successful read. On a failed read the cached values are
// returned with the error, if there are any.
func (s *Sensor) ReadMeasurements() (temp float32, humidity float32, isCached bool, err error) {
	now := s.Clock()

	if s.hasValidCache && now.Sub(s.lastReadTime) < s.minReadInterval {
		return s.cachedTemp, s.cachedHumidity, true, nil
	}

	temp, humidity, err = s.sample()
	if err != nil {
		if s.hasValidCache {
			return s.cachedTemp, s.cachedHumidity, true, err
		}
		return 0, 0, false, err
	}

	s.cachedTemp = temp
	s.cachedHumidity = humidity
	s.lastReadTime = now
	s.hasValidCache = true
	return temp, humidity, false, nil
}

func (s *Sensor) sample() (temp, humidity float32, err error) {
	if err = s.dev.Read(); err != nil {
		return 0, 0, err
	}
	if temp, err = s.dev.Temperature(); err != nil {
		return 0, 0, err
	}
	if humidity, err = s.dev.Humidity(); err != nil {
		return 0, 0, err
	}
	return temp, humidity, nil
}

// Label formats the current reading for a menu row, e.g. "21.5°C 40%".
// Without any successful reading it shows dashes.
func (s *Sensor) Label(width int) string {
	temp, hum, _, err := s.ReadMeasurements()
	// Preallocated so the formatting doesn't churn the heap on every redraw.
	buf := make([]byte, 0, 24)
	if err != nil && !s.hasValidCache {
		buf = append(buf, "--.-°"...)
		buf = append(buf, s.Unit...)
		buf = append(buf, " --%"...)
	} else {
		buf = strconv.AppendFloat(buf, float64(temp), 'f', 1, 32)
		buf = append(buf, "°"...)
		buf = append(buf, s.Unit...)
		buf = append(buf, ' ')
		buf = strconv.AppendFloat(buf, float64(hum), 'f', 0, 32)
		buf = append(buf, '%')
	}
	return string(buf)
}
