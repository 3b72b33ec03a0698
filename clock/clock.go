// Package clock keeps wall time corrected against an NTP server, for the
// clock row of the menu.
package clock

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/beevik/ntp"
)

var ErrNoServer = errors.New("clock: no NTP server configured")

// QueryFunc asks server for the offset of the local clock.
type QueryFunc func(server string, timeout time.Duration) (time.Duration, error)

// Clock is the local clock plus the offset measured at the last sync. It is
// safe to read while Run syncs in another goroutine.
type Clock struct {
	Server  string
	Timeout time.Duration // Per query. Defaults to 5s.
	Logger  *slog.Logger
	// Now returns the local time. Defaults to time.Now.
	Now func() time.Time
	// Query defaults to an NTPv4 query with response validation.
	Query QueryFunc

	mu       sync.Mutex
	offset   time.Duration
	syncedAt time.Time
}

// New returns a Clock syncing against server, e.g. "pool.ntp.org".
func New(server string, logger *slog.Logger) *Clock {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	return &Clock{
		Server:  server,
		Timeout: 5 * time.Second,
		Logger:  logger,
		Now:     time.Now,
		Query:   query,
	}
}

func query(server string, timeout time.Duration) (time.Duration, error) {
	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return 0, err
	}
	if err := resp.Validate(); err != nil {
		return 0, err
	}
	return resp.ClockOffset, nil
}

// Sync measures the offset once. On failure the previous offset is kept.
func (c *Clock) Sync() error {
	if c.Server == "" {
		return ErrNoServer
	}
	offset, err := c.Query(c.Server, c.Timeout)
	if err != nil {
		c.Logger.Error("ntp:sync-failed", slog.String("server", c.Server), slog.Any("reason", err))
		return err
	}
	c.mu.Lock()
	c.offset = offset
	c.syncedAt = c.Now()
	c.mu.Unlock()
	c.Logger.Info("ntp:synced", slog.String("server", c.Server), slog.Duration("offset", offset))
	return nil
}

// Time is the local time corrected by the last measured offset.
func (c *Clock) Time() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Now().Add(c.offset)
}

// Synced returns the local time of the last successful sync, or false if
// there has been none.
func (c *Clock) Synced() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncedAt, !c.syncedAt.IsZero()
}

// Run syncs now and then every interval until stop is closed. A failed sync
// is retried after a minute, or after interval if that is shorter.
func (c *Clock) Run(interval time.Duration, stop <-chan struct{}) {
	retry := min(interval, time.Minute)
	for {
		wait := interval
		if err := c.Sync(); err != nil {
			wait = retry
		}
		select {
		case <-stop:
			return
		case <-time.After(wait):
		}
	}
}

// Label is a menu row such as "Time 15:04:05"; the separator is '~' until
// the first successful sync.
func (c *Clock) Label(int) string {
	sep := byte(':')
	if _, ok := c.Synced(); !ok {
		sep = '~'
	}
	// Preallocated so the formatting doesn't churn the heap on every redraw.
	buf := make([]byte, 0, 16)
	buf = append(buf, "Time "...)
	buf = c.Time().AppendFormat(buf, "15:04:05")
	buf[7], buf[10] = sep, sep
	return string(buf)
}
