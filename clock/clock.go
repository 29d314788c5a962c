// Package clock supplies the current time for precision waits, optionally
// corrected against a network time source.
//
// The network lookup is independently bounded by its own timeout and never
// surfaces an error through Now: an unreachable time server only costs
// accuracy, never control flow.
package clock

import (
	"context"
	"sync"
	"time"

	"github.com/beevik/ntp"
	"go.uber.org/zap"

	"github.com/teranos/dropwatch/errors"
)

// DefaultNTPServer is queried when no server is configured
const DefaultNTPServer = "pool.ntp.org"

// DefaultNTPTimeout bounds a single network time query
const DefaultNTPTimeout = 2 * time.Second

// DefaultResyncInterval is how long a measured offset is trusted
const DefaultResyncInterval = 10 * time.Minute

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// System is the local wall clock.
type System struct{}

// Now returns the local time.
func (System) Now() time.Time { return time.Now() }

// offsetFunc measures the local clock offset against host
type offsetFunc func(host string, timeout time.Duration) (time.Duration, error)

func queryOffset(host string, timeout time.Duration) (time.Duration, error) {
	resp, err := ntp.QueryWithOptions(host, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return 0, err
	}
	if err := resp.Validate(); err != nil {
		return 0, errors.Wrap(err, "invalid time server response")
	}
	return resp.ClockOffset, nil
}

// NTP is a clock corrected by the offset measured against a time server.
// The offset is measured lazily on first use and refreshed after
// ResyncInterval; between measurements Now costs a single time.Now call.
type NTP struct {
	server         string
	timeout        time.Duration
	resyncInterval time.Duration
	query          offsetFunc
	local          func() time.Time
	log            *zap.SugaredLogger

	mu       sync.Mutex
	offset   time.Duration
	syncedAt time.Time
	attempts int
}

// NTPOption configures an NTP clock
type NTPOption func(*NTP)

// WithTimeout overrides the per-query timeout
func WithTimeout(d time.Duration) NTPOption {
	return func(c *NTP) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithResyncInterval overrides how long a measured offset is reused
func WithResyncInterval(d time.Duration) NTPOption {
	return func(c *NTP) {
		if d > 0 {
			c.resyncInterval = d
		}
	}
}

// NewNTP creates a network-corrected clock.
func NewNTP(server string, log *zap.SugaredLogger, opts ...NTPOption) *NTP {
	if server == "" {
		server = DefaultNTPServer
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	c := &NTP{
		server:         server,
		timeout:        DefaultNTPTimeout,
		resyncInterval: DefaultResyncInterval,
		query:          queryOffset,
		local:          time.Now,
		log:            log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Now returns local time corrected by the last measured offset. A stale or
// missing offset triggers one bounded query; failure keeps the previous
// offset (zero if never measured).
func (c *NTP) Now() time.Time {
	c.mu.Lock()
	stale := c.syncedAt.IsZero() || c.local().Sub(c.syncedAt) >= c.resyncInterval
	c.mu.Unlock()

	if stale {
		if _, err := c.Sync(context.Background()); err != nil {
			c.log.Debugw("Network time unavailable, using local clock", "server", c.server, "error", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local().Add(c.offset)
}

// Sync measures the offset against the time server and caches it.
// Failed attempts are remembered so Now does not re-query on every call
// until the resync interval elapses.
func (c *NTP) Sync(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	offset, err := c.query(c.server, c.timeout)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	c.syncedAt = c.local()

	if err != nil {
		return c.offset, errors.Wrapf(err, "query time server %s", c.server)
	}

	c.offset = offset
	c.log.Debugw("Network time synced", "server", c.server, "offset", c.offset)
	return c.offset, nil
}

// Offset returns the last measured offset
func (c *NTP) Offset() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}

// Server returns the configured time server
func (c *NTP) Server() string {
	return c.server
}
