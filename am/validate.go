package am

import (
	"time"

	"github.com/teranos/dropwatch/am/geotime"
	"github.com/teranos/dropwatch/clock"
	"github.com/teranos/dropwatch/errors"
)

// Validate checks every bound the pipeline depends on. Zero means zero:
// where 0 disables a feature it is accepted, elsewhere it is rejected.
func (c *Config) Validate() error {
	if c.Timing.LeadSeconds < 0 {
		return invalid("timing.lead_seconds must be >= 0, got %d", c.Timing.LeadSeconds)
	}
	if c.Timing.CheckIntervalMS <= 0 {
		return errors.WithHint(
			invalid("timing.check_interval_ms must be > 0, got %d", c.Timing.CheckIntervalMS),
			"a zero interval would poll the page in a tight loop")
	}
	if c.Timing.MaxWaitSeconds <= 0 {
		return invalid("timing.max_wait_seconds must be > 0, got %d", c.Timing.MaxWaitSeconds)
	}
	if c.Timing.ListingIntervalMS <= 0 {
		return invalid("timing.listing_interval_ms must be > 0, got %d", c.Timing.ListingIntervalMS)
	}
	if c.Timing.ListingMaxWaitMinutes <= 0 {
		return invalid("timing.listing_max_wait_minutes must be > 0, got %d", c.Timing.ListingMaxWaitMinutes)
	}
	if c.Timing.MaxReloadsPerMinute < 0 {
		return invalid("timing.max_reloads_per_minute must be >= 0 (0 = unlimited), got %d", c.Timing.MaxReloadsPerMinute)
	}
	if c.Timing.StageTimeoutSeconds < 0 {
		return invalid("timing.stage_timeout_seconds must be >= 0 (0 = unbounded), got %d", c.Timing.StageTimeoutSeconds)
	}

	if c.Retry.MaxAttempts < 1 {
		return errors.WithHint(
			invalid("retry.max_attempts must be >= 1, got %d", c.Retry.MaxAttempts),
			"1 means a single attempt with no retry")
	}
	if c.Retry.DelayMS < 0 {
		return invalid("retry.delay_ms must be >= 0, got %d", c.Retry.DelayMS)
	}
	if c.Safety.PauseSeconds < 0 {
		return invalid("safety.pause_seconds must be >= 0, got %d", c.Safety.PauseSeconds)
	}

	if !c.Clock.Disabled && c.Clock.NTPTimeoutMS <= 0 {
		return invalid("clock.ntp_timeout_ms must be > 0 when network time is enabled, got %d", c.Clock.NTPTimeoutMS)
	}
	if c.Clock.ResyncMinutes < 0 {
		return invalid("clock.resync_minutes must be >= 0, got %d", c.Clock.ResyncMinutes)
	}

	if c.Browser.TimeoutMS <= 0 {
		return invalid("browser.timeout_ms must be > 0, got %d", c.Browser.TimeoutMS)
	}
	if c.Browser.MinNavIntervalMS < 0 {
		return invalid("browser.min_nav_interval_ms must be >= 0, got %d", c.Browser.MinNavIntervalMS)
	}
	if c.Notify.TimeoutSeconds < 0 {
		return invalid("notify.timeout_seconds must be >= 0, got %d", c.Notify.TimeoutSeconds)
	}

	if c.Target.Timezone != "" {
		if _, err := geotime.NormalizeTimezone(c.Target.Timezone); err != nil {
			return errors.Wrap(err, "target.timezone")
		}
	}
	return nil
}

// TargetMoment resolves target.listing_time into a moment with the
// configured lead. It returns nil when no listing time is set. The zone
// is target.timezone, else guessed from targetURL, else local time.
func (c *Config) TargetMoment(targetURL string) (*clock.TargetMoment, error) {
	if c.Target.ListingTime == "" {
		return nil, nil
	}

	tz, err := c.ListingTimezone(targetURL)
	if err != nil {
		return nil, err
	}
	at, err := geotime.ParseListingTime(c.Target.ListingTime, tz)
	if err != nil {
		return nil, errors.Wrap(err, "target.listing_time")
	}
	m := &clock.TargetMoment{At: at, Lead: c.Timing.Lead()}
	return m, m.Validate()
}

// ListingTimezone returns the IANA zone listing times are read in
func (c *Config) ListingTimezone(targetURL string) (string, error) {
	if c.Target.Timezone != "" {
		return geotime.NormalizeTimezone(c.Target.Timezone)
	}
	if tz := geotime.GuessTimezoneFromURL(targetURL); tz != "" {
		return tz, nil
	}
	if tz, err := geotime.DetectLocalTimezone(); err == nil {
		return tz, nil
	}
	return time.Local.String(), nil
}

func invalid(format string, args ...interface{}) error {
	return errors.NewInvalidRequestError(format, args...)
}
