package am

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/teranos/dropwatch/pulse"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("target.keywords", []string{})
	v.SetDefault("target.use_buy_now", false)

	v.SetDefault("timing.lead_seconds", 60)
	v.SetDefault("timing.check_interval_ms", 100)
	v.SetDefault("timing.max_wait_seconds", 300)
	v.SetDefault("timing.listing_interval_ms", 3000)
	v.SetDefault("timing.listing_max_wait_minutes", 60)
	v.SetDefault("timing.max_reloads_per_minute", 30) // Politeness cap on listing reloads
	v.SetDefault("timing.stage_timeout_seconds", 60)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.delay_ms", 500)

	v.SetDefault("safety.auto_purchase", false)
	v.SetDefault("safety.strict_confirm", false)
	v.SetDefault("safety.pause_seconds", 5)

	v.SetDefault("clock.ntp_server", "pool.ntp.org")
	v.SetDefault("clock.ntp_timeout_ms", 2000)
	v.SetDefault("clock.resync_minutes", 10)
	v.SetDefault("clock.disabled", false)

	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.timeout_ms", 30000)
	v.SetDefault("browser.min_nav_interval_ms", 500)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)

	v.SetDefault("database.path", "dropwatch.db")
	v.SetDefault("notify.timeout_seconds", 10)
	v.SetDefault("log.theme", "everforest")
	v.SetDefault("log.json", false)
}

// BindSensitiveEnvVars binds settings commonly set per machine to
// short environment variable names
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("database.path", "DROPWATCH_DATABASE_PATH", "DROPWATCH_DB")
	v.BindEnv("notify.command", "DROPWATCH_NOTIFY_COMMAND")
	v.BindEnv("safety.auto_purchase", "DROPWATCH_AUTO_PURCHASE")
}

// PollConfig is the product monitoring cadence
func (t TimingConfig) PollConfig() pulse.PollConfig {
	return pulse.PollConfig{
		Interval: time.Duration(t.CheckIntervalMS) * time.Millisecond,
		MaxWait:  time.Duration(t.MaxWaitSeconds) * time.Second,
	}
}

// ListingPollConfig is the listing monitoring cadence
func (t TimingConfig) ListingPollConfig() pulse.PollConfig {
	return pulse.PollConfig{
		Interval: time.Duration(t.ListingIntervalMS) * time.Millisecond,
		MaxWait:  time.Duration(t.ListingMaxWaitMinutes) * time.Minute,
	}
}

// Lead is how early monitoring starts before the listing time
func (t TimingConfig) Lead() time.Duration {
	return time.Duration(t.LeadSeconds) * time.Second
}

// StageTimeout bounds each action stage
func (t TimingConfig) StageTimeout() time.Duration {
	return time.Duration(t.StageTimeoutSeconds) * time.Second
}

// Policy converts to a retry policy
func (r RetryConfig) Policy() pulse.RetryPolicy {
	return pulse.RetryPolicy{MaxAttempts: r.MaxAttempts, Delay: time.Duration(r.DelayMS) * time.Millisecond}
}

// Pause is the wait before placing an order
func (s SafetyConfig) Pause() time.Duration {
	return time.Duration(s.PauseSeconds) * time.Second
}

// NTPTimeout bounds a single time query
func (c ClockConfig) NTPTimeout() time.Duration {
	return time.Duration(c.NTPTimeoutMS) * time.Millisecond
}

// Resync is how long a measured offset is trusted
func (c ClockConfig) Resync() time.Duration {
	return time.Duration(c.ResyncMinutes) * time.Minute
}

// Timeout bounds a notify command
func (n NotifyConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// GetDatabasePath returns the configured database path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return "dropwatch.db"
	}
	return c.Database.Path
}

// GetLogTheme returns the log theme (default: everforest)
func (c *Config) GetLogTheme() string {
	if c.Log.Theme == "" {
		return "everforest"
	}
	return c.Log.Theme
}

// String returns a short description of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Target: %s, Timing: {Lead: %ds, Interval: %dms}, AutoPurchase: %t}",
		c.Target.URL+c.Target.StoreURL, c.Timing.LeadSeconds, c.Timing.CheckIntervalMS, c.Safety.AutoPurchase)
}
