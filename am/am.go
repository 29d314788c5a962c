// Package am ("I am") holds dropwatch's configuration: what to watch, how
// fast, and how far the pipeline may go on its own.
package am

// Config is the complete dropwatch configuration
type Config struct {
	Target   TargetConfig   `mapstructure:"target" toml:"target" yaml:"target"`
	Timing   TimingConfig   `mapstructure:"timing" toml:"timing" yaml:"timing"`
	Retry    RetryConfig    `mapstructure:"retry" toml:"retry" yaml:"retry"`
	Safety   SafetyConfig   `mapstructure:"safety" toml:"safety" yaml:"safety"`
	Clock    ClockConfig    `mapstructure:"clock" toml:"clock" yaml:"clock"`
	Browser  BrowserConfig  `mapstructure:"browser" toml:"browser" yaml:"browser"`
	Database DatabaseConfig `mapstructure:"database" toml:"database" yaml:"database"`
	Profile  ProfileConfig  `mapstructure:"profile" toml:"profile" yaml:"profile"`
	Notify   NotifyConfig   `mapstructure:"notify" toml:"notify" yaml:"notify"`
	Server   ServerConfig   `mapstructure:"server" toml:"server" yaml:"server"`
	Log      LogConfig      `mapstructure:"log" toml:"log" yaml:"log"`
}

// TargetConfig names what to watch. CLI arguments override these.
type TargetConfig struct {
	URL         string   `mapstructure:"url" toml:"url" yaml:"url"`                            // Product page for snipe
	StoreURL    string   `mapstructure:"store_url" toml:"store_url" yaml:"store_url"`          // Store listing for watch
	Keywords    []string `mapstructure:"keywords" toml:"keywords" yaml:"keywords"`             // Any keyword matches (OR)
	ListingTime string   `mapstructure:"listing_time" toml:"listing_time" yaml:"listing_time"` // e.g. "2026-05-01 20:00:00"; empty starts immediately
	Timezone    string   `mapstructure:"timezone" toml:"timezone" yaml:"timezone"`             // Zone of listing_time; empty guesses from the URL
	UseBuyNow   bool     `mapstructure:"use_buy_now" toml:"use_buy_now" yaml:"use_buy_now"`
}

// TimingConfig controls polling cadence and deadlines
type TimingConfig struct {
	LeadSeconds           int `mapstructure:"lead_seconds" toml:"lead_seconds" yaml:"lead_seconds"`
	CheckIntervalMS       int `mapstructure:"check_interval_ms" toml:"check_interval_ms" yaml:"check_interval_ms"`
	MaxWaitSeconds        int `mapstructure:"max_wait_seconds" toml:"max_wait_seconds" yaml:"max_wait_seconds"`
	ListingIntervalMS     int `mapstructure:"listing_interval_ms" toml:"listing_interval_ms" yaml:"listing_interval_ms"`
	ListingMaxWaitMinutes int `mapstructure:"listing_max_wait_minutes" toml:"listing_max_wait_minutes" yaml:"listing_max_wait_minutes"`
	MaxReloadsPerMinute   int `mapstructure:"max_reloads_per_minute" toml:"max_reloads_per_minute" yaml:"max_reloads_per_minute"` // 0 = unlimited
	StageTimeoutSeconds   int `mapstructure:"stage_timeout_seconds" toml:"stage_timeout_seconds" yaml:"stage_timeout_seconds"`    // 0 = unbounded
}

// RetryConfig is the acquire retry budget
type RetryConfig struct {
	MaxAttempts int `mapstructure:"max_attempts" toml:"max_attempts" yaml:"max_attempts"`
	DelayMS     int `mapstructure:"delay_ms" toml:"delay_ms" yaml:"delay_ms"`
}

// SafetyConfig gates the irreversible finalize stage
type SafetyConfig struct {
	AutoPurchase  bool `mapstructure:"auto_purchase" toml:"auto_purchase" yaml:"auto_purchase"`
	StrictConfirm bool `mapstructure:"strict_confirm" toml:"strict_confirm" yaml:"strict_confirm"`
	PauseSeconds  int  `mapstructure:"pause_seconds" toml:"pause_seconds" yaml:"pause_seconds"` // Before placing the order
}

// ClockConfig configures network time correction
type ClockConfig struct {
	NTPServer     string `mapstructure:"ntp_server" toml:"ntp_server" yaml:"ntp_server"`
	NTPTimeoutMS  int    `mapstructure:"ntp_timeout_ms" toml:"ntp_timeout_ms" yaml:"ntp_timeout_ms"`
	ResyncMinutes int    `mapstructure:"resync_minutes" toml:"resync_minutes" yaml:"resync_minutes"`
	Disabled      bool   `mapstructure:"disabled" toml:"disabled" yaml:"disabled"`
}

// BrowserConfig configures the Chrome session
type BrowserConfig struct {
	Headless         bool   `mapstructure:"headless" toml:"headless" yaml:"headless"`
	TimeoutMS        int    `mapstructure:"timeout_ms" toml:"timeout_ms" yaml:"timeout_ms"` // Per page operation
	MinNavIntervalMS int    `mapstructure:"min_nav_interval_ms" toml:"min_nav_interval_ms" yaml:"min_nav_interval_ms"`
	UserAgent        string `mapstructure:"user_agent" toml:"user_agent" yaml:"user_agent"`
	WindowWidth      int    `mapstructure:"window_width" toml:"window_width" yaml:"window_width"`
	WindowHeight     int    `mapstructure:"window_height" toml:"window_height" yaml:"window_height"`
}

// DatabaseConfig configures the SQLite run history
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path" yaml:"path"`
}

// ProfileConfig points at a storefront selector override file
type ProfileConfig struct {
	Path string `mapstructure:"path" toml:"path" yaml:"path"`
}

// NotifyConfig runs a command when a run ends
type NotifyConfig struct {
	Command        string `mapstructure:"command" toml:"command" yaml:"command"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" toml:"timeout_seconds" yaml:"timeout_seconds"`
}

// ServerConfig configures the live progress stream
type ServerConfig struct {
	ProgressAddr string `mapstructure:"progress_addr" toml:"progress_addr" yaml:"progress_addr"` // Empty disables
}

// LogConfig configures console logging
type LogConfig struct {
	Theme string `mapstructure:"theme" toml:"theme" yaml:"theme"` // gruvbox, everforest
	JSON  bool   `mapstructure:"json" toml:"json" yaml:"json"`
}

// File system constants
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)

// EnvPrefix prefixes every environment override, e.g. DROPWATCH_TIMING_LEAD_SECONDS
const EnvPrefix = "DROPWATCH"

// ConfigFileName is the file searched for in the project and home directories
const ConfigFileName = "am.toml"
