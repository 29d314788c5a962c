package commands

import (
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/dropwatch/am"
	"github.com/teranos/dropwatch/clock"
	"github.com/teranos/dropwatch/display"
	"github.com/teranos/dropwatch/errors"
	"github.com/teranos/dropwatch/logger"
	"github.com/teranos/dropwatch/sym"
)

// ClockCmd compares the local clock with network time
var ClockCmd = &cobra.Command{
	Use:   "clock",
	Short: sym.At + " Check the local clock against network time",
	Long: sym.At + ` clock - measure the offset between this machine and an NTP server.

A drop is timed against network time; a large offset here means the
local clock would start monitoring early or late. With --at the
countdown to that listing time (minus the lead) is shown too.`,
	Args: cobra.NoArgs,
	RunE: runClock,
}

// ClockReport is the JSON shape of the clock command
type ClockReport struct {
	Server    string    `json:"server"`
	OffsetMS  int64     `json:"offset_ms"`
	LocalTime time.Time `json:"local_time"`
	NetTime   time.Time `json:"network_time"`
	StartAt   time.Time `json:"start_at,omitempty"`
	StartsIn  string    `json:"starts_in,omitempty"`
}

func init() {
	ClockCmd.Flags().String("server", "", "NTP server (overrides clock.ntp_server)")
	ClockCmd.Flags().String("at", "", "Listing time to count down to")
	ClockCmd.Flags().String("tz", "", "Timezone of --at")
	ClockCmd.Flags().String("url", "", "Target URL, used to guess the timezone of --at")
}

func runClock(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	server := cfg.Clock.NTPServer
	if v, _ := cmd.Flags().GetString("server"); v != "" {
		server = v
	}

	ntp := clock.NewNTP(server, logger.ComponentLogger("clock"), clock.WithTimeout(cfg.Clock.NTPTimeout()))
	offset, err := ntp.Sync(ctx)
	if err != nil {
		return errors.WithHint(err, "check network access to the server or set clock.disabled = true")
	}

	report := ClockReport{
		Server:    server,
		OffsetMS:  offset.Milliseconds(),
		LocalTime: time.Now(),
		NetTime:   ntp.Now(),
	}

	c := *cfg
	if v, _ := cmd.Flags().GetString("at"); v != "" {
		c.Target.ListingTime = v
	}
	if v, _ := cmd.Flags().GetString("tz"); v != "" {
		c.Target.Timezone = v
	}
	url, _ := cmd.Flags().GetString("url")
	moment, err := c.TargetMoment(url)
	if err != nil {
		return err
	}
	if moment != nil {
		report.StartAt = moment.Start()
		report.StartsIn = moment.Start().Sub(report.NetTime).Round(time.Second).String()
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(report)
	}

	pterm.Printf("%s server:  %s\n", sym.At, report.Server)
	pterm.Printf("  offset:  %s\n", offset.Round(time.Millisecond))
	pterm.Printf("  local:   %s\n", report.LocalTime.Format(time.RFC3339Nano))
	pterm.Printf("  network: %s\n", report.NetTime.Format(time.RFC3339Nano))
	if moment != nil {
		pterm.Printf("  start:   %s (in %s)\n", report.StartAt.Local().Format(time.RFC3339), report.StartsIn)
	}
	if offset.Abs() > time.Second {
		pterm.Warning.Printf("Local clock is off by %s; runs use network time\n", offset.Round(time.Millisecond))
	}
	return nil
}
