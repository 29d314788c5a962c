// Package commands holds the dropwatch CLI commands.
package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teranos/dropwatch/am"
	"github.com/teranos/dropwatch/clock"
	"github.com/teranos/dropwatch/db"
	"github.com/teranos/dropwatch/display"
	"github.com/teranos/dropwatch/errors"
	"github.com/teranos/dropwatch/logger"
	"github.com/teranos/dropwatch/notify"
	"github.com/teranos/dropwatch/page/chrome"
	"github.com/teranos/dropwatch/pipeline"
	"github.com/teranos/dropwatch/pulse"
	"github.com/teranos/dropwatch/server"
	"github.com/teranos/dropwatch/storefront"
)

// ExitError carries a process exit code out of a command
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// session is everything a pipeline run needs besides its target
type session struct {
	cfg     *am.Config
	log     *zap.SugaredLogger
	db      *sql.DB
	history *pipeline.History
	clock   clock.Clock
	profile storefront.Profile
	emitter *pulse.MultiEmitter
	hook    *notify.Hook
	browser *chrome.Browser
	stopSrv context.CancelFunc
	srvDone chan struct{}
	runID   string
}

// addRunFlags registers the flags shared by snipe and watch
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("at", "", "Listing time, e.g. \"2026-05-01 20:00\" (overrides target.listing_time)")
	cmd.Flags().String("tz", "", "Timezone of --at (overrides target.timezone)")
	cmd.Flags().Bool("buy-now", false, "Use the buy-now control instead of add-to-cart")
	cmd.Flags().Bool("auto-purchase", false, "Allow placing the order (overrides safety.auto_purchase)")
	cmd.Flags().BoolP("yes", "y", false, "Skip the auto-purchase confirmation prompt")
	cmd.Flags().Bool("headless", false, "Run the browser without a window")
	cmd.Flags().Bool("no-ntp", false, "Use the local clock instead of network time")
}

// loadRunConfig loads configuration and applies command-line overrides
func loadRunConfig(cmd *cobra.Command) (*am.Config, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	c := *cfg
	f := cmd.Flags()
	if v, _ := f.GetString("at"); v != "" {
		c.Target.ListingTime = v
	}
	if v, _ := f.GetString("tz"); v != "" {
		c.Target.Timezone = v
	}
	if f.Changed("buy-now") {
		c.Target.UseBuyNow, _ = f.GetBool("buy-now")
	}
	if f.Changed("auto-purchase") {
		c.Safety.AutoPurchase, _ = f.GetBool("auto-purchase")
	}
	if f.Changed("headless") {
		c.Browser.Headless, _ = f.GetBool("headless")
	}
	if v, _ := f.GetBool("no-ntp"); v {
		c.Clock.Disabled = true
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// confirmAutoPurchase reports whether finalize may run. Without
// auto_purchase it is always false; with it, the user must agree.
func confirmAutoPurchase(cmd *cobra.Command, cfg *am.Config) (bool, error) {
	if !cfg.Safety.AutoPurchase {
		return false, nil
	}
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return true, nil
	}
	ok, err := pterm.DefaultInteractiveConfirm.
		WithDefaultValue(false).
		Show("Auto-purchase is enabled. dropwatch will place the order without asking again. Continue?")
	if err != nil {
		return false, errors.Wrap(err, "auto-purchase confirmation")
	}
	if !ok {
		pterm.Warning.Println("Auto-purchase declined; the run will stop at the cart")
	}
	return ok, nil
}

func openSession(ctx context.Context, cmd *cobra.Command, cfg *am.Config, runID string) (*session, error) {
	log := logger.Logger.With(logger.FieldRunID, runID)
	s := &session{cfg: cfg, log: log, runID: runID}

	profile, err := storefront.LoadProfile(cfg.Profile.Path)
	if err != nil {
		return nil, err
	}
	s.profile = profile

	database, err := db.OpenWithMigrations(cfg.GetDatabasePath(), log)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open run history")
	}
	s.db = database
	s.history = pipeline.NewHistory(database)

	s.clock = newClock(ctx, cfg, log)

	hook, err := notify.New(cfg.Notify.Command, cfg.Notify.Timeout(), log)
	if err != nil {
		s.close()
		return nil, err
	}
	s.hook = hook

	verbosity, _ := cmd.Flags().GetCount("verbose")
	s.emitter = pulse.NewMultiEmitter()
	if display.ShouldOutputJSON(cmd) {
		s.emitter.Add(display.NewJSONEmitter(os.Stdout))
	} else {
		s.emitter.Add(display.NewCLIEmitter(verbosity, !cfg.Log.JSON))
	}

	if addr := cfg.Server.ProgressAddr; addr != "" {
		progress := server.New(log.Named("progress"))
		srvCtx, stop := context.WithCancel(context.Background())
		s.stopSrv = stop
		s.srvDone = make(chan struct{})
		go func() {
			defer close(s.srvDone)
			if err := progress.ListenAndServe(srvCtx, addr); err != nil {
				log.Warnw("Progress server stopped", logger.FieldError, err)
			}
		}()
		s.emitter.Add(progress)
	}

	browserCfg := chrome.Config{
		Headless:         cfg.Browser.Headless,
		UserAgent:        cfg.Browser.UserAgent,
		OperationTimeout: time.Duration(cfg.Browser.TimeoutMS) * time.Millisecond,
		MinNavInterval:   time.Duration(cfg.Browser.MinNavIntervalMS) * time.Millisecond,
		WindowWidth:      cfg.Browser.WindowWidth,
		WindowHeight:     cfg.Browser.WindowHeight,
	}
	browser, err := chrome.Launch(ctx, browserCfg, log.Named("chrome"))
	if err != nil {
		s.close()
		return nil, err
	}
	s.browser = browser
	return s, nil
}

func newClock(ctx context.Context, cfg *am.Config, log *zap.SugaredLogger) clock.Clock {
	if cfg.Clock.Disabled {
		return clock.System{}
	}
	c := clock.NewNTP(cfg.Clock.NTPServer, log.Named("clock"),
		clock.WithTimeout(cfg.Clock.NTPTimeout()),
		clock.WithResyncInterval(cfg.Clock.Resync()),
	)
	if offset, err := c.Sync(ctx); err != nil {
		log.Warnw("Network time unavailable, using local clock", "server", c.Server(), logger.FieldError, err)
	} else {
		log.Infow("Network time synced", "server", c.Server(), "offset", offset)
	}
	return c
}

// pipelineConfig maps configuration onto a pipeline config
func (s *session) pipelineConfig(target *clock.TargetMoment, monitor pulse.PollConfig, allowFinalize bool) pipeline.Config {
	pc := pipeline.DefaultConfig()
	pc.Target = target
	pc.Monitor = monitor
	pc.Retry = s.cfg.Retry.Policy()
	pc.AllowFinalize = allowFinalize
	pc.StrictConfirm = s.cfg.Safety.StrictConfirm
	pc.StageTimeout = s.cfg.Timing.StageTimeout()
	return pc
}

func (s *session) pipelineOptions(kind, target string) []pipeline.Option {
	return []pipeline.Option{
		pipeline.WithRunID(s.runID),
		pipeline.WithClock(s.clock),
		pipeline.WithEmitter(s.emitter),
		pipeline.WithLogger(s.log),
		pipeline.WithTarget(kind, target),
	}
}

// finish records and announces a terminal outcome and turns it into the
// command's exit status
func (s *session) finish(out pipeline.Outcome) error {
	// The run context may already be cancelled; bookkeeping still happens.
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Notify.Timeout()+5*time.Second)
	defer cancel()

	if err := s.history.Record(ctx, out); err != nil {
		s.log.Warnw("Failed to record run", logger.FieldError, err)
	}
	if err := s.hook.Run(ctx, out); err != nil {
		s.log.Warnw("Notify command failed", logger.FieldError, err)
	}
	if code := out.ExitCode(); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// holdForManualCompletion keeps a visible browser open until the user has
// finished checkout by hand
func (s *session) holdForManualCompletion(ctx context.Context, out pipeline.Outcome) {
	if !out.ManualCompletion || s.cfg.Browser.Headless || s.browser == nil {
		return
	}
	pterm.Info.Println("Complete the purchase in the browser window, then press Enter to close it")
	done := make(chan struct{})
	go func() {
		var line string
		_, _ = fmt.Fscanln(os.Stdin, &line)
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (s *session) close() {
	if s.browser != nil {
		s.browser.Close()
	}
	if s.stopSrv != nil {
		s.stopSrv()
		<-s.srvDone
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Debugw("Failed to close database", logger.FieldError, err)
		}
	}
}
