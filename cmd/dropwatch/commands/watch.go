package commands

import (
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/teranos/dropwatch/display"
	"github.com/teranos/dropwatch/errors"
	"github.com/teranos/dropwatch/listing"
	"github.com/teranos/dropwatch/logger"
	"github.com/teranos/dropwatch/pipeline"
	"github.com/teranos/dropwatch/pulse"
	"github.com/teranos/dropwatch/sym"
)

// WatchCmd watches a store listing for new matching items
var WatchCmd = &cobra.Command{
	Use:   "watch [store-url]",
	Short: sym.Ix + " Watch a store listing for new items matching keywords",
	Long: sym.Ix + ` watch - watch a store listing for a new item.

Items already listed when the watch starts are ignored. The listing is
reloaded every timing.listing_interval_ms (at most
timing.max_reloads_per_minute times a minute) and the first new item
whose title contains any keyword is opened and added to the cart.

With --once the listing is scanned a single time and every matching item
is printed; nothing is bought.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	addRunFlags(WatchCmd)
	WatchCmd.Flags().StringSliceP("keyword", "k", nil, "Keyword to match in item titles (repeatable; overrides target.keywords)")
	WatchCmd.Flags().Bool("once", false, "Scan the listing once, print matches and exit")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}
	storeURL := cfg.Target.StoreURL
	if len(args) == 1 {
		storeURL = args[0]
	}
	if storeURL == "" {
		return errors.WithHint(errors.NewInvalidRequestError("no store URL given"),
			"pass it as an argument or set target.store_url in am.toml")
	}
	keywords := cfg.Target.Keywords
	if kw, _ := cmd.Flags().GetStringSlice("keyword"); len(kw) > 0 {
		keywords = kw
	}
	kw := listing.NewKeywords(keywords...)
	if len(kw) == 0 {
		return errors.WithHint(errors.NewInvalidRequestError("no keywords given"),
			"use -k or set target.keywords; an empty keyword list matches nothing")
	}
	once, _ := cmd.Flags().GetBool("once")

	moment, err := cfg.TargetMoment(storeURL)
	if err != nil {
		return err
	}
	allowFinalize := false
	if !once {
		if allowFinalize, err = confirmAutoPurchase(cmd, cfg); err != nil {
			return err
		}
	}

	runID := uuid.NewString()
	s, err := openSession(ctx, cmd, cfg, runID)
	if err != nil {
		return err
	}
	defer s.close()

	watcher := listing.NewWatcher(listing.WatcherConfig{
		Scanner:  s.profile.ListingScanner(),
		Keywords: kw,
		Limiter:  pulse.NewLimiter(cfg.Timing.MaxReloadsPerMinute),
		Recorder: listing.NewSQLStore(s.db),
		RunID:    runID,
		Log:      s.log.Named("listing"),
	})

	if once {
		return scanOnce(cmd, s, watcher, storeURL)
	}

	lt := pipeline.ListingTarget{
		Page:        s.browser,
		Profile:     s.profile,
		StoreURL:    storeURL,
		Watcher:     watcher,
		UseBuyNow:   cfg.Target.UseBuyNow,
		SafetyPause: cfg.Safety.Pause(),
		Log:         s.log,
	}
	baseline, err := lt.Preload(ctx)
	if err != nil {
		return err
	}
	s.emitter.EmitInfo(sym.Ix + " baseline: " + strconv.Itoa(baseline) + " items already listed")

	p, err := pipeline.New(
		s.pipelineConfig(moment, cfg.Timing.ListingPollConfig(), allowFinalize),
		pipeline.ListingActions(lt),
		s.pipelineOptions(pipeline.KindListing, storeURL)...,
	)
	if err != nil {
		return err
	}

	logger.StageInfow(s.log, "not_started", "Watch ready",
		logger.FieldURL, storeURL, "keywords", []string(kw), "auto_purchase", allowFinalize)
	out := p.Run(ctx)
	s.holdForManualCompletion(ctx, out)
	return s.finish(out)
}

func scanOnce(cmd *cobra.Command, s *session, w *listing.Watcher, storeURL string) error {
	ctx := cmd.Context()
	if err := s.browser.Navigate(ctx, storeURL); err != nil {
		return errors.Wrap(err, "failed to load store listing")
	}
	items, err := w.ScanOnce(ctx, s.browser)
	if err != nil {
		return err
	}
	logger.StageInfow(s.log, "monitoring", "Listing scanned", logger.FieldCount, len(items))
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(items)
	}
	return display.RenderItems(os.Stdout, items)
}
