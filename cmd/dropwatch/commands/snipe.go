package commands

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/teranos/dropwatch/errors"
	"github.com/teranos/dropwatch/logger"
	"github.com/teranos/dropwatch/pipeline"
	"github.com/teranos/dropwatch/sym"
)

// SnipeCmd watches a single product page
var SnipeCmd = &cobra.Command{
	Use:   "snipe [product-url]",
	Short: sym.So + " Wait for a product to become buyable, then add it to cart",
	Long: sym.So + ` snipe - watch one product page through its drop.

The page is opened ahead of time. At listing time minus the lead
(timing.lead_seconds) dropwatch starts checking availability every
timing.check_interval_ms until it can act or timing.max_wait_seconds
passes. It then adds the product to the cart (or uses buy-now), confirms
the cart, and goes to checkout. The order is placed only with
safety.auto_purchase.

Exit codes: 0 done, 10 monitoring failed, 11 acquiring failed,
12 confirming failed, 13 finalizing failed, 20 cancelled.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSnipe,
}

func init() {
	addRunFlags(SnipeCmd)
}

func runSnipe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}
	url := cfg.Target.URL
	if len(args) == 1 {
		url = args[0]
	}
	if url == "" {
		return errors.WithHint(errors.NewInvalidRequestError("no product URL given"),
			"pass it as an argument or set target.url in am.toml")
	}

	target, err := cfg.TargetMoment(url)
	if err != nil {
		return err
	}
	allowFinalize, err := confirmAutoPurchase(cmd, cfg)
	if err != nil {
		return err
	}

	s, err := openSession(ctx, cmd, cfg, uuid.NewString())
	if err != nil {
		return err
	}
	defer s.close()

	product := pipeline.ProductTarget{
		Page:        s.browser,
		Profile:     s.profile,
		URL:         url,
		UseBuyNow:   cfg.Target.UseBuyNow,
		SafetyPause: cfg.Safety.Pause(),
		Log:         s.log,
	}
	info, err := product.Preload(ctx)
	if err != nil {
		return err
	}
	if info.Title != "" {
		s.emitter.EmitInfo(sym.Am + " " + info.Title + " " + info.Price)
	}

	p, err := pipeline.New(
		s.pipelineConfig(target, cfg.Timing.PollConfig(), allowFinalize),
		pipeline.ProductActions(product),
		s.pipelineOptions(pipeline.KindProduct, url)...,
	)
	if err != nil {
		return err
	}

	logger.StageInfow(s.log, "not_started", "Snipe ready", logger.FieldURL, url, "auto_purchase", allowFinalize)
	out := p.Run(ctx)
	s.holdForManualCompletion(ctx, out)
	return s.finish(out)
}
