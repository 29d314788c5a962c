// Package chrome implements page.Page on a Chrome instance driven over the
// DevTools protocol.
package chrome

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/dropwatch/errors"
	"github.com/teranos/dropwatch/page"
)

// DefaultUserAgent is sent unless Config.UserAgent is set
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Config controls the browser session
type Config struct {
	Headless         bool
	UserAgent        string
	OperationTimeout time.Duration // Bounds each Page call
	MinNavInterval   time.Duration // Minimum spacing between Navigate/Reload
	WindowWidth      int
	WindowHeight     int
}

// DefaultConfig mirrors a visible desktop session
func DefaultConfig() Config {
	return Config{
		Headless:         false,
		UserAgent:        DefaultUserAgent,
		OperationTimeout: 10 * time.Second,
		MinNavInterval:   500 * time.Millisecond,
		WindowWidth:      1920,
		WindowHeight:     1080,
	}
}

// Browser is a page.Page backed by a single Chrome tab
type Browser struct {
	cfg         Config
	ctx         context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
	navLimiter  *rate.Limiter
	log         *zap.SugaredLogger
}

// Launch starts Chrome and opens a tab. Close releases both.
func Launch(ctx context.Context, cfg Config, log *zap.SugaredLogger) (*Browser, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = DefaultConfig().OperationTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Debugf))

	// First Run starts the browser process
	startCtx, cancelStart := context.WithTimeout(tabCtx, 30*time.Second)
	defer cancelStart()
	stop := context.AfterFunc(ctx, cancelStart)
	defer stop()
	if err := chromedp.Run(startCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, errors.Wrap(err, "failed to start browser")
	}

	limit := rate.Inf
	if cfg.MinNavInterval > 0 {
		limit = rate.Every(cfg.MinNavInterval)
	}

	log.Infow("Browser started", "headless", cfg.Headless, "timeout", cfg.OperationTimeout)
	return &Browser{
		cfg:         cfg,
		ctx:         tabCtx,
		cancelAlloc: cancelAlloc,
		cancelTab:   cancelTab,
		navLimiter:  rate.NewLimiter(limit, 1),
		log:         log,
	}, nil
}

// Close shuts the tab and the browser process
func (b *Browser) Close() {
	b.cancelTab()
	b.cancelAlloc()
}

// run executes actions in the tab, bounded by the operation timeout and by ctx
func (b *Browser) run(ctx context.Context, op string, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(b.ctx, b.cfg.OperationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(opCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if opCtx.Err() == context.DeadlineExceeded {
			return errors.Mark(errors.Wrapf(err, "%s timed out after %s", op, b.cfg.OperationTimeout), errors.ErrTimeout)
		}
		return errors.Wrapf(err, "%s failed", op)
	}
	return nil
}

// jsString renders s as a JavaScript string literal
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// nth renders a JavaScript expression for el, undefined when detached
func nth(el page.Element) string {
	if el.Parent != nil {
		return fmt.Sprintf("%s?.querySelectorAll(%s)[%d]", nth(*el.Parent), jsString(el.Selector), el.Index)
	}
	return fmt.Sprintf("document.querySelectorAll(%s)[%d]", jsString(el.Selector), el.Index)
}

// elementResult distinguishes a detached element from an empty value
type elementResult struct {
	Found bool   `json:"found"`
	Value string `json:"value"`
	Flag  bool   `json:"flag"`
}

func (b *Browser) evalElement(ctx context.Context, op string, el page.Element, body string) (elementResult, error) {
	script := fmt.Sprintf(`(() => { const e = %s; if (!e) return {found: false}; %s })()`, nth(el), body)
	var res elementResult
	if err := b.run(ctx, op, chromedp.Evaluate(script, &res)); err != nil {
		return res, err
	}
	if !res.Found {
		return res, errors.NewNotFoundError("element %s detached", el)
	}
	return res, nil
}

func (b *Browser) Locate(ctx context.Context, selector string) ([]page.Element, error) {
	var count int
	script := fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(selector))
	if err := b.run(ctx, "locate", chromedp.Evaluate(script, &count)); err != nil {
		return nil, err
	}
	els := make([]page.Element, count)
	for i := range els {
		els[i] = page.Element{Selector: selector, Index: i}
	}
	return els, nil
}

func (b *Browser) LocateIn(ctx context.Context, parent page.Element, selector string) ([]page.Element, error) {
	var count int
	script := fmt.Sprintf(`(%s?.querySelectorAll(%s).length) || 0`, nth(parent), jsString(selector))
	if err := b.run(ctx, "locate", chromedp.Evaluate(script, &count)); err != nil {
		return nil, err
	}
	scope := parent
	els := make([]page.Element, count)
	for i := range els {
		els[i] = page.Element{Selector: selector, Index: i, Parent: &scope}
	}
	return els, nil
}

func (b *Browser) IsEnabled(ctx context.Context, el page.Element) (bool, error) {
	res, err := b.evalElement(ctx, "is-enabled", el,
		`return {found: true, flag: !(e.disabled || e.getAttribute('aria-disabled') === 'true' || e.classList.contains('disabled'))};`)
	return res.Flag, err
}

// Click dispatches a real mouse click on the element. With force, or for
// scoped elements, the click is delivered through the DOM, bypassing
// overlays and visibility.
func (b *Browser) Click(ctx context.Context, el page.Element, force bool) error {
	if force || el.Parent != nil {
		_, err := b.evalElement(ctx, "click", el,
			`e.scrollIntoView({block: 'center'}); e.click(); return {found: true};`)
		return err
	}

	var nodes []*cdp.Node
	if err := b.run(ctx, "click", chromedp.Nodes(el.Selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return err
	}
	if el.Index >= len(nodes) {
		return errors.NewNotFoundError("element %s detached", el)
	}
	return b.run(ctx, "click", chromedp.MouseClickNode(nodes[el.Index]))
}

func (b *Browser) Navigate(ctx context.Context, url string) error {
	if err := b.navLimiter.Wait(ctx); err != nil {
		return err
	}
	b.log.Debugw("Navigating", "url", url)
	return b.run(ctx, "navigate", chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
}

func (b *Browser) Reload(ctx context.Context) error {
	if err := b.navLimiter.Wait(ctx); err != nil {
		return err
	}
	return b.run(ctx, "reload", chromedp.Reload(), chromedp.WaitReady("body", chromedp.ByQuery))
}

func (b *Browser) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := b.run(ctx, "location", chromedp.Location(&url))
	return url, err
}

func (b *Browser) TextOf(ctx context.Context, el page.Element) (string, error) {
	res, err := b.evalElement(ctx, "text", el,
		`return {found: true, value: (e.innerText || e.textContent || '').trim()};`)
	return res.Value, err
}

func (b *Browser) AttrOf(ctx context.Context, el page.Element, name string) (string, error) {
	res, err := b.evalElement(ctx, "attr", el,
		fmt.Sprintf(`return {found: true, value: e.getAttribute(%s) || ''};`, jsString(name)))
	return res.Value, err
}

var _ page.Page = (*Browser)(nil)
