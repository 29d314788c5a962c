package storefront

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/dropwatch/errors"
	"github.com/teranos/dropwatch/match"
	"github.com/teranos/dropwatch/page"
)

// Order outcomes reported by PlaceOrder
const (
	OrderPlaced      = "placed"
	OrderUnconfirmed = "submitted_unconfirmed"
)

// AvailabilityChain decides whether the product can be bought: out-of-stock
// indicators veto, then add-to-cart and buy-now controls are tried in order.
// Controls must be enabled to count.
func AvailabilityChain(p Profile) match.Chain {
	positives := append(matchers(p.AddToCart, true), matchers(p.BuyNow, true)...)
	return match.Chain{
		Negatives: matchers(p.OutOfStock, false),
		Positives: positives,
	}
}

// ValidateURL accepts http(s) URLs on an allowed host whose path contains
// one of the profile's product path markers.
func ValidateURL(p Profile, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.WithHint(
			errors.NewInvalidRequestError("not an absolute http(s) URL: %q", raw),
			"pass the full product link copied from the browser")
	}

	if len(p.AllowedHosts) > 0 {
		host := strings.ToLower(u.Hostname())
		allowed := false
		for _, h := range p.AllowedHosts {
			h = strings.ToLower(h)
			if host == h || strings.HasSuffix(host, "."+h) {
				allowed = true
				break
			}
		}
		if !allowed {
			return errors.NewInvalidRequestError("host %s is not served by profile %q", u.Host, p.Name)
		}
	}

	path := strings.ToLower(u.Path)
	for _, marker := range p.ProductPaths {
		if strings.Contains(path, strings.ToLower(marker)) {
			return nil
		}
	}
	return errors.WithHintf(
		errors.NewInvalidRequestError("%q is not a product URL", raw),
		"product URLs contain one of: %s", strings.Join(p.ProductPaths, ", "))
}

// ProductInfo is what the product page shows before the drop
type ProductInfo struct {
	Title     string `json:"title"`
	Price     string `json:"price"`
	Available bool   `json:"available"`
}

// ReadProductInfo reads title, price and current availability
func ReadProductInfo(ctx context.Context, pg page.Page, p Profile) ProductInfo {
	var info ProductInfo
	if res, ok := match.First(ctx, matchers(p.ProductTitle, false), pg); ok {
		info.Title = res.Evidence
	}
	if info.Title == "" {
		info.Title = page.Title(ctx, pg)
	}
	if res, ok := match.First(ctx, matchers(p.ProductPrice, false), pg); ok {
		info.Price = res.Evidence
	}
	info.Available = match.Evaluate(ctx, AvailabilityChain(p), pg).Matched
	return info
}

// Acquire clicks the first enabled add-to-cart (or buy-now) control and
// dismisses any confirmation modal. Disabled controls are skipped. The
// click is forced so overlays and animations do not delay it.
func Acquire(ctx context.Context, pg page.Page, p Profile, useBuyNow bool, log *zap.SugaredLogger) error {
	log = orNop(log)
	targets, kind := p.AddToCart, "add-to-cart"
	if useBuyNow {
		targets, kind = p.BuyNow, "buy-now"
	}

	start := time.Now()
	res, ok := match.First(ctx, matchers(targets, true), pg)
	if !ok || res.Element == nil {
		return errors.NewActionFailedError("no enabled %s control found", kind)
	}
	if err := pg.Click(ctx, *res.Element, true); err != nil {
		return errors.Mark(errors.Wrapf(err, "click %s control", kind), errors.ErrActionFailed)
	}
	log.Infow("Clicked "+kind, "matcher", res.MatcherID, "duration_ms", time.Since(start).Milliseconds())

	if DismissModal(ctx, pg, p) {
		log.Debugw("Closed cart modal")
	}
	return nil
}

// DismissModal waits briefly for a post-add modal and closes the first one
// found. It never fails; the return reports whether a modal was closed.
func DismissModal(ctx context.Context, pg page.Page, p Profile) bool {
	if err := sleep(ctx, p.Timing.ModalWait()); err != nil {
		return false
	}
	res, ok := match.First(ctx, matchers(p.ModalClose, false), pg)
	if !ok || res.Element == nil {
		return false
	}
	return pg.Click(ctx, *res.Element, false) == nil
}

// Confirmation describes how an add-to-cart was verified
type Confirmation struct {
	Confirmed bool   `json:"confirmed"`
	Via       string `json:"via,omitempty"`
	Evidence  string `json:"evidence,omitempty"`
}

// Confirm checks, in order: a positive cart counter, an "added" indicator,
// then the cart page not showing an empty-cart indicator. Only navigation
// errors are returned.
func Confirm(ctx context.Context, pg page.Page, p Profile) (Confirmation, error) {
	if res, ok := match.First(ctx, matchers(p.CartCount, false), pg); ok {
		if n, err := strconv.Atoi(digits(res.Evidence)); err == nil && n > 0 {
			return Confirmation{Confirmed: true, Via: "cart_count", Evidence: res.Evidence}, nil
		}
	}

	if res, ok := match.First(ctx, matchers(p.AddedIndicators, false), pg); ok {
		return Confirmation{Confirmed: true, Via: "indicator", Evidence: res.Evidence}, nil
	}

	if err := pg.Navigate(ctx, p.CartURL); err != nil {
		return Confirmation{}, errors.Wrap(err, "open cart page")
	}
	if res, ok := match.First(ctx, matchers(p.CartEmpty, false), pg); ok {
		return Confirmation{Confirmed: false, Via: "cart_page", Evidence: res.Evidence}, nil
	}
	return Confirmation{Confirmed: true, Via: "cart_page"}, nil
}

// CheckoutSummary is what the checkout page showed before finalizing
type CheckoutSummary struct {
	AddressFound bool   `json:"address_found"`
	Total        string `json:"total,omitempty"`
}

// ProceedToCheckout opens the cart if needed and clicks the checkout
// control, then reads the shipping address and order total.
func ProceedToCheckout(ctx context.Context, pg page.Page, p Profile, log *zap.SugaredLogger) (CheckoutSummary, error) {
	log = orNop(log)

	current, err := pg.CurrentURL(ctx)
	if err != nil {
		return CheckoutSummary{}, errors.Wrap(err, "read current URL")
	}
	if !strings.Contains(current, "/cart") {
		if err := pg.Navigate(ctx, p.CartURL); err != nil {
			return CheckoutSummary{}, errors.Wrap(err, "open cart page")
		}
	}

	res, ok := match.First(ctx, matchers(p.Checkout, false), pg)
	if !ok || res.Element == nil {
		return CheckoutSummary{}, errors.NewActionFailedError("checkout control not found")
	}
	if err := pg.Click(ctx, *res.Element, true); err != nil {
		return CheckoutSummary{}, errors.Mark(errors.Wrap(err, "click checkout control"), errors.ErrActionFailed)
	}

	var summary CheckoutSummary
	_, summary.AddressFound = match.First(ctx, matchers(p.ShippingAddress, false), pg)
	if !summary.AddressFound {
		log.Warnw("No shipping address found on checkout page")
	}
	if res, ok := match.First(ctx, matchers(p.OrderTotal, false), pg); ok {
		summary.Total = res.Evidence
	}
	return summary, nil
}

// PlaceOrder waits out the safety pause, clicks the place-order control and
// inspects the page for a success indicator. Cancelling ctx during the
// pause aborts without clicking.
func PlaceOrder(ctx context.Context, pg page.Page, p Profile, safetyPause time.Duration, log *zap.SugaredLogger) (string, error) {
	log = orNop(log)

	if safetyPause > 0 {
		log.Warnw("Placing order after safety pause, cancel now to abort", "pause", safetyPause)
		if err := sleep(ctx, safetyPause); err != nil {
			return "", err
		}
	}

	res, ok := match.First(ctx, matchers(p.PlaceOrder, false), pg)
	if !ok || res.Element == nil {
		return "", errors.NewActionFailedError("place-order control not found")
	}
	if err := pg.Click(ctx, *res.Element, true); err != nil {
		return "", errors.Mark(errors.Wrap(err, "click place-order control"), errors.ErrActionFailed)
	}

	if err := sleep(ctx, p.Timing.OrderSettle()); err != nil {
		return "", err
	}
	if res, ok := match.First(ctx, matchers(p.OrderSuccess, false), pg); ok {
		log.Infow("Order placed", "evidence", res.Evidence)
		return OrderPlaced, nil
	}
	log.Warnw("Order submitted but confirmation unclear")
	return OrderUnconfirmed, nil
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func orNop(log *zap.SugaredLogger) *zap.SugaredLogger {
	if log == nil {
		return zap.NewNop().Sugar()
	}
	return log
}
