package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/dropwatch/errors"
	"github.com/teranos/dropwatch/listing"
	"github.com/teranos/dropwatch/logger"
	"github.com/teranos/dropwatch/match"
	"github.com/teranos/dropwatch/page"
	"github.com/teranos/dropwatch/storefront"
)

// Target kinds recorded in history
const (
	KindProduct = "product"
	KindListing = "listing"
)

// ProductTarget is a single product page watched until it can be bought
type ProductTarget struct {
	Page        page.Page
	Profile     storefront.Profile
	URL         string
	UseBuyNow   bool
	SafetyPause time.Duration
	Log         *zap.SugaredLogger
}

// Preload opens the product page ahead of the wait and reads what it shows
func (t ProductTarget) Preload(ctx context.Context) (storefront.ProductInfo, error) {
	if err := storefront.ValidateURL(t.Profile, t.URL); err != nil {
		return storefront.ProductInfo{}, err
	}
	if err := t.Page.Navigate(ctx, t.URL); err != nil {
		return storefront.ProductInfo{}, errors.Wrap(err, "failed to load product page")
	}
	info := storefront.ReadProductInfo(ctx, t.Page, t.Profile)
	log := orNop(t.Log)
	log.Infow("Product page loaded",
		logger.FieldTitle, info.Title, "price", info.Price, "available", info.Available)
	return info, nil
}

// ProductActions builds the stage actions for a product page. Readiness
// is the profile's availability chain.
func ProductActions(t ProductTarget) Actions {
	log := orNop(t.Log)
	var last match.Result
	ready := storefront.AvailabilityChain(t.Profile).Predicate(t.Page, func(r match.Result) { last = r })

	return Actions{
		Ready: ready,
		Signal: func() Signal {
			return Signal{MatcherID: last.MatcherID, Evidence: last.Evidence}
		},
		Acquire: func(ctx context.Context) error {
			return storefront.Acquire(ctx, t.Page, t.Profile, t.UseBuyNow, log)
		},
		Confirm:  confirmFunc(t.Page, t.Profile, log),
		Prepare:  prepareFunc(t.Page, t.Profile, t.UseBuyNow, log),
		Finalize: finalizeFunc(t.Page, t.Profile, t.SafetyPause, log),
	}
}

// ListingTarget is a store listing watched for new items matching keywords
type ListingTarget struct {
	Page        page.Page
	Profile     storefront.Profile
	StoreURL    string
	Watcher     *listing.Watcher
	UseBuyNow   bool
	SafetyPause time.Duration
	Log         *zap.SugaredLogger
}

// Preload opens the listing and records the baseline of existing items
func (t ListingTarget) Preload(ctx context.Context) (int, error) {
	if err := t.Page.Navigate(ctx, t.StoreURL); err != nil {
		return 0, errors.Wrap(err, "failed to load store listing")
	}
	return t.Watcher.Baseline(ctx, t.Page)
}

// ListingActions builds the stage actions for a listing. Readiness is a
// new matching item; acquiring first opens that item's page.
func ListingActions(t ListingTarget) Actions {
	log := orNop(t.Log)
	var found *listing.Item

	return Actions{
		Ready: func(ctx context.Context) (bool, error) {
			item, err := t.Watcher.Check(ctx, t.Page)
			if err != nil {
				return false, err
			}
			if item == nil {
				return false, nil
			}
			found = item
			return true, nil
		},
		Signal: func() Signal {
			if found == nil {
				return Signal{}
			}
			return Signal{MatcherID: "listing.keywords", Evidence: found.Title, Item: found}
		},
		Acquire: func(ctx context.Context) error {
			if found == nil {
				return errors.AssertionFailedf("acquire without a matched item")
			}
			current, err := t.Page.CurrentURL(ctx)
			if err != nil || !strings.HasPrefix(current, found.URL) {
				if err := t.Page.Navigate(ctx, found.URL); err != nil {
					return errors.Mark(errors.Wrapf(err, "open item %s", found.ID), errors.ErrActionFailed)
				}
			}
			return storefront.Acquire(ctx, t.Page, t.Profile, t.UseBuyNow, log)
		},
		Confirm:  confirmFunc(t.Page, t.Profile, log),
		Prepare:  prepareFunc(t.Page, t.Profile, t.UseBuyNow, log),
		Finalize: finalizeFunc(t.Page, t.Profile, t.SafetyPause, log),
	}
}

func confirmFunc(pg page.Page, p storefront.Profile, log *zap.SugaredLogger) func(context.Context) (bool, error) {
	return func(ctx context.Context) (bool, error) {
		c, err := storefront.Confirm(ctx, pg, p)
		if err != nil {
			return false, err
		}
		log.Debugw("Confirmation checked", "confirmed", c.Confirmed, "via", c.Via, logger.FieldEvidence, c.Evidence)
		return c.Confirmed, nil
	}
}

// Buy-now skips the cart, so the checkout page is already open
func prepareFunc(pg page.Page, p storefront.Profile, useBuyNow bool, log *zap.SugaredLogger) func(context.Context) error {
	if useBuyNow {
		return nil
	}
	return func(ctx context.Context) error {
		summary, err := storefront.ProceedToCheckout(ctx, pg, p, log)
		if err != nil {
			return err
		}
		log.Infow("Checkout ready", "address_found", summary.AddressFound, "total", summary.Total)
		return nil
	}
}

func finalizeFunc(pg page.Page, p storefront.Profile, pause time.Duration, log *zap.SugaredLogger) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		return storefront.PlaceOrder(ctx, pg, p, pause, log)
	}
}

func orNop(log *zap.SugaredLogger) *zap.SugaredLogger {
	if log == nil {
		return zap.NewNop().Sugar()
	}
	return log
}
