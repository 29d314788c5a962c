package storefront

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/dropwatch/errors"
	"github.com/teranos/dropwatch/match"
	"github.com/teranos/dropwatch/page/pagetest"
)

func fastProfile() Profile {
	p := Default()
	p.Timing = Timing{}
	return p
}

const productURL = "https://www.lazada.sg/products/pokemon-151-booster-i3012345678.html"

func TestValidateURL(t *testing.T) {
	p := Default()
	assert.NoError(t, ValidateURL(p, productURL))
	assert.NoError(t, ValidateURL(p, "https://lazada.sg/catalog/?q=pokemon"))

	for _, bad := range []string{
		"",
		"lazada.sg/products/x",
		"ftp://www.lazada.sg/products/x",
		"https://www.shopee.sg/products/x",
		"https://www.lazada.sg/shop/acme",
		"https://evil-lazada.sg/products/x",
	} {
		err := ValidateURL(p, bad)
		assert.True(t, errors.IsInvalidRequestError(err), "expected %q to be rejected", bad)
	}
}

func TestAvailabilityChain(t *testing.T) {
	ctx := context.Background()
	chain := AvailabilityChain(Default())

	t.Run("enabled add-to-cart is available", func(t *testing.T) {
		pg := pagetest.New(productURL)
		pg.SetText("button.add-to-cart-buy-now-btn", "Add to Cart")
		res := match.Evaluate(ctx, chain, pg)
		assert.True(t, res.Matched)
		assert.Equal(t, "selector:button.add-to-cart-buy-now-btn", res.MatcherID)
	})

	t.Run("disabled control is not available", func(t *testing.T) {
		pg := pagetest.New(productURL)
		pg.Set("button.add-to-cart-buy-now-btn", &pagetest.Node{Text: "Add to Cart", Disabled: true})
		assert.False(t, match.Evaluate(ctx, chain, pg).Matched)
	})

	t.Run("text-matched buy now", func(t *testing.T) {
		pg := pagetest.New(productURL)
		pg.Set("button", &pagetest.Node{Text: "Share"}, &pagetest.Node{Text: "BUY NOW"})
		res := match.Evaluate(ctx, chain, pg)
		assert.True(t, res.Matched)
		assert.Equal(t, "BUY NOW", res.Evidence)
	})

	t.Run("out of stock vetoes a visible button", func(t *testing.T) {
		pg := pagetest.New(productURL)
		pg.SetText("button.add-to-cart-buy-now-btn", "Add to Cart")
		pg.SetText("body", "Pokemon 151 Booster ... Sold Out")
		res := match.Evaluate(ctx, chain, pg)
		assert.False(t, res.Matched)
		assert.Equal(t, "text:body~Sold Out", res.MatcherID)
	})
}

func TestReadProductInfo(t *testing.T) {
	pg := pagetest.New(productURL)
	pg.SetText(".pdp-product-title", "Pokemon 151 Booster Bundle")
	pg.SetText(".pdp-price", "$39.90")

	info := ReadProductInfo(context.Background(), pg, Default())
	assert.Equal(t, "Pokemon 151 Booster Bundle", info.Title)
	assert.Equal(t, "$39.90", info.Price)
	assert.False(t, info.Available)
}

func TestAcquire(t *testing.T) {
	ctx := context.Background()
	log := zaptest.NewLogger(t).Sugar()

	t.Run("clicks add to cart and closes modal", func(t *testing.T) {
		pg := pagetest.New(productURL)
		pg.Set(".pdp-button-add-to-cart", &pagetest.Node{
			Text: "Add to Cart",
			OnClick: func(p *pagetest.Page) {
				p.SetText(".modal-close", "x")
			},
		})

		require.NoError(t, Acquire(ctx, pg, fastProfile(), false, log))
		assert.Equal(t, 1, pg.Clicks(".pdp-button-add-to-cart"))
		assert.Equal(t, 1, pg.Clicks(".modal-close"))
	})

	t.Run("buy now uses its own targets", func(t *testing.T) {
		pg := pagetest.New(productURL)
		pg.SetText(".pdp-button-add-to-cart", "Add to Cart")
		pg.SetText("button.buy-now-btn", "Buy Now")

		require.NoError(t, Acquire(ctx, pg, fastProfile(), true, log))
		assert.Equal(t, 1, pg.Clicks("button.buy-now-btn"))
		assert.Equal(t, 0, pg.Clicks(".pdp-button-add-to-cart"))
	})

	t.Run("missing control is an action failure", func(t *testing.T) {
		err := Acquire(ctx, pagetest.New(productURL), fastProfile(), false, log)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrActionFailed))
	})

	t.Run("skips a disabled control for an enabled one", func(t *testing.T) {
		pg := pagetest.New(productURL)
		pg.Set("button.add-to-cart-buy-now-btn", &pagetest.Node{Text: "Add to Cart", Disabled: true})
		pg.SetText(".pdp-button-add-to-cart", "Add to Cart")

		require.NoError(t, Acquire(ctx, pg, fastProfile(), false, log))
		assert.Equal(t, 0, pg.Clicks("button.add-to-cart-buy-now-btn"))
		assert.Equal(t, 1, pg.Clicks(".pdp-button-add-to-cart"))
	})

	t.Run("only disabled controls is an action failure", func(t *testing.T) {
		pg := pagetest.New(productURL)
		pg.Set("button.add-to-cart-buy-now-btn", &pagetest.Node{Text: "Add to Cart", Disabled: true})

		err := Acquire(ctx, pg, fastProfile(), false, log)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrActionFailed))
		assert.Equal(t, 0, pg.Clicks("button.add-to-cart-buy-now-btn"))
	})

	t.Run("click failure is an action failure", func(t *testing.T) {
		pg := pagetest.New(productURL)
		pg.Set("button.add-to-cart-buy-now-btn", &pagetest.Node{ClickErr: errors.New("node is detached")})
		err := Acquire(ctx, pg, fastProfile(), false, log)
		assert.True(t, errors.Is(err, errors.ErrActionFailed))
	})
}

func TestConfirm(t *testing.T) {
	ctx := context.Background()

	t.Run("cart count", func(t *testing.T) {
		pg := pagetest.New(productURL)
		pg.SetText(".cart-num", "2")
		c, err := Confirm(ctx, pg, fastProfile())
		require.NoError(t, err)
		assert.Equal(t, Confirmation{Confirmed: true, Via: "cart_count", Evidence: "2"}, c)
		assert.Empty(t, pg.Navigations())
	})

	t.Run("zero count falls through to indicator", func(t *testing.T) {
		pg := pagetest.New(productURL)
		pg.SetText(".cart-num", "0")
		pg.SetText(".success-message", "Added!")
		c, err := Confirm(ctx, pg, fastProfile())
		require.NoError(t, err)
		assert.True(t, c.Confirmed)
		assert.Equal(t, "indicator", c.Via)
	})

	t.Run("cart page not empty", func(t *testing.T) {
		pg := pagetest.New(productURL)
		c, err := Confirm(ctx, pg, fastProfile())
		require.NoError(t, err)
		assert.True(t, c.Confirmed)
		assert.Equal(t, "cart_page", c.Via)
		assert.Equal(t, []string{"https://www.lazada.sg/cart"}, pg.Navigations())
	})

	t.Run("cart page empty", func(t *testing.T) {
		pg := pagetest.New(productURL)
		pg.OnNavigate = func(p *pagetest.Page, url string) {
			p.SetText(".empty-cart", "Your shopping cart is empty")
		}
		c, err := Confirm(ctx, pg, fastProfile())
		require.NoError(t, err)
		assert.False(t, c.Confirmed)
	})
}

func TestProceedToCheckout(t *testing.T) {
	ctx := context.Background()
	pg := pagetest.New(productURL)
	pg.OnNavigate = func(p *pagetest.Page, url string) {
		p.Set("button", &pagetest.Node{Text: "Proceed to Checkout", OnClick: func(p *pagetest.Page) {
			p.SetURL("https://checkout.lazada.sg/shipping")
			p.SetText(".delivery-address", "1 Main Street")
			p.SetText(".order-total", "Total: SGD 39.90")
		}})
	}

	summary, err := ProceedToCheckout(ctx, pg, fastProfile(), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.lazada.sg/cart"}, pg.Navigations())
	assert.Equal(t, 1, pg.Clicks("button"))
	assert.True(t, summary.AddressFound)
	assert.Equal(t, "Total: SGD 39.90", summary.Total)
}

func TestProceedToCheckout_AlreadyOnCart(t *testing.T) {
	pg := pagetest.New("https://www.lazada.sg/cart")
	pg.SetText(".checkout-button", "Checkout")

	_, err := ProceedToCheckout(context.Background(), pg, fastProfile(), nil)
	require.NoError(t, err)
	assert.Empty(t, pg.Navigations())
}

func TestProceedToCheckout_NoControl(t *testing.T) {
	pg := pagetest.New("https://www.lazada.sg/cart")
	_, err := ProceedToCheckout(context.Background(), pg, fastProfile(), nil)
	assert.True(t, errors.Is(err, errors.ErrActionFailed))
}

func TestPlaceOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("placed", func(t *testing.T) {
		pg := pagetest.New("https://checkout.lazada.sg/shipping")
		pg.Set(".place-order-btn", &pagetest.Node{OnClick: func(p *pagetest.Page) {
			p.SetText(".order-success", "Thank you for your order")
		}})
		status, err := PlaceOrder(ctx, pg, fastProfile(), 0, nil)
		require.NoError(t, err)
		assert.Equal(t, OrderPlaced, status)
	})

	t.Run("unconfirmed", func(t *testing.T) {
		pg := pagetest.New("https://checkout.lazada.sg/shipping")
		pg.SetText("button.next-btn", "Place order")
		status, err := PlaceOrder(ctx, pg, fastProfile(), 0, nil)
		require.NoError(t, err)
		assert.Equal(t, OrderUnconfirmed, status)
	})

	t.Run("cancel during safety pause never clicks", func(t *testing.T) {
		pg := pagetest.New("https://checkout.lazada.sg/shipping")
		pg.SetText(".place-order-btn", "Place Order")

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := PlaceOrder(ctx, pg, fastProfile(), time.Hour, nil)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 0, pg.Clicks(".place-order-btn"))
	})
}
