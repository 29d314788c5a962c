// Package storefront binds the generic pipeline to a concrete shop: its
// selectors, URLs and the page actions for each stage.
package storefront

import (
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/teranos/dropwatch/errors"
	"github.com/teranos/dropwatch/listing"
	"github.com/teranos/dropwatch/match"
)

// Target identifies a page control: elements matching CSS, optionally
// narrowed to those whose text contains Text (case-insensitive).
type Target struct {
	CSS  string `toml:"css"`
	Text string `toml:"text,omitempty"`
}

// Matcher converts the target to a match.Matcher
func (t Target) Matcher(requireEnabled bool) match.Matcher {
	if t.Text != "" {
		return match.Text{CSS: t.CSS, Substring: t.Text, RequireEnabled: requireEnabled}
	}
	return match.Selector{CSS: t.CSS, AllowDisabled: !requireEnabled}
}

func matchers(targets []Target, requireEnabled bool) []match.Matcher {
	out := make([]match.Matcher, 0, len(targets))
	for _, t := range targets {
		out = append(out, t.Matcher(requireEnabled))
	}
	return out
}

// Timing holds the fixed pauses of the storefront flow
type Timing struct {
	ModalWaitMS   int `toml:"modal_wait_ms"`
	OrderSettleMS int `toml:"order_settle_ms"`
}

// ModalWait is the pause before looking for a post-add modal
func (t Timing) ModalWait() time.Duration {
	return time.Duration(t.ModalWaitMS) * time.Millisecond
}

// OrderSettle is the pause after placing an order before inspecting the result
func (t Timing) OrderSettle() time.Duration {
	return time.Duration(t.OrderSettleMS) * time.Millisecond
}

// Profile is the complete description of one storefront
type Profile struct {
	Name         string   `toml:"name"`
	BaseURL      string   `toml:"base_url"`
	CartURL      string   `toml:"cart_url"`
	AllowedHosts []string `toml:"allowed_hosts"`
	ProductPaths []string `toml:"product_paths"`

	AddToCart       []Target `toml:"add_to_cart"`
	BuyNow          []Target `toml:"buy_now"`
	OutOfStock      []Target `toml:"out_of_stock"`
	CartCount       []Target `toml:"cart_count"`
	AddedIndicators []Target `toml:"added_indicators"`
	CartEmpty       []Target `toml:"cart_empty"`
	CartIcon        []Target `toml:"cart_icon"`
	Checkout        []Target `toml:"checkout"`
	PlaceOrder      []Target `toml:"place_order"`
	OrderSuccess    []Target `toml:"order_success"`
	ModalClose      []Target `toml:"modal_close"`
	ProductTitle    []Target `toml:"product_title"`
	ProductPrice    []Target `toml:"product_price"`
	ShippingAddress []Target `toml:"shipping_address"`
	OrderTotal      []Target `toml:"order_total"`
	ListingCards    []string `toml:"listing_cards"`
	ListingLink     string   `toml:"listing_link"`
	ListingTitles   []string `toml:"listing_titles"`

	Timing Timing `toml:"timing"`
}

// Default returns the built-in Lazada Singapore profile
func Default() Profile {
	return Profile{
		Name:         "lazada-sg",
		BaseURL:      "https://www.lazada.sg",
		CartURL:      "https://www.lazada.sg/cart",
		AllowedHosts: []string{"lazada.sg"},
		ProductPaths: []string{"/products/", "/catalog/"},

		AddToCart: []Target{
			{CSS: "button.add-to-cart-buy-now-btn"},
			{CSS: `button[class*="add-to-cart"]`},
			{CSS: "button", Text: "Add to Cart"},
			{CSS: ".pdp-button-add-to-cart"},
			{CSS: `[data-spm-anchor-id*="cart"]`},
		},
		BuyNow: []Target{
			{CSS: "button.buy-now-btn"},
			{CSS: `button[class*="buy-now"]`},
			{CSS: "button", Text: "Buy Now"},
			{CSS: ".pdp-button-buy-now"},
		},
		OutOfStock: []Target{
			{CSS: "body", Text: "Out of Stock"},
			{CSS: "body", Text: "Currently Unavailable"},
			{CSS: "body", Text: "Sold Out"},
			{CSS: ".pdp-product-not-available"},
		},
		CartCount: []Target{
			{CSS: ".cart-num"},
			{CSS: `[class*="cart-num"]`},
			{CSS: ".cart-count"},
		},
		AddedIndicators: []Target{
			{CSS: "body", Text: "Added to Cart"},
			{CSS: "body", Text: "Item added"},
			{CSS: "body", Text: "Successfully added"},
			{CSS: ".success-message"},
		},
		CartEmpty: []Target{
			{CSS: "body", Text: "Your shopping cart is empty"},
			{CSS: "body", Text: "No items"},
			{CSS: ".empty-cart"},
		},
		CartIcon: []Target{
			{CSS: ".cart-icon"},
			{CSS: `[class*="cart-icon"]`},
			{CSS: `a[href*="/cart"]`},
		},
		Checkout: []Target{
			{CSS: "button", Text: "Proceed to Checkout"},
			{CSS: "button", Text: "Checkout"},
			{CSS: "button", Text: "Check out"},
			{CSS: ".checkout-button"},
			{CSS: `[class*="checkout-btn"]`},
			{CSS: `button[data-spm*="checkout"]`},
		},
		PlaceOrder: []Target{
			{CSS: "button", Text: "Place Order"},
			{CSS: "button", Text: "Confirm Order"},
			{CSS: ".place-order-btn"},
			{CSS: `[class*="place-order"]`},
			{CSS: "button.next-btn"},
		},
		OrderSuccess: []Target{
			{CSS: "body", Text: "Order Placed"},
			{CSS: "body", Text: "Thank you for your order"},
			{CSS: "body", Text: "Order confirmed"},
			{CSS: ".order-success"},
		},
		ModalClose: []Target{
			{CSS: "button", Text: "Continue Shopping"},
			{CSS: "button", Text: "Close"},
			{CSS: ".modal-close"},
			{CSS: `[class*="close-button"]`},
		},
		ProductTitle: []Target{
			{CSS: "h1.pdp-mod-product-badge-title"},
			{CSS: ".pdp-product-title"},
			{CSS: `h1[class*="title"]`},
		},
		ProductPrice: []Target{
			{CSS: ".pdp-price"},
			{CSS: `span[class*="price"]`},
			{CSS: ".price-current"},
		},
		ShippingAddress: []Target{
			{CSS: ".delivery-address"},
			{CSS: `[class*="address"]`},
		},
		OrderTotal: []Target{
			{CSS: ".order-total"},
			{CSS: `[class*="total-price"]`},
		},

		ListingCards:  []string{".Bm3ON", "[data-item-id]", ".item-card", `[class*="item"]`, ".product-item"},
		ListingLink:   `a[href*="/products/"]`,
		ListingTitles: []string{".RfADt", ".title", `[class*="title"]`, ".name", `[class*="name"]`, "img[alt]"},

		Timing: Timing{ModalWaitMS: 300, OrderSettleMS: 3000},
	}
}

// ListingScanner builds a listing scanner from the profile's card selectors
func (p Profile) ListingScanner() listing.Scanner {
	return listing.Scanner{
		CardSelectors:  p.ListingCards,
		LinkSelector:   p.ListingLink,
		TitleSelectors: p.ListingTitles,
		BaseURL:        p.BaseURL,
	}
}

// LoadProfile overlays a TOML file onto Default. Keys absent from the file
// keep their default values; a present list replaces the default list.
func LoadProfile(path string) (Profile, error) {
	p := Default()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p, errors.Wrapf(err, "read profile %s", path)
	}

	var overlay Profile
	md, err := toml.Decode(string(data), &overlay)
	if err != nil {
		return p, errors.WithHint(
			errors.Wrapf(err, "parse profile %s", path),
			"profile files use the keys printed by `dropwatch am profile`")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return p, errors.NewInvalidRequestError("unknown profile keys in %s: %s", path, strings.Join(keys, ", "))
	}

	mergeDefined(md, reflect.ValueOf(&p).Elem(), reflect.ValueOf(overlay), nil)
	return p, p.Validate()
}

// mergeDefined copies fields from src to dst whose TOML key the file
// defined, descending into nested tables.
func mergeDefined(md toml.MetaData, dst, src reflect.Value, prefix []string) {
	t := dst.Type()
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("toml"), ",")
		if name == "" {
			continue
		}
		key := append(append([]string(nil), prefix...), name)
		if !md.IsDefined(key...) {
			continue
		}
		if t.Field(i).Type.Kind() == reflect.Struct {
			mergeDefined(md, dst.Field(i), src.Field(i), key)
			continue
		}
		dst.Field(i).Set(src.Field(i))
	}
}

// Validate checks the fields every flow needs
func (p Profile) Validate() error {
	if p.CartURL == "" {
		return errors.NewInvalidRequestError("profile %q has no cart_url", p.Name)
	}
	if len(p.AddToCart) == 0 && len(p.BuyNow) == 0 {
		return errors.NewInvalidRequestError("profile %q has no add_to_cart or buy_now targets", p.Name)
	}
	for _, list := range [][]Target{p.AddToCart, p.BuyNow, p.OutOfStock, p.Checkout, p.PlaceOrder} {
		for _, t := range list {
			if strings.TrimSpace(t.CSS) == "" {
				return errors.NewInvalidRequestError("profile %q has a target without css", p.Name)
			}
		}
	}
	return nil
}

// Encode writes the profile as TOML
func (p Profile) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(p)
}
