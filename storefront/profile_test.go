package storefront

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/dropwatch/errors"
)

func TestDefault_IsValid(t *testing.T) {
	p := Default()
	require.NoError(t, p.Validate())
	assert.Equal(t, "https://www.lazada.sg/cart", p.CartURL)
	assert.Equal(t, "button.add-to-cart-buy-now-btn", p.AddToCart[0].CSS)
}

func TestLoadProfile_EmptyPathIsDefault(t *testing.T) {
	p, err := LoadProfile("")
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestLoadProfile_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shop.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
name = "acme"
cart_url = "https://acme.test/basket"
allowed_hosts = ["acme.test"]

[[add_to_cart]]
css = "#buy"

[[add_to_cart]]
css = "button"
text = "In den Warenkorb"

[timing]
modal_wait_ms = 0
`), 0o644))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "acme", p.Name)
	assert.Equal(t, []Target{{CSS: "#buy"}, {CSS: "button", Text: "In den Warenkorb"}}, p.AddToCart)
	assert.Equal(t, 0, p.Timing.ModalWaitMS)
	assert.Equal(t, 3000, p.Timing.OrderSettleMS, "unset keys keep defaults")
	assert.Equal(t, Default().BuyNow, p.BuyNow)
}

func TestLoadProfile_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("add_to_kart = []\n"), 0o644))

	_, err := LoadProfile(path)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))
	assert.Contains(t, err.Error(), "add_to_kart")
}

func TestLoadProfile_Missing(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestProfile_EncodeRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Default().Encode(&buf))

	path := filepath.Join(t.TempDir(), "dump.toml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestProfile_ValidateRejectsEmptyCSS(t *testing.T) {
	p := Default()
	p.Checkout = append(p.Checkout, Target{Text: "Pay"})
	assert.True(t, errors.IsInvalidRequestError(p.Validate()))
}

func TestProfile_ListingScanner(t *testing.T) {
	p := Default()
	s := p.ListingScanner()
	assert.Equal(t, p.ListingCards, s.CardSelectors)
	assert.Equal(t, `a[href*="/products/"]`, s.LinkSelector)
	assert.Equal(t, "https://www.lazada.sg", s.BaseURL)
}
