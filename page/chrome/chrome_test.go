package chrome

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/teranos/dropwatch/page"
)

func TestJSString_EscapesSelectors(t *testing.T) {
	assert.Equal(t, `"button[data-spm='buy']"`, jsString(`button[data-spm='buy']`))
	assert.Equal(t, `"a\"b"`, jsString(`a"b`))
}

func TestNth(t *testing.T) {
	got := nth(page.Element{Selector: ".add-to-cart-buy-now-btn", Index: 2})
	assert.Equal(t, `document.querySelectorAll(".add-to-cart-buy-now-btn")[2]`, got)

	card := page.Element{Selector: ".Bm3ON", Index: 4}
	got = nth(page.Element{Selector: "a", Index: 0, Parent: &card})
	assert.Equal(t, `document.querySelectorAll(".Bm3ON")[4]?.querySelectorAll("a")[0]`, got)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Headless)
	assert.Equal(t, 10*time.Second, cfg.OperationTimeout)
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
}
