// Package page defines the capability the pipeline uses to observe and act
// on a remote document. Implementations live in subpackages: chrome drives
// a real browser, pagetest is an in-memory fake.
package page

import (
	"context"
	"fmt"
)

// Element is an opaque handle to the Index-th match of Selector at the
// time it was located, searched within Parent when set. Handles are not
// stable across navigations.
type Element struct {
	Selector string
	Index    int
	Parent   *Element
}

func (e Element) String() string {
	if e.Parent != nil {
		return fmt.Sprintf("%s > %s[%d]", e.Parent, e.Selector, e.Index)
	}
	return fmt.Sprintf("%s[%d]", e.Selector, e.Index)
}

// Page is the capability for observing and acting on a remote page.
// Every method is bounded by ctx and by the implementation's own timeout.
type Page interface {
	// Locate returns handles for all elements currently matching selector.
	// No match is an empty slice, not an error.
	Locate(ctx context.Context, selector string) ([]Element, error)

	// LocateIn is Locate scoped to the descendants of parent
	LocateIn(ctx context.Context, parent Element, selector string) ([]Element, error)

	// IsEnabled reports whether the element is interactable
	IsEnabled(ctx context.Context, el Element) (bool, error)

	// Click activates the element. force bypasses visibility and overlay checks.
	Click(ctx context.Context, el Element, force bool) error

	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	CurrentURL(ctx context.Context) (string, error)

	// TextOf returns the element's visible text
	TextOf(ctx context.Context, el Element) (string, error)

	// AttrOf returns an attribute value, empty when absent
	AttrOf(ctx context.Context, el Element, name string) (string, error)
}

// Title returns the document title via the <title> element, empty when the
// page has none.
func Title(ctx context.Context, p Page) string {
	els, err := p.Locate(ctx, "title")
	if err != nil || len(els) == 0 {
		return ""
	}
	text, err := p.TextOf(ctx, els[0])
	if err != nil {
		return ""
	}
	return text
}
