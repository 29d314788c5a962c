// Package match detects page states with prioritized matcher chains.
package match

import (
	"context"
	"strings"

	"github.com/teranos/dropwatch/page"
)

// maxEvidence caps evidence text; longer matches report the needle instead
const maxEvidence = 120

// Result of evaluating a matcher or a chain
type Result struct {
	Matched   bool
	MatcherID string
	Evidence  string
	Element   *page.Element // First matching element, when the matcher locates one
}

// Matcher detects one page state
type Matcher interface {
	ID() string
	Match(ctx context.Context, p page.Page) (Result, error)
}

// Selector matches when an element matching CSS is present and, unless
// AllowDisabled, enabled. Evidence is the text of the first such element.
type Selector struct {
	CSS           string
	AllowDisabled bool
	Name          string // Optional ID override
}

func (s Selector) ID() string {
	if s.Name != "" {
		return s.Name
	}
	return "selector:" + s.CSS
}

func (s Selector) Match(ctx context.Context, p page.Page) (Result, error) {
	els, err := p.Locate(ctx, s.CSS)
	if err != nil {
		return Result{}, err
	}
	for _, el := range els {
		if !s.AllowDisabled {
			enabled, err := p.IsEnabled(ctx, el)
			if err != nil || !enabled {
				continue
			}
		}
		text, _ := p.TextOf(ctx, el)
		el := el
		return Result{Matched: true, MatcherID: s.ID(), Evidence: text, Element: &el}, nil
	}
	return Result{MatcherID: s.ID()}, nil
}

// Text matches when any element under CSS contains Substring, ignoring
// case. With RequireEnabled, disabled elements are skipped.
type Text struct {
	CSS            string
	Substring      string
	RequireEnabled bool
}

func (t Text) ID() string {
	return "text:" + t.CSS + "~" + t.Substring
}

func (t Text) Match(ctx context.Context, p page.Page) (Result, error) {
	els, err := p.Locate(ctx, t.CSS)
	if err != nil {
		return Result{}, err
	}
	needle := strings.ToLower(t.Substring)
	for _, el := range els {
		text, err := p.TextOf(ctx, el)
		if err != nil || !strings.Contains(strings.ToLower(text), needle) {
			continue
		}
		if t.RequireEnabled {
			if enabled, err := p.IsEnabled(ctx, el); err != nil || !enabled {
				continue
			}
		}
		evidence := text
		if len(evidence) > maxEvidence {
			evidence = t.Substring
		}
		el := el
		return Result{Matched: true, MatcherID: t.ID(), Evidence: evidence, Element: &el}, nil
	}
	return Result{MatcherID: t.ID()}, nil
}

// URLContains matches when the current URL contains Fragment
type URLContains struct {
	Fragment string
}

func (u URLContains) ID() string {
	return "url:" + u.Fragment
}

func (u URLContains) Match(ctx context.Context, p page.Page) (Result, error) {
	url, err := p.CurrentURL(ctx)
	if err != nil {
		return Result{}, err
	}
	if strings.Contains(url, u.Fragment) {
		return Result{Matched: true, MatcherID: u.ID(), Evidence: url}, nil
	}
	return Result{MatcherID: u.ID()}, nil
}

// Func adapts an arbitrary predicate
type Func struct {
	Name string
	Fn   func(ctx context.Context, p page.Page) (bool, string, error)
}

func (f Func) ID() string { return f.Name }

func (f Func) Match(ctx context.Context, p page.Page) (Result, error) {
	ok, evidence, err := f.Fn(ctx, p)
	if err != nil {
		return Result{}, err
	}
	return Result{Matched: ok, MatcherID: f.Name, Evidence: evidence}, nil
}

// Selectors builds enabled-only Selector matchers in priority order
func Selectors(css ...string) []Matcher {
	out := make([]Matcher, 0, len(css))
	for _, c := range css {
		out = append(out, Selector{CSS: c})
	}
	return out
}

// PresenceSelectors builds Selector matchers that ignore the enabled state
func PresenceSelectors(css ...string) []Matcher {
	out := make([]Matcher, 0, len(css))
	for _, c := range css {
		out = append(out, Selector{CSS: c, AllowDisabled: true})
	}
	return out
}
