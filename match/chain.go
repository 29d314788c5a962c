package match

import (
	"context"

	"github.com/teranos/dropwatch/page"
)

// Chain decides availability. Negatives veto: any negative hit means
// "not available" even if a positive would also match. Positives are
// tried in order and the first match wins.
type Chain struct {
	Negatives []Matcher
	Positives []Matcher
}

// Evaluate runs the chain against p. Matcher errors are treated as
// "no match" and never returned.
func Evaluate(ctx context.Context, chain Chain, p page.Page) Result {
	for _, m := range chain.Negatives {
		res, err := m.Match(ctx, p)
		if err == nil && res.Matched {
			return Result{Matched: false, MatcherID: m.ID(), Evidence: res.Evidence}
		}
	}
	for _, m := range chain.Positives {
		res, err := m.Match(ctx, p)
		if err == nil && res.Matched {
			res.MatcherID = m.ID()
			return res
		}
	}
	return Result{}
}

// Predicate adapts the chain for pulse.Poll. onMatch receives the deciding
// result on every evaluation.
func (c Chain) Predicate(p page.Page, onMatch func(Result)) func(ctx context.Context) (bool, error) {
	return func(ctx context.Context) (bool, error) {
		res := Evaluate(ctx, c, p)
		if onMatch != nil {
			onMatch(res)
		}
		return res.Matched, nil
	}
}

// First returns the first match among matchers, in order. Found is false
// when nothing matched.
func First(ctx context.Context, matchers []Matcher, p page.Page) (Result, bool) {
	for _, m := range matchers {
		res, err := m.Match(ctx, p)
		if err == nil && res.Matched {
			return res, true
		}
	}
	return Result{}, false
}
