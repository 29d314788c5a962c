package listing

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/dropwatch/page"
)

// Scanner extracts items from a listing page. Card selectors are tried in
// order and the first that yields items wins. Within a card the first link
// matching LinkSelector gives the URL; TitleSelectors are tried in order,
// where selectors targeting img read the alt attribute. The link text is
// the last resort for the title.
type Scanner struct {
	CardSelectors  []string
	LinkSelector   string
	TitleSelectors []string
	BaseURL        string
	Log            *zap.SugaredLogger
}

// Scan returns the items currently on p. A card selector that errors is
// skipped; the error is returned only when no selector produced items and
// every one of them failed.
func (s Scanner) Scan(ctx context.Context, p page.Page) ([]Item, error) {
	log := s.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	var lastErr error
	failures := 0
	for _, cardSel := range s.CardSelectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cards, err := p.Locate(ctx, cardSel)
		if err != nil {
			lastErr = err
			failures++
			continue
		}
		if len(cards) == 0 {
			continue
		}

		var items []Item
		for _, card := range cards {
			if it, ok := s.readCard(ctx, p, card); ok {
				items = append(items, it)
			}
		}
		log.Debugw("Scanned listing", "selector", cardSel, "cards", len(cards), "items", len(items))
		if len(items) > 0 {
			return items, nil
		}
	}

	if failures > 0 && failures == len(s.CardSelectors) {
		return nil, lastErr
	}
	return nil, nil
}

func (s Scanner) readCard(ctx context.Context, p page.Page, card page.Element) (Item, bool) {
	links, err := p.LocateIn(ctx, card, s.LinkSelector)
	if err != nil || len(links) == 0 {
		return Item{}, false
	}
	href, err := p.AttrOf(ctx, links[0], "href")
	if err != nil || strings.TrimSpace(href) == "" {
		return Item{}, false
	}
	abs, err := Resolve(s.BaseURL, href)
	if err != nil {
		return Item{}, false
	}

	title := s.readTitle(ctx, p, card)
	if title == "" {
		title, _ = p.TextOf(ctx, links[0])
		title = strings.TrimSpace(title)
	}
	if title == "" {
		return Item{}, false
	}

	return Item{ID: ExtractID(abs), Title: title, URL: abs}, true
}

func (s Scanner) readTitle(ctx context.Context, p page.Page, card page.Element) string {
	for _, sel := range s.TitleSelectors {
		els, err := p.LocateIn(ctx, card, sel)
		if err != nil || len(els) == 0 {
			continue
		}
		var text string
		if strings.HasPrefix(sel, "img") {
			text, err = p.AttrOf(ctx, els[0], "alt")
		} else {
			text, err = p.TextOf(ctx, els[0])
		}
		if err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
	}
	return ""
}
