// Package listing detects new items on a store listing page: it scans item
// cards, remembers what it has seen and reports keyword matches among the
// items that appeared since the baseline.
package listing

import (
	"net/url"
	"strings"

	"github.com/teranos/dropwatch/errors"
)

// Item is one product card on a listing page. Identity is ID only.
type Item struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ExtractID derives a stable identifier from a product URL: the token after
// the last "-i<digit>" marker in the final path segment, up to the first
// '.'. Without a marker the host and path (no query, no fragment) are used.
func ExtractID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return stripQuery(rawURL)
	}

	segment := u.Path
	if i := strings.LastIndex(segment, "/"); i >= 0 {
		segment = segment[i+1:]
	}

	if idx := lastItemMarker(segment); idx >= 0 {
		token := segment[idx+2:]
		if dot := strings.IndexByte(token, '.'); dot >= 0 {
			token = token[:dot]
		}
		if token != "" {
			return token
		}
	}

	return u.Host + u.Path
}

// lastItemMarker finds the last "-i" followed by a digit
func lastItemMarker(s string) int {
	for i := len(s) - 3; i >= 0; i-- {
		if s[i] == '-' && s[i+1] == 'i' && s[i+2] >= '0' && s[i+2] <= '9' {
			return i
		}
	}
	return -1
}

func stripQuery(s string) string {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		return s[:i]
	}
	return s
}

// Resolve makes href absolute against base
func Resolve(base, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", errors.Wrapf(err, "invalid link %q", href)
	}
	if ref.IsAbs() || base == "" {
		return ref.String(), nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrapf(err, "invalid base URL %q", base)
	}
	return b.ResolveReference(ref).String(), nil
}

// SeenSet remembers item IDs for one run. It only grows. Not safe for
// concurrent mutation; the pipeline owns it from a single goroutine.
type SeenSet struct {
	ids map[string]struct{}
}

// NewSeenSet creates an empty set
func NewSeenSet() *SeenSet {
	return &SeenSet{ids: make(map[string]struct{})}
}

// Add records id; repeated adds are no-ops
func (s *SeenSet) Add(id string) {
	s.ids[id] = struct{}{}
}

func (s *SeenSet) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *SeenSet) Len() int {
	return len(s.ids)
}

// Seed marks items as seen without reporting them
func Seed(seen *SeenSet, items []Item) {
	for _, it := range items {
		seen.Add(it.ID)
	}
}

// Diff returns items not in seen, in scan order and without duplicates,
// then adds them to seen so each ID is reported at most once.
func Diff(items []Item, seen *SeenSet) []Item {
	var fresh []Item
	for _, it := range items {
		if seen.Has(it.ID) {
			continue
		}
		seen.Add(it.ID)
		fresh = append(fresh, it)
	}
	return fresh
}
