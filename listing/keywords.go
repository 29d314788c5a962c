package listing

import "strings"

// Keywords match titles by case-insensitive substring. Any keyword is
// enough; an empty set matches nothing.
type Keywords []string

// NewKeywords lowercases and drops blank entries
func NewKeywords(raw ...string) Keywords {
	kw := make(Keywords, 0, len(raw))
	for _, k := range raw {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			kw = append(kw, k)
		}
	}
	return kw
}

// Match returns the first keyword contained in title
func (kw Keywords) Match(title string) (string, bool) {
	lower := strings.ToLower(title)
	for _, k := range kw {
		if strings.Contains(lower, k) {
			return k, true
		}
	}
	return "", false
}

// Filter keeps items whose title matches, preserving order
func Filter(items []Item, kw Keywords) []Item {
	var out []Item
	for _, it := range items {
		if _, ok := kw.Match(it.Title); ok {
			out = append(out, it)
		}
	}
	return out
}
