// Package geotime resolves the timezone a drop time is written in and
// parses listing times against it.
package geotime

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/teranos/dropwatch/errors"
)

var locationKeywordTimezones = map[string]string{
	"singapore":     "Asia/Singapore",
	"kuala lumpur":  "Asia/Kuala_Lumpur",
	"malaysia":      "Asia/Kuala_Lumpur",
	"jakarta":       "Asia/Jakarta",
	"indonesia":     "Asia/Jakarta",
	"bangkok":       "Asia/Bangkok",
	"thailand":      "Asia/Bangkok",
	"manila":        "Asia/Manila",
	"philippines":   "Asia/Manila",
	"ho chi minh":   "Asia/Ho_Chi_Minh",
	"vietnam":       "Asia/Ho_Chi_Minh",
	"hong kong":     "Asia/Hong_Kong",
	"taipei":        "Asia/Taipei",
	"tokyo":         "Asia/Tokyo",
	"japan":         "Asia/Tokyo",
	"seoul":         "Asia/Seoul",
	"korea":         "Asia/Seoul",
	"sydney":        "Australia/Sydney",
	"australia":     "Australia/Sydney",
	"london":        "Europe/London",
	"amsterdam":     "Europe/Amsterdam",
	"berlin":        "Europe/Berlin",
	"paris":         "Europe/Paris",
	"new york":      "America/New_York",
	"san francisco": "America/Los_Angeles",
	"los angeles":   "America/Los_Angeles",
}

var countryCodeTimezones = map[string]string{
	"sg": "Asia/Singapore",
	"my": "Asia/Kuala_Lumpur",
	"id": "Asia/Jakarta",
	"th": "Asia/Bangkok",
	"ph": "Asia/Manila",
	"vn": "Asia/Ho_Chi_Minh",
	"hk": "Asia/Hong_Kong",
	"tw": "Asia/Taipei",
	"jp": "Asia/Tokyo",
	"kr": "Asia/Seoul",
	"au": "Australia/Sydney",
	"nz": "Pacific/Auckland",
	"uk": "Europe/London",
	"gb": "Europe/London",
	"nl": "Europe/Amsterdam",
	"de": "Europe/Berlin",
	"fr": "Europe/Paris",
	"us": "America/New_York",
}

var timezoneByAbbreviation = map[string]string{
	"sgt":  "Asia/Singapore",
	"myt":  "Asia/Kuala_Lumpur",
	"wib":  "Asia/Jakarta",
	"ict":  "Asia/Bangkok",
	"pht":  "Asia/Manila",
	"hkt":  "Asia/Hong_Kong",
	"jst":  "Asia/Tokyo",
	"kst":  "Asia/Seoul",
	"aest": "Australia/Sydney",
	"bst":  "Europe/London",
	"cet":  "Europe/Berlin",
	"cest": "Europe/Berlin",
	"est":  "America/New_York",
	"edt":  "America/New_York",
	"pst":  "America/Los_Angeles",
	"pdt":  "America/Los_Angeles",
}

// ListingTimeLayouts are the accepted listing time formats, tried in order.
// RFC 3339 carries its own offset; the rest are read in the target zone.
var ListingTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// NormalizeTimezone resolves user input into a valid IANA timezone. It
// accepts IANA names in any case, common abbreviations, city or country
// names and two-letter country codes.
func NormalizeTimezone(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", errors.NewInvalidRequestError("timezone cannot be empty")
	}
	if strings.EqualFold(trimmed, "local") {
		return DetectLocalTimezone()
	}

	if isValidTimezone(trimmed) && !hasIncorrectCapitalization(trimmed) {
		return trimmed, nil
	}
	if candidate := sanitizeTimezone(trimmed); isValidTimezone(candidate) {
		return candidate, nil
	}

	lower := strings.ToLower(trimmed)
	if tz, ok := timezoneByAbbreviation[lower]; ok {
		return tz, nil
	}
	if tz, ok := countryCodeTimezones[lower]; ok {
		return tz, nil
	}
	if tz := GuessTimezoneFromLocation(lower); tz != "" {
		return tz, nil
	}

	return "", errors.WithHint(
		errors.NewInvalidRequestError("unknown timezone: %s", input),
		"use an IANA name such as Asia/Singapore")
}

// GuessTimezoneFromLocation uses keyword heuristics to derive a timezone.
func GuessTimezoneFromLocation(location string) string {
	lower := strings.ToLower(strings.TrimSpace(location))
	for keyword, tz := range locationKeywordTimezones {
		if strings.Contains(lower, keyword) {
			return tz
		}
	}
	return ""
}

// GuessTimezoneFromURL maps a store URL's country TLD to its timezone,
// e.g. www.lazada.sg to Asia/Singapore. Returns "" for generic TLDs.
func GuessTimezoneFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	labels := strings.Split(strings.ToLower(u.Hostname()), ".")
	if len(labels) < 2 {
		return ""
	}
	return countryCodeTimezones[labels[len(labels)-1]]
}

// ParseListingTime parses s in the given IANA zone
func ParseListingTime(s, tz string) (time.Time, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "load timezone %s", tz)
	}
	s = strings.TrimSpace(s)
	for _, layout := range ListingTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.WithHint(
		errors.NewInvalidRequestError("unrecognised listing time %q", s),
		"use \"2006-01-02 15:04:05\" or RFC 3339")
}

// DetectLocalTimezone attempts to determine the host operating system timezone.
func DetectLocalTimezone() (string, error) {
	if tz := os.Getenv("TZ"); tz != "" && isValidTimezone(tz) {
		return tz, nil
	}
	if name := time.Now().Location().String(); name != "" && name != "Local" && isValidTimezone(name) {
		return name, nil
	}
	if data, err := os.ReadFile("/etc/timezone"); err == nil {
		if tz := sanitizeTimezone(string(data)); isValidTimezone(tz) {
			return tz, nil
		}
	}
	if tz, err := readZoneinfoSymlink("/etc/localtime"); err == nil && tz != "" {
		return tz, nil
	}
	return "", errors.New("could not detect local timezone: tried TZ, time.Local, /etc/timezone and /etc/localtime")
}

func readZoneinfoSymlink(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	idx := strings.Index(resolved, "zoneinfo")
	if idx == -1 {
		return "", errors.New("zoneinfo segment not found")
	}
	candidate := strings.TrimPrefix(resolved[idx+len("zoneinfo"):], string(filepath.Separator))
	candidate = strings.ReplaceAll(candidate, string(os.PathSeparator), "/")
	if isValidTimezone(candidate) {
		return candidate, nil
	}
	return "", errors.Newf("invalid timezone %q from %s", candidate, path)
}

func sanitizeTimezone(tz string) string {
	trimmed := strings.Trim(strings.TrimSpace(tz), "\"'")
	trimmed = strings.ReplaceAll(trimmed, " ", "_")
	parts := strings.Split(trimmed, "/")
	for i, part := range parts {
		parts[i] = titleWords(part)
	}
	return strings.Join(parts, "/")
}

// titleWords capitalizes each underscore-separated word: ho_chi_minh -> Ho_Chi_Minh
func titleWords(s string) string {
	words := strings.Split(strings.ToLower(s), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, "_")
}

func isValidTimezone(tz string) bool {
	if tz == "" || strings.EqualFold(tz, "local") {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// hasIncorrectCapitalization reports names LoadLocation accepts on
// case-insensitive filesystems but which are not canonical
func hasIncorrectCapitalization(tz string) bool {
	if strings.ToLower(tz) == tz {
		return true
	}
	for _, part := range strings.Split(tz, "/") {
		if len(part) > 0 && part[0] >= 'a' && part[0] <= 'z' {
			return true
		}
	}
	return false
}
