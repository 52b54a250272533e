package parsers

import (
	"net/url"
	"regexp"
	"strings"
)

// unsafeSchemes are URL prefixes that must never be imported.
var unsafeSchemes = []string{"javascript:", "data:", "mailto:", "tel:", "file:"}

var (
	httpScheme    = regexp.MustCompile(`(?i)^https?://`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// maxTitleLen caps cleaned bookmark titles.
const maxTitleLen = 200

// NormalizeURL validates and canonicalizes a bookmark URL. It reports
// false for unsafe schemes and unparseable values; bare domains get an
// https:// prefix. It never panics, whatever the input.
func NormalizeURL(raw string) (string, bool) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", false
	}

	lower := strings.ToLower(candidate)
	for _, scheme := range unsafeSchemes {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}

	if !httpScheme.MatchString(candidate) {
		candidate = "https://" + candidate
	}

	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		return "", false
	}
	return u.String(), true
}

// CleanTitle trims the title, collapses internal whitespace runs to
// single spaces and caps the result at 200 characters. It never fails;
// an empty result is the caller's decision to act on.
func CleanTitle(raw string) string {
	title := whitespaceRun.ReplaceAllString(strings.TrimSpace(raw), " ")
	runes := []rune(title)
	if len(runes) > maxTitleLen {
		runes = runes[:maxTitleLen]
	}
	return string(runes)
}
