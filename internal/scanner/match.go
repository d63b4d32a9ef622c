package scanner

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// downloadWord is the folded form of the text every match is built around.
const downloadWord = "download"

// variationPattern matches "download" as a standalone word in any case.
var variationPattern = regexp.MustCompile(`(?i)\bdownload\b`)

// MatchText reports whether the trimmed anchor text satisfies the match policy.
//
// Exact matches ("Download", "DOWNLOAD") always count. With allowVariations,
// text containing the standalone word ("Download Now", "Please download")
// counts too. Text where "download" is only part of a longer word
// ("Downloaded", "Downloads") never counts.
func MatchText(text string, allowVariations bool) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}

	// cases.Caser is stateful, so each call gets its own.
	if cases.Fold().String(trimmed) == downloadWord {
		return true
	}

	return allowVariations && variationPattern.MatchString(trimmed)
}

// IsPlaceholderHref reports whether an href is a no-op target that must
// never be exported: empty, a bare fragment, or a javascript: pseudo-URI
// such as "javascript:void(0)".
func IsPlaceholderHref(href string) bool {
	h := strings.TrimSpace(href)
	if h == "" || h == "#" {
		return true
	}
	return strings.HasPrefix(strings.ToLower(h), "javascript:")
}
