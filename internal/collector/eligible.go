package collector

import "strings"

// internalPrefixes are URL prefixes of browser-internal pages. Content
// scripts cannot run there, and they never contain user download links.
var internalPrefixes = []string{
	"chrome://",
	"chrome-extension://",
	"chrome-untrusted://",
	"chrome-search://",
	"edge://",
	"about:",
	"moz-extension://",
	"devtools://",
	"view-source:",
}

// IsEligible reports whether a tab with this URL is scanned.
// Tabs with no URL are not scanned.
func IsEligible(tabURL string) bool {
	u := strings.TrimSpace(tabURL)
	if u == "" {
		return false
	}
	lower := strings.ToLower(u)
	for _, prefix := range internalPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return true
}
