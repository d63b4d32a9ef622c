package model

// Tab is one open tab as enumerated by a host.
type Tab struct {
	// ID is the host-specific tab identifier (a DevTools target ID,
	// a list index, or a file path).
	ID string `json:"id"`

	// Title is the tab title. It may be empty until the document is captured.
	Title string `json:"title"`

	// URL is the address currently shown in the tab.
	URL string `json:"url"`
}

// Document is the document captured from a single tab.
type Document struct {
	// URL is the document URL after redirects.
	URL string `json:"url"`

	// BaseURL is the document base URL used to resolve relative links.
	// Empty means "derive it from URL and any <base href> element".
	BaseURL string `json:"baseUrl,omitempty"`

	// Title is the document title, used when the host did not report one.
	Title string `json:"title,omitempty"`

	// HTML is the serialized document markup.
	HTML string `json:"-"`
}

// LinkRecord is one anchor whose visible text matched the download policy.
// URL is always an absolute URI.
type LinkRecord struct {
	// Text is the trimmed visible text of the anchor.
	Text string `json:"text"`

	// URL is the anchor target resolved against the document base URL.
	URL string `json:"url"`

	// Context is the beginning of the anchor's serialized markup.
	Context string `json:"context"`
}

// TabResult holds the download links found in one tab.
// Only tabs with at least one link produce a TabResult.
type TabResult struct {
	// TabTitle is the title of the tab that was scanned.
	TabTitle string `json:"tabTitle"`

	// TabURL is the URL of the tab that was scanned.
	TabURL string `json:"tabUrl"`

	// Links are the matches in document order.
	Links []LinkRecord `json:"downloadLinks"`
}
