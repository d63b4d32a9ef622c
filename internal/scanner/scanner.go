package scanner

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/nao1215/dlcollect/internal/model"
	"golang.org/x/net/html"
)

// DefaultContextLimit is the number of characters of anchor markup kept
// in LinkRecord.Context.
const DefaultContextLimit = 200

// errNotAbsolute is returned when a resolved target still has no scheme.
var errNotAbsolute = errors.New("resolved URL is not absolute")

// Scanner finds download links in a captured document.
// A Scanner has no per-scan state and is safe for concurrent use.
type Scanner struct {
	// logger receives per-candidate warnings and per-scan summaries.
	logger *slog.Logger

	// contextLimit caps the length of LinkRecord.Context in runes.
	contextLimit int
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// WithContextLimit sets how many characters of anchor markup are kept.
// Values below 1 keep the default.
func WithContextLimit(limit int) Option {
	return func(s *Scanner) {
		if limit > 0 {
			s.contextLimit = limit
		}
	}
}

// New creates a Scanner.
func New(opts ...Option) *Scanner {
	s := &Scanner{
		contextLimit: DefaultContextLimit,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Scan returns every matching link in doc, in document order.
// It never fails; malformed markup or targets only shrink the result.
func (s *Scanner) Scan(doc model.Document, allowVariations bool) []model.LinkRecord {
	links := make([]model.LinkRecord, 0)

	root, err := html.Parse(strings.NewReader(doc.HTML))
	if err != nil {
		s.logger.Warn("failed to parse document", "url", doc.URL, "error", err)
		return links
	}

	base := s.documentBase(doc, root)

	anchors := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href, ok := getAttr(n, "href"); ok && href != "" {
				anchors++
				if link, ok := s.candidate(n, href, base, allowVariations); ok {
					links = append(links, link)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	s.logger.Debug("scanned document",
		"url", doc.URL,
		"anchors", anchors,
		"matches", len(links),
	)

	return links
}

// candidate applies the match policy to one anchor and builds its record.
func (s *Scanner) candidate(n *html.Node, href string, base *url.URL, allowVariations bool) (model.LinkRecord, bool) {
	text := strings.TrimSpace(textContent(n))
	if !MatchText(text, allowVariations) {
		return model.LinkRecord{}, false
	}
	if IsPlaceholderHref(href) {
		return model.LinkRecord{}, false
	}

	resolved, err := resolve(base, href)
	if err != nil {
		s.logger.Warn("invalid URL found", "href", href, "error", err)
		return model.LinkRecord{}, false
	}

	return model.LinkRecord{
		Text:    text,
		URL:     resolved,
		Context: s.snippet(n),
	}, true
}

// documentBase picks the URL relative links are resolved against.
// A base URL reported by the host wins; otherwise the first <base href>
// is resolved against the document URL. It returns nil when nothing
// usable is available, in which case only absolute targets survive.
func (s *Scanner) documentBase(doc model.Document, root *html.Node) *url.URL {
	if doc.BaseURL != "" {
		u, err := url.Parse(doc.BaseURL)
		if err == nil {
			return u
		}
		s.logger.Warn("invalid base URL", "baseUrl", doc.BaseURL, "error", err)
	}

	var docURL *url.URL
	if doc.URL != "" {
		u, err := url.Parse(doc.URL)
		if err != nil {
			s.logger.Warn("invalid document URL", "url", doc.URL, "error", err)
		} else {
			docURL = u
		}
	}

	if href := findBaseHref(root); href != "" {
		ref, err := url.Parse(strings.TrimSpace(href))
		if err == nil {
			if docURL != nil {
				return docURL.ResolveReference(ref)
			}
			if ref.IsAbs() {
				return ref
			}
		}
	}

	return docURL
}

// snippet renders the anchor and keeps the first contextLimit characters.
func (s *Scanner) snippet(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return truncateRunes(buf.String(), s.contextLimit)
}

// resolve resolves href against base and insists on an absolute result.
func resolve(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}

	resolved := ref
	if base != nil {
		resolved = base.ResolveReference(ref)
	}
	if !resolved.IsAbs() {
		return "", fmt.Errorf("%w: %s", errNotAbsolute, href)
	}
	if strings.EqualFold(resolved.Scheme, "javascript") {
		return "", fmt.Errorf("%w: %s", errNotAbsolute, href)
	}

	return resolved.String(), nil
}

// textContent concatenates every descendant text node, like the DOM's
// Node.textContent.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// findBaseHref returns the href of the first <base> element, if any.
func findBaseHref(root *html.Node) string {
	var found string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "base" {
			if href, ok := getAttr(n, "href"); ok && href != "" {
				found = href
				return true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(root)
	return found
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Namespace == "" && attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

// truncateRunes keeps at most limit runes of s.
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
