package host

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/nao1215/dlcollect/internal/model"
	"github.com/nao1215/dlcollect/internal/scanner"
)

// StaticPage is one tab served by a Static host.
type StaticPage struct {
	// Tab is returned by Tabs as is.
	Tab model.Tab

	// HTML is the document markup.
	HTML string

	// BaseURL optionally overrides the base URL of the document.
	BaseURL string

	// Err, when set, is returned by Document instead of the page.
	Err error
}

// Static serves fixed documents. It backs --from-dir and tests.
type Static struct {
	pages   []StaticPage
	tabsErr error
}

// NewStatic creates a host with pages as its tabs, in order.
func NewStatic(pages ...StaticPage) *Static {
	return &Static{pages: append([]StaticPage(nil), pages...)}
}

// FailEnumeration makes Tabs return err.
func (s *Static) FailEnumeration(err error) *Static {
	s.tabsErr = err
	return s
}

// Tabs implements Host.
func (s *Static) Tabs(ctx context.Context) ([]model.Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.tabsErr != nil {
		return nil, s.tabsErr
	}

	tabs := make([]model.Tab, 0, len(s.pages))
	for _, p := range s.pages {
		tabs = append(tabs, p.Tab)
	}
	return tabs, nil
}

// Document implements Host.
func (s *Static) Document(ctx context.Context, tab model.Tab) (model.Document, error) {
	if err := ctx.Err(); err != nil {
		return model.Document{}, err
	}

	for _, p := range s.pages {
		if p.Tab.ID != tab.ID {
			continue
		}
		if p.Err != nil {
			return model.Document{}, p.Err
		}
		return model.Document{
			URL:     p.Tab.URL,
			BaseURL: p.BaseURL,
			Title:   scanner.Title(p.HTML),
			HTML:    p.HTML,
		}, nil
	}

	return model.Document{}, fmt.Errorf("%w: %s", ErrTabClosed, tab.ID)
}

// NewStaticFromDir loads every .html and .htm file of dir, sorted by name,
// as one tab each. Tab URLs are file:// URLs of the absolute paths, so
// relative links resolve next to the saved file.
func NewStaticFromDir(dir string) (*Static, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".html", ".htm":
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	pages := make([]StaticPage, 0, len(names))
	for _, name := range names {
		path := filepath.Join(abs, name)
		data, err := os.ReadFile(path) //nolint:gosec // Files of a directory chosen by the user
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		markup := string(data)
		fileURL := (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
		pages = append(pages, StaticPage{
			Tab: model.Tab{
				ID:    name,
				Title: scanner.Title(markup),
				URL:   fileURL,
			},
			HTML: markup,
		})
	}

	return NewStatic(pages...), nil
}
