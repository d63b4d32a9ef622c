package host

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/dlcollect/internal/config"
	"github.com/nao1215/dlcollect/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWeb tests fetching pages as tabs.
func TestWeb(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Files</title></head><body>` +
			`<a href="/f.zip">Download</a><p>ua=` + r.UserAgent() + ` cookie=` + r.Header.Get("Cookie") +
			` x=` + r.Header.Get("X-Token") + `</p></body></html>`))
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/sub/page", http.StatusFound)
	})
	mux.HandleFunc("/sub/page", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<a href="f.zip">Download</a>`))
	})
	mux.HandleFunc("/data.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Run("tabs follow the URL list", func(t *testing.T) {
		t.Parallel()

		w := NewWeb([]string{srv.URL + "/page", "chrome://settings"})
		tabs, err := w.Tabs(context.Background())
		require.NoError(t, err)
		require.Len(t, tabs, 2)
		assert.Equal(t, model.Tab{ID: "0", URL: srv.URL + "/page"}, tabs[0])
		assert.Equal(t, "chrome://settings", tabs[1].URL)
	})

	t.Run("fetches html with title", func(t *testing.T) {
		t.Parallel()

		w := NewWeb(nil, WithWebUserAgent("agent/1"))
		doc, err := w.Document(context.Background(), model.Tab{URL: srv.URL + "/page"})
		require.NoError(t, err)
		assert.Equal(t, "Files", doc.Title)
		assert.Equal(t, srv.URL+"/page", doc.URL)
		assert.Contains(t, doc.HTML, "ua=agent/1")
	})

	t.Run("applies site overrides", func(t *testing.T) {
		t.Parallel()

		sites := &config.File{
			Sites: map[string]config.SiteConfig{
				"127.0.0.1": {
					Cookie:    "session=abc",
					UserAgent: "site-agent",
					Headers:   map[string]string{"X-Token": "t1"},
				},
			},
		}
		w := NewWeb(nil, WithSiteConfigs(sites))
		doc, err := w.Document(context.Background(), model.Tab{URL: srv.URL + "/page"})
		require.NoError(t, err)
		assert.Contains(t, doc.HTML, "ua=site-agent")
		assert.Contains(t, doc.HTML, "cookie=session=abc")
		assert.Contains(t, doc.HTML, "x=t1")
	})

	t.Run("document URL is the final URL", func(t *testing.T) {
		t.Parallel()

		doc, err := NewWeb(nil).Document(context.Background(), model.Tab{URL: srv.URL + "/moved"})
		require.NoError(t, err)
		assert.Equal(t, srv.URL+"/sub/page", doc.URL)
	})

	t.Run("error status", func(t *testing.T) {
		t.Parallel()

		_, err := NewWeb(nil).Document(context.Background(), model.Tab{URL: srv.URL + "/missing"})
		require.ErrorIs(t, err, ErrHTTPStatus)
	})

	t.Run("non-html content", func(t *testing.T) {
		t.Parallel()

		_, err := NewWeb(nil).Document(context.Background(), model.Tab{URL: srv.URL + "/data.json"})
		require.ErrorIs(t, err, ErrUnsupportedContent)
	})

	t.Run("body is limited", func(t *testing.T) {
		t.Parallel()

		doc, err := NewWeb(nil, WithWebMaxBodySize(100)).Document(context.Background(), model.Tab{URL: srv.URL + "/big"})
		require.NoError(t, err)
		assert.Len(t, doc.HTML, 100)
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		t.Parallel()

		_, err := NewWeb(nil).Document(context.Background(), model.Tab{URL: "ftp://example.com/"})
		require.ErrorIs(t, err, ErrUnsupportedScheme)
	})

	t.Run("onion without tor", func(t *testing.T) {
		t.Parallel()

		onion := "http://aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaam2dqd.onion/"
		_, err := NewWeb(nil).Document(context.Background(), model.Tab{URL: onion})
		require.ErrorIs(t, err, ErrTorRequired)
	})

	t.Run("malformed onion is rejected before any request", func(t *testing.T) {
		t.Parallel()

		_, err := NewWeb(nil, WithTorHTTPClient(http.DefaultClient)).
			Document(context.Background(), model.Tab{URL: "http://typo.onion/"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid onion address")
	})
}

// TestReadURLList tests the --list file format.
func TestReadURLList(t *testing.T) {
	t.Parallel()

	urls, err := ReadURLList(strings.NewReader("# mirrors\nhttps://a.example/\n\n  https://b.example/  \n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/", "https://b.example/"}, urls)
}

// TestStatic tests the in-memory host.
func TestStatic(t *testing.T) {
	t.Parallel()

	t.Run("serves pages and errors", func(t *testing.T) {
		t.Parallel()

		s := NewStatic(
			StaticPage{Tab: model.Tab{ID: "1", URL: "https://a.example/"}, HTML: `<title>A</title>`},
			StaticPage{Tab: model.Tab{ID: "2", URL: "https://b.example/"}, Err: ErrTabClosed},
		)

		tabs, err := s.Tabs(context.Background())
		require.NoError(t, err)
		require.Len(t, tabs, 2)

		doc, err := s.Document(context.Background(), tabs[0])
		require.NoError(t, err)
		assert.Equal(t, "A", doc.Title)
		assert.Equal(t, "https://a.example/", doc.URL)

		_, err = s.Document(context.Background(), tabs[1])
		require.ErrorIs(t, err, ErrTabClosed)

		_, err = s.Document(context.Background(), model.Tab{ID: "unknown"})
		require.ErrorIs(t, err, ErrTabClosed)
	})

	t.Run("enumeration failure", func(t *testing.T) {
		t.Parallel()

		_, err := NewStatic().FailEnumeration(assert.AnError).Tabs(context.Background())
		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("from directory", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "b.html"), []byte(`<title>B</title>`), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.htm"), []byte(`<title>A</title><a href="x.zip">Download</a>`), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`ignored`), 0o600))

		s, err := NewStaticFromDir(dir)
		require.NoError(t, err)

		tabs, err := s.Tabs(context.Background())
		require.NoError(t, err)
		require.Len(t, tabs, 2)
		assert.Equal(t, "a.htm", tabs[0].ID)
		assert.Equal(t, "A", tabs[0].Title)
		assert.True(t, strings.HasPrefix(tabs[0].URL, "file://"))
		assert.True(t, strings.HasSuffix(tabs[0].URL, "/a.htm"))
	})
}
