package export

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/dlcollect/internal/fileutil"
)

const (
	// filePrefix and fileExt frame the date in the default file name.
	filePrefix = "download_links_"
	fileExt    = ".txt"

	// dateLayout is the ISO calendar date used in file names.
	dateLayout = "2006-01-02"

	// DefaultPermission is the mode of newly written export files.
	DefaultPermission os.FileMode = 0o644
)

// ErrNothingToExport is returned when Export is called without URLs.
// An empty collection never produces a file.
var ErrNothingToExport = errors.New("no links to export")

// Render encodes urls as UTF-8 text, each URL followed by a line feed.
// There is no header and no deduplication; the order of urls is kept.
func Render(urls []string) []byte {
	var buf bytes.Buffer
	for _, u := range urls {
		buf.WriteString(u)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// FileName returns the default export file name for the UTC date of t,
// for example "download_links_2026-10-18.txt".
func FileName(t time.Time) string {
	return filePrefix + t.UTC().Format(dateLayout) + fileExt
}

// ParseFile reads an exported link list. Blank lines are ignored.
func ParseFile(r io.Reader) ([]string, error) {
	urls := make([]string, 0)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read link list: %w", err)
	}

	return urls, nil
}

// FileExporter writes the link list to disk.
type FileExporter struct {
	// dir receives dated files when path is empty.
	dir string

	// path is an exact destination chosen by the user.
	path string

	now  func() time.Time
	perm os.FileMode
}

// Option configures a FileExporter.
type Option func(*FileExporter)

// WithDir writes dated files into dir.
func WithDir(dir string) Option {
	return func(e *FileExporter) {
		e.dir = dir
	}
}

// WithPath writes to exactly path, ignoring the dated file name.
func WithPath(path string) Option {
	return func(e *FileExporter) {
		e.path = path
	}
}

// WithClock sets the clock used for the dated file name.
func WithClock(now func() time.Time) Option {
	return func(e *FileExporter) {
		e.now = now
	}
}

// WithPermission sets the file mode of written files.
func WithPermission(perm os.FileMode) Option {
	return func(e *FileExporter) {
		e.perm = perm
	}
}

// NewFileExporter creates an exporter writing into the current directory by default.
func NewFileExporter(opts ...Option) *FileExporter {
	e := &FileExporter{
		dir:  ".",
		now:  time.Now,
		perm: DefaultPermission,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Destination returns the path the next export would be written to.
func (e *FileExporter) Destination() string {
	if e.path != "" {
		return e.path
	}
	return filepath.Join(e.dir, FileName(e.now()))
}

// Export writes urls atomically and returns the destination path.
// An existing file with the same name is replaced.
func (e *FileExporter) Export(ctx context.Context, urls []string) (string, error) {
	if len(urls) == 0 {
		return "", ErrNothingToExport
	}

	dest := e.Destination()
	if err := fileutil.WriteAtomic(ctx, dest, Render(urls), e.perm); err != nil {
		return "", fmt.Errorf("failed to export links: %w", err)
	}

	return dest, nil
}
