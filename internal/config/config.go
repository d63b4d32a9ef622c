package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "dlcollect"

	// DefaultDevToolsAddress is where Chromium listens when started with
	// --remote-debugging-port=9222.
	DefaultDevToolsAddress = "127.0.0.1:9222"

	// DefaultTimeout bounds how long the user waits for a collection result.
	// A slow or unresponsive tab must not leave the collect control disabled.
	DefaultTimeout = 30 * time.Second

	// DefaultFetchTimeout bounds a single page request made by the web host.
	DefaultFetchTimeout = 20 * time.Second

	// DefaultTorProxyAddress is the standard Tor SOCKS5 proxy address.
	// We use 127.0.0.1 instead of localhost to avoid DNS resolution overhead.
	DefaultTorProxyAddress = "127.0.0.1:9050"

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultUserAgent identifies dlcollect in HTTP requests made by the web host.
	DefaultUserAgent = "dlcollect/1.0 (+https://github.com/nao1215/dlcollect)"

	// DefaultMaxBodySize limits the page body read by the web host.
	// 5MB is sufficient for most HTML pages while preventing memory exhaustion.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultContextLimit is the number of characters of anchor markup kept
	// with every link.
	DefaultContextLimit = 200

	// DefaultServeAddress is the listen address of the relay server.
	DefaultServeAddress = "127.0.0.1:8765"

	// DefaultHistoryLimit is the number of runs listed by the history command.
	DefaultHistoryLimit = 20

	// SettingsFileName is the file holding the two user toggles.
	SettingsFileName = "settings.yaml"

	// DatabaseFileName is the SQLite file holding run history.
	DatabaseFileName = "dlcollect.db"
)

// Source identifies where the tabs of a collection come from.
type Source string

const (
	// SourceDevTools reads live tabs from a Chromium remote debugging endpoint.
	SourceDevTools Source = "devtools"
	// SourceWeb fetches a list of page URLs, one tab per URL.
	SourceWeb Source = "web"
	// SourceStatic reads saved .html files from a directory.
	SourceStatic Source = "static"
	// SourceServer dispatches the collection to a running relay server.
	SourceServer Source = "server"
)

// Config holds all configuration options for dlcollect.
// It is populated from CLI flags and passed through the application via
// dependency injection rather than global state.
type Config struct {
	// DevToolsAddress is the "host:port" of the Chromium remote debugging endpoint.
	DevToolsAddress string

	// URLs are page addresses treated as open tabs by the web host.
	URLs []string

	// ListFile is a file with one page URL per line, appended to URLs.
	ListFile string

	// FromDir is a directory of saved .html files treated as open tabs.
	FromDir string

	// ServerURL is the base URL of a relay server that performs the collection.
	ServerURL string

	// Timeout bounds how long a collection may take before the user is told
	// it timed out.
	Timeout time.Duration

	// CancelOnTimeout stops in-flight tab scans when Timeout expires.
	// When false the run finishes in the background and its late result is ignored.
	CancelOnTimeout bool

	// FetchTimeout bounds a single page request made by the web host.
	FetchTimeout time.Duration

	// Variations overrides the stored allowDownloadVariations setting for one run.
	// Nil means "use the stored setting".
	Variations *bool

	// ContextLimit is the number of characters of anchor markup kept with a link.
	ContextLimit int

	// OutputPath is the exact path of the exported link file.
	OutputPath string

	// OutputDir is the directory the dated export file is written to.
	// Empty means the current directory.
	OutputDir string

	// FileMode is the permission of written link files. Zero keeps the
	// exporter default.
	FileMode os.FileMode

	// JSONReport prints the outcome as JSON instead of the text listing.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport prints the outcome as GitHub Flavored Markdown.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// SaveToDB records each finished run in the history database.
	SaveToDB bool

	// DBDir is the directory holding the history database.
	// Defaults to the XDG data directory.
	DBDir string

	// SettingsPath is the YAML file holding the user toggles.
	// Defaults to settings.yaml in the XDG config directory.
	SettingsPath string

	// UseTor routes .onion tabs of the web host through a Tor SOCKS5 proxy.
	UseTor bool

	// EmbeddedTor starts a private Tor daemon instead of using TorProxyAddress.
	// It implies UseTor.
	EmbeddedTor bool

	// TorProxyAddress is the address of an external Tor SOCKS5 proxy.
	TorProxyAddress string

	// TorStartupTimeout is the maximum time to wait for the embedded Tor daemon.
	TorStartupTimeout time.Duration

	// UserAgent is the User-Agent header sent by the web host.
	UserAgent string

	// MaxBodySize is the maximum page body size in bytes read by the web host.
	// Set to 0 to use the default (5MB).
	MaxBodySize int64

	// ServeAddress is the listen address of the relay server.
	ServeAddress string

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .dlcollect in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds per-site request overrides loaded from the config file.
	SiteConfigs *File

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// LogFile, when set, also writes logs to a size-rotated file.
	LogFile string

	// LogJSON switches log output to JSON.
	LogJSON bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		DevToolsAddress:   DefaultDevToolsAddress,
		Timeout:           DefaultTimeout,
		FetchTimeout:      DefaultFetchTimeout,
		ContextLimit:      DefaultContextLimit,
		SaveToDB:          true,
		DBDir:             XDGDataDir(),
		SettingsPath:      filepath.Join(XDGConfigDir(), SettingsFileName),
		TorProxyAddress:   DefaultTorProxyAddress,
		TorStartupTimeout: DefaultTorStartupTimeout,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		ServeAddress:      DefaultServeAddress,
	}
}

// XDGDataDir returns the XDG data directory for dlcollect.
// On Linux: ~/.local/share/dlcollect
// On macOS: ~/Library/Application Support/dlcollect
// On Windows: %LOCALAPPDATA%\dlcollect
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for dlcollect.
// On Linux: ~/.config/dlcollect
// On macOS: ~/Library/Application Support/dlcollect
// On Windows: %APPDATA%\dlcollect
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DatabasePath returns the path of the history database.
func (c *Config) DatabasePath() string {
	dir := c.DBDir
	if dir == "" {
		dir = XDGDataDir()
	}
	return filepath.Join(dir, DatabaseFileName)
}

// Source reports which host the configuration selects.
// A relay server wins, then saved files, then page URLs; with none of them
// the live browser is used.
func (c *Config) Source() Source {
	switch {
	case c.ServerURL != "":
		return SourceServer
	case c.FromDir != "":
		return SourceStatic
	case len(c.URLs) > 0 || c.ListFile != "":
		return SourceWeb
	default:
		return SourceDevTools
	}
}

// TorEnabled reports whether the web host needs a Tor client.
func (c *Config) TorEnabled() bool {
	return c.UseTor || c.EmbeddedTor
}

// Validate checks if the configuration is valid.
// It returns the first problem found as one of the sentinel errors.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.FetchTimeout <= 0 {
		return ErrInvalidFetchTimeout
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	sources := 0
	if c.ServerURL != "" {
		sources++
	}
	if c.FromDir != "" {
		sources++
	}
	if len(c.URLs) > 0 || c.ListFile != "" {
		sources++
	}
	if sources > 1 {
		return ErrConflictingSources
	}

	if c.OutputPath != "" && c.OutputDir != "" {
		return ErrConflictingOutput
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.ContextLimit < 0 {
		return ErrInvalidContextLimit
	}

	if c.FileMode&^os.ModePerm != 0 {
		return ErrInvalidFileMode
	}

	return nil
}
