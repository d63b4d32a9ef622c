package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and can be checked with
// errors.Is() by callers that want to react to a specific problem.
var (
	// ErrInvalidTimeout is returned when the collection timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidFetchTimeout is returned when the per-request timeout of the
	// web host is not positive.
	ErrInvalidFetchTimeout = errors.New("invalid fetch timeout: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConflictingSources is returned when more than one tab source is given,
	// for example page URLs together with --from-dir.
	ErrConflictingSources = errors.New("conflicting tab sources: use only one of page URLs, --from-dir or --server")

	// ErrConflictingOutput is returned when both --output and --output-dir are set.
	ErrConflictingOutput = errors.New("conflicting output: --output and --output-dir cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 to keep the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidContextLimit is returned when the link context limit is negative.
	ErrInvalidContextLimit = errors.New("invalid context limit: must be non-negative")

	// ErrInvalidFileMode is returned when the link file mode has bits outside 0777.
	ErrInvalidFileMode = errors.New("invalid file mode: must be within 0777")
)
