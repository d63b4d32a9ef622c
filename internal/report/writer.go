package report

import (
	"io"

	"github.com/nao1215/dlcollect/internal/model"
)

// Writer renders a collection outcome.
type Writer interface {
	// Write renders outcome to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(outcome *model.AggregateOutcome) (int, error)
}

// MultiWriter writes to multiple Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the outcome to all configured Writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(outcome *model.AggregateOutcome) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(outcome)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// displayTitle returns the title of a tab, or its URL when the title is empty.
func displayTitle(tr model.TabResult) string {
	if tr.TabTitle != "" {
		return tr.TabTitle
	}
	return tr.TabURL
}

// truncateString truncates s to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
