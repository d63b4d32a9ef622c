package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/dlcollect/internal/model"
)

// timeLayout is used for run timestamps in text and Markdown output.
const timeLayout = "2006-01-02 15:04:05 MST"

// SimpleWriter outputs a plain-text listing of the collected links,
// grouped by tab in scan order.
type SimpleWriter struct {
	baseWriter

	// verbose adds the anchor text and markup of every link.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the outcome in human-readable format.
func (w *SimpleWriter) Write(outcome *model.AggregateOutcome) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, outcome)
	w.writeTabs(&sb, outcome)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, outcome *model.AggregateOutcome) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("DOWNLOAD LINKS\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	if !outcome.CompletedAt.IsZero() {
		fmt.Fprintf(sb, "Collected:     %s\n", outcome.CompletedAt.Format(timeLayout))
	}
	fmt.Fprintf(sb, "Links:         %d\n", outcome.TotalLinkCount)
	fmt.Fprintf(sb, "Tabs scanned:  %d\n", outcome.TabCount)
	if outcome.TabsSkipped > 0 || outcome.TabsFailed > 0 {
		fmt.Fprintf(sb, "Tabs skipped:  %d\n", outcome.TabsSkipped)
		fmt.Fprintf(sb, "Tabs failed:   %d\n", outcome.TabsFailed)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeTabs(sb *strings.Builder, outcome *model.AggregateOutcome) {
	if len(outcome.TabResults) == 0 {
		sb.WriteString("No links with \"Download\" text found in any open tabs.\n")
		return
	}

	for _, tr := range outcome.TabResults {
		sb.WriteString(strings.Repeat("-", 70))
		sb.WriteString("\n")
		fmt.Fprintf(sb, "%s (%d)\n", displayTitle(tr), len(tr.Links))
		fmt.Fprintf(sb, "%s\n\n", tr.TabURL)

		for _, link := range tr.Links {
			fmt.Fprintf(sb, "  %s\n", link.URL)
			if w.verbose {
				fmt.Fprintf(sb, "    Text:    %s\n", link.Text)
				fmt.Fprintf(sb, "    Context: %s\n", link.Context)
			}
		}
		sb.WriteString("\n")
	}
}
