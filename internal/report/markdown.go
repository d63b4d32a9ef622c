package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/dlcollect/internal/model"
)

// maxChartSlices caps the pie chart; the remaining tabs are folded into "Other".
const maxChartSlices = 8

// MarkdownWriter outputs the outcome as GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the outcome in Markdown format.
func (w *MarkdownWriter) Write(outcome *model.AggregateOutcome) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, outcome)
	w.writeSummary(md, outcome)
	w.writeTabs(md, outcome)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, outcome *model.AggregateOutcome) {
	md.H1("Download Links")
	md.PlainText("")

	rows := [][]string{
		{"Links", strconv.Itoa(outcome.TotalLinkCount)},
		{"Tabs Scanned", strconv.Itoa(outcome.TabCount)},
		{"Tabs Skipped", strconv.Itoa(outcome.TabsSkipped)},
		{"Tabs Failed", strconv.Itoa(outcome.TabsFailed)},
	}
	if !outcome.CompletedAt.IsZero() {
		rows = append(rows, []string{"Collected", outcome.CompletedAt.Format(timeLayout)})
	}
	if outcome.RequestID != "" {
		rows = append(rows, []string{"Request", "`" + outcome.RequestID + "`"})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, outcome *model.AggregateOutcome) {
	if !outcome.Success {
		md.Note(`No links with "Download" text found in any open tabs.`)
		md.PlainText("")
		return
	}

	md.H2("Links per Tab")
	md.PlainText("")

	rows := make([][]string, 0, len(outcome.TabResults))
	for _, tr := range outcome.TabResults {
		rows = append(rows, []string{
			escapeCell(truncateString(displayTitle(tr), 60)),
			strconv.Itoa(len(tr.Links)),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Tab", "Links"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(outcome.TabResults) > 1 {
		w.writePieChart(md, outcome)
	}

	if outcome.TabsFailed > 0 {
		md.Warningf("%d tab(s) could not be scanned and are not included.", outcome.TabsFailed)
		md.PlainText("")
	}
}

// writePieChart writes a mermaid pie chart of links per tab.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, outcome *model.AggregateOutcome) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Links per Tab"),
		piechart.WithShowData(true),
	)

	other := 0
	for i, tr := range outcome.TabResults {
		if i >= maxChartSlices {
			other += len(tr.Links)
			continue
		}
		label := strings.ReplaceAll(truncateString(displayTitle(tr), 30), `"`, "'")
		chart.LabelAndIntValue(label, uint64(len(tr.Links)))
	}
	if other > 0 {
		chart.LabelAndIntValue("Other", uint64(other))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeTabs(md *markdown.Markdown, outcome *model.AggregateOutcome) {
	for _, tr := range outcome.TabResults {
		md.H3(displayTitle(tr))
		md.PlainText("")
		md.PlainTextf("<%s>", tr.TabURL)
		md.PlainText("")

		rows := make([][]string, 0, len(tr.Links))
		for _, link := range tr.Links {
			rows = append(rows, []string{
				escapeCell(truncateString(link.Text, 40)),
				fmt.Sprintf("[%s](%s)", escapeCell(truncateString(link.URL, 80)), link.URL),
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Text", "URL"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [dlcollect](https://github.com/nao1215/dlcollect)*")
}

// escapeCell keeps a value from breaking the table layout.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
