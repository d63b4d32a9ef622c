// Package report renders an AggregateOutcome for people and tools.
//
// This package contains writers for different output formats:
//   - SimpleWriter: plain text, one block per tab, for the terminal
//   - JSONWriter: the outcome as JSON, for scripts
//   - MarkdownWriter: tables and a links-per-tab chart, for sharing
//
// Writers implement the Writer interface and can be combined with
// MultiWriter.
package report
