// Package host provides the sources of "open tabs" that a collection scans.
//
// A Host enumerates tabs and captures the document currently shown in one
// of them. DevTools talks to a running Chromium-based browser over its
// remote debugging protocol and captures the live DOM, including content
// added by scripts. Web fetches a list of page URLs as if each were an open
// tab. Static serves documents from memory or from saved .html files.
//
// A host never decides which tabs are scanned; the collector applies the
// internal-page filter and the per-tab error policy.
package host
