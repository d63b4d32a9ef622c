// Package scanner implements the page scanner: it finds anchors whose
// visible text is the word "Download" in a captured document.
//
// # Match policy
//
// An anchor matches when its trimmed text content case-folds to
// "download". When variations are allowed, any text that contains the
// standalone word (\bdownload\b) also matches, so "Download Now" matches
// while "Downloaded" does not.
//
// # Resolution
//
// Every emitted LinkRecord carries an absolute URL. Placeholder targets
// ("", "#", javascript: pseudo-URIs) are rejected and targets that cannot
// be resolved against the document base URL are skipped with a warning.
// A scan never fails: the worst case is an empty result.
//
// # Usage
//
//	s := scanner.New(scanner.WithLogger(logger))
//	links := s.Scan(doc, settings.AllowVariations)
package scanner
