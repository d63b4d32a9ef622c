// Package collector runs one collection: it enumerates the open tabs of a
// host, skips browser-internal pages, scans the rest one after another and
// folds the matches into a single AggregateOutcome.
//
// A failing tab never fails the run. It is logged and counted, and the run
// moves on to the next tab. Only a failure to enumerate tabs at all turns
// into a collectionError message.
//
// Runs are serialized: a second request waits until the first has finished
// scanning, so two runs never read the same tabs at the same time.
package collector
