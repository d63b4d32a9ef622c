// Package database keeps the history of collection runs in SQLite.
//
// Every answered run is stored with its links, its export path and a
// fingerprint of its URL set, so the last outcome can be shown again
// without scanning the tabs a second time. Two runs with the same
// fingerprint found exactly the same URLs.
//
// The schema is versioned with goose migrations embedded in the binary.
// SQLite comes from modernc.org/sqlite, which needs no cgo.
package database
