// Package server exposes collections over local HTTP.
//
// POST /api/collect takes a collectAllDownloadLinks request and answers with
// exactly one message, collectionComplete or collectionError. The latest
// stored outcome can be read back as JSON or as the newline-delimited link
// list. Client sends requests to a running server and satisfies the
// controller's Dispatcher, so the CLI can drive a remote relay the same way
// it drives a local run.
package server
