// Package main provides the entry point for the dlcollect CLI.
//
// dlcollect gathers every link whose text is "Download" from the open tabs
// of a browser and writes their URLs to a plain text file, one per line.
//
// Usage:
//
//	dlcollect collect
//	dlcollect collect https://example.com/releases
//	dlcollect serve
//
// See --help for all available options.
package main

// main is the entry point for dlcollect.
func main() {
	Execute()
}
