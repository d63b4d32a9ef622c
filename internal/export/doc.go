// Package export writes collected link URLs as a plain text file,
// one URL per line, and reads such files back.
package export
