// Package settings holds the two user toggles that survive between runs:
// whether a collection starts automatically, and whether anchor text may
// merely contain the word "download".
//
// Settings are read once per collection and passed by value into the scan;
// nothing in the scan path reads them from ambient state.
package settings
