// Package config provides configuration structures and utilities for dlcollect.
// It defines where tabs come from, how long a collection may take, where the
// exported link list is written, and the optional per-site request overrides
// read from the .dlcollect file.
package config
