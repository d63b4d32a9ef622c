package log

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits of the log file.
const (
	maxFileSizeMB  = 10
	maxFileBackups = 3
	maxFileAgeDays = 28
)

// Options selects where and how New logs.
type Options struct {
	// Verbose lowers the level from Warn to Debug.
	Verbose bool

	// JSON switches from text to JSON records.
	JSON bool

	// File, when set, receives a copy of every record. The file is rotated
	// by size and old files are compressed.
	File string
}

// New creates a sanitizing logger writing to w and, if opts.File is set,
// to a rotated log file. The returned function closes the file.
func New(w io.Writer, opts Options) (*slog.Logger, func() error) {
	closeFn := func() error { return nil }

	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxFileSizeMB,
			MaxBackups: maxFileBackups,
			MaxAge:     maxFileAgeDays,
			Compress:   true,
		}
		w = io.MultiWriter(w, rotator)
		closeFn = rotator.Close
	}

	if opts.JSON {
		return NewSecureJSONLogger(w, opts.Verbose), closeFn
	}
	return NewSecureLogger(w, opts.Verbose), closeFn
}
