// Package log builds the slog loggers used across dlcollect.
//
// Every logger wraps its handler in a SecureHandler, which masks values
// that should never reach a log file:
//   - HTTP credentials such as Authorization and Cookie headers
//   - values that look like tokens, keys or private key material
//   - passwords embedded in URLs and the signature or token parameters
//     of signed download URLs
//
// Masking applies at every level, including Debug.
//
// # Usage
//
//	logger, closeLog := log.New(os.Stderr, log.Options{Verbose: true, File: path})
//	defer closeLog()
//	logger.Warn("invalid URL found", "url", href)
package log
