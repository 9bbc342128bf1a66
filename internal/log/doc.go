// Package log builds the slog loggers used by docscout.
//
// SecureHandler masks sensitive values before they are written: cookie and
// authorization headers configured for a site, values that look like
// tokens, and credentials embedded in logged URLs. NewLogger combines it
// with an optional size-rotated JSON log file.
//
// # Usage
//
//	logger, closer := log.NewLogger(os.Stderr, verbose, log.FileOptions{Path: "docscout.log"})
//	defer closer.Close()
//	slog.SetDefault(logger)
package log
