// Package logging configures structured slog output for gallerysearch.
//
// By default only warnings and errors reach stderr. With --debug, JSON logs
// at debug level are also written to ~/.gallerysearch/logs/search.log and
// rotated by size.
package logging
