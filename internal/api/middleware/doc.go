// Package middleware provides the gin middleware in front of the shell's
// HTTP surface: CORS for the widget origin, per-client rate limiting and
// gzip for text resources.
package middleware
