// Package cache serves the widget's static assets from local storage.
//
// Intercept answers a GET for a cacheable URL from disk when a completed
// entry exists. Otherwise it returns nil so the caller uses the network, and
// a background Worker fetches the same URL and stores it. Entries become
// visible only after their bytes are flushed, renamed into place and marked
// with a "<key>.loaded" file, so a crash mid-write leaves the key absent.
package cache
