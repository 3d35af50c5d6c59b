// Package http provides the shell's REST handlers.
//
// Routes:
//   - GET  /health: liveness and current session
//   - GET  /resource?url=: cached resource, or network pass-through
//   - GET  /session: current session snapshot
//   - POST /session/commands/:name: gated command to the content
//   - POST /session/reload: replace the session
//   - POST /referrer: store the install referrer
//
// Example Usage:
//
//	handlers := http.NewHandlers(manager, cache, client, store, logger)
//	router.GET("/resource", handlers.Resource)
package http
