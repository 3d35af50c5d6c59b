// Package main is the entry point for the widget shell server.
//
// The shell embeds the remotely hosted rewards widget: it serves the command
// bridge the widget talks to, queues host commands until the widget reports
// initialized, and answers the widget's static resource requests from a
// local cache.
//
// Architecture:
//
//	Widget content (WebView or goja) ⇄ /bridge ⇄ Session (gate, handlers)
//	                                 → /resource → Cache → CDN
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production widget, app id from the environment
//	./server -port 8000
//
//	# Stage widget, console logs, content driven by a local script
//	WIDGET_CONTENT_SCRIPT=./widget.js ./server -env stage -app-id demo -dev
package main
