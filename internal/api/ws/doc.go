// Package ws serves the command bridge over WebSocket.
//
// A client selects the frame codec with a subprotocol: "bridge.json" for
// JSON text frames (the default) or "bridge.cbor" for CBOR binary frames.
// Each connection attaches to the current session; a second connection
// replaces the session, since it means the content was loaded again.
//
// Example Usage:
//
//	handler := ws.NewHandler(manager, logger, metrics)
//	router.GET("/bridge", handler.HandleConnection)
package ws
