/*
Package bridge implements the named-command channel between the host and the
embedded widget content.

Each side owns an Endpoint with a Registry of handlers. A command is a name
plus a string payload; the sender may pass a Callback to receive exactly one
answer. Answers that can never arrive (no handler on the peer, a failed write,
or teardown) are delivered as "".

	host := bridge.NewEndpoint(bridge.Options{Name: "host", Executor: looper})
	host.RegisterHandler("initialized", bridge.Sync(func(payload string) string {
		return ""
	}))
	host.Send("setMode", "REWARDS", nil)

Transports are Pipe (in memory), Conn (websocket, JSON or CBOR frames) and
the goja content host in package content.
*/
package bridge
