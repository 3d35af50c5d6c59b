// Package session manages the lifetime of the embedded widget content.
//
// A Session pairs the host bridge endpoint with an initialization gate. Host
// commands issued before the content reports "initialized" are queued and
// released in order; commands from the content are served by the host
// handler table and forwarded to a Platform.
//
// Components:
//   - Session: gated host commands, engagement state, layout
//   - Manager: owns the current session, replaces it on logout or reload
//   - Platform: native glue (window, share intents, toasts)
//   - Hooks: host application answers to user-defined commands
//
// Example Usage:
//
//	manager := session.NewManager(session.Options{
//		Env:      env.Production,
//		AppID:    "app-1",
//		Executor: looper,
//		Prefs:    store,
//	})
//	manager.Current().SetMode(session.ModeLogin)
//	router.GET("/bridge", wsHandler.Serve)
package session
