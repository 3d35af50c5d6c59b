// Package server assembles the widget shell: configuration, logging,
// metrics, the resource cache, the preferences store, the session manager
// and the HTTP surface.
//
// Example Usage:
//
//	srv, err := server.NewServer(config.LoadOrDefault(), server.Options{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer srv.Close()
//	err = srv.Run(ctx)
package server
