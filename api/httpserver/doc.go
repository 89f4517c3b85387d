// Package httpserver provides the HTTP server the daemon runs its services
// on.
//
// BaseServer wraps a chi router with request ids, panic recovery and slog
// request logging, and adds:
//
//   - /livez: the process is up
//   - /readyz: the server accepts service requests
//   - /drain and /undrain: toggle readiness; while drained, service routes
//     answer 503
//   - /debug: pprof, when enabled
//
// Services mount their routes through RouteRegistrar:
//
//	srv, err := httpserver.New(cfg, negotiationService)
//	if err != nil {
//	    return err
//	}
//	srv.RunInBackground()
//	defer srv.Shutdown()
package httpserver
