// Package server wraps http.Server with environment-driven configuration,
// optional TLS from key files (default or modern profile) and graceful shutdown.
//
//	srv, err := server.NewFromConfig(cfg.Server, server.WithLogger(log))
//	if err != nil {
//		return err
//	}
//
//	eg, ctx := errgroup.WithContext(ctx)
//	eg.Go(srv.Run(ctx, handler))
//	return eg.Wait()
//
// Run returns nil on context cancellation after shutdown completes, so the
// errgroup only reports real serving failures.
package server
