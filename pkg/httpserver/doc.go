// Package httpserver runs an http.Handler with configurable timeouts and a
// context-driven graceful shutdown, plus liveness and readiness handlers.
//
// Run blocks until its context is cancelled, then calls http.Server.Shutdown
// with the configured deadline. Requests still in flight keep a context that
// outlives the cancellation, so session middleware can finish committing.
// Signal handling is left to the caller, typically via signal.NotifyContext.
//
// # Usage
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	r := chi.NewRouter()
//	r.Get("/healthz", httpserver.LivenessHandler())
//	r.Get("/readyz", httpserver.ReadinessHandler(log, 2*time.Second, manager.Healthcheck))
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, r); err != nil {
//		log.Error("server stopped", logger.Error(err))
//	}
//
// # Errors
//
// Run wraps listen errors with ErrStart and Shutdown wraps shutdown errors
// with ErrShutdown. Use errors.Is to distinguish them.
package httpserver
