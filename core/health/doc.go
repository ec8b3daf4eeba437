// Package health provides liveness and readiness handlers.
//
//	r.Get("/health/live", health.Liveness[*Context])
//	r.Get("/health/ready", health.Readiness[*Context](log, store.Ping))
package health
