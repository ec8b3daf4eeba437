// Package logger builds structured loggers on log/slog and provides attribute
// helpers for the fields this service logs repeatedly.
//
// Create a logger with an environment preset and optional overrides:
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, cfg.AppName),
//		logger.WithContextExtractors(middleware.RequestIDExtractor),
//	)
//
//	log.InfoContext(ctx, "fragment merged",
//		logger.SessionID(res.SessionID),
//		logger.Category(frag.Category),
//		logger.Status(string(res.Status)),
//	)
//
// Presets:
//
//	WithDevelopment  text, debug level
//	WithStaging      JSON, info level
//	WithProduction   JSON, info level
//
// Context extractors run for every record logged through the *Context methods
// and append their attribute when the context carries the value, which is how
// request ids reach store and aggregator logs without being passed explicitly.
//
// Attribute helpers return an empty slog.Attr for zero inputs (nil error,
// empty id); slog omits empty attributes, so they are safe to pass
// unconditionally.
package logger
