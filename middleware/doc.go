// Package middleware provides the HTTP middleware used by the triage API:
// request IDs, request logging, bearer token authentication, CORS and
// per-client rate limiting.
//
// Every middleware is generic over handler.Context and follows the same shape:
// a default constructor plus a WithConfig variant whose config carries an
// optional Skip function.
//
//	r := router.New[*httpapi.Context](...)
//	r.Use(
//		middleware.RequestID[*httpapi.Context](),
//		middleware.LoggingWithLogger[*httpapi.Context](log),
//		middleware.CORS[*httpapi.Context]("https://dash.example.com", "*.example.com"),
//	)
//
//	ops := r.With(middleware.BearerAuth[*httpapi.Context](middleware.StaticToken{
//		Subject: "operator",
//		Token:   cfg.OperatorToken,
//	}))
//	ops.Get("/api/sessions", listSessions)
//
// RequestIDExtractor plugs the request ID into log records produced through
// a logger built with logger.WithContextExtractors.
package middleware
