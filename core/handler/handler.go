package handler

import "net/http"

// Response renders an HTTP response: headers, status code and body.
// A non-nil error is passed to the router's error handler.
type Response func(w http.ResponseWriter, r *http.Request) error

// HandlerFunc is a request handler bound to a custom context type.
type HandlerFunc[C Context] func(ctx C) Response

// ErrorHandler renders errors returned from handlers and responses.
type ErrorHandler[C Context] func(ctx C, err error)

// Middleware wraps a handler with cross-cutting behavior.
type Middleware[C Context] func(next HandlerFunc[C]) HandlerFunc[C]
