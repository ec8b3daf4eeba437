package handler

import (
	"context"
	"net/http"
)

// Context is the request-scoped value handed to every HandlerFunc.
// It embeds context.Context so it can be passed straight into store calls.
type Context interface {
	context.Context
	Request() *http.Request
	ResponseWriter() http.ResponseWriter
	// Param returns a path wildcard value, e.g. "id" for "/api/sessions/{id}".
	Param(key string) string
	SetValue(key, val any)
}
