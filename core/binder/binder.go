package binder

import "net/http"

// Binder decodes part of an HTTP request into a Go value.
type Binder func(r *http.Request, v any) error
