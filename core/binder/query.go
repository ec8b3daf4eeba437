package binder

import (
	"net/http"
)

// Query creates a query parameter binder.
//
// Fields are matched by their `query` tag (or lowercase name); `query:"-"` skips a field.
// Supported types are strings, integers, bools and pointers to them.
//
//	type listRequest struct {
//		Limit int `query:"limit"`
//	}
//
//	var req listRequest
//	if err := binder.Query()(r, &req); err != nil {
//		return response.Error(response.ErrBadRequest.WithError(err))
//	}
func Query() Binder {
	return func(r *http.Request, v any) error {
		return bindToStruct(v, "query", r.URL.Query(), ErrFailedToParseQuery)
	}
}
