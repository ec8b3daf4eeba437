// Package binder decodes HTTP requests into Go values.
//
// Body handles JSON and CBOR envelopes, optionally gzip-compressed, with a
// size limit applied after decompression. Query binds URL query parameters
// into tagged struct fields.
//
// All failures wrap one of the package's sentinel errors, so callers can map
// them with errors.Is:
//
//	switch {
//	case errors.Is(err, binder.ErrBodyTooLarge):
//		// 413
//	case errors.Is(err, binder.ErrUnsupportedMediaType):
//		// 415
//	default:
//		// 400
//	}
package binder
