package binder

import "errors"

var (
	// ErrUnsupportedMediaType indicates the Content-Type is neither JSON nor CBOR.
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrUnsupportedEncoding indicates a Content-Encoding other than gzip or identity.
	ErrUnsupportedEncoding = errors.New("unsupported content encoding")

	// ErrFailedToParseBody indicates the request body could not be decoded into the target.
	ErrFailedToParseBody = errors.New("failed to parse request body")

	// ErrBodyTooLarge indicates the (decompressed) body exceeded the configured limit.
	ErrBodyTooLarge = errors.New("request body too large")

	// ErrFailedToParseQuery indicates query parameter parsing failed,
	// typically due to type conversion errors.
	ErrFailedToParseQuery = errors.New("failed to parse query parameters")

	// ErrMissingContentType indicates the request lacks a Content-Type header.
	ErrMissingContentType = errors.New("missing content type")
)
