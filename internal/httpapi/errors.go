package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/triage/core/binder"
	"github.com/dmitrymomot/triage/core/handler"
	"github.com/dmitrymomot/triage/core/response"
	"github.com/dmitrymomot/triage/internal/session"
)

// retryAfterSeconds is advertised on 503 so collectors back off before resending.
const retryAfterSeconds = "1"

var errSessionNotFound = response.ErrNotFound.WithMessage("Session not found")

// toHTTPError maps domain and binder errors onto response.HTTPError values.
// Anything unrecognized is returned unchanged and rendered as 500.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return errSessionNotFound
	case errors.Is(err, session.ErrMalformedRequest):
		return response.ErrBadRequest.WithMessage(err.Error())
	case errors.Is(err, session.ErrStorageUnavailable):
		return response.ErrServiceUnavailable.WithMessage("storage unavailable, retry later")
	case errors.Is(err, binder.ErrBodyTooLarge):
		return response.ErrRequestEntityTooLarge.WithMessage(err.Error())
	case errors.Is(err, binder.ErrUnsupportedMediaType),
		errors.Is(err, binder.ErrMissingContentType),
		errors.Is(err, binder.ErrUnsupportedEncoding):
		return response.ErrUnsupportedMediaType.WithMessage(err.Error())
	case errors.Is(err, binder.ErrFailedToParseBody), errors.Is(err, binder.ErrFailedToParseQuery):
		return response.ErrBadRequest.WithMessage(err.Error())
	default:
		return err
	}
}

// failure renders err through the router's error handler.
func failure(err error) handler.Response {
	mapped := toHTTPError(err)
	return func(w http.ResponseWriter, r *http.Request) error {
		if errors.Is(err, session.ErrStorageUnavailable) {
			w.Header().Set("Retry-After", retryAfterSeconds)
		}
		return mapped
	}
}
