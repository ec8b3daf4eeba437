// Package response provides handler.Response constructors for text, JSON and
// structured errors, plus error handlers that map any error to an HTTPError.
//
// Errors returned via Error(err) reach the router's error handler. An error
// that is (or wraps) an HTTPError is rendered as-is; an error implementing
// StatusCode() int is rendered with the matching predefined HTTPError; anything
// else becomes a 500 with the cause recorded in details.
package response
