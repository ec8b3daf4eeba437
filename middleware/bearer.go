package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/dmitrymomot/triage/core/handler"
	"github.com/dmitrymomot/triage/core/response"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

type bearerSubjectContextKey struct{}

// TokenVerifier checks a bearer token and returns the subject it identifies.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (subject string, err error)
}

// TokenVerifierFunc adapts a function to TokenVerifier.
type TokenVerifierFunc func(ctx context.Context, token string) (string, error)

func (f TokenVerifierFunc) Verify(ctx context.Context, token string) (string, error) {
	return f(ctx, token)
}

// StaticToken verifies tokens against a fixed secret in constant time.
type StaticToken struct {
	Subject string
	Token   string
}

func (s StaticToken) Verify(_ context.Context, token string) (string, error) {
	if s.Token == "" || subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return "", ErrInvalidToken
	}
	return s.Subject, nil
}

// BearerConfig configures the bearer token middleware.
type BearerConfig struct {
	// Skip defines a function to skip middleware execution for specific requests
	Skip func(ctx handler.Context) bool
	// Verifier validates extracted tokens. Required.
	Verifier TokenVerifier
	// TokenExtractor defines how to extract the token (default: Authorization header, Bearer scheme)
	TokenExtractor func(ctx handler.Context) string
	// ErrorHandler defines how to handle authentication errors (default: 401 Unauthorized)
	ErrorHandler func(ctx handler.Context, err error) handler.Response
}

// BearerAuth protects routes with the given verifier.
func BearerAuth[C handler.Context](verifier TokenVerifier) handler.Middleware[C] {
	return BearerAuthWithConfig[C](BearerConfig{Verifier: verifier})
}

// BearerAuthWithConfig creates a bearer token middleware with custom configuration.
// Panics if no verifier is provided.
func BearerAuthWithConfig[C handler.Context](cfg BearerConfig) handler.Middleware[C] {
	if cfg.Verifier == nil {
		panic("bearer middleware: verifier is required")
	}
	if cfg.TokenExtractor == nil {
		cfg.TokenExtractor = TokenFromAuthHeader()
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(ctx handler.Context, err error) handler.Response {
			return response.Error(response.ErrUnauthorized.WithError(err))
		}
	}

	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			token := cfg.TokenExtractor(ctx)
			if token == "" {
				return cfg.ErrorHandler(ctx, ErrMissingToken)
			}

			subject, err := cfg.Verifier.Verify(ctx, token)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.SetValue(bearerSubjectContextKey{}, subject)
			return next(ctx)
		}
	}
}

// GetSubject returns the subject stored by the bearer middleware.
func GetSubject(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(bearerSubjectContextKey{}).(string)
	return s, ok
}

// TokenFromAuthHeader extracts the token from "Authorization: Bearer <token>".
func TokenFromAuthHeader() func(handler.Context) string {
	return func(ctx handler.Context) string {
		auth := ctx.Request().Header.Get("Authorization")
		scheme, token, ok := strings.Cut(auth, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
}
