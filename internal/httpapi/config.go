package httpapi

import "time"

const jwtLeeway = 30 * time.Second

// Config holds transport settings loaded from the environment.
type Config struct {
	// IngestToken, when set, is required as a bearer token on POST /api/data.
	IngestToken string `env:"INGEST_TOKEN"`
	// OperatorToken protects the /api/sessions routes. Empty leaves them open
	// unless OperatorJWTSecret is set.
	OperatorToken string `env:"OPERATOR_TOKEN"`
	// OperatorJWTSecret verifies HS256 dashboard tokens on the session routes.
	// Either credential is accepted when both are set.
	OperatorJWTSecret string `env:"OPERATOR_JWT_SECRET"`
	// AllowedOrigins is the CORS allow-list: exact origins, "*.example.com" or "*".
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	// MaxBodySize bounds decoded request bodies in bytes.
	MaxBodySize int64 `env:"MAX_BODY_SIZE" envDefault:"52428800"`
	// ServiceName is reported by the service descriptor.
	ServiceName string `env:"SERVICE_NAME" envDefault:"Data Collection API"`
}
