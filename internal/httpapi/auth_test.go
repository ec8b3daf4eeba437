package httpapi_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/triage/internal/httpapi"
	"github.com/dmitrymomot/triage/pkg/jwt"
	"github.com/dmitrymomot/triage/pkg/ratelimiter"
)

type dashboardClaims struct {
	jwt.RegisteredClaims
	AdminID string `json:"adminId"`
	Role    string `json:"role"`
}

func dashboardToken(t *testing.T, secret, role string, ttl time.Duration) string {
	t.Helper()
	svc, err := jwt.NewFromString(secret)
	require.NoError(t, err)
	token, err := svc.Generate(dashboardClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl))},
		AdminID:          "64f1c2",
		Role:             role,
	})
	require.NoError(t, err)
	return token
}

func TestOperatorJWT(t *testing.T) {
	t.Parallel()

	h, _ := newServer(t, httpapi.Config{OperatorJWTSecret: "jwt-secret"})

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"dashboard token", dashboardToken(t, "jwt-secret", "admin", time.Hour), http.StatusOK},
		{"static token still accepted", operatorToken, http.StatusOK},
		{"expired", dashboardToken(t, "jwt-secret", "admin", -time.Hour), http.StatusUnauthorized},
		{"wrong secret", dashboardToken(t, "other", "admin", time.Hour), http.StatusUnauthorized},
		{"wrong role", dashboardToken(t, "jwt-secret", "viewer", time.Hour), http.StatusUnauthorized},
		{"garbage", "not.a.jwt", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodGet, "/api/sessions", nil, map[string]string{"Authorization": "Bearer " + tt.token})
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRateLimitedIngest(t *testing.T) {
	t.Parallel()

	limiter, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), ratelimiter.Config{
		Capacity:       2,
		RefillRate:     1,
		RefillInterval: time.Minute,
	})
	require.NoError(t, err)
	h, _ := newServer(t, httpapi.Config{}, httpapi.WithRateLimiter(limiter))

	fragment := map[string]any{"session_id": "s1", "type": "chrome", "data": []any{}}
	assert.Equal(t, http.StatusOK, postJSON(h, fragment).Code)
	assert.Equal(t, http.StatusOK, postJSON(h, fragment).Code)

	w := postJSON(h, fragment)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health/live", nil, nil).Code, "probes are not limited")
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/", nil, nil).Code, "descriptor is not limited")
}
