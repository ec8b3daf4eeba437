package jwt_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/triage/pkg/jwt"
)

type dashboardClaims struct {
	jwt.RegisteredClaims
	AdminID string `json:"adminId"`
	Role    string `json:"role"`
}

func TestGenerateAndParse(t *testing.T) {
	t.Parallel()

	svc, err := jwt.NewFromString("secret")
	require.NoError(t, err)

	token, err := svc.Generate(dashboardClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		AdminID:          "a1",
		Role:             "admin",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."))

	var got dashboardClaims
	require.NoError(t, svc.Parse(token, &got))
	assert.Equal(t, "a1", got.AdminID)
	assert.Equal(t, "admin", got.Role)
}

func TestParseRejects(t *testing.T) {
	t.Parallel()

	svc, err := jwt.NewFromString("secret")
	require.NoError(t, err)
	other, err := jwt.NewFromString("other")
	require.NoError(t, err)

	expired, err := svc.Generate(jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))})
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Parse(expired, &jwt.RegisteredClaims{}), jwt.ErrExpiredToken)

	future, err := svc.Generate(jwt.RegisteredClaims{NotBefore: jwt.NewNumericDate(time.Now().Add(time.Hour))})
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Parse(future, &jwt.RegisteredClaims{}), jwt.ErrInvalidToken)

	foreign, err := other.Generate(jwt.RegisteredClaims{Subject: "x"})
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Parse(foreign, &jwt.RegisteredClaims{}), jwt.ErrInvalidSignature)

	assert.ErrorIs(t, svc.Parse("not-a-token", &jwt.RegisteredClaims{}), jwt.ErrInvalidToken)

	none := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`)) + "." +
		base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"x"}`)) + "."
	assert.Error(t, svc.Parse(none, &jwt.RegisteredClaims{}))
}

func TestNewRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := jwt.New(nil)
	assert.ErrorIs(t, err, jwt.ErrMissingSigningKey)
}
