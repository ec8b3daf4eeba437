package httpapi

import (
	"context"
	"errors"

	"github.com/dmitrymomot/triage/middleware"
	"github.com/dmitrymomot/triage/pkg/jwt"
)

const operatorRole = "admin"

// operatorClaims matches the tokens issued by the dashboard login.
type operatorClaims struct {
	jwt.RegisteredClaims
	AdminID string `json:"adminId"`
	Role    string `json:"role"`
}

type jwtVerifier struct {
	svc *jwt.Service
}

func (v jwtVerifier) Verify(_ context.Context, token string) (string, error) {
	var claims operatorClaims
	if err := v.svc.Parse(token, &claims); err != nil {
		return "", errors.Join(middleware.ErrInvalidToken, err)
	}
	if claims.Role != operatorRole {
		return "", middleware.ErrInvalidToken
	}
	if claims.AdminID == "" {
		return "operator", nil
	}
	return "admin:" + claims.AdminID, nil
}

// anyVerifier accepts a token if any of its verifiers does.
type anyVerifier []middleware.TokenVerifier

func (vs anyVerifier) Verify(ctx context.Context, token string) (string, error) {
	err := middleware.ErrInvalidToken
	for _, v := range vs {
		subject, verr := v.Verify(ctx, token)
		if verr == nil {
			return subject, nil
		}
		err = verr
	}
	return "", err
}

func operatorVerifier(cfg Config) middleware.TokenVerifier {
	var vs anyVerifier
	if cfg.OperatorToken != "" {
		vs = append(vs, middleware.StaticToken{Subject: "operator", Token: cfg.OperatorToken})
	}
	if cfg.OperatorJWTSecret != "" {
		if svc, err := jwt.NewFromString(cfg.OperatorJWTSecret, jwt.WithLeeway(jwtLeeway)); err == nil {
			vs = append(vs, jwtVerifier{svc: svc})
		}
	}
	switch len(vs) {
	case 0:
		return nil
	case 1:
		return vs[0]
	}
	return vs
}
