// Package jwt signs and verifies HS256 JSON Web Tokens on top of
// github.com/golang-jwt/jwt/v5.
//
// The operator dashboard issues HS256 tokens after its own login flow; the
// service only verifies them:
//
//	svc, err := jwt.NewFromString(os.Getenv("OPERATOR_JWT_SECRET"))
//	if err != nil {
//		return err
//	}
//
//	var claims jwt.RegisteredClaims
//	if err := svc.Parse(token, &claims); err != nil {
//		// errors.Is(err, jwt.ErrExpiredToken), jwt.ErrInvalidSignature, ...
//	}
//
// Custom claim types embed RegisteredClaims. Any alg other than HS256 is
// rejected as an invalid signature.
package jwt
