package server

import (
	"crypto/tls"
	"fmt"
	"strings"
)

// TLS profiles accepted by Config.TLSProfile.
const (
	TLSProfileDefault = "default"
	TLSProfileModern  = "modern"
)

// DefaultTLSConfig allows TLS 1.2 with ECDHE AEAD suites only.
func DefaultTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
		},
		CurvePreferences: []tls.CurveID{tls.X25519, tls.CurveP256},
	}
}

// ModernTLSConfig requires TLS 1.3. Older collector builds may not connect.
func ModernTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:       tls.VersionTLS13,
		CurvePreferences: []tls.CurveID{tls.X25519, tls.CurveP256},
	}
}

// TLSConfigForProfile returns the base config for a named profile.
// An empty name selects the default profile.
func TLSConfigForProfile(name string) (*tls.Config, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", TLSProfileDefault:
		return DefaultTLSConfig(), nil
	case TLSProfileModern:
		return ModernTLSConfig(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTLSProfile, name)
	}
}
