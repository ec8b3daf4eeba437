package server_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/triage/core/server"
)

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		srv, err := server.NewFromConfig(server.DefaultConfig())
		require.NoError(t, err)
		assert.Equal(t, ":8080", srv.Addr())
	})

	t.Run("options override config", func(t *testing.T) {
		srv, err := server.NewFromConfig(
			server.Config{Addr: ":9000", ShutdownTimeout: 30 * time.Second},
			server.WithShutdownTimeout(time.Second),
		)
		require.NoError(t, err)
		assert.Equal(t, ":9000", srv.Addr())
	})

	t.Run("missing address", func(t *testing.T) {
		srv, err := server.NewFromConfig(server.Config{ReadTimeout: time.Second})
		assert.ErrorIs(t, err, server.ErrMissingAddress)
		assert.Nil(t, srv)
	})

	t.Run("tls needs both files", func(t *testing.T) {
		srv, err := server.NewFromConfig(server.Config{Addr: ":8080", TLSCertFile: "cert.pem"})
		require.NoError(t, err)
		assert.NotNil(t, srv)
	})

	t.Run("unreadable key pair", func(t *testing.T) {
		_, err := server.NewFromConfig(server.Config{
			Addr:        ":8080",
			TLSCertFile: "/nonexistent/cert.pem",
			TLSKeyFile:  "/nonexistent/key.pem",
		})
		assert.ErrorIs(t, err, server.ErrFailedLoadCert)
	})

	t.Run("unknown tls profile", func(t *testing.T) {
		_, err := server.NewFromConfig(server.Config{
			Addr:        ":8080",
			TLSCertFile: "cert.pem",
			TLSKeyFile:  "key.pem",
			TLSProfile:  "legacy",
		})
		assert.ErrorIs(t, err, server.ErrUnknownTLSProfile)
	})
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := server.DefaultConfig()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, server.DefaultReadTimeout, cfg.ReadTimeout)
	assert.Equal(t, server.DefaultWriteTimeout, cfg.WriteTimeout)
	assert.Equal(t, server.DefaultIdleTimeout, cfg.IdleTimeout)
	assert.Equal(t, server.DefaultShutdownTimeout, cfg.ShutdownTimeout)
	assert.Equal(t, server.DefaultMaxHeaderBytes, cfg.MaxHeaderBytes)
	assert.Equal(t, server.TLSProfileDefault, cfg.TLSProfile)
}
