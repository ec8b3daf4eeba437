package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/triage/core/handler"
	"github.com/dmitrymomot/triage/core/response"
	"github.com/dmitrymomot/triage/core/router"
	"github.com/dmitrymomot/triage/middleware"
)

func newCORSRouter(cfg middleware.CORSConfig) router.Router[*router.Context] {
	r := router.New[*router.Context]()
	r.Use(middleware.CORSWithConfig[*router.Context](cfg))
	ok := func(ctx *router.Context) handler.Response { return response.JSON(map[string]bool{"success": true}) }
	r.Get("/api/sessions", ok)
	r.Options("/api/{path...}", func(ctx *router.Context) handler.Response { return response.NoContent() })
	return r
}

func TestCORSAllowList(t *testing.T) {
	t.Parallel()

	r := newCORSRouter(middleware.CORSConfig{
		AllowOrigins:     []string{"https://dash.example.com", "*.internal.example"},
		AllowCredentials: true,
	})

	tests := []struct {
		name    string
		origin  string
		allowed bool
	}{
		{"exact", "https://dash.example.com", true},
		{"subdomain", "https://ops.internal.example", true},
		{"subdomain with port", "http://a.b.internal.example:8080", true},
		{"apex of pattern", "https://internal.example", true},
		{"unknown", "https://evil.example.org", false},
		{"suffix trick", "https://notinternal.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			if tt.allowed {
				assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	r := newCORSRouter(middleware.CORSConfig{
		AllowOrigins: []string{"https://dash.example.com"},
		MaxAge:       600,
	})

	t.Run("allowed", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
		req.Header.Set("Origin", "https://dash.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
		req.Header.Set("Access-Control-Request-Headers", "Authorization")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://dash.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
		assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("method not allowed", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
		req.Header.Set("Origin", "https://dash.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPut)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("origin not allowed", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
		req.Header.Set("Origin", "https://other.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestCORSWildcardNeverSendsCredentials(t *testing.T) {
	t.Parallel()

	r := newCORSRouter(middleware.CORSConfig{AllowOrigins: []string{"*"}, AllowCredentials: true})
	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Origin", "https://anything.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSNoOriginPassesThrough(t *testing.T) {
	t.Parallel()

	r := newCORSRouter(middleware.CORSConfig{AllowOrigins: []string{"*"}})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
