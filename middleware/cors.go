package middleware

import (
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/dmitrymomot/triage/core/handler"
)

// CORSConfig configures Cross-Origin Resource Sharing for the operator API.
type CORSConfig struct {
	// Skip allows bypassing CORS handling for specific requests
	Skip func(ctx handler.Context) bool

	// AllowOrigins lists allowed origins. Entries may be exact origins
	// ("https://dash.example.com"), subdomain patterns ("*.example.com") or "*".
	// An empty list allows no cross-origin requests.
	AllowOrigins []string

	// AllowMethods specifies allowed HTTP methods.
	// If empty, defaults to GET, HEAD, POST, PATCH, DELETE
	AllowMethods []string

	// AllowHeaders specifies allowed request headers
	AllowHeaders []string

	// ExposeHeaders specifies which headers are exposed to the client
	ExposeHeaders []string

	// AllowCredentials is never sent together with a wildcard origin
	AllowCredentials bool

	// MaxAge specifies how long preflight requests can be cached (in seconds)
	MaxAge int
}

// CORS returns a CORS middleware allowing the given origins.
func CORS[C handler.Context](origins ...string) handler.Middleware[C] {
	return CORSWithConfig[C](CORSConfig{AllowOrigins: origins})
}

// CORSWithConfig handles preflight OPTIONS requests and decorates actual responses.
// Requests without an Origin header pass through untouched.
func CORSWithConfig[C handler.Context](cfg CORSConfig) handler.Middleware[C] {
	if len(cfg.AllowMethods) == 0 {
		cfg.AllowMethods = []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
		}
	}
	if len(cfg.AllowHeaders) == 0 {
		cfg.AllowHeaders = []string{
			"Accept",
			"Content-Type",
			"Content-Encoding",
			"Authorization",
			"X-Request-ID",
		}
	}

	allowMethods := strings.Join(cfg.AllowMethods, ",")
	allowHeaders := strings.Join(cfg.AllowHeaders, ",")
	exposeHeaders := strings.Join(cfg.ExposeHeaders, ",")
	matchOrigin := originMatcher(cfg.AllowOrigins)

	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			req := ctx.Request()
			origin := req.Header.Get("Origin")
			if origin == "" {
				return next(ctx)
			}

			allowedOrigin, allowed := matchOrigin(origin)

			if req.Method == http.MethodOptions && req.Header.Get("Access-Control-Request-Method") != "" {
				methodAllowed := slices.Contains(cfg.AllowMethods, req.Header.Get("Access-Control-Request-Method"))
				return func(w http.ResponseWriter, r *http.Request) error {
					headers := w.Header()
					headers.Add("Vary", "Origin")
					headers.Add("Vary", "Access-Control-Request-Method")
					headers.Add("Vary", "Access-Control-Request-Headers")

					if !allowed || !methodAllowed {
						w.WriteHeader(http.StatusForbidden)
						return nil
					}

					headers.Set("Access-Control-Allow-Origin", allowedOrigin)
					headers.Set("Access-Control-Allow-Methods", allowMethods)
					if r.Header.Get("Access-Control-Request-Headers") != "" {
						headers.Set("Access-Control-Allow-Headers", allowHeaders)
					}
					if cfg.AllowCredentials && allowedOrigin != "*" {
						headers.Set("Access-Control-Allow-Credentials", "true")
					}
					if cfg.MaxAge > 0 {
						headers.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
					}

					w.WriteHeader(http.StatusNoContent)
					return nil
				}
			}

			resp := next(ctx)
			if !allowed {
				return resp
			}

			return func(w http.ResponseWriter, r *http.Request) error {
				headers := w.Header()
				headers.Set("Access-Control-Allow-Origin", allowedOrigin)
				if cfg.AllowCredentials && allowedOrigin != "*" {
					headers.Set("Access-Control-Allow-Credentials", "true")
				}
				if exposeHeaders != "" {
					headers.Set("Access-Control-Expose-Headers", exposeHeaders)
				}
				headers.Add("Vary", "Origin")
				return resp(w, r)
			}
		}
	}
}

func originMatcher(origins []string) func(origin string) (string, bool) {
	exact := make(map[string]bool, len(origins))
	var subdomains []func(string) (string, bool)
	wildcard := false

	for _, o := range origins {
		o = strings.TrimSpace(o)
		switch {
		case o == "":
		case o == "*":
			wildcard = true
		case strings.HasPrefix(o, "*."):
			subdomains = append(subdomains, AllowOriginSubdomain(o))
		default:
			exact[strings.ToLower(strings.TrimSuffix(o, "/"))] = true
		}
	}

	return func(origin string) (string, bool) {
		if wildcard {
			return "*", true
		}
		if exact[strings.ToLower(origin)] {
			return origin, true
		}
		for _, match := range subdomains {
			if allowed, ok := match(origin); ok {
				return allowed, true
			}
		}
		return "", false
	}
}

// AllowOriginSubdomain matches the domain and all of its subdomains, with or without a port.
// The domain is given without scheme ("example.com" or "*.example.com").
func AllowOriginSubdomain(domain string) func(origin string) (string, bool) {
	domain = strings.TrimPrefix(domain, "*.")
	domain = strings.TrimPrefix(domain, ".")
	domain = strings.ToLower(domain)
	domainWithDot := "." + domain

	return func(origin string) (string, bool) {
		if origin == "" {
			return "", false
		}

		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return "", false
		}

		host := strings.ToLower(u.Hostname())
		if host == domain || strings.HasSuffix(host, domainWithDot) {
			return origin, true
		}
		return "", false
	}
}
