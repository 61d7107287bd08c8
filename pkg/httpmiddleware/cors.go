package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures cross-origin access for the storefront. The API
// is consumed by a browser frontend served from a different origin, so
// CORS headers are part of the public contract, not an afterthought.
type CORSConfig struct {
	// AllowOrigins lists the origins allowed to call the API. Empty, or
	// a single "*", allows every origin.
	AllowOrigins []string

	// AllowMethods lists the HTTP methods clients may use. Defaults to
	// "GET, POST, PATCH, DELETE, OPTIONS" when empty.
	AllowMethods []string

	// AllowHeaders lists the request headers clients may send. When
	// empty, preflights echo back Access-Control-Request-Headers.
	AllowHeaders []string

	// ExposeHeaders lists response headers the browser may read.
	ExposeHeaders []string

	// AllowCredentials permits cookies and Authorization headers on
	// cross-origin requests. The Fetch standard forbids combining this
	// with a wildcard origin, so enabling it forces specific-origin echo.
	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds. Zero omits the
	// header; negative sends "0" to disable caching.
	MaxAge int
}

// originSet resolves Access-Control-Allow-Origin values. Matching is
// case-insensitive but the configured casing is echoed back.
type originSet struct {
	all     bool
	byLower map[string]string
}

func newOriginSet(origins []string, credentials bool) originSet {
	s := originSet{
		all:     len(origins) == 0,
		byLower: make(map[string]string, len(origins)),
	}
	for _, o := range origins {
		if o == "*" {
			s.all = true
			break
		}
		s.byLower[strings.ToLower(o)] = o
	}
	if credentials && s.all {
		s.all = false
	}
	return s
}

func (s originSet) resolve(origin string) string {
	if s.all {
		return "*"
	}
	return s.byLower[strings.ToLower(origin)]
}

// CORS returns a middleware implementing Cross-Origin Resource Sharing
// with Vary headers set so shared caches never serve one origin's
// response to another, and preflights detected by the
// Access-Control-Request-Method header rather than bare OPTIONS.
func CORS(cfg CORSConfig) Middleware {
	origins := newOriginSet(cfg.AllowOrigins, cfg.AllowCredentials)

	allowMethods := strings.Join(cfg.AllowMethods, ", ")
	if allowMethods == "" {
		allowMethods = "GET, POST, PATCH, DELETE, OPTIONS"
	}
	allowHeaders := strings.Join(cfg.AllowHeaders, ", ")
	exposeHeaders := strings.Join(cfg.ExposeHeaders, ", ")

	var maxAge string
	switch {
	case cfg.MaxAge > 0:
		maxAge = strconv.Itoa(cfg.MaxAge)
	case cfg.MaxAge < 0:
		maxAge = "0"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Same-origin request. Still vary on Origin when matching is
			// origin-specific, so caches keep responses apart.
			if origin == "" {
				if !origins.all {
					w.Header().Add("Vary", "Origin")
				}
				next.ServeHTTP(w, r)
				return
			}

			allowOrigin := origins.resolve(origin)

			if isPreflight(r) {
				w.Header().Add("Vary", "Origin")
				w.Header().Add("Vary", "Access-Control-Request-Method")
				w.Header().Add("Vary", "Access-Control-Request-Headers")

				if allowOrigin == "" {
					// Disallowed origin: 204 with no CORS headers at all.
					w.WriteHeader(http.StatusNoContent)
					return
				}

				w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
				w.Header().Set("Access-Control-Allow-Methods", allowMethods)

				switch {
				case allowHeaders != "":
					w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
				case r.Header.Get("Access-Control-Request-Headers") != "":
					w.Header().Set("Access-Control-Allow-Headers", r.Header.Get("Access-Control-Request-Headers"))
				}

				if cfg.AllowCredentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
				if maxAge != "" {
					w.Header().Set("Access-Control-Max-Age", maxAge)
				}

				w.WriteHeader(http.StatusNoContent)
				return
			}

			// Simple or actual cross-origin request.
			if !origins.all {
				w.Header().Add("Vary", "Origin")
			}

			if allowOrigin != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
				if cfg.AllowCredentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
				if exposeHeaders != "" {
					w.Header().Set("Access-Control-Expose-Headers", exposeHeaders)
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
}
