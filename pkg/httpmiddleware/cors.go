package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	// AllowOrigins lists origins permitted to make cross-origin requests.
	// Empty, or the single entry "*", allows all origins.
	AllowOrigins []string

	// AllowMethods lists the HTTP methods clients may use. Defaults to
	// "GET, POST, PUT, DELETE, OPTIONS" when empty.
	AllowMethods []string

	// AllowHeaders lists the request headers clients may send. When empty,
	// the preflight response echoes Access-Control-Request-Headers back.
	AllowHeaders []string

	// ExposeHeaders lists response headers the browser may read.
	ExposeHeaders []string

	// AllowCredentials permits cookies and auth headers on cross-origin
	// requests. The wildcard origin must not be combined with credentials,
	// so when both are set the middleware echoes the specific origin
	// instead.
	AllowCredentials bool

	// MaxAge is how long (seconds) preflight results may be cached. Zero
	// omits the header; negative sends "0".
	MaxAge int
}

// precomputed header values, resolved once at middleware construction.
type corsHeaders struct {
	allowAll bool
	origins  map[string]string // lowercase -> original case
	methods  string
	headers  string
	expose   string
	maxAge   string
}

func buildCORSHeaders(cfg CORSConfig) corsHeaders {
	h := corsHeaders{
		allowAll: len(cfg.AllowOrigins) == 0,
		origins:  make(map[string]string, len(cfg.AllowOrigins)),
		methods:  strings.Join(cfg.AllowMethods, ", "),
		headers:  strings.Join(cfg.AllowHeaders, ", "),
		expose:   strings.Join(cfg.ExposeHeaders, ", "),
	}
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			h.allowAll = true
			break
		}
		h.origins[strings.ToLower(o)] = o
	}
	if cfg.AllowCredentials && h.allowAll {
		h.allowAll = false
	}
	if h.methods == "" {
		h.methods = "GET, POST, PUT, DELETE, OPTIONS"
	}
	switch {
	case cfg.MaxAge > 0:
		h.maxAge = strconv.Itoa(cfg.MaxAge)
	case cfg.MaxAge < 0:
		h.maxAge = "0"
	}
	return h
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when the origin is not allowed. Matching is case-insensitive; the
// echoed value keeps the case from the configuration.
func (h corsHeaders) allowOrigin(origin string) string {
	if h.allowAll {
		return "*"
	}
	return h.origins[strings.ToLower(origin)]
}

// CORS returns a middleware that handles Cross-Origin Resource Sharing,
// including preflight requests and Vary header hygiene so shared caches
// never serve one origin's response to another.
func CORS(cfg CORSConfig) Middleware {
	hdr := buildCORSHeaders(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// No Origin header means the request is outside CORS scope, but
			// caches still need to vary on Origin.
			if origin == "" {
				if !hdr.allowAll {
					w.Header().Add("Vary", "Origin")
				}
				next.ServeHTTP(w, r)
				return
			}

			allowOrigin := hdr.allowOrigin(origin)

			// Preflight: OPTIONS carrying Access-Control-Request-Method.
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Add("Vary", "Origin")
				w.Header().Add("Vary", "Access-Control-Request-Method")
				w.Header().Add("Vary", "Access-Control-Request-Headers")

				if allowOrigin == "" {
					// Disallowed origin: 204 with no CORS headers.
					w.WriteHeader(http.StatusNoContent)
					return
				}

				w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
				w.Header().Set("Access-Control-Allow-Methods", hdr.methods)

				if hdr.headers != "" {
					w.Header().Set("Access-Control-Allow-Headers", hdr.headers)
				} else if rh := r.Header.Get("Access-Control-Request-Headers"); rh != "" {
					w.Header().Set("Access-Control-Allow-Headers", rh)
				}

				if cfg.AllowCredentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
				if hdr.maxAge != "" {
					w.Header().Set("Access-Control-Max-Age", hdr.maxAge)
				}

				w.WriteHeader(http.StatusNoContent)
				return
			}

			// Simple or actual request.
			if !hdr.allowAll {
				w.Header().Add("Vary", "Origin")
			}

			if allowOrigin != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
				if cfg.AllowCredentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
				if hdr.expose != "" {
					w.Header().Set("Access-Control-Expose-Headers", hdr.expose)
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
