package httpmiddleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig configures CORS.
type CORSConfig struct {
	// AllowOrigins lists allowed origins; empty or "*" allows any origin.
	AllowOrigins []string
	// AllowMethods defaults to the methods the API routes use.
	AllowMethods []string
	// AllowHeaders is echoed from the preflight request when empty.
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	// MaxAge in seconds for preflight caching; zero omits the header.
	MaxAge int
}

type corsPolicy struct {
	any         bool
	origins     map[string]string
	methods     string
	headers     string
	expose      string
	credentials bool
	maxAge      string
}

func newCORSPolicy(cfg CORSConfig) *corsPolicy {
	p := &corsPolicy{
		any:         len(cfg.AllowOrigins) == 0,
		origins:     make(map[string]string, len(cfg.AllowOrigins)),
		methods:     "GET, POST, PUT, DELETE, OPTIONS",
		headers:     strings.Join(cfg.AllowHeaders, ", "),
		expose:      strings.Join(cfg.ExposeHeaders, ", "),
		credentials: cfg.AllowCredentials,
	}
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			p.any = true
			continue
		}
		p.origins[strings.ToLower(o)] = o
	}
	// A credentialed response may not carry the wildcard, so the request
	// origin is echoed instead.
	if p.credentials && p.any {
		p.any = false
	}
	if len(cfg.AllowMethods) > 0 {
		p.methods = strings.Join(cfg.AllowMethods, ", ")
	}
	if cfg.MaxAge > 0 {
		p.maxAge = strconv.Itoa(cfg.MaxAge)
	}
	return p
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when the origin is rejected.
func (p *corsPolicy) allowOrigin(origin string, wildcardEcho bool) string {
	switch {
	case p.any:
		return "*"
	case wildcardEcho:
		return origin
	}
	return p.origins[strings.ToLower(origin)]
}

// CORS answers preflight requests and decorates cross-origin responses.
func CORS(cfg CORSConfig) Middleware {
	p := newCORSPolicy(cfg)
	// Credentials with a wildcard configuration echo any origin back.
	echoAny := cfg.AllowCredentials && (len(cfg.AllowOrigins) == 0 || slices.Contains(cfg.AllowOrigins, "*"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			origin := r.Header.Get("Origin")
			if !p.any {
				h.Add("Vary", "Origin")
			}
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			allowed := p.allowOrigin(origin, echoAny)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				if allowed != "" {
					h.Set("Access-Control-Allow-Origin", allowed)
					h.Set("Access-Control-Allow-Methods", p.methods)
					if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); p.headers != "" {
						h.Set("Access-Control-Allow-Headers", p.headers)
					} else if reqHeaders != "" {
						h.Set("Access-Control-Allow-Headers", reqHeaders)
					}
					if p.credentials {
						h.Set("Access-Control-Allow-Credentials", "true")
					}
					if p.maxAge != "" {
						h.Set("Access-Control-Max-Age", p.maxAge)
					}
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if allowed != "" {
				h.Set("Access-Control-Allow-Origin", allowed)
				if p.credentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if p.expose != "" {
					h.Set("Access-Control-Expose-Headers", p.expose)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
