package middleware

import (
	"net/http"
	"strings"
)

const (
	corsHeaders = "Content-Type, X-Request-ID"
	corsMethods = "GET, POST, DELETE, OPTIONS"
)

// originPolicy matches browser origins for the chat widget. Entries are exact
// origins, "*" or a subdomain pattern such as "https://*.clinic.example".
type originPolicy struct {
	any      bool
	exact    map[string]struct{}
	suffixes []string
}

func newOriginPolicy(origins []string) originPolicy {
	p := originPolicy{exact: map[string]struct{}{}}
	for _, origin := range origins {
		origin = normalizeOrigin(origin)
		switch {
		case origin == "":
		case origin == "*":
			p.any = true
		case strings.Contains(origin, "://*."):
			scheme, host, _ := strings.Cut(origin, "://*")
			p.suffixes = append(p.suffixes, scheme+"://|"+host)
		default:
			p.exact[origin] = struct{}{}
		}
	}
	return p
}

func (p originPolicy) allows(origin string) bool {
	origin = normalizeOrigin(origin)
	if origin == "" {
		return false
	}
	if p.any {
		return true
	}
	if _, ok := p.exact[origin]; ok {
		return true
	}
	for _, s := range p.suffixes {
		scheme, host, _ := strings.Cut(s, "|")
		if strings.HasPrefix(origin, scheme) && strings.HasSuffix(origin, host) && len(origin) > len(scheme)+len(host) {
			return true
		}
	}
	return false
}

func normalizeOrigin(origin string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(origin)), "/")
}

// CORS lets the browser chat window on another origin call the API. Preflights
// from origins outside the list are refused with 403.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := newOriginPolicy(allowedOrigins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Add("Vary", "Origin")

			allowed := policy.allows(origin)
			if allowed {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Headers", corsHeaders)
				h.Set("Access-Control-Allow-Methods", corsMethods)
				h.Set("Access-Control-Expose-Headers", "X-Request-ID")
				h.Set("Access-Control-Max-Age", "600")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if allowed {
					w.WriteHeader(http.StatusNoContent)
				} else {
					w.WriteHeader(http.StatusForbidden)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
