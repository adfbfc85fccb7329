package middleware

import "net/http"

// CORSMiddleware adds CORS headers for the configured origins and
// answers preflight requests. An allowed origin of "*" allows all.
type CORSMiddleware struct {
	allowedOrigins []string
	allowAll       bool
}

// NewCORSMiddleware creates a CORS middleware for the given origins.
func NewCORSMiddleware(origins []string) *CORSMiddleware {
	m := &CORSMiddleware{allowedOrigins: origins}
	for _, o := range origins {
		if o == "*" {
			m.allowAll = true
			break
		}
	}
	return m
}

// Handler wraps next with CORS headers.
func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if m.allowAll {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" && m.isAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *CORSMiddleware) isAllowed(origin string) bool {
	for _, o := range m.allowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}
