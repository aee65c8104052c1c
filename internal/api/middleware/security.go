package middleware

import (
	"net/http"

	"github.com/forcessl/forcessl/internal/forcessl"
)

// hstsValue is sent on secure responses when HSTS is enabled: two years,
// subdomains included.
const hstsValue = "max-age=63072000; includeSubDomains"

// SecurityHeaders returns middleware that sets HTTP security headers on every
// response. When hsts is true, Strict-Transport-Security is added to responses
// for requests that arrived over a secure transport (directly or through a
// trusted proxy); browsers ignore it on plain HTTP anyway.
func SecurityHeaders(hsts bool, trust forcessl.Trust) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()

			h.Set("X-Frame-Options", "SAMEORIGIN")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")

			// The admin page uses an inline stylesheet and nothing else.
			h.Set("Content-Security-Policy",
				"default-src 'self'; "+
					"style-src 'self' 'unsafe-inline'; "+
					"frame-ancestors 'self'; "+
					"base-uri 'self'; "+
					"form-action 'self'")

			if hsts && forcessl.FromHTTP(r, trust).Secure {
				h.Set("Strict-Transport-Security", hstsValue)
			}

			next.ServeHTTP(w, r)
		})
	}
}
