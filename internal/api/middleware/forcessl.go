package middleware

import (
	"log/slog"
	"net/http"

	"github.com/forcessl/forcessl/internal/forcessl"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// ForceSSL returns middleware that redirects requests which did not arrive
// over a secure transport to their https equivalent with 301 Moved
// Permanently. Redirected requests never reach next. Requests whose host or
// target cannot be turned into a valid URL are logged and passed through.
func ForceSSL(p *forcessl.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := p.Evaluate(r)
			if err != nil {
				slog.Warn("force ssl: passing through request with malformed target",
					"request_id", chimw.GetReqID(r.Context()),
					"host", r.Host,
					"target", r.RequestURI,
					"error", err,
				)
			}

			if d.Action == forcessl.Redirect {
				http.Redirect(w, r, d.Location, d.Status)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CapturePeer records the socket peer address in the request context so that
// forwarded-protocol trust is checked against the real peer even after
// chi's RealIP middleware has rewritten RemoteAddr. Mount it before RealIP.
func CapturePeer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := forcessl.WithPeer(r.Context(), r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RealIP applies chi's RealIP only when the socket peer is a trusted proxy.
// Otherwise X-Real-IP, X-Forwarded-For and True-Client-IP are ignored and
// RemoteAddr stays the socket address. Mount it after CapturePeer.
func RealIP(trust forcessl.Trust) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		viaProxy := chimw.RealIP(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if trust.ProxyPeer(r) {
				viaProxy.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
