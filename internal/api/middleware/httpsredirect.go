package middleware

import (
	"log/slog"
	"net/http"

	"github.com/forcessl/forcessl/internal/forcessl"
)

// HTTPSRedirectHandler returns an http.Handler that redirects every request to
// the equivalent HTTPS URL with a 301 Moved Permanently status. It is intended
// to run as a separate plain-HTTP server alongside the main HTTPS server, so
// forwarded-protocol headers are ignored. Requests that cannot be redirected
// get 400 since there is nothing to pass them through to.
func HTTPSRedirectHandler(p *forcessl.Policy) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, err := p.Upgrade(r)
		if err != nil {
			slog.Warn("https redirect: rejecting request with malformed target",
				"host", r.Host,
				"target", r.RequestURI,
				"error", err,
			)
			writeRESTError(w, http.StatusBadRequest, "rest_invalid_request_target", "request target cannot be redirected to https")
			return
		}
		http.Redirect(w, r, d.Location, d.Status)
	})
}
