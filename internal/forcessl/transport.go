package forcessl

import (
	"context"
	"net/http"
	"net/netip"
	"strings"
)

// Trust controls which forwarded-protocol signals are believed when deciding
// whether a request arrived over TLS.
type Trust struct {
	// ForwardedProto enables the X-Forwarded-Proto, Forwarded,
	// X-Forwarded-Ssl and Front-End-Https headers.
	ForwardedProto bool
	// Proxies limits forwarded headers to requests whose socket peer is in
	// one of these prefixes. Empty means any peer.
	Proxies []netip.Prefix
}

type peerKey struct{}

// WithPeer returns a context carrying the socket peer address of the request.
// Middleware that rewrites RemoteAddr (for example chi's RealIP) must run
// after this is recorded.
func WithPeer(ctx context.Context, remoteAddr string) context.Context {
	return context.WithValue(ctx, peerKey{}, remoteAddr)
}

// peerAddr returns the address recorded by WithPeer, or r.RemoteAddr.
func peerAddr(r *http.Request) string {
	if addr, ok := r.Context().Value(peerKey{}).(string); ok {
		return addr
	}
	return r.RemoteAddr
}

// FromHTTP builds a Request descriptor from an inbound HTTP request.
func FromHTTP(r *http.Request, trust Trust) Request {
	return Request{
		Secure: isSecure(r, trust),
		Host:   r.Host,
		Target: requestTarget(r),
	}
}

// requestTarget returns the origin-form target of r. Absolute-form targets
// sent to proxies are reduced to their path and query.
func requestTarget(r *http.Request) string {
	switch {
	case strings.HasPrefix(r.RequestURI, "/"):
		return r.RequestURI
	case r.URL != nil && (r.RequestURI == "" || r.URL.IsAbs()):
		return r.URL.RequestURI()
	default:
		return r.RequestURI
	}
}

func isSecure(r *http.Request, trust Trust) bool {
	if r.TLS != nil {
		return true
	}
	if !trust.trusts(peerAddr(r)) {
		return false
	}

	if proto := lastValue(r.Header.Values("X-Forwarded-Proto")); proto != "" {
		return strings.EqualFold(proto, "https")
	}
	if proto := forwardedProto(r.Header.Values("Forwarded")); proto != "" {
		return strings.EqualFold(proto, "https")
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Ssl"), "on") {
		return true
	}
	return strings.EqualFold(r.Header.Get("Front-End-Https"), "on")
}

func (t Trust) trusts(remoteAddr string) bool {
	if !t.ForwardedProto {
		return false
	}
	if len(t.Proxies) == 0 {
		return true
	}
	return t.inProxies(remoteAddr)
}

// ProxyPeer reports whether the socket peer of r is one of the configured
// proxies, so its client address headers may be believed. An empty proxy
// list trusts nobody here, unlike ForwardedProto.
func (t Trust) ProxyPeer(r *http.Request) bool {
	return len(t.Proxies) > 0 && t.inProxies(peerAddr(r))
}

func (t Trust) inProxies(remoteAddr string) bool {
	var addr netip.Addr
	if ap, err := netip.ParseAddrPort(remoteAddr); err == nil {
		addr = ap.Addr()
	} else if a, err := netip.ParseAddr(remoteAddr); err == nil {
		addr = a
	} else {
		return false
	}
	addr = addr.Unmap()

	for _, p := range t.Proxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// lastValue returns the right-most element of a comma-separated header that
// may be repeated. The right-most value was written by the proxy closest to
// us.
func lastValue(values []string) string {
	for i := len(values) - 1; i >= 0; i-- {
		parts := strings.Split(values[i], ",")
		for j := len(parts) - 1; j >= 0; j-- {
			if v := strings.TrimSpace(parts[j]); v != "" {
				return v
			}
		}
	}
	return ""
}

// forwardedProto extracts the proto parameter of the last element of an
// RFC 7239 Forwarded header.
func forwardedProto(values []string) string {
	elem := lastValue(values)
	for _, pair := range strings.Split(elem, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || !strings.EqualFold(k, "proto") {
			continue
		}
		return strings.Trim(v, `"`)
	}
	return ""
}
