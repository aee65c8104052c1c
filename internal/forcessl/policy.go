package forcessl

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
)

// Stats counts decisions made by a Policy. Safe for concurrent use.
type Stats struct {
	redirected atomic.Uint64
	passed     atomic.Uint64
	malformed  atomic.Uint64
}

// Redirected returns the number of requests answered with a redirect.
func (s *Stats) Redirected() uint64 { return s.redirected.Load() }

// PassedThrough returns the number of secure requests handed downstream.
func (s *Stats) PassedThrough() uint64 { return s.passed.Load() }

// Malformed returns the number of insecure requests passed through because
// no valid redirect URL could be built.
func (s *Stats) Malformed() uint64 { return s.malformed.Load() }

func (s *Stats) record(d Decision, err error) {
	switch {
	case errors.Is(err, ErrMalformedTarget):
		s.malformed.Add(1)
	case d.Action == Redirect:
		s.redirected.Add(1)
	default:
		s.passed.Add(1)
	}
}

// Policy applies Decide to HTTP requests. A single Policy is built at startup
// and shared by every request.
type Policy struct {
	Trust Trust

	// HTTPSPort, when non-zero, replaces the port of the Host header in
	// redirect targets. 443 removes the port.
	HTTPSPort int

	Stats Stats
}

// NewPolicy returns a Policy with the given trust settings and HTTPS port.
func NewPolicy(trust Trust, httpsPort int) *Policy {
	return &Policy{Trust: trust, HTTPSPort: httpsPort}
}

// Evaluate decides what to do with r.
func (p *Policy) Evaluate(r *http.Request) (Decision, error) {
	return p.decide(FromHTTP(r, p.Trust))
}

// Upgrade decides for r as if it had arrived over plain HTTP, ignoring TLS
// state and forwarded headers. It is meant for listeners that never carry TLS.
func (p *Policy) Upgrade(r *http.Request) (Decision, error) {
	req := FromHTTP(r, Trust{})
	req.Secure = false
	return p.decide(req)
}

func (p *Policy) decide(req Request) (Decision, error) {
	if !req.Secure && p.HTTPSPort != 0 {
		req.Host = withPort(req.Host, p.HTTPSPort)
	}
	d, err := Decide(req)
	p.Stats.record(d, err)
	return d, err
}

// withPort replaces the port in host. An empty host is returned unchanged so
// Decide can reject it.
func withPort(host string, port int) string {
	if host == "" {
		return host
	}
	var name string
	if h, _, err := net.SplitHostPort(host); err == nil {
		name = h
	} else {
		name = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	if port == 443 {
		if strings.Contains(name, ":") {
			return "[" + name + "]"
		}
		return name
	}
	return net.JoinHostPort(name, strconv.Itoa(port))
}
