// Package forcessl decides whether an inbound API request must be upgraded to
// HTTPS and, if so, where to send it.
package forcessl

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ErrMalformedTarget is returned when the host and request target of an
// insecure request cannot be turned into a well-formed https URL. The
// accompanying decision is always PassThrough.
var ErrMalformedTarget = errors.New("malformed request target")

// Action is the outcome of a redirect decision.
type Action int

const (
	// PassThrough hands the request to the next handler unchanged.
	PassThrough Action = iota
	// Redirect answers the request with a permanent redirect to Location.
	Redirect
)

func (a Action) String() string {
	switch a {
	case PassThrough:
		return "pass_through"
	case Redirect:
		return "redirect"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Request describes an inbound request as seen by the transport. It is built
// per request and discarded once a decision has been made.
type Request struct {
	// Secure reports whether the request arrived over TLS, directly or via
	// a trusted proxy.
	Secure bool
	// Host is the Host header value, including any port.
	Host string
	// Target is the path and query from the request line, verbatim.
	Target string
}

// Decision is the result of Decide.
type Decision struct {
	Action   Action
	Location string
	Status   int
}

// Decide returns Redirect with status 301 for insecure requests and
// PassThrough for secure ones. An insecure request whose host or target cannot
// form a valid URL passes through with an error wrapping ErrMalformedTarget.
func Decide(req Request) (Decision, error) {
	if req.Secure {
		return Decision{Action: PassThrough}, nil
	}

	location, err := httpsURL(req.Host, req.Target)
	if err != nil {
		return Decision{Action: PassThrough}, err
	}

	return Decision{
		Action:   Redirect,
		Location: location,
		Status:   http.StatusMovedPermanently,
	}, nil
}

// httpsURL joins host and target under the https scheme, percent-encoding any
// byte of target that may not appear in a URL.
func httpsURL(host, target string) (string, error) {
	if host == "" {
		return "", fmt.Errorf("%w: empty host", ErrMalformedTarget)
	}
	for i := 0; i < len(host); i++ {
		if !isHostByte(host[i]) {
			return "", fmt.Errorf("%w: invalid character %q in host", ErrMalformedTarget, host[i])
		}
	}

	if target == "" {
		target = "/"
	}
	if target[0] != '/' {
		return "", fmt.Errorf("%w: target %q is not in origin form", ErrMalformedTarget, target)
	}

	raw := "https://" + host + escapeTarget(target)

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedTarget, err)
	}
	if u.Host != host || u.User != nil || u.Hostname() == "" {
		return "", fmt.Errorf("%w: host %q does not survive parsing", ErrMalformedTarget, host)
	}

	return raw, nil
}

const upperhex = "0123456789ABCDEF"

// escapeTarget percent-encodes bytes that are not allowed in a path or query.
// Existing %XX escapes are kept as they are so an already-encoded target is
// not double-encoded. A stray '%' is encoded as %25.
func escapeTarget(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(c)
		case c != '%' && isTargetByte(c):
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&15])
		}
	}
	return b.String()
}

// isTargetByte reports whether c may appear unescaped in the path or query of
// an origin-form request target: unreserved, sub-delims, ':', '@', '/' and '?'.
func isTargetByte(c byte) bool {
	if isAlnum(c) {
		return true
	}
	switch c {
	case '-', '.', '_', '~',
		'!', '$', '&', '\'', '(', ')', '*', '+', ',', ';', '=',
		':', '@', '/', '?':
		return true
	}
	return false
}

// isHostByte reports whether c may appear in a Host header: reg-name
// characters, IPv6 brackets and the port separator.
func isHostByte(c byte) bool {
	if isAlnum(c) {
		return true
	}
	switch c {
	case '-', '.', '_', '~', ':', '[', ']':
		return true
	}
	return false
}

func isAlnum(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9'
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}
