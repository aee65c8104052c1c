package forcessl

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestPolicyEvaluateCountsDecisions(t *testing.T) {
	p := NewPolicy(Trust{}, 0)

	insecure := httptest.NewRequest(http.MethodGet, "http://api.example.com/wp-json/", nil)
	secure := httptest.NewRequest(http.MethodGet, "https://api.example.com/wp-json/", nil)
	malformed := httptest.NewRequest(http.MethodGet, "http://api.example.com/wp-json/", nil)
	malformed.Host = ""

	if d, _ := p.Evaluate(insecure); d.Action != Redirect {
		t.Fatalf("expected redirect, got %s", d.Action)
	}
	if d, _ := p.Evaluate(secure); d.Action != PassThrough {
		t.Fatalf("expected pass_through, got %s", d.Action)
	}
	if d, err := p.Evaluate(malformed); d.Action != PassThrough || err == nil {
		t.Fatalf("expected pass_through with error, got %s, %v", d.Action, err)
	}

	if got := p.Stats.Redirected(); got != 1 {
		t.Errorf("redirected = %d, want 1", got)
	}
	if got := p.Stats.PassedThrough(); got != 1 {
		t.Errorf("passed through = %d, want 1", got)
	}
	if got := p.Stats.Malformed(); got != 1 {
		t.Errorf("malformed = %d, want 1", got)
	}
}

func TestPolicyHTTPSPortRewrite(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"api.example.com:8080", 8443, "https://api.example.com:8443/wp-json/"},
		{"api.example.com:8080", 443, "https://api.example.com/wp-json/"},
		{"api.example.com", 8443, "https://api.example.com:8443/wp-json/"},
		{"[::1]:8080", 8443, "https://[::1]:8443/wp-json/"},
		{"[::1]:8080", 443, "https://[::1]/wp-json/"},
		{"[::1]", 8443, "https://[::1]:8443/wp-json/"},
	}

	for _, tt := range tests {
		p := NewPolicy(Trust{}, tt.port)
		req := httptest.NewRequest(http.MethodGet, "/wp-json/", nil)
		req.Host = tt.host

		d, err := p.Evaluate(req)
		if err != nil {
			t.Fatalf("Evaluate(%q, %d) error: %v", tt.host, tt.port, err)
		}
		if d.Location != tt.want {
			t.Errorf("Evaluate(%q, %d) location = %q, want %q", tt.host, tt.port, d.Location, tt.want)
		}
	}
}

func TestPolicyUpgradeIgnoresForwardedHeaders(t *testing.T) {
	p := NewPolicy(Trust{ForwardedProto: true}, 0)

	req := httptest.NewRequest(http.MethodGet, "http://api.example.com/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")

	if d, _ := p.Evaluate(req); d.Action != PassThrough {
		t.Fatalf("Evaluate: expected pass_through for trusted forwarded https, got %s", d.Action)
	}
	d, err := p.Upgrade(req)
	if err != nil {
		t.Fatalf("Upgrade error: %v", err)
	}
	if d.Action != Redirect || d.Location != "https://api.example.com/" {
		t.Fatalf("Upgrade: got %+v", d)
	}
}

func TestPolicyConcurrentEvaluate(t *testing.T) {
	p := NewPolicy(Trust{}, 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodGet, "http://api.example.com/wp-json/", nil)
			p.Evaluate(req) //nolint:errcheck
		}()
	}
	wg.Wait()

	if got := p.Stats.Redirected(); got != 50 {
		t.Fatalf("redirected = %d, want 50", got)
	}
}
