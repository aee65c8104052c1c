package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

type fakeStats struct{ redirected, passed, malformed uint64 }

func (f fakeStats) Redirected() uint64    { return f.redirected }
func (f fakeStats) PassedThrough() uint64 { return f.passed }
func (f fakeStats) Malformed() uint64     { return f.malformed }

type fakePosts struct {
	n   int64
	err error
}

func (f fakePosts) Count(context.Context) (int64, error) { return f.n, f.err }

type fakeEnforcing bool

func (f fakeEnforcing) Satisfied() bool { return bool(f) }

// gather registers c on a fresh registry and indexes the result by metric
// name.
func gather(t *testing.T, c prometheus.Collector) map[string]*dto.MetricFamily {
	t.Helper()
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func TestCollectorAllProviders(t *testing.T) {
	c := NewCollector(
		fakeStats{redirected: 3, passed: 5, malformed: 1},
		fakePosts{n: 12},
		fakeEnforcing(true),
		time.Now().Add(-time.Minute),
	)
	got := gather(t, c)

	decisions, ok := got["forcessl_decisions_total"]
	if !ok {
		t.Fatal("missing forcessl_decisions_total")
	}
	want := map[string]float64{"redirect": 3, "pass_through": 5, "malformed": 1}
	if len(decisions.GetMetric()) != len(want) {
		t.Fatalf("expected %d decision series, got %d", len(want), len(decisions.GetMetric()))
	}
	for _, m := range decisions.GetMetric() {
		action := m.GetLabel()[0].GetValue()
		if v := m.GetCounter().GetValue(); v != want[action] {
			t.Errorf("decisions{action=%q} = %g, want %g", action, v, want[action])
		}
	}

	if v := got["forcessl_enforcing"].GetMetric()[0].GetGauge().GetValue(); v != 1 {
		t.Errorf("forcessl_enforcing = %g, want 1", v)
	}
	if v := got["forcessl_posts"].GetMetric()[0].GetGauge().GetValue(); v != 12 {
		t.Errorf("forcessl_posts = %g, want 12", v)
	}
	if v := got["forcessl_uptime_seconds"].GetMetric()[0].GetGauge().GetValue(); v < 59 {
		t.Errorf("forcessl_uptime_seconds = %g, want >= 59", v)
	}
}

func TestCollectorNilProviders(t *testing.T) {
	got := gather(t, NewCollector(nil, nil, nil, time.Now()))

	if len(got) != 1 {
		t.Fatalf("expected only uptime, got %d families", len(got))
	}
	if _, ok := got["forcessl_uptime_seconds"]; !ok {
		t.Fatal("missing forcessl_uptime_seconds")
	}
}

func TestCollectorSkipsFailedPostCount(t *testing.T) {
	got := gather(t, NewCollector(nil, fakePosts{err: errors.New("db closed")}, fakeEnforcing(false), time.Now()))

	if _, ok := got["forcessl_posts"]; ok {
		t.Fatal("forcessl_posts should be omitted when counting fails")
	}
	if v := got["forcessl_enforcing"].GetMetric()[0].GetGauge().GetValue(); v != 0 {
		t.Errorf("forcessl_enforcing = %g, want 0", v)
	}
}
