package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DecisionStats exposes the SSL filter's running decision counts.
type DecisionStats interface {
	Redirected() uint64
	PassedThrough() uint64
	Malformed() uint64
}

// PostCounter returns the number of stored posts.
type PostCounter interface {
	Count(ctx context.Context) (int64, error)
}

// EnforcementStatus reports whether the SSL filter is installed.
type EnforcementStatus interface {
	Satisfied() bool
}

// Collector is a prometheus.Collector that gathers forcessl metrics at scrape time.
type Collector struct {
	decisions DecisionStats
	posts     PostCounter
	enforcing EnforcementStatus
	startTime time.Time

	// Metric descriptors.
	decisionsDesc *prometheus.Desc
	enforcingDesc *prometheus.Desc
	postsDesc     *prometheus.Desc
	uptimeDesc    *prometheus.Desc
}

// NewCollector creates a new metrics collector. Any provider may be nil if unavailable.
func NewCollector(
	decisions DecisionStats,
	posts PostCounter,
	enforcing EnforcementStatus,
	startTime time.Time,
) *Collector {
	return &Collector{
		decisions: decisions,
		posts:     posts,
		enforcing: enforcing,
		startTime: startTime,

		decisionsDesc: prometheus.NewDesc(
			"forcessl_decisions_total",
			"REST API requests seen by the SSL filter, by outcome",
			[]string{"action"}, nil,
		),
		enforcingDesc: prometheus.NewDesc(
			"forcessl_enforcing",
			"Whether SSL enforcement is installed on the REST API (1=yes, 0=dependency missing)",
			nil, nil,
		),
		postsDesc: prometheus.NewDesc(
			"forcessl_posts",
			"Number of posts stored by the REST API",
			nil, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"forcessl_uptime_seconds",
			"Seconds since the forcessl process started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.decisionsDesc
	ch <- c.enforcingDesc
	ch <- c.postsDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector. It queries all providers at scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.decisions != nil {
		for action, n := range map[string]uint64{
			"redirect":     c.decisions.Redirected(),
			"pass_through": c.decisions.PassedThrough(),
			"malformed":    c.decisions.Malformed(),
		} {
			ch <- prometheus.MustNewConstMetric(
				c.decisionsDesc, prometheus.CounterValue,
				float64(n), action,
			)
		}
	}

	if c.enforcing != nil {
		val := 0.0
		if c.enforcing.Satisfied() {
			val = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.enforcingDesc, prometheus.GaugeValue, val)
	}

	if c.posts != nil {
		count, err := c.posts.Count(ctx)
		if err != nil {
			slog.Error("metrics: failed to count posts", "error", err)
		} else {
			ch <- prometheus.MustNewConstMetric(
				c.postsDesc, prometheus.GaugeValue,
				float64(count),
			)
		}
	}

	// Uptime.
	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
}
