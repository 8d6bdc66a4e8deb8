// Package metrics holds the Prometheus collectors the app exports on /metrics.
//
// Every method is safe on a nil *Metrics so tests and CLI commands can pass
// nil instead of building a registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rankboard"

// Outcome label values.
const (
	OutcomeCreated  = "created"
	OutcomeReplaced = "replaced"
	OutcomeUpdated  = "updated"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

type Metrics struct {
	registry *prometheus.Registry

	submissions        *prometheus.CounterVec
	scores             *prometheus.CounterVec
	leaderboardSeconds prometheus.Histogram
	blobDeleteFailures *prometheus.CounterVec
	sweptBlobs         *prometheus.CounterVec
}

// New registers all collectors on a private registry, together with the
// standard Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submission uploads by outcome.",
		}, []string{"outcome"}),
		scores: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scores_total",
			Help:      "Score writes by outcome.",
		}, []string{"outcome"}),
		leaderboardSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "leaderboard_compute_seconds",
			Help:      "Time to query and fold one leaderboard.",
			Buckets:   prometheus.DefBuckets,
		}),
		blobDeleteFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_delete_failures_total",
			Help:      "Best-effort blob deletions that failed, by bucket.",
		}, []string{"bucket"}),
		sweptBlobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swept_blobs_total",
			Help:      "Orphaned blobs removed by the maintenance sweep, by bucket.",
		}, []string{"bucket"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Submission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Score(outcome string) {
	if m == nil {
		return
	}
	m.scores.WithLabelValues(outcome).Inc()
}

// ObserveLeaderboard records the time elapsed since start.
func (m *Metrics) ObserveLeaderboard(start time.Time) {
	if m == nil {
		return
	}
	m.leaderboardSeconds.Observe(time.Since(start).Seconds())
}

func (m *Metrics) BlobDeleteFailed(bucket string) {
	if m == nil {
		return
	}
	m.blobDeleteFailures.WithLabelValues(bucket).Inc()
}

func (m *Metrics) BlobsSwept(bucket string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.sweptBlobs.WithLabelValues(bucket).Add(float64(n))
}
