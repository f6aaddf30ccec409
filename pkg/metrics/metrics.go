// Package metrics exposes the Prometheus gauges/counters/histograms a
// stars node's overlay and AAI subsystems update, grounded on the
// teacher's pkg/monitoring/prometheus.go registry-of-named-collectors
// style.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every collector a running node updates.
type Registry struct {
	NodeState    *prometheus.GaugeVec
	ChildCount   prometheus.Gauge
	FanoutTarget prometheus.Gauge
	ZoneCoverage prometheus.Gauge

	TransactionsStarted *prometheus.CounterVec
	TransactionsOutcome *prometheus.CounterVec
	TransactionDuration prometheus.Histogram
	StrNodeTimeouts     prometheus.Counter

	AvailableStrNodes prometheus.Gauge
	ClusterCount      prometheus.Gauge
	ClusterError      prometheus.Gauge

	registry *prometheus.Registry
}

// NewRegistry builds and registers every collector against a fresh
// prometheus.Registry (not the global DefaultRegisterer, so multiple
// simulated nodes in one test process never collide on metric names).
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		registry: reg,
		NodeState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "stars",
			Subsystem: "overlay",
			Name:      "node_state",
			Help:      "1 if the node's interior role is currently in the named state, 0 otherwise.",
		}, []string{"state"}),
		ChildCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "stars", Subsystem: "overlay", Name: "child_count",
			Help: "Number of live children of this node's interior role.",
		}),
		FanoutTarget: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "stars", Subsystem: "overlay", Name: "fanout_target",
			Help: "Configured fanout target m.",
		}),
		ZoneCoverage: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "stars", Subsystem: "overlay", Name: "zone_coverage",
			Help: "Width (maxAddr - minAddr) of the node's aggregated zone.",
		}),
		TransactionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stars", Subsystem: "overlay", Name: "transactions_started_total",
			Help: "2PC transactions started by kind (split/merge/leave/root_collapse/insert).",
		}, []string{"kind"}),
		TransactionsOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stars", Subsystem: "overlay", Name: "transactions_outcome_total",
			Help: "2PC transactions resolved by outcome (committed/rolled_back/timed_out).",
		}, []string{"outcome"}),
		TransactionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "stars", Subsystem: "overlay", Name: "transaction_duration_seconds",
			Help:    "Time from transaction begin to commit or rollback.",
			Buckets: prometheus.DefBuckets,
		}),
		StrNodeTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stars", Subsystem: "overlay", Name: "str_node_timeouts_total",
			Help: "StrNodeNeeded requests that timed out before an offer arrived.",
		}),
		AvailableStrNodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "stars", Subsystem: "aai", Name: "available_str_nodes",
			Help: "Aggregated spare structure-node capacity advertised by this subtree.",
		}),
		ClusterCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "stars", Subsystem: "aai", Name: "cluster_count",
			Help: "Number of cluster records currently held in this node's summary.",
		}),
		ClusterError: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "stars", Subsystem: "aai", Name: "cluster_error",
			Help: "Accumulated clustering error of the most recent reduction.",
		}),
	}
}

// Handler returns the HTTP handler to mount at the configured metrics path.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Server wraps Handler in a minimal http.Server, mirroring the teacher's
// metrics.Server lifecycle (Start/Shutdown).
type Server struct {
	httpServer *http.Server
}

// NewServer builds a metrics HTTP server bound to listen, serving path
// from reg.
func NewServer(listen, path string, reg *Registry) *Server {
	mux := http.NewServeMux()
	mux.Handle(path, reg.Handler())
	return &Server{httpServer: &http.Server{
		Addr:         listen,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}}
}

// Start runs the metrics server in the background. Bind/listen errors
// surface asynchronously; callers that need to observe them should wrap
// this with their own supervisor, matching the teacher's fire-and-log
// metrics.Server.Start.
func (s *Server) Start(onError func(error)) {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed && onError != nil {
			onError(err)
		}
	}()
}

// Shutdown gracefully stops the metrics server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
