// Package metrics exposes reconfiguration and render-loop counters to prometheus.
package metrics

import (
	"net"
	"net/http"
	"time"

	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "globe"

// Fetch results.
const (
	FetchOK        = "ok"
	FetchFailure   = "failure"
	FetchMalformed = "malformed"
)

// Tile download results.
const (
	TileOK      = "ok"
	TileEmpty   = "empty"
	TileFailure = "failure"
)

// Rebuild kinds.
const (
	RebuildFull     = "full"
	RebuildLayer    = "layer"
	RebuildPipeline = "pipeline"
)

// Collector is a prometheus.Collector for the viewer. A nil *Collector is valid
// and records nothing.
type Collector struct {
	fetches              *prometheus.CounterVec
	staleDiscards        prometheus.Counter
	rebuilds             *prometheus.CounterVec
	constructionFailures prometheus.Counter
	livePipelines        prometheus.Gauge
	frameDuration        prometheus.Histogram
	tiles                *prometheus.CounterVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "capability_fetches_total",
				Help:      "Capability document fetches by result.",
			}, []string{"result"},
		),
		staleDiscards: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "stale_fetch_results_total",
				Help:      "Fetch results discarded because a newer selection superseded them.",
			},
		),
		rebuilds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "rebuilds_total",
				Help:      "Pipeline rebuilds by kind.",
			}, []string{"kind"},
		),
		constructionFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "pipeline_construction_failures_total",
				Help:      "Pipelines that failed to construct.",
			},
		),
		livePipelines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "live_pipelines",
				Help:      "Pipelines currently alive (never more than one).",
			},
		),
		frameDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "frame_seconds",
				Help:      "Time spent in one render-loop frame.",
				Buckets:   []float64{0.001, 0.004, 0.008, 0.016, 0.033, 0.066, 0.1, 0.25},
			},
		),
		tiles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "tile_downloads_total",
				Help:      "Tile downloads by result.",
			}, []string{"result"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.fetches.Describe(ch)
	c.staleDiscards.Describe(ch)
	c.rebuilds.Describe(ch)
	c.constructionFailures.Describe(ch)
	c.livePipelines.Describe(ch)
	c.frameDuration.Describe(ch)
	c.tiles.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.fetches.Collect(ch)
	c.staleDiscards.Collect(ch)
	c.rebuilds.Collect(ch)
	c.constructionFailures.Collect(ch)
	c.livePipelines.Collect(ch)
	c.frameDuration.Collect(ch)
	c.tiles.Collect(ch)
}

// FetchCompleted counts a capabilities fetch that finished with result
// (FetchOK, FetchFailure or FetchMalformed).
func (c *Collector) FetchCompleted(result string) {
	if c == nil {
		return
	}
	c.fetches.WithLabelValues(result).Inc()
}

// StaleDiscarded counts a fetch result dropped because a newer source
// selection superseded it.
func (c *Collector) StaleDiscarded() {
	if c == nil {
		return
	}
	c.staleDiscards.Inc()
}

// Rebuilt counts a rebuild of the given kind.
func (c *Collector) Rebuilt(kind string) {
	if c == nil {
		return
	}
	c.rebuilds.WithLabelValues(kind).Inc()
}

// ConstructionFailed counts a pipeline that could not be constructed.
func (c *Collector) ConstructionFailed() {
	if c == nil {
		return
	}
	c.constructionFailures.Inc()
}

// SetLivePipelines records how many pipelines are live, zero or one.
func (c *Collector) SetLivePipelines(n int) {
	if c == nil {
		return
	}
	c.livePipelines.Set(float64(n))
}

// ObserveFrame records the wall time of one frame.
func (c *Collector) ObserveFrame(d time.Duration) {
	if c == nil {
		return
	}
	c.frameDuration.Observe(d.Seconds())
}

// TileFetched counts a tile download that finished with result.
func (c *Collector) TileFetched(result string) {
	if c == nil {
		return
	}
	c.tiles.WithLabelValues(result).Inc()
}

// Serve registers c on a fresh registry and serves /metrics on addr until the
// listener fails. It returns once the listener is bound.
func Serve(addr string, c *Collector) (net.Addr, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return nil, errors.Annotate(err, "registering metrics")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Annotatef(err, "listening on %q", addr)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	return ln.Addr(), nil
}
