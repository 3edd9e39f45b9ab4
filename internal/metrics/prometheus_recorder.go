package metrics

import (
	"net/http"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gardener"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg             *prom.Registry
	rebuildDuration *prom.HistogramVec
	rebuildOutcome  *prom.CounterVec
	generation      prom.Gauge
	clients         prom.Gauge
	broadcasts      prom.Counter
	dropped         prom.Counter
	httpRequests    *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers the metrics on reg (a fresh registry
// when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		reg: reg,
		rebuildDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "rebuild_duration_seconds",
			Help:      "Duration of completed rebuilds by trigger",
			Buckets:   prom.DefBuckets,
		}, []string{"trigger"}),
		rebuildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "rebuild_outcomes_total",
			Help:      "Rebuild requests by outcome",
		}, []string{"outcome"}),
		generation: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "build_generation",
			Help:      "Generation of the output tree currently served",
		}),
		clients: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "livereload_clients",
			Help:      "Connected live-reload clients",
		}),
		broadcasts: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "livereload_broadcasts_total",
			Help:      "Rebuild notifications sent to live-reload clients",
		}),
		dropped: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "livereload_dropped_total",
			Help:      "Live-reload clients dropped because their buffer was full",
		}),
		httpRequests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Dev server requests by status code",
		}, []string{"code"}),
	}
	reg.MustRegister(pr.rebuildDuration, pr.rebuildOutcome, pr.generation, pr.clients, pr.broadcasts, pr.dropped, pr.httpRequests)
	return pr
}

// Handler serves the recorder's registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (p *PrometheusRecorder) ObserveRebuildDuration(trigger string, d time.Duration) {
	if p == nil {
		return
	}
	p.rebuildDuration.WithLabelValues(trigger).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRebuildOutcome(outcome OutcomeLabel) {
	if p == nil {
		return
	}
	p.rebuildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) SetGeneration(n int64) {
	if p == nil {
		return
	}
	p.generation.Set(float64(n))
}

func (p *PrometheusRecorder) SetLiveReloadClients(n int) {
	if p == nil {
		return
	}
	p.clients.Set(float64(n))
}

func (p *PrometheusRecorder) IncLiveReloadBroadcast() {
	if p == nil {
		return
	}
	p.broadcasts.Inc()
}

func (p *PrometheusRecorder) IncLiveReloadDropped() {
	if p == nil {
		return
	}
	p.dropped.Inc()
}

func (p *PrometheusRecorder) IncHTTPRequest(status int) {
	if p == nil {
		return
	}
	p.httpRequests.WithLabelValues(strconv.Itoa(status)).Inc()
}
